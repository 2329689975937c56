// Command mcspy inspects the keys stored on a memcache cluster and reports
// how the cache is used.
//
// Usage:
//
//	mcspy <command> [flags]
//
// Commands:
//
//	report         usage report by prefix, bin and slab (alias report:drupal)
//	stats          runtime and slab statistics (alias report:stats)
//	keys           list keys (alias dump:keys)
//	dump-files     save item values to disk (aliases dump:files, backup)
//	deep-search    find items whose value contains a string (alias deep)
//	server-config  show server settings (alias config:server)
//
// Configuration is read from defaults, an optional YAML file (--config or
// MCSPY_CONFIG), MCSPY_* environment variables (a .env file is loaded first)
// and finally flags.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dreamware/mcspy/internal/cluster"
	"github.com/dreamware/mcspy/internal/config"
	"github.com/dreamware/mcspy/internal/inspect"
	"github.com/dreamware/mcspy/internal/storage"
)

func main() {
	// A missing .env file is normal; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newApp(os.Stdout, os.Stderr, os.Stdin, os.Getenv).command()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// flags holds the raw flag values before they are folded into a Config.
type flags struct {
	configFile string
	servers    string
	dumpFolder string
	slab       int
	keyGrep    string
	keySearch  string
	noRefresh  bool
	cached     bool
	refresh    bool
	raw        bool
	yes        bool
	quiet      bool
	cleanup    bool
	timeout    time.Duration
	workers    int
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
	getenv func(string) string

	flags flags
	cfg   config.Config
	insp  *inspect.Inspector
}

func newApp(stdout, stderr io.Writer, stdin io.Reader, getenv func(string) string) *app {
	return &app{stdout: stdout, stderr: stderr, stdin: stdin, getenv: getenv}
}

// command returns the root command with every subcommand attached.
func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "mcspy",
		Short:         "Inspect keys and usage of a memcache cluster",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&a.flags.servers, "servers", "", "comma separated host:port list")
	pf.StringVar(&a.flags.dumpFolder, "dump-folder", "", "folder for key dumps (default "+config.DefaultDumpFolder+")")
	pf.IntVar(&a.flags.slab, "slab", 0, "scan only this slab id")
	pf.StringVar(&a.flags.keyGrep, "key-grep", "", "only keys containing this text")
	pf.StringVar(&a.flags.keySearch, "key-search", "", "same as --key-grep")
	pf.BoolVar(&a.flags.noRefresh, "no-refresh", false, "reuse the existing key dump")
	pf.BoolVar(&a.flags.cached, "cached", false, "same as --no-refresh")
	pf.BoolVar(&a.flags.refresh, "refresh", false, "rescan even if a key dump exists")
	pf.BoolVar(&a.flags.raw, "raw", false, "list raw keys instead of parsed ones")
	pf.BoolVarP(&a.flags.yes, "yes", "y", false, "do not ask for confirmation")
	pf.BoolVarP(&a.flags.quiet, "quiet", "q", false, "suppress informational messages")
	pf.BoolVar(&a.flags.cleanup, "cleanup", false, "remove the key dumps after a usage report")
	pf.DurationVar(&a.flags.timeout, "timeout", config.DefaultTimeout, "connect and command timeout")
	pf.IntVar(&a.flags.workers, "workers", config.DefaultWorkers, "servers scanned in parallel")

	root.AddCommand(
		&cobra.Command{
			Use:     "report",
			Aliases: []string{"report:drupal"},
			Short:   "Analyze cache usage by prefix, bin and slab",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.insp.UsageReport(cmd.Context())
			},
		},
		&cobra.Command{
			Use:     "stats",
			Aliases: []string{"report:stats"},
			Short:   "Show runtime and slab statistics",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.insp.StatsReport(cmd.Context())
			},
		},
		&cobra.Command{
			Use:     "keys",
			Aliases: []string{"dump:keys"},
			Short:   "List keys",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.insp.Keys(cmd.Context())
			},
		},
		&cobra.Command{
			Use:     "dump-files",
			Aliases: []string{"dump:files", "backup"},
			Short:   "Save item values to the dump folder",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := a.insp.ExportContents(cmd.Context())
				return err
			},
		},
		&cobra.Command{
			Use:     "deep-search <text>",
			Aliases: []string{"deep"},
			Short:   "Find items whose value contains text",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := a.insp.DeepSearch(cmd.Context(), args[0])
				return err
			},
		},
		&cobra.Command{
			Use:     "server-config",
			Aliases: []string{"config:server"},
			Short:   "Show server settings",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.insp.ServerConfig(cmd.Context())
			},
		},
	)

	return root
}

// setup builds the configuration and the inspector for the chosen command.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.buildConfig(cmd)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger := log.New(a.stderr, "", 0)
	if a.flags.quiet {
		logger.SetOutput(io.Discard)
	}

	store, err := storage.NewFileStore(cfg.DumpFolder)
	if err != nil {
		return fmt.Errorf("can't create %s: %w", cfg.DumpFolder, err)
	}

	a.insp = inspect.New(cfg, store,
		inspect.WithOutput(a.stdout),
		inspect.WithInput(a.stdin),
		inspect.WithLogger(logger),
	)
	return nil
}

// buildConfig applies defaults, the YAML file, the environment and the flags
// that were set on the command line, in that order.
func (a *app) buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	path := a.flags.configFile
	if path == "" {
		path = a.getenv(config.EnvConfig)
	}
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(cfg, path); err != nil {
			return cfg, err
		}
	}

	cfg, err := config.ApplyEnv(cfg, a.getenv)
	if err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("servers") {
		servers, err := cluster.ParseServerList(a.flags.servers)
		if err != nil {
			return cfg, err
		}
		cfg.Servers = servers
	}
	if changed("dump-folder") {
		cfg.DumpFolder = a.flags.dumpFolder
	}
	if changed("slab") {
		cfg.Slab = a.flags.slab
	}
	if changed("key-search") {
		cfg.KeyFilter = a.flags.keySearch
	}
	if changed("key-grep") {
		cfg.KeyFilter = a.flags.keyGrep
	}
	if a.flags.noRefresh || a.flags.cached {
		cfg.Refresh = false
	}
	if a.flags.refresh {
		cfg.Refresh = true
	}
	if changed("raw") {
		cfg.Raw = a.flags.raw
	}
	if changed("yes") {
		cfg.AssumeYes = a.flags.yes
	}
	if changed("cleanup") {
		cfg.Cleanup = a.flags.cleanup
	}
	if changed("timeout") {
		cfg.Timeout = a.flags.timeout
	}
	if changed("workers") {
		cfg.Workers = a.flags.workers
	}

	return cfg, cfg.Validate()
}
