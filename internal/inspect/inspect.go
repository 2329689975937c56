package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/mcspy/internal/cluster"
	"github.com/dreamware/mcspy/internal/config"
	"github.com/dreamware/mcspy/internal/protocol"
	"github.com/dreamware/mcspy/internal/scanner"
	"github.com/dreamware/mcspy/internal/slab"
	"github.com/dreamware/mcspy/internal/storage"
	"github.com/dreamware/mcspy/internal/taxonomy"
)

// Inspector runs mcspy operations against one configuration and one store.
type Inspector struct {
	cfg    config.Config
	store  storage.Store
	sender scanner.Sender
	parser *taxonomy.Parser
	out    io.Writer
	in     io.Reader
	logger *log.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithOutput sets where reports are written. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(i *Inspector) { i.out = w }
}

// WithInput sets where confirmations are read from. The default is os.Stdin.
func WithInput(r io.Reader) Option {
	return func(i *Inspector) { i.in = r }
}

// WithLogger sets the destination for informational notes.
func WithLogger(l *log.Logger) Option {
	return func(i *Inspector) { i.logger = l }
}

// WithSender replaces the protocol client used for diagnostic commands.
func WithSender(s scanner.Sender) Option {
	return func(i *Inspector) { i.sender = s }
}

// WithParser replaces the key taxonomy parser.
func WithParser(p *taxonomy.Parser) Option {
	return func(i *Inspector) { i.parser = p }
}

// New returns an Inspector for cfg persisting snapshots to store.
func New(cfg config.Config, store storage.Store, opts ...Option) *Inspector {
	i := &Inspector{
		cfg:    cfg,
		store:  store,
		sender: protocol.NewClient(cfg.Timeout),
		parser: taxonomy.NewParser(),
		out:    os.Stdout,
		in:     os.Stdin,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Snapshot is the data every key-based operation works on.
type Snapshot struct {
	Raw         []storage.RawRecord
	Parsed      []storage.ParsedRecord
	Servers     []scanner.ServerScan // empty when Cached
	Cached      bool                 // loaded from the dump folder instead of scanned
	Unparseable int                  // raw records dropped by the parser
}

// Refresh produces the current snapshot. In cached mode an existing raw
// snapshot is reused as-is; otherwise the cluster is scanned and both
// snapshots are rewritten. Only storage failures are returned as errors.
func (i *Inspector) Refresh(ctx context.Context) (Snapshot, error) {
	if !i.cfg.Refresh && i.store.HasRaw() {
		return i.loadCached()
	}

	i.logger.Printf("Dumping list of all memcache keys from %s (slabs %s)",
		cluster.Addrs(i.cfg.Servers), slab.Select(i.cfg.Slab))
	sc := scanner.New(i.sender,
		scanner.WithSlabs(slab.Select(i.cfg.Slab)),
		scanner.WithKeyFilter(i.cfg.KeyMatches),
		scanner.WithWorkers(i.cfg.Workers),
		scanner.WithLogger(i.logger),
	)
	raw, servers := sc.Scan(ctx, i.cfg.Servers)
	for _, s := range servers {
		i.logger.Printf("  ... server %s: %s, %d items from %d slabs in %v",
			s.Server, s.Status, s.Items, s.SlabsScanned, s.Duration.Round(time.Millisecond))
	}

	if err := i.store.WriteRaw(raw); err != nil {
		return Snapshot{}, fmt.Errorf("write raw snapshot: %w", err)
	}

	snap := Snapshot{Raw: raw, Servers: servers}
	if err := i.parse(&snap); err != nil {
		return Snapshot{}, err
	}
	i.logStored()
	return snap, nil
}

func (i *Inspector) logStored() {
	st := i.store.Stats()
	i.logger.Printf("Key dump holds %d raw and %d parsed records", st.RawRecords, st.ParsedRecords)
}

func (i *Inspector) loadCached() (Snapshot, error) {
	i.logger.Printf("Using existing key dump")

	raw, err := i.store.ReadRaw()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read raw snapshot: %w", err)
	}
	snap := Snapshot{Raw: raw, Cached: true}

	parsed, err := i.store.ReadParsed()
	switch {
	case err == nil:
		snap.Parsed = parsed
		i.logStored()
		return snap, nil
	case errors.Is(err, storage.ErrSnapshotNotFound):
		// The parsed snapshot is derived; rebuild it from the raw one.
		if err := i.parse(&snap); err != nil {
			return Snapshot{}, err
		}
		i.logStored()
		return snap, nil
	default:
		return Snapshot{}, fmt.Errorf("read parsed snapshot: %w", err)
	}
}

func (i *Inspector) parse(snap *Snapshot) error {
	res := i.parser.ParseAll(snap.Raw, i.cfg.KeyMatches)
	if err := i.store.WriteParsed(res.Records); err != nil {
		return fmt.Errorf("write parsed snapshot: %w", err)
	}
	snap.Parsed = res.Records
	snap.Unparseable = res.Unparseable
	i.logger.Printf("Parsed %d of %d keys (%d unparseable, %d filtered)",
		len(res.Records), len(snap.Raw), res.Unparseable, res.Filtered)
	names := make([]string, 0, len(res.Rejected))
	for name := range res.Rejected {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		i.logger.Printf("  ... %d keys rejected by %s", res.Rejected[name], name)
	}
	return nil
}
