package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/mcspy/internal/cluster"
)

// TestDefault verifies the baseline configuration validates and matches the documented defaults.
func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []cluster.ServerInfo{{Host: "localhost", Port: 11211}}, cfg.Servers)
	assert.Equal(t, DefaultDumpFolder, cfg.DumpFolder)
	assert.Equal(t, 0, cfg.Slab)
	assert.True(t, cfg.Refresh)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.FrequencyLimit)
	assert.Equal(t, 20, cfg.PatternLimit)
	assert.Equal(t, 5, cfg.MinPrefixCount)
}

// TestParse verifies that a YAML document only overrides the fields it names.
func TestParse(t *testing.T) {
	doc := []byte(`
servers:
  - 10.0.0.1:11211
  - 10.0.0.2
dump_folder: /var/tmp/mc
timeout: 1500ms
refresh: false
min_prefix_count: 3
`)

	cfg, err := Parse(Default(), doc)
	require.NoError(t, err)

	assert.Equal(t, []cluster.ServerInfo{
		{Host: "10.0.0.1", Port: 11211},
		{Host: "10.0.0.2", Port: 11211},
	}, cfg.Servers)
	assert.Equal(t, "/var/tmp/mc", cfg.DumpFolder)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.False(t, cfg.Refresh)
	assert.Equal(t, 3, cfg.MinPrefixCount)

	// Untouched fields keep their defaults
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultPatternLimit, cfg.PatternLimit)
}

// TestParseInvalid verifies YAML and server errors surface.
func TestParseInvalid(t *testing.T) {
	_, err := Parse(Default(), []byte("servers: [a:1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse(Default(), []byte("servers: ['host:notaport']\n"))
	assert.ErrorIs(t, err, cluster.ErrInvalidServer)
}

// TestLoadFile verifies reading from disk and the missing-file error.
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcspy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slab: 7\nkey_filter: views\n"), 0o644))

	cfg, err := LoadFile(Default(), path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Slab)
	assert.Equal(t, "views", cfg.KeyFilter)

	_, err = LoadFile(Default(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestApplyEnv verifies environment overrides, including the shell-quoted server list.
func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvServers:    `a:1 "b:2"`,
		EnvDumpFolder: "/srv/dump",
		EnvTimeout:    "750ms",
		EnvWorkers:    "2",
	}
	getenv := func(k string) string { return env[k] }

	cfg, err := ApplyEnv(Default(), getenv)
	require.NoError(t, err)

	assert.Len(t, cfg.Servers, 2)
	assert.Equal(t, "b", cfg.Servers[1].Host)
	assert.Equal(t, "/srv/dump", cfg.DumpFolder)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 2, cfg.Workers)
}

// TestApplyEnvInvalid verifies that malformed values are rejected rather than ignored.
func TestApplyEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad timeout", EnvTimeout, "soon"},
		{"bad workers", EnvWorkers, "many"},
		{"bad servers", EnvServers, "'open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string {
				if k == tt.key {
					return tt.val
				}
				return ""
			}
			_, err := ApplyEnv(Default(), getenv)
			assert.Error(t, err)
		})
	}
}

// TestValidate verifies each validation rule.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"no servers", func(c *Config) { c.Servers = nil }, ErrNoServers},
		{"empty dump folder", func(c *Config) { c.DumpFolder = "" }, ErrInvalidConfig},
		{"negative slab", func(c *Config) { c.Slab = -1 }, ErrInvalidConfig},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidConfig},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidConfig},
		{"zero pattern limit", func(c *Config) { c.PatternLimit = 0 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.target)
		})
	}
}

// TestKeyMatches verifies the substring filter and its match-all forms.
func TestKeyMatches(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.KeyMatches("anything"))

	cfg.KeyFilter = MatchAll
	assert.True(t, cfg.KeyMatches("anything"))

	cfg.KeyFilter = "cache_page"
	assert.True(t, cfg.KeyMatches("site-cache_page-node/1"))
	assert.False(t, cfg.KeyMatches("site-cache_menu-main"))
}
