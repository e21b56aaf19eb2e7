package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limaJavier/satportfolio/pkg/sharing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadJSON(t *testing.T) {
	// Arrange
	path := writeFile(t, "config.json", `{
		"adapters": 6,
		"engines": ["cdcl", "gini"],
		"timeout": "2m",
		"export": {"maxLBD": 4},
		"executables": {"kissat": "/opt/kissat/bin/kissat"},
		"sharing": {"kind": "fanout", "fanout": 3, "interval": "250ms"}
	}`)

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	expected := Default()
	expected.Adapters = 6
	expected.Engines = []string{"cdcl", "gini"}
	expected.Timeout = 2 * time.Minute
	expected.Export.MaxLBD = 4
	expected.Executables = map[string]string{"kissat": "/opt/kissat/bin/kissat"}
	expected.Sharing.Kind = sharing.KindFanout
	expected.Sharing.Fanout = 3
	expected.Sharing.Interval = 250 * time.Millisecond
	assert.Empty(t, cmp.Diff(expected, cfg))
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
adapters: 4
engines: [gini, walksat]
seedBase: 100
interruptTimeout: 1s
sharing:
  kind: hierarchical
  clusterSize: 2
  adaptive: true
  literalsPerRound: 500
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Adapters)
	assert.Equal(t, []string{"gini", "walksat"}, cfg.Engines)
	assert.Equal(t, int64(100), cfg.SeedBase)
	assert.Equal(t, time.Second, cfg.InterruptTimeout)
	assert.Equal(t, sharing.KindHierarchical, cfg.Sharing.Kind)
	assert.Equal(t, 2, cfg.Sharing.ClusterSize)
	assert.True(t, cfg.Sharing.Adaptive)
	assert.Equal(t, 500, cfg.Sharing.LiteralsPerRound)
	assert.Equal(t, sharing.DefaultConfig().Interval, cfg.Sharing.Interval)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.json", `{"adapterz": 3}`)

	_, err := Load(path)

	var configErr *ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"negative adapters", func(c *Config) { c.Adapters = -1 }, "adapters"},
		{"no engines", func(c *Config) { c.Engines = nil }, "engines"},
		{"unknown engine", func(c *Config) { c.Engines = []string{"cdcl", "lingeling"} }, "engines[1]"},
		{"zero interrupt timeout", func(c *Config) { c.InterruptTimeout = 0 }, "interruptTimeout"},
		{"negative export LBD", func(c *Config) { c.Export.MaxLBD = -2 }, "export.maxLBD"},
		{"noise out of range", func(c *Config) { c.LocalSearch.Noise = 1.5 }, "localSearch.noise"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "logLevel"},
		{"unknown strategy", func(c *Config) { c.Sharing.Kind = "gossip" }, "sharing.kind"},
		{"zero fanout", func(c *Config) {
			c.Sharing.Kind = sharing.KindFanout
			c.Sharing.Fanout = 0
		}, "sharing.fanout"},
		{"zero cluster size", func(c *Config) {
			c.Sharing.Kind = sharing.KindHierarchical
			c.Sharing.ClusterSize = 0
		}, "sharing.clusterSize"},
		{"zero interval", func(c *Config) { c.Sharing.Interval = 0 }, "sharing.interval"},
		{"unknown trigger", func(c *Config) { c.Sharing.Trigger = "sometimes" }, "sharing.trigger"},
		{"adaptive without budget", func(c *Config) {
			c.Sharing.Adaptive = true
			c.Sharing.LiteralsPerRound = 0
		}, "sharing.literalsPerRound"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := Default()
			testCase.modify(&cfg)

			err := cfg.Validate()

			var configErr *ConfigurationError
			require.True(t, errors.As(err, &configErr), "got %v", err)
			assert.Equal(t, testCase.field, configErr.Field)
		})
	}
}

func TestNoneSkipsSharingChecks(t *testing.T) {
	cfg := Default()
	cfg.Sharing.Kind = sharing.KindNone
	cfg.Sharing.Interval = 0

	assert.NoError(t, cfg.Validate())
}

func TestAdapterCount(t *testing.T) {
	cfg := Default()
	assert.Positive(t, cfg.AdapterCount())

	cfg.Adapters = 3
	assert.Equal(t, 3, cfg.AdapterCount())
}
