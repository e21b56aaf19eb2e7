// Package config loads and validates the settings of a portfolio run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/limaJavier/satportfolio/pkg/sharing"
	"github.com/limaJavier/satportfolio/pkg/solver"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

type Export struct {
	// MaxLBD is the export-quality threshold of learnt clauses. Zero exports every LBD.
	MaxLBD  int `mapstructure:"maxLBD" json:"maxLBD" yaml:"maxLBD"`
	MaxSize int `mapstructure:"maxSize" json:"maxSize" yaml:"maxSize"`
}

type LocalSearch struct {
	MaxFlips int     `mapstructure:"maxFlips" json:"maxFlips" yaml:"maxFlips"`
	Noise    float64 `mapstructure:"noise" json:"noise" yaml:"noise"`
}

type Config struct {
	// Adapters is the portfolio size. Zero uses one adapter per CPU.
	Adapters int `mapstructure:"adapters" json:"adapters" yaml:"adapters"`
	// Engines is cycled over the adapters.
	Engines          []string          `mapstructure:"engines" json:"engines" yaml:"engines"`
	SeedBase         int64             `mapstructure:"seedBase" json:"seedBase" yaml:"seedBase"`
	Timeout          time.Duration     `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	InterruptTimeout time.Duration     `mapstructure:"interruptTimeout" json:"interruptTimeout" yaml:"interruptTimeout"`
	InterruptPoll    time.Duration     `mapstructure:"interruptPoll" json:"interruptPoll" yaml:"interruptPoll"`
	Export           Export            `mapstructure:"export" json:"export" yaml:"export"`
	LocalSearch      LocalSearch       `mapstructure:"localSearch" json:"localSearch" yaml:"localSearch"`
	Executables      map[string]string `mapstructure:"executables" json:"executables" yaml:"executables"`
	LogLevel         string            `mapstructure:"logLevel" json:"logLevel" yaml:"logLevel"`
	Sharing          sharing.Config    `mapstructure:"sharing" json:"sharing" yaml:"sharing"`
}

// ConfigurationError names the offending field with its dotted file path.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func Default() Config {
	return Config{
		Engines:          []string{"cdcl"},
		InterruptTimeout: 5 * time.Second,
		InterruptPoll:    solver.DefaultInterruptPoll,
		Export:           Export{MaxLBD: 8, MaxSize: 80},
		LocalSearch:      LocalSearch{Noise: 0.5},
		LogLevel:         logrus.InfoLevel.String(),
		Sharing:          sharing.DefaultConfig(),
	}
}

// Load reads a JSON or YAML file (by extension) over the defaults.
func Load(path string) (Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot read config file")
	}

	var document map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &document)
	default:
		err = json.Unmarshal(bytes, &document)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "cannot parse config file %s", path)
	}
	return Decode(document)
}

// Decode applies a generic document, as produced by a JSON or YAML parser, over the defaults.
// Durations may be given as strings such as "500ms".
func Decode(document map[string]any) (Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot create config decoder")
	}
	if err := decoder.Decode(document); err != nil {
		return Config{}, &ConfigurationError{Field: "<document>", Reason: err.Error()}
	}
	return cfg, nil
}

// AdapterCount resolves the portfolio size.
func (c Config) AdapterCount() int {
	if c.Adapters == 0 {
		return runtime.NumCPU()
	}
	return c.Adapters
}

func (c Config) SolverOptions(log *synclog.Log) solver.Options {
	return solver.Options{
		Export:        solver.ExportLimits{MaxLBD: c.Export.MaxLBD, MaxSize: c.Export.MaxSize},
		LocalSearch:   solver.LocalSearch{MaxFlips: c.LocalSearch.MaxFlips, Noise: c.LocalSearch.Noise},
		InterruptPoll: c.InterruptPoll,
		Executables:   c.Executables,
		Log:           log,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Adapters < 0:
		return invalid("adapters", "must not be negative, got %d", c.Adapters)
	case len(c.Engines) == 0:
		return invalid("engines", "at least one engine is required")
	case c.Timeout < 0:
		return invalid("timeout", "must not be negative, got %v", c.Timeout)
	case c.InterruptTimeout <= 0:
		return invalid("interruptTimeout", "must be positive, got %v", c.InterruptTimeout)
	case c.InterruptPoll <= 0:
		return invalid("interruptPoll", "must be positive, got %v", c.InterruptPoll)
	case c.Export.MaxLBD < 0:
		return invalid("export.maxLBD", "must not be negative, got %d", c.Export.MaxLBD)
	case c.Export.MaxSize < 0:
		return invalid("export.maxSize", "must not be negative, got %d", c.Export.MaxSize)
	case c.LocalSearch.Noise < 0 || c.LocalSearch.Noise > 1:
		return invalid("localSearch.noise", "must be within [0, 1], got %v", c.LocalSearch.Noise)
	}

	engines := solver.Engines()
	for i, engine := range c.Engines {
		if !slices.Contains(engines, engine) {
			return invalid(fmt.Sprintf("engines[%d]", i), "unknown engine %q, allowed values are %s", engine, strings.Join(engines, ", "))
		}
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return invalid("logLevel", "%v", err)
		}
	}
	return validateSharing(c.Sharing)
}

func validateSharing(s sharing.Config) error {
	if !slices.Contains(sharing.Kinds, s.Kind) {
		return invalid("sharing.kind", "unknown strategy %q", s.Kind)
	}
	if s.Kind == sharing.KindNone {
		return nil
	}

	switch {
	case s.Kind == sharing.KindFanout && s.Fanout < 1:
		return invalid("sharing.fanout", "must be at least 1, got %d", s.Fanout)
	case s.Kind == sharing.KindHierarchical && s.ClusterSize < 1:
		return invalid("sharing.clusterSize", "must be at least 1, got %d", s.ClusterSize)
	case s.DigestSize < 0:
		return invalid("sharing.digestSize", "must not be negative, got %d", s.DigestSize)
	case s.Interval <= 0:
		return invalid("sharing.interval", "must be positive, got %v", s.Interval)
	case s.InitialDelay < 0:
		return invalid("sharing.initialDelay", "must not be negative, got %v", s.InitialDelay)
	case s.Trigger != sharing.TriggerInterval && s.Trigger != sharing.TriggerClauses:
		return invalid("sharing.trigger", "unknown trigger %q", s.Trigger)
	case s.Trigger == sharing.TriggerClauses && s.TriggerClauses < 1:
		return invalid("sharing.triggerClauses", "must be at least 1, got %d", s.TriggerClauses)
	case s.Trigger == sharing.TriggerClauses && s.PollInterval <= 0:
		return invalid("sharing.pollInterval", "must be positive, got %v", s.PollInterval)
	case s.RoundCap < 0:
		return invalid("sharing.roundCap", "must not be negative, got %d", s.RoundCap)
	case s.InboxCapacity < 0:
		return invalid("sharing.inboxCapacity", "must not be negative, got %d", s.InboxCapacity)
	case s.DedupCapacity < 0:
		return invalid("sharing.dedupCapacity", "must not be negative, got %d", s.DedupCapacity)
	case s.Shards < 1:
		return invalid("sharing.shards", "must be at least 1, got %d", s.Shards)
	case s.Adaptive && s.InitialLBD < 2:
		return invalid("sharing.initialLBD", "must be at least 2, got %d", s.InitialLBD)
	case s.Adaptive && s.LiteralsPerRound < 1:
		return invalid("sharing.literalsPerRound", "must be at least 1, got %d", s.LiteralsPerRound)
	case s.MaxClauseSize < 0:
		return invalid("sharing.maxClauseSize", "must not be negative, got %d", s.MaxClauseSize)
	}
	return nil
}
