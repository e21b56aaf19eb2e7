package sharing

import "time"

type Kind string

const (
	KindBroadcast    Kind = "broadcast"
	KindFanout       Kind = "fanout"
	KindHierarchical Kind = "hierarchical"
	KindNone         Kind = "none"
)

var Kinds = []Kind{KindBroadcast, KindFanout, KindHierarchical, KindNone}

type Trigger string

const (
	// TriggerInterval runs a round every Interval.
	TriggerInterval Trigger = "interval"
	// TriggerClauses runs a round once producers hold TriggerClauses clauses, or Interval passed.
	TriggerClauses Trigger = "clauses"
)

// Config selects the topology and its parameters. It is read-only once a run starts.
type Config struct {
	Kind Kind `mapstructure:"kind" json:"kind" yaml:"kind"`
	// Fanout is the number of consumers each clause reaches under KindFanout.
	Fanout int `mapstructure:"fanout" json:"fanout" yaml:"fanout"`
	// ClusterSize and DigestSize shape KindHierarchical.
	ClusterSize int `mapstructure:"clusterSize" json:"clusterSize" yaml:"clusterSize"`
	DigestSize  int `mapstructure:"digestSize" json:"digestSize" yaml:"digestSize"`

	Interval       time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
	InitialDelay   time.Duration `mapstructure:"initialDelay" json:"initialDelay" yaml:"initialDelay"`
	Trigger        Trigger       `mapstructure:"trigger" json:"trigger" yaml:"trigger"`
	TriggerClauses int           `mapstructure:"triggerClauses" json:"triggerClauses" yaml:"triggerClauses"`
	PollInterval   time.Duration `mapstructure:"pollInterval" json:"pollInterval" yaml:"pollInterval"`

	// RoundCap bounds the clauses drained per consumer and round. Zero drains everything.
	RoundCap      int `mapstructure:"roundCap" json:"roundCap" yaml:"roundCap"`
	InboxCapacity int `mapstructure:"inboxCapacity" json:"inboxCapacity" yaml:"inboxCapacity"`
	DedupCapacity int `mapstructure:"dedupCapacity" json:"dedupCapacity" yaml:"dedupCapacity"`
	Shards        int `mapstructure:"shards" json:"shards" yaml:"shards"`

	Adaptive         bool `mapstructure:"adaptive" json:"adaptive" yaml:"adaptive"`
	InitialLBD       int  `mapstructure:"initialLBD" json:"initialLBD" yaml:"initialLBD"`
	LiteralsPerRound int  `mapstructure:"literalsPerRound" json:"literalsPerRound" yaml:"literalsPerRound"`
	// MaxClauseSize drops longer clauses before publish. Zero keeps every size.
	MaxClauseSize int `mapstructure:"maxClauseSize" json:"maxClauseSize" yaml:"maxClauseSize"`
}

func DefaultConfig() Config {
	return Config{
		Kind:             KindBroadcast,
		Fanout:           2,
		ClusterSize:      4,
		DigestSize:       64,
		Interval:         500 * time.Millisecond,
		InitialDelay:     0,
		Trigger:          TriggerInterval,
		TriggerClauses:   1000,
		PollInterval:     20 * time.Millisecond,
		RoundCap:         2000,
		InboxCapacity:    10000,
		DedupCapacity:    1 << 20,
		Shards:           16,
		Adaptive:         false,
		InitialLBD:       2,
		LiteralsPerRound: 1500,
		MaxClauseSize:    80,
	}
}
