// Package config loads the tree server configuration from YAML.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"conctree/smr"
)

// Duration is a time.Duration written as a string ("250ms", "2s") in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Wrap(err, "duration must be a string")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Scheme   SchemeConfig   `yaml:"scheme"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	WAL      WALConfig      `yaml:"wal"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SchemeConfig struct {
	Kind            string   `yaml:"kind"`
	Threshold       int      `yaml:"threshold"`
	RingSize        uint64   `yaml:"ring_size"`
	WarnAfter       Duration `yaml:"warn_after"`
	CollectInterval Duration `yaml:"collect_interval"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type WALConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Dir             string   `yaml:"dir"`
	SegmentSize     int64    `yaml:"segment_size"`
	SegmentDuration Duration `yaml:"segment_duration"`
}

type SnapshotConfig struct {
	Dir      string   `yaml:"dir"`
	Interval Duration `yaml:"interval"`
}

type OutboxConfig struct {
	Dir string `yaml:"dir"`
}

const (
	ClientKafkaGo = "kafka-go"
	ClientSarama  = "sarama"
)

type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Client   string   `yaml:"client"`
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	Interval Duration `yaml:"interval"`
	Batch    int      `yaml:"batch"`
}

// Default returns a configuration that runs a single node with local
// storage under ./data and no Kafka.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Scheme: SchemeConfig{
			Kind:            "rcu",
			Threshold:       256,
			RingSize:        1 << 12,
			WarnAfter:       Duration(5 * time.Second),
			CollectInterval: Duration(100 * time.Millisecond),
		},
		GRPC:    GRPCConfig{Addr: ":50051"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
		WAL: WALConfig{
			Enabled:         true,
			Dir:             "./data/wal",
			SegmentSize:     2 << 20,
			SegmentDuration: Duration(time.Minute),
		},
		Snapshot: SnapshotConfig{Dir: "./data/snapshot", Interval: Duration(30 * time.Second)},
		Outbox:   OutboxConfig{Dir: "./data/outbox"},
		Kafka: KafkaConfig{
			Client:   ClientKafkaGo,
			Topic:    "conctree.events",
			Interval: Duration(250 * time.Millisecond),
			Batch:    128,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := smr.ParseKind(c.Scheme.Kind); err != nil {
		return err
	}
	if r := c.Scheme.RingSize; r != 0 && r&(r-1) != 0 {
		return errors.Newf("scheme.ring_size %d is not a power of two", r)
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if c.WAL.Enabled && (c.WAL.Dir == "" || c.WAL.SegmentSize <= 0) {
		return errors.New("wal.dir and a positive wal.segment_size are required")
	}
	if c.Snapshot.Dir == "" {
		return errors.New("snapshot.dir is required")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return errors.New("kafka.brokers and kafka.topic are required when kafka is enabled")
		}
		if c.Kafka.Client != ClientKafkaGo && c.Kafka.Client != ClientSarama {
			return errors.Newf("kafka.client must be %q or %q, got %q", ClientKafkaGo, ClientSarama, c.Kafka.Client)
		}
		if c.Outbox.Dir == "" {
			return errors.New("outbox.dir is required when kafka is enabled")
		}
	}
	return nil
}

// SchemeOptions converts the scheme section into smr options.
func (c *Config) SchemeOptions() (smr.Kind, smr.Options, error) {
	kind, err := smr.ParseKind(c.Scheme.Kind)
	if err != nil {
		return 0, smr.Options{}, err
	}
	return kind, smr.Options{
		Threshold: c.Scheme.Threshold,
		RingSize:  c.Scheme.RingSize,
		WarnAfter: c.Scheme.WarnAfter.Std(),
	}, nil
}
