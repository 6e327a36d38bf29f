package loader

import (
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/archivist/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for archivistd.
type Config struct {
	// BotName identifies the bot in status notifications.
	// Default: "archivist"
	BotName string `yaml:"bot_name"`

	// ArchiveDir is the root directory for archives. With the pebble backend
	// it holds the database.
	// Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// FlushInterval is how often a channel with unflushed writes is flushed.
	// Default: 2s
	FlushInterval Duration `yaml:"flush_interval"`

	// Partition selects the path strategy: channel, daily or attribute.
	// Default: "channel"
	Partition string `yaml:"partition"`

	// PartitionKey is the event attribute used by the attribute partition.
	PartitionKey string `yaml:"partition_key"`

	// Backend selects the archive storage: file or pebble.
	// Default: "file"
	Backend string `yaml:"backend"`

	// SyncMode controls what a flush does for file archives: flush or fsync.
	// Default: "flush"
	SyncMode string `yaml:"sync_mode"`

	// GracePeriod keeps a removed channel running for a while in case it
	// comes back on the next reload.
	// Default: 0
	GracePeriod Duration `yaml:"grace_period"`

	// Channels are joined at startup and reconciled on reload.
	Channels []string `yaml:"channels"`

	Bus     BusConfig     `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// BusConfig selects and configures the message bus.
type BusConfig struct {
	// Kind is memory or nats.
	// Default: "memory"
	Kind string `yaml:"kind"`

	// URL is the NATS server. Empty uses $NATS_URL or the nats.go default.
	URL string `yaml:"url"`

	// SubjectPrefix prefixes every channel subject.
	// Default: "archivist"
	SubjectPrefix string `yaml:"subject_prefix"`

	// Buffer is the capacity of each subscription.
	// Default: 1024
	Buffer int `yaml:"buffer"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	// Default: "info"
	Level string `yaml:"level"`

	// JSON switches from text to JSON output.
	JSON bool `yaml:"json"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address serving /metrics. Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		BotName:       config.DefaultBotName,
		ArchiveDir:    config.DefaultArchiveDir,
		FlushInterval: Duration(config.DefaultFlushInterval),
		Partition:     config.DefaultPartition,
		Backend:       config.DefaultBackend,
		SyncMode:      config.DefaultSyncMode,
		GracePeriod:   Duration(config.DefaultGracePeriod),
		Bus: BusConfig{
			Kind:          config.DefaultBusKind,
			SubjectPrefix: config.DefaultSubjectPrefix,
			Buffer:        config.DefaultSubscriptionBuffer,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// Helper Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Supports "2s", "500ms" or a plain integer number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		secs, err := strconv.Atoi(value.Value)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
