// Package loader handles configuration file loading, validation and reloading.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Overlaying ARCHIVIST_* environment variables
//   - Validating the result
//   - Watching the file for changes
package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/bus"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/validation"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file. Unset fields keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML document after expanding environment variables.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w: %w", errors.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// =============================================================================
// Environment
// =============================================================================

// FromEnv overlays ARCHIVIST_* environment variables onto cfg. Values that
// do not parse are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("ARCHIVIST_BOT_NAME"); v != "" {
		cfg.BotName = v
	}
	if v := os.Getenv("ARCHIVIST_ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv("ARCHIVIST_FLUSH_INTERVAL"); v != "" {
		var d Duration
		if err := yaml.Unmarshal([]byte(v), &d); err == nil {
			cfg.FlushInterval = d
		}
	}
	if v := os.Getenv("ARCHIVIST_PARTITION"); v != "" {
		cfg.Partition = v
	}
	if v := os.Getenv("ARCHIVIST_PARTITION_KEY"); v != "" {
		cfg.PartitionKey = v
	}
	if v := os.Getenv("ARCHIVIST_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("ARCHIVIST_SYNC_MODE"); v != "" {
		cfg.SyncMode = v
	}
	if v := os.Getenv("ARCHIVIST_CHANNELS"); v != "" {
		cfg.Channels = nil
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Channels = append(cfg.Channels, p)
			}
		}
	}
	if v := os.Getenv("ARCHIVIST_BUS_KIND"); v != "" {
		cfg.Bus.Kind = v
	}
	if v := os.Getenv("ARCHIVIST_BUS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("ARCHIVIST_BUS_SUBJECT_PREFIX"); v != "" {
		cfg.Bus.SubjectPrefix = v
	}
	if v := os.Getenv("ARCHIVIST_BUS_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus.Buffer = n
		}
	}
	if v := os.Getenv("ARCHIVIST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARCHIVIST_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v := os.Getenv("ARCHIVIST_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.BotName == "" {
		errs.AddField("bot_name", "cannot be empty")
	} else if err := validation.ValidateName(cfg.BotName, validation.ServiceNameRules()); err != nil {
		errs.AddField("bot_name", err.Error())
	}
	if cfg.ArchiveDir == "" {
		errs.AddField("archive_dir", "cannot be empty")
	}
	if cfg.FlushInterval.Duration() <= 0 {
		errs.AddField("flush_interval", "must be positive")
	}
	if cfg.GracePeriod.Duration() < 0 {
		errs.AddField("grace_period", "must not be negative")
	}

	if _, ok := archive.PathFuncFor(cfg.Partition, cfg.PartitionKey); !ok {
		if cfg.Partition == "attribute" {
			errs.AddField("partition_key", "required for the attribute partition")
		} else {
			errs.AddField("partition", fmt.Sprintf("unknown partition %q", cfg.Partition))
		}
	}

	switch cfg.Backend {
	case "file", "pebble":
	default:
		errs.AddField("backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}

	switch archive.SyncMode(cfg.SyncMode) {
	case archive.SyncFlush, archive.SyncFsync:
	default:
		errs.AddField("sync_mode", fmt.Sprintf("unknown sync mode %q", cfg.SyncMode))
	}

	seen := make(map[string]bool, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		if err := bus.ValidateChannel(ch); err != nil {
			errs.AddField(fmt.Sprintf("channels[%d]", i), err.Error())
			continue
		}
		if seen[ch] {
			errs.AddField(fmt.Sprintf("channels[%d]", i), fmt.Sprintf("duplicate channel %q", ch))
		}
		seen[ch] = true
	}

	switch cfg.Bus.Kind {
	case "memory", "nats":
	default:
		errs.AddField("bus.kind", fmt.Sprintf("unknown bus %q", cfg.Bus.Kind))
	}
	if cfg.Bus.Buffer < 0 {
		errs.AddField("bus.buffer", "must not be negative")
	}
	if cfg.Bus.Kind == "nats" && cfg.Bus.SubjectPrefix == "" {
		errs.AddField("bus.subject_prefix", "cannot be empty for nats")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs.AddField("logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level))
	}

	return errs.Err()
}
