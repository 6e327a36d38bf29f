// Package config provides configuration defaults for the archivist
// application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via archivist.yaml or ARCHIVIST_*
// environment variables.
package config

import "time"

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultArchiveDir is the root directory for archive files.
	// Override via config: archive_dir
	DefaultArchiveDir = "./archive"

	// DefaultFlushInterval is how often a channel with unflushed writes is
	// pushed to stable storage. Worst-case loss on crash is one interval.
	// Override via config: flush_interval
	DefaultFlushInterval = 2 * time.Second

	// DefaultPartition selects the path strategy: channel, daily or attribute.
	// Override via config: partition
	DefaultPartition = "channel"

	// DefaultBackend selects where archive lines go: file or pebble.
	// Override via config: backend
	DefaultBackend = "file"

	// DefaultSyncMode controls what a flush does: "flush" empties the write
	// buffer, "fsync" also syncs the file to disk.
	// Override via config: sync_mode
	DefaultSyncMode = "flush"

	// DefaultWriteBufferSize is the per-file write buffer.
	DefaultWriteBufferSize = 64 * 1024

	// DefaultFileMode is the permission for new archive files.
	DefaultFileMode = 0644

	// DefaultDirMode is the permission for new archive directories.
	DefaultDirMode = 0755
)

// =============================================================================
// Event Log Defaults
// =============================================================================

const (
	// DefaultCompressionLevel is the gzip level used by the in-memory event log.
	DefaultCompressionLevel = 6
)

// =============================================================================
// Bot Defaults
// =============================================================================

const (
	// DefaultBotName is used in status notifications and as the service name.
	// Override via config: bot_name
	DefaultBotName = "archivist"

	// DefaultChannelBuffer is the capacity of the per-channel decoded event queue.
	DefaultChannelBuffer = 256

	// DefaultGracePeriod is how long a released channel keeps running in case it
	// is joined again. Zero stops it immediately.
	DefaultGracePeriod = 0 * time.Second
)

// =============================================================================
// Bus Defaults
// =============================================================================

const (
	// DefaultBusKind selects the bus implementation: memory or nats.
	// Override via config: bus.kind
	DefaultBusKind = "memory"

	// DefaultSubjectPrefix prefixes every channel subject on NATS.
	// Override via config: bus.subject_prefix
	DefaultSubjectPrefix = "archivist"

	// DefaultSubscriptionBuffer is the capacity of a subscription's message channel.
	DefaultSubscriptionBuffer = 1024
)

// =============================================================================
// Replay Defaults
// =============================================================================

const (
	// DefaultReplayBatchSize is how many archived events archivectl replay
	// collects before handing a snapshot to the publisher.
	DefaultReplayBatchSize = 500
)
