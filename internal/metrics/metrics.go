// Package metrics defines the instrumentation hooks of the archiver and the
// bot. Implementations live in sub-packages so that the core packages do not
// depend on a metrics backend.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes.
type Timer interface {
	ObserveDuration()
}

// ArchiveMetrics is implemented by archiver instrumentation backends.
type ArchiveMetrics interface {
	// RecordWritten counts one archived line of the given size.
	RecordWritten(channel string, bytes int)

	// FileOpened and FileClosed track archive handles.
	FileOpened(channel string)
	FileClosed(channel string)

	// FlushDuration times one flush of a handle.
	FlushDuration(channel string) Timer

	// WriteError counts failed open, write, flush or close calls.
	WriteError(channel string)
}

// BotMetrics is implemented by bot instrumentation backends.
type BotMetrics interface {
	// ChannelJoined and ChannelLeft track the set of archived channels.
	ChannelJoined(channel string)
	ChannelLeft(channel string)

	// EventsDecoded counts events extracted from one payload.
	EventsDecoded(channel string, n int)

	// PayloadDropped counts payloads that did not carry a valid stanza.
	PayloadDropped(channel string)

	// TaskFailed counts channel tasks that ended with an error.
	TaskFailed(channel string)
}
