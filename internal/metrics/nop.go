package metrics

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer returns a no-op Timer.
func NopTimer() Timer { return nopTimer{} }

type nopArchiveMetrics struct{}

func (nopArchiveMetrics) RecordWritten(string, int)  {}
func (nopArchiveMetrics) FileOpened(string)          {}
func (nopArchiveMetrics) FileClosed(string)          {}
func (nopArchiveMetrics) FlushDuration(string) Timer { return nopTimer{} }
func (nopArchiveMetrics) WriteError(string)          {}

// NopArchiveMetrics returns ArchiveMetrics that record nothing.
func NopArchiveMetrics() ArchiveMetrics { return nopArchiveMetrics{} }

type nopBotMetrics struct{}

func (nopBotMetrics) ChannelJoined(string)      {}
func (nopBotMetrics) ChannelLeft(string)        {}
func (nopBotMetrics) EventsDecoded(string, int) {}
func (nopBotMetrics) PayloadDropped(string)     {}
func (nopBotMetrics) TaskFailed(string)         {}

// NopBotMetrics returns BotMetrics that record nothing.
func NopBotMetrics() BotMetrics { return nopBotMetrics{} }
