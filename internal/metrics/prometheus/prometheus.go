// Package prometheus provides Prometheus implementations of the archiver and
// bot metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xtxerr/archivist/internal/metrics"
)

// timer wraps a Prometheus observer to implement metrics.Timer.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Flush latency buckets in seconds.
var flushBuckets = []float64{
	.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, 1,
}

// Line size buckets in bytes.
var sizeBuckets = prometheus.ExponentialBuckets(64, 2, 12)

// =============================================================================
// Archive metrics
// =============================================================================

type archiveMetrics struct {
	recordsTotal  *prometheus.CounterVec
	recordBytes   *prometheus.HistogramVec
	openFiles     *prometheus.GaugeVec
	opensTotal    *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
}

// NewArchiveMetrics registers the archiver metrics with reg.
func NewArchiveMetrics(reg prometheus.Registerer) metrics.ArchiveMetrics {
	m := &archiveMetrics{
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_archive_records_total",
			Help: "Total number of archived records",
		}, []string{"channel"}),

		recordBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archivist_archive_record_bytes",
			Help:    "Size of archived lines in bytes",
			Buckets: sizeBuckets,
		}, []string{"channel"}),

		openFiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "archivist_archive_open_files",
			Help: "Number of open archive handles",
		}, []string{"channel"}),

		opensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_archive_opens_total",
			Help: "Total number of archive handles opened",
		}, []string{"channel"}),

		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archivist_archive_flush_duration_seconds",
			Help:    "Archive flush time in seconds",
			Buckets: flushBuckets,
		}, []string{"channel"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_archive_errors_total",
			Help: "Total number of archive I/O errors",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		m.recordsTotal,
		m.recordBytes,
		m.openFiles,
		m.opensTotal,
		m.flushDuration,
		m.errorsTotal,
	)

	return m
}

func (m *archiveMetrics) RecordWritten(channel string, bytes int) {
	m.recordsTotal.WithLabelValues(channel).Inc()
	m.recordBytes.WithLabelValues(channel).Observe(float64(bytes))
}

func (m *archiveMetrics) FileOpened(channel string) {
	m.opensTotal.WithLabelValues(channel).Inc()
	m.openFiles.WithLabelValues(channel).Inc()
}

func (m *archiveMetrics) FileClosed(channel string) {
	m.openFiles.WithLabelValues(channel).Dec()
}

func (m *archiveMetrics) FlushDuration(channel string) metrics.Timer {
	return newTimer(m.flushDuration.WithLabelValues(channel))
}

func (m *archiveMetrics) WriteError(channel string) {
	m.errorsTotal.WithLabelValues(channel).Inc()
}

// =============================================================================
// Bot metrics
// =============================================================================

type botMetrics struct {
	channels      prometheus.Gauge
	eventsTotal   *prometheus.CounterVec
	droppedTotal  *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
}

// NewBotMetrics registers the bot metrics with reg.
func NewBotMetrics(reg prometheus.Registerer) metrics.BotMetrics {
	m := &botMetrics{
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archivist_bot_channels",
			Help: "Number of channels being archived",
		}),

		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_bot_events_total",
			Help: "Total number of events decoded from the bus",
		}, []string{"channel"}),

		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_bot_dropped_payloads_total",
			Help: "Total number of payloads that carried no valid stanza",
		}, []string{"channel"}),

		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_bot_task_failures_total",
			Help: "Total number of channel tasks that ended with an error",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		m.channels,
		m.eventsTotal,
		m.droppedTotal,
		m.failuresTotal,
	)

	return m
}

func (m *botMetrics) ChannelJoined(string) {
	m.channels.Inc()
}

func (m *botMetrics) ChannelLeft(string) {
	m.channels.Dec()
}

func (m *botMetrics) EventsDecoded(channel string, n int) {
	m.eventsTotal.WithLabelValues(channel).Add(float64(n))
}

func (m *botMetrics) PayloadDropped(channel string) {
	m.droppedTotal.WithLabelValues(channel).Inc()
}

func (m *botMetrics) TaskFailed(channel string) {
	m.failuresTotal.WithLabelValues(channel).Inc()
}
