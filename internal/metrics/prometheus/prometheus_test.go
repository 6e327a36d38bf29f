package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArchiveMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewArchiveMetrics(reg)
	require.NotNil(t, m)

	m.FileOpened("abuse")
	m.RecordWritten("abuse", 120)
	m.RecordWritten("abuse", 80)
	timer := m.FlushDuration("abuse")
	require.NotNil(t, timer)
	timer.ObserveDuration()
	m.WriteError("abuse")
	m.FileClosed("abuse")

	am := m.(*archiveMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(am.recordsTotal.WithLabelValues("abuse")))
	assert.Equal(t, 0.0, testutil.ToFloat64(am.openFiles.WithLabelValues("abuse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(am.opensTotal.WithLabelValues("abuse")))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["archivist_archive_records_total"])
	assert.True(t, names["archivist_archive_flush_duration_seconds"])
	assert.True(t, names["archivist_archive_errors_total"])
}

func TestNewBotMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)
	require.NotNil(t, m)

	m.ChannelJoined("a")
	m.ChannelJoined("b")
	m.ChannelLeft("a")
	m.EventsDecoded("b", 3)
	m.PayloadDropped("b")
	m.TaskFailed("b")

	bm := m.(*botMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(bm.channels))
	assert.Equal(t, 3.0, testutil.ToFloat64(bm.eventsTotal.WithLabelValues("b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(bm.droppedTotal.WithLabelValues("b")))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewArchiveMetrics(reg)
	assert.Panics(t, func() { NewArchiveMetrics(reg) })
}
