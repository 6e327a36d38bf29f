package archive

import (
	"sync"
	"sync/atomic"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Stats holds archiver statistics shared by all channels of an Archiver.
type Stats struct {
	RecordsWritten atomic.Int64
	BytesWritten   atomic.Int64
	FilesOpened    atomic.Int64
	FilesClosed    atomic.Int64
	Flushes        atomic.Int64
	Errors         atomic.Int64

	mu    sync.Mutex
	sizes *ddsketch.DDSketch
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	RecordsWritten int64
	BytesWritten   int64
	FilesOpened    int64
	FilesClosed    int64
	Flushes        int64
	Errors         int64

	// Line size quantiles in bytes; zero until a line has been written.
	LineSizeP50 float64
	LineSizeP99 float64
	LineSizeMax float64
}

func (s *Stats) observeLine(size int) {
	s.RecordsWritten.Add(1)
	s.BytesWritten.Add(int64(size))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sizes == nil {
		sketch, err := ddsketch.NewDefaultDDSketch(0.01)
		if err != nil {
			return
		}
		s.sizes = sketch
	}
	s.sizes.Add(float64(size))
}

// Snapshot returns the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		RecordsWritten: s.RecordsWritten.Load(),
		BytesWritten:   s.BytesWritten.Load(),
		FilesOpened:    s.FilesOpened.Load(),
		FilesClosed:    s.FilesClosed.Load(),
		Flushes:        s.Flushes.Load(),
		Errors:         s.Errors.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sizes != nil && !s.sizes.IsEmpty() {
		snap.LineSizeP50, _ = s.sizes.GetValueAtQuantile(0.50)
		snap.LineSizeP99, _ = s.sizes.GetValueAtQuantile(0.99)
		snap.LineSizeMax, _ = s.sizes.GetMaxValue()
	}
	return snap
}
