package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/events"
	"github.com/xtxerr/archivist/internal/logging"
	"github.com/xtxerr/archivist/internal/metrics"
)

// Options configures an Archiver.
type Options struct {
	// Opener opens archives. Required.
	Opener Opener

	// PathFunc selects the archive for each event.
	// Default: ChannelPath
	PathFunc PathFunc

	// FlushInterval is how often a channel with unflushed writes is flushed.
	// Default: 2s
	FlushInterval time.Duration

	// Clock returns the processing time stamped on each line.
	// Default: time.Now
	Clock func() time.Time

	// Logger receives open, close and flush messages.
	Logger *slog.Logger

	// Metrics receives per-channel instrumentation.
	Metrics metrics.ArchiveMetrics
}

// Archiver appends channel events to archives. One Archiver serves any
// number of channels; each channel runs its own Run call.
type Archiver struct {
	opts  Options
	stats Stats
}

// New creates an archiver.
func New(opts Options) (*Archiver, error) {
	if opts.Opener == nil {
		return nil, errors.NewMissingField("opener")
	}
	if opts.FlushInterval < 0 {
		return nil, errors.NewInvalidValue("flush_interval", opts.FlushInterval, "must not be negative")
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = config.DefaultFlushInterval
	}
	if opts.PathFunc == nil {
		opts.PathFunc = ChannelPath
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("archive")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NopArchiveMetrics()
	}
	return &Archiver{opts: opts}, nil
}

// Stats returns the statistics of all channels.
func (a *Archiver) Stats() StatsSnapshot {
	return a.stats.Snapshot()
}

// Run archives the events of one channel until in is closed (nil error),
// ctx is cancelled (ctx.Err()) or an archive operation fails (that error).
// On every exit the open archive, if any, is flushed and closed once.
// Errors from that final flush and close are joined to the returned error.
func (a *Archiver) Run(ctx context.Context, channel string, in <-chan *events.Event) error {
	ticker := time.NewTicker(a.opts.FlushInterval)
	defer ticker.Stop()
	return a.loop(ctx, channel, in, ticker.C)
}

func (a *Archiver) loop(ctx context.Context, channel string, in <-chan *events.Event, ticks <-chan time.Time) (err error) {
	s := &session{
		a:       a,
		channel: channel,
		log:     a.opts.Logger.With("channel", channel),
	}
	defer func() {
		if ferr := s.finalize(); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticks:
			if err := s.tick(); err != nil {
				return err
			}

		case e, ok := <-in:
			if !ok {
				return nil
			}
			if err := s.record(e); err != nil {
				return err
			}
		}
	}
}

// session is the state of one channel: either idle (handle == nil) or open
// on path. dirty is set by writes and cleared by flushes.
type session struct {
	a       *Archiver
	channel string
	log     *slog.Logger

	handle Handle
	path   string
	dirty  bool
}

func (s *session) tick() error {
	if !s.dirty {
		return nil
	}
	s.dirty = false
	return s.flush()
}

func (s *session) record(e *events.Event) error {
	now := s.a.opts.Clock()
	newPath := s.a.opts.PathFunc(now, s.channel, e)

	if s.handle == nil || newPath != s.path {
		if err := s.finalize(); err != nil {
			return err
		}
		if err := s.open(newPath); err != nil {
			return err
		}
	}

	line, err := FormatLine(now, e)
	if err != nil {
		return err
	}
	if err := s.handle.Write(line); err != nil {
		s.failed()
		return errors.Wrapf(err, "write archive %s", s.path)
	}
	s.dirty = true
	s.a.stats.observeLine(len(line))
	s.a.opts.Metrics.RecordWritten(s.channel, len(line))
	return nil
}

func (s *session) open(path string) error {
	h, err := s.a.opts.Opener.Open(path)
	if err != nil {
		s.failed()
		return errors.Wrapf(err, "open archive %s", path)
	}
	s.handle = h
	s.path = path
	s.dirty = false
	s.a.stats.FilesOpened.Add(1)
	s.a.opts.Metrics.FileOpened(s.channel)
	s.log.Info("Opened archive", "path", path)
	return nil
}

func (s *session) flush() error {
	defer s.a.opts.Metrics.FlushDuration(s.channel).ObserveDuration()

	if err := s.handle.Flush(); err != nil {
		s.failed()
		return errors.Wrapf(err, "flush archive %s", s.path)
	}
	s.a.stats.Flushes.Add(1)
	s.log.Debug("Flushed archive", "path", s.path)
	return nil
}

// finalize flushes and closes the open archive, leaving the session idle
// even when either step fails.
func (s *session) finalize() error {
	if s.handle == nil {
		return nil
	}
	flushErr := s.flush()

	closeErr := s.handle.Close()
	if closeErr != nil {
		s.failed()
		closeErr = errors.Wrapf(closeErr, "close archive %s", s.path)
	} else {
		s.a.stats.FilesClosed.Add(1)
	}
	s.a.opts.Metrics.FileClosed(s.channel)
	s.log.Info("Closed archive", "path", s.path)

	s.handle = nil
	s.path = ""
	s.dirty = false
	return errors.Join(flushErr, closeErr)
}

func (s *session) failed() {
	s.a.stats.Errors.Add(1)
	s.a.opts.Metrics.WriteError(s.channel)
}
