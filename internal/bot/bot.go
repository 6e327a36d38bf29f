// Package bot archives every channel it is asked to join.
//
// Each joined channel gets one task that subscribes to the bus, decodes the
// payloads into events and feeds them to an archive.Archiver. Tasks are
// reference counted by a taskfarm.Farm, so joining a channel twice keeps a
// single archiver running until both references are released.
package bot

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/bus"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/events"
	"github.com/xtxerr/archivist/internal/logging"
	"github.com/xtxerr/archivist/internal/metrics"
	"github.com/xtxerr/archivist/internal/taskfarm"
)

// Config configures a Service.
type Config struct {
	// Name identifies the bot in status notifications.
	// Default: config.DefaultBotName
	Name string

	// Bus delivers channel payloads. Required.
	Bus bus.Bus

	// Archiver writes the decoded events. Required.
	Archiver *archive.Archiver

	// Buffer is the capacity of the per-channel event queue.
	// Default: config.DefaultChannelBuffer
	Buffer int

	// GracePeriod keeps a released channel running in case it is joined again.
	GracePeriod time.Duration

	Logger  *slog.Logger
	Metrics metrics.BotMetrics
}

// Service is the archive bot.
type Service struct {
	cfg  Config
	log  *slog.Logger
	farm *taskfarm.Farm[string]

	mu      sync.Mutex
	desired map[string]bool
}

// New creates a bot. No channel is joined until Join or SetChannels.
func New(cfg Config) (*Service, error) {
	if cfg.Bus == nil {
		return nil, errors.NewMissingField("bus")
	}
	if cfg.Archiver == nil {
		return nil, errors.NewMissingField("archiver")
	}
	if cfg.Buffer < 0 {
		return nil, errors.NewInvalidValue("buffer", cfg.Buffer, "must not be negative")
	}
	if cfg.Name == "" {
		cfg.Name = config.DefaultBotName
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = config.DefaultChannelBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("bot")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NopBotMetrics()
	}

	s := &Service{
		cfg:     cfg,
		log:     cfg.Logger,
		desired: make(map[string]bool),
	}
	s.farm = taskfarm.New(s.run,
		taskfarm.WithGracePeriod(cfg.GracePeriod),
		taskfarm.WithLogger(cfg.Logger),
		taskfarm.WithErrorHandler(s.taskFailed),
		taskfarm.WithExitHandler(s.taskExited),
	)
	return s, nil
}

// Join adds a reference to channel, starting its archiver on the first one.
func (s *Service) Join(channel string) error {
	if err := bus.ValidateChannel(channel); err != nil {
		return err
	}
	return s.farm.Inc(channel)
}

// Leave releases a reference taken by Join.
func (s *Service) Leave(channel string) error {
	return s.farm.Dec(channel)
}

// SetChannels reconciles the configured channel set: channels no longer
// listed are left and new ones are joined. References taken with Join are
// not affected. Invalid names are reported and skipped. A configured channel
// whose task ended on its own is joined again.
func (s *Service) SetChannels(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}

	var errs []error
	for name := range s.desired {
		if want[name] {
			continue
		}
		if err := s.Leave(name); err != nil {
			errs = append(errs, errors.Wrapf(err, "leave %s", name))
		}
		delete(s.desired, name)
	}
	for name := range want {
		if s.desired[name] {
			continue
		}
		if err := s.Join(name); err != nil {
			errs = append(errs, errors.Wrapf(err, "join %s", name))
			continue
		}
		s.desired[name] = true
	}
	return errors.Join(errs...)
}

// Channels returns the channels with a running archiver, sorted.
func (s *Service) Channels() []string {
	keys := s.farm.Keys()
	slices.Sort(keys)
	return keys
}

// Close leaves every channel and waits for their archives to be closed.
func (s *Service) Close() error {
	return s.farm.Close()
}

func (s *Service) run(ctx context.Context, channel string) error {
	s.status(channel, "joining")
	sub, err := s.cfg.Bus.Join(ctx, channel)
	if err != nil {
		return errors.Wrapf(err, "join channel %s", channel)
	}
	defer sub.Close()

	s.status(channel, "joined")
	s.cfg.Metrics.ChannelJoined(channel)
	defer func() {
		s.cfg.Metrics.ChannelLeft(channel)
		s.status(channel, "left")
	}()

	queue := make(chan *events.Event, s.cfg.Buffer)
	var archiveErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		return s.decode(gctx, channel, sub.Messages(), queue)
	})
	g.Go(func() error {
		archiveErr = s.cfg.Archiver.Run(gctx, channel, queue)
		return archiveErr
	})
	err = g.Wait()
	// The archiver error carries the finalize failures, if any.
	if archiveErr != nil {
		return archiveErr
	}
	return err
}

// decode turns payloads into events until msgs is closed or ctx is done.
// Payloads that are not well-formed stanzas are dropped.
func (s *Service) decode(ctx context.Context, channel string, msgs <-chan []byte, out chan<- *events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case payload, ok := <-msgs:
			if !ok {
				return nil
			}
			decoded, err := events.DecodeStanza(payload)
			if err != nil {
				s.log.Debug("Dropped payload", "channel", channel, "error", err)
				s.cfg.Metrics.PayloadDropped(channel)
				continue
			}
			s.cfg.Metrics.EventsDecoded(channel, len(decoded))
			for _, e := range decoded {
				select {
				case out <- e:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Service) status(channel, status string) {
	s.log.Info("Room status",
		"type", "room",
		"service", s.cfg.Name,
		"room", channel,
		"status", status,
	)
}

// taskExited forgets a configured channel whose task returned on its own, so
// that the next SetChannels joins it again. The farm dropped its references.
func (s *Service) taskExited(key any, err error) {
	channel, _ := key.(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.desired[channel] || s.farm.Refs(channel) > 0 {
		return
	}
	delete(s.desired, channel)
	s.log.Warn("Channel task ended", "channel", channel, "error", err)
}

// taskFailed counts failures; the farm has already logged them.
func (s *Service) taskFailed(key any, _ error) {
	channel, _ := key.(string)
	s.cfg.Metrics.TaskFailed(channel)
}
