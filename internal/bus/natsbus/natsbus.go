// Package natsbus implements the archivist bus on NATS core subjects.
//
// Channel "room" maps to subject "<prefix>.room". Payloads are carried as
// message data unchanged.
package natsbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	natsgo "github.com/nats-io/nats.go"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/bus"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/logging"
)

// Config configures a Bus.
type Config struct {
	// Connect creates the NATS connection. Default: ConnectDefault().
	Connect Connector

	// SubjectPrefix is prepended to channel names. Default: "archivist".
	SubjectPrefix string

	// Buffer is the per-subscription payload buffer.
	Buffer int

	Logger *slog.Logger
}

// Bus is a bus.Bus backed by NATS.
type Bus struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	prefix  string
	buffer  int
	log     *slog.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}

	closed atomic.Bool
}

var _ bus.Bus = (*Bus)(nil)

// New connects and returns a bus.
func New(cfg Config) (*Bus, error) {
	connect := cfg.Connect
	if connect == nil {
		connect = ConnectDefault()
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = config.DefaultSubjectPrefix
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = config.DefaultSubscriptionBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("natsbus")
	}

	nc, closeNc, err := connect()
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}

	return &Bus{
		nc:      nc,
		closeNc: closeNc,
		prefix:  cfg.SubjectPrefix,
		buffer:  cfg.Buffer,
		log:     cfg.Logger,
		subs:    make(map[*subscription]struct{}),
	}, nil
}

// Subject returns the subject for a channel.
func (b *Bus) Subject(channel string) string {
	return b.prefix + "." + channel
}

// Join subscribes to the channel's subject.
func (b *Bus) Join(ctx context.Context, channel string) (bus.Subscription, error) {
	if b.closed.Load() {
		return nil, errors.ErrClosed
	}
	if err := bus.ValidateChannel(channel); err != nil {
		return nil, err
	}

	s := &subscription{Mailbox: bus.NewMailbox(b.buffer), bus: b}
	ns, err := b.nc.Subscribe(b.Subject(channel), func(msg *natsgo.Msg) {
		// Blocks while the buffer is full; NATS then queues pending
		// messages for this subscription.
		_ = s.Deliver(context.Background(), msg.Data)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "nats subscribe %s", channel)
	}
	s.sub = ns

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	context.AfterFunc(ctx, func() { s.Close() })
	b.log.Debug("joined channel", "channel", channel, "subject", ns.Subject)
	return s, nil
}

// Send publishes payload on the channel's subject.
func (b *Bus) Send(ctx context.Context, channel string, payload []byte) error {
	if b.closed.Load() {
		return errors.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := bus.ValidateChannel(channel); err != nil {
		return err
	}
	if err := b.nc.Publish(b.Subject(channel), payload); err != nil {
		return errors.Wrapf(err, "nats publish %s", channel)
	}
	return nil
}

// Flush waits until the server has processed everything sent so far.
func (b *Bus) Flush(ctx context.Context) error {
	return b.nc.FlushWithContext(ctx)
}

// Close ends every subscription and releases the connection.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return errors.ErrClosed
	}

	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	b.closeNc()
	return nil
}

type subscription struct {
	*bus.Mailbox
	bus  *Bus
	sub  *natsgo.Subscription
	once sync.Once
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		if uerr := s.sub.Unsubscribe(); uerr != nil && !errors.Is(uerr, natsgo.ErrConnectionClosed) {
			err = errors.Wrap(uerr, "nats unsubscribe")
		}
		s.Mailbox.Close()

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return err
}
