package bus

import (
	"context"
	"sync"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/errors"
)

// Memory is an in-process Bus. Send blocks while a subscriber's buffer is
// full, so no payload is ever dropped for a live subscriber.
type Memory struct {
	buffer int

	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

// NewMemory creates an in-process bus whose subscriptions buffer up to
// buffer payloads. Zero selects the default.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = config.DefaultSubscriptionBuffer
	}
	return &Memory{
		buffer: buffer,
		subs:   make(map[string]map[*memorySub]struct{}),
	}
}

type memorySub struct {
	*Mailbox
	bus     *Memory
	channel string

	// stop detaches the context watcher; guarded by bus.mu.
	stop func() bool
}

func (s *memorySub) Close() error {
	if stop := s.bus.remove(s); stop != nil {
		stop()
	}
	s.Mailbox.Close()
	return nil
}

// Join subscribes to channel.
func (b *Memory) Join(ctx context.Context, channel string) (Subscription, error) {
	if err := ValidateChannel(channel); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.ErrClosed
	}

	s := &memorySub{Mailbox: NewMailbox(b.buffer), bus: b, channel: channel}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySub]struct{})
	}
	b.subs[channel][s] = struct{}{}
	s.stop = context.AfterFunc(ctx, func() { s.Close() })
	return s, nil
}

// Send delivers payload to every subscriber of channel.
func (b *Memory) Send(ctx context.Context, channel string, payload []byte) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.ErrClosed
	}
	targets := make([]*memorySub, 0, len(b.subs[channel]))
	for s := range b.subs[channel] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		err := s.Deliver(ctx, payload)
		if err != nil && !errors.Is(err, errors.ErrClosed) {
			return err
		}
	}
	return nil
}

// Subscribers returns the number of subscriptions on channel.
func (b *Memory) Subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

// Close ends every subscription.
func (b *Memory) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.ErrClosed
	}
	b.closed = true
	var all []*memorySub
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.subs = make(map[string]map[*memorySub]struct{})
	b.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	return nil
}

func (b *Memory) remove(s *memorySub) func() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[s.channel]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.channel)
		}
	}
	stop := s.stop
	s.stop = nil
	return stop
}
