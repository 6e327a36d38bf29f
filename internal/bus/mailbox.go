package bus

import (
	"context"
	"sync"

	"github.com/xtxerr/archivist/internal/errors"
)

// Mailbox is a bounded payload queue whose channel can be closed safely while
// producers are still delivering. Bus implementations use one per
// subscription.
type Mailbox struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once

	// mu is held shared by Deliver so that Close never closes ch under a
	// pending send.
	mu     sync.RWMutex
	closed bool
}

// NewMailbox creates a mailbox buffering up to size payloads.
func NewMailbox(size int) *Mailbox {
	if size < 0 {
		size = 0
	}
	return &Mailbox{
		ch:   make(chan []byte, size),
		done: make(chan struct{}),
	}
}

// Deliver queues a payload, waiting for room until ctx ends or the mailbox
// is closed.
func (m *Mailbox) Deliver(ctx context.Context, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.ErrClosed
	}
	select {
	case m.ch <- payload:
		return nil
	case <-m.done:
		return errors.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the receive side. It is closed by Close.
func (m *Mailbox) Messages() <-chan []byte {
	return m.ch
}

// Done is closed when Close is called.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Close ends the mailbox. Payloads already queued stay readable.
func (m *Mailbox) Close() {
	m.once.Do(func() {
		close(m.done)
		m.mu.Lock()
		m.closed = true
		close(m.ch)
		m.mu.Unlock()
	})
}
