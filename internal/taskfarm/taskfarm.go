// Package taskfarm runs one long-lived task per key for as long as the key
// is referenced.
//
// Inc starts the task for a key on its first reference and Dec cancels it
// when the last reference is released, optionally after a grace period in
// which a new reference keeps the running task alive. A task started for a
// key never overlaps with the previous task of the same key.
package taskfarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/logging"
)

// RunFunc is the body of a task. It must return once ctx is cancelled.
type RunFunc[K comparable] func(ctx context.Context, key K) error

// Option configures a Farm.
type Option func(*options)

type options struct {
	grace   time.Duration
	onError func(key any, err error)
	onExit  func(key any, err error)
	logger  *slog.Logger
}

// WithGracePeriod keeps a released task running for d before cancelling it.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) { o.grace = d }
}

// WithErrorHandler is called with the key and error of every task that
// fails. A task returning exactly context.Canceled is not reported.
func WithErrorHandler(fn func(key any, err error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithExitHandler is called with the key and result of every task that
// returned on its own, before Dec or Close cancelled it. Its references are
// gone by then: the next Inc starts a new task. The handler runs before the
// error handler.
func WithExitHandler(fn func(key any, err error)) Option {
	return func(o *options) { o.onExit = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Farm manages keyed tasks. It is safe for concurrent use.
type Farm[K comparable] struct {
	run  RunFunc[K]
	opts options

	mu    sync.Mutex
	tasks map[K]*task

	// stopping holds cancelled tasks that have not returned yet.
	stopping map[K]*task
	closed   bool
	wg       sync.WaitGroup
}

type task struct {
	refs   int
	cancel context.CancelFunc
	timer  *time.Timer
	done   chan struct{}
}

// New creates a farm running run for every referenced key.
func New[K comparable](run RunFunc[K], opts ...Option) *Farm[K] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Component("taskfarm")
	}
	return &Farm[K]{
		run:      run,
		opts:     o,
		tasks:    make(map[K]*task),
		stopping: make(map[K]*task),
	}
}

// Inc adds a reference to key, starting its task if it has none.
func (f *Farm[K]) Inc(key K) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errors.ErrClosed
	}

	t, ok := f.tasks[key]
	if !ok {
		t = f.startLocked(key)
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.refs++
	return nil
}

// Dec releases a reference to key. The task is cancelled when no references
// remain, after the grace period if one is configured.
func (f *Farm[K]) Dec(key K) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tasks[key]
	if !ok || t.refs == 0 {
		return errors.NewNotFound("task", keyString(key))
	}
	t.refs--
	if t.refs > 0 {
		return nil
	}

	if f.opts.grace <= 0 {
		f.stopLocked(key, t)
		return nil
	}
	t.timer = time.AfterFunc(f.opts.grace, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if cur, ok := f.tasks[key]; ok && cur == t && t.refs == 0 {
			f.stopLocked(key, t)
		}
	})
	return nil
}

// Refs returns the number of references to key.
func (f *Farm[K]) Refs(key K) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[key]; ok {
		return t.refs
	}
	return 0
}

// Keys returns the keys with a running task, in no particular order.
func (f *Farm[K]) Keys() []K {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]K, 0, len(f.tasks))
	for k := range f.tasks {
		keys = append(keys, k)
	}
	return keys
}

// Close cancels every task and waits for all of them to return.
func (f *Farm[K]) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.ErrClosed
	}
	f.closed = true
	for key, t := range f.tasks {
		f.stopLocked(key, t)
	}
	f.mu.Unlock()

	f.wg.Wait()
	return nil
}

func (f *Farm[K]) startLocked(key K) *task {
	prev := f.stopping[key]
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	f.tasks[key] = t

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer close(t.done)
		defer cancel()

		if prev != nil {
			<-prev.done
		}
		err := f.run(ctx, key)

		f.mu.Lock()
		exited := false
		if cur, ok := f.tasks[key]; ok && cur == t {
			exited = true
			delete(f.tasks, key)
			if t.timer != nil {
				t.timer.Stop()
			}
		}
		if cur, ok := f.stopping[key]; ok && cur == t {
			delete(f.stopping, key)
		}
		f.mu.Unlock()

		if exited && f.opts.onExit != nil {
			f.opts.onExit(key, err)
		}
		if err != nil && err != context.Canceled {
			f.opts.logger.Error("task failed", "key", keyString(key), "error", err)
			if f.opts.onError != nil {
				f.opts.onError(key, err)
			}
		}
	}()
	return t
}

// stopLocked cancels t and forgets it. A later Inc for key starts a new task
// that waits for t to return first.
func (f *Farm[K]) stopLocked(key K, t *task) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.cancel()
	delete(f.tasks, key)
	f.stopping[key] = t
}

func keyString(key any) string {
	return fmt.Sprint(key)
}
