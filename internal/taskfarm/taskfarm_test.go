package taskfarm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/logging"
	testutil "github.com/xtxerr/archivist/internal/testing"
)

// recorder counts task starts and stops per key.
type recorder struct {
	mu      sync.Mutex
	started map[string]int
	stopped map[string]int
	running atomic.Int32
	overlap atomic.Bool
}

func newRecorder() *recorder {
	return &recorder{started: map[string]int{}, stopped: map[string]int{}}
}

func (r *recorder) run(ctx context.Context, key string) error {
	if r.running.Add(1) > 1 {
		r.overlap.Store(true)
	}
	r.mu.Lock()
	r.started[key]++
	r.mu.Unlock()

	<-ctx.Done()
	// Simulate a slow shutdown so that overlaps would be visible.
	time.Sleep(10 * time.Millisecond)

	r.mu.Lock()
	r.stopped[key]++
	r.mu.Unlock()
	r.running.Add(-1)
	return ctx.Err()
}

func (r *recorder) counts(key string) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started[key], r.stopped[key]
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	if err := testutil.Eventually(2*time.Second, 5*time.Millisecond, cond); err != nil {
		t.Fatal(msg)
	}
}

func TestIncStartsOnceDecStopsAtZero(t *testing.T) {
	r := newRecorder()
	f := New(r.run, WithLogger(logging.Discard()))
	defer f.Close()

	if err := f.Inc("room"); err != nil {
		t.Fatalf("inc: %v", err)
	}
	if err := f.Inc("room"); err != nil {
		t.Fatalf("inc: %v", err)
	}
	eventually(t, func() bool { s, _ := r.counts("room"); return s == 1 }, "task did not start")
	if f.Refs("room") != 2 {
		t.Errorf("refs: got %d", f.Refs("room"))
	}

	if err := f.Dec("room"); err != nil {
		t.Fatalf("dec: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, stopped := r.counts("room"); stopped != 0 {
		t.Fatal("task stopped while still referenced")
	}

	if err := f.Dec("room"); err != nil {
		t.Fatalf("dec: %v", err)
	}
	eventually(t, func() bool { _, s := r.counts("room"); return s == 1 }, "task did not stop")
	if len(f.Keys()) != 0 {
		t.Errorf("keys after stop: %v", f.Keys())
	}
	if started, _ := r.counts("room"); started != 1 {
		t.Errorf("task started %d times", started)
	}
}

func TestDecUnknownKey(t *testing.T) {
	f := New(newRecorder().run, WithLogger(logging.Discard()))
	defer f.Close()

	if err := f.Dec("nope"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRestartWaitsForPreviousTask(t *testing.T) {
	r := newRecorder()
	f := New(r.run, WithLogger(logging.Discard()))
	defer f.Close()

	for i := 0; i < 5; i++ {
		if err := f.Inc("room"); err != nil {
			t.Fatalf("inc: %v", err)
		}
		if err := f.Dec("room"); err != nil {
			t.Fatalf("dec: %v", err)
		}
	}
	if err := f.Inc("room"); err != nil {
		t.Fatalf("inc: %v", err)
	}
	eventually(t, func() bool { s, _ := r.counts("room"); return s == 6 }, "tasks did not run")
	if r.overlap.Load() {
		t.Error("tasks for the same key overlapped")
	}
}

func TestGracePeriodKeepsTaskAlive(t *testing.T) {
	r := newRecorder()
	f := New(r.run, WithGracePeriod(50*time.Millisecond), WithLogger(logging.Discard()))
	defer f.Close()

	if err := f.Inc("room"); err != nil {
		t.Fatalf("inc: %v", err)
	}
	eventually(t, func() bool { s, _ := r.counts("room"); return s == 1 }, "task did not start")

	if err := f.Dec("room"); err != nil {
		t.Fatalf("dec: %v", err)
	}
	if err := f.Inc("room"); err != nil {
		t.Fatalf("inc: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if started, stopped := r.counts("room"); started != 1 || stopped != 0 {
		t.Fatalf("task restarted within grace period: started=%d stopped=%d", started, stopped)
	}

	if err := f.Dec("room"); err != nil {
		t.Fatalf("dec: %v", err)
	}
	eventually(t, func() bool { _, s := r.counts("room"); return s == 1 }, "task did not stop after grace period")
}

func TestFailingTaskReported(t *testing.T) {
	var mu sync.Mutex
	reported := map[any]error{}

	f := New(func(ctx context.Context, key string) error {
		return fmt.Errorf("boom %s", key)
	},
		WithLogger(logging.Discard()),
		WithErrorHandler(func(key any, err error) {
			mu.Lock()
			defer mu.Unlock()
			reported[key] = err
		}),
	)
	defer f.Close()

	if err := f.Inc("a"); err != nil {
		t.Fatalf("inc: %v", err)
	}
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reported["a"] != nil
	}, "failure not reported")

	// A task that ended on its own is forgotten.
	eventually(t, func() bool { return len(f.Keys()) == 0 }, "failed task still listed")
}

func TestCloseStopsEverything(t *testing.T) {
	r := newRecorder()
	f := New(r.run, WithLogger(logging.Discard()))

	for _, k := range []string{"a", "b", "c"} {
		if err := f.Inc(k); err != nil {
			t.Fatalf("inc: %v", err)
		}
	}
	eventually(t, func() bool { return r.running.Load() == 3 }, "tasks did not start")

	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.running.Load() != 0 {
		t.Errorf("%d tasks still running after close", r.running.Load())
	}
	if err := f.Inc("d"); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("inc after close: %v", err)
	}
	if err := f.Close(); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("second close: %v", err)
	}
}

func TestExitHandlerOnlyForOwnExits(t *testing.T) {
	var mu sync.Mutex
	exits := map[any]int{}

	f := New(func(ctx context.Context, key string) error {
		if key == "short" {
			return nil
		}
		<-ctx.Done()
		return ctx.Err()
	},
		WithLogger(logging.Discard()),
		WithExitHandler(func(key any, err error) {
			mu.Lock()
			defer mu.Unlock()
			exits[key]++
		}),
	)

	for _, k := range []string{"short", "long"} {
		if err := f.Inc(k); err != nil {
			t.Fatalf("inc %s: %v", k, err)
		}
	}
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return exits["short"] == 1
	}, "own exit not reported")
	if err := f.Dec("short"); !errors.IsNotFound(err) {
		t.Errorf("references survived the exit: %v", err)
	}

	if err := f.Dec("long"); err != nil {
		t.Fatalf("dec: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if exits["long"] != 0 {
		t.Errorf("cancelled task reported as own exit")
	}
}
