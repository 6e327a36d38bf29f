package testing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoroutineTestCollects(t *testing.T) {
	gt := NewGoroutineTest(t)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		gt.Go(func() error {
			n.Add(1)
			return nil
		})
	}
	gt.Wait()

	if n.Load() != 10 {
		t.Errorf("expected 10 runs, got %d", n.Load())
	}
}

func TestGoroutineTestContextCancelled(t *testing.T) {
	gt := NewGoroutineTestWithTimeout(t, time.Second)

	gt.GoWithContext(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	gt.Cancel()
	gt.Wait()
}

func TestWithTimeout(t *testing.T) {
	if err := WithTimeout(time.Second, func() error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := WithTimeout(10*time.Millisecond, func() error {
		time.Sleep(time.Second)
		return nil
	})
	if err == nil {
		t.Error("expected timeout")
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	err := Retry(3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("retry: err=%v attempts=%d", err, attempts)
	}

	if err := Retry(2, time.Millisecond, func() error { return errors.New("never") }); err == nil {
		t.Error("expected failure")
	}
}

func TestEventually(t *testing.T) {
	start := time.Now()
	err := Eventually(time.Second, 5*time.Millisecond, func() bool {
		return time.Since(start) > 20*time.Millisecond
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Eventually(20*time.Millisecond, 5*time.Millisecond, func() bool { return false }); err == nil {
		t.Error("expected timeout")
	}
}
