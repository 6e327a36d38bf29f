package bus

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/archivist/internal/errors"
)

func receive(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		if !ok {
			t.Fatal("subscription closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return nil
	}
}

func expectClosed(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case _, ok := <-sub.Messages():
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestValidateChannel(t *testing.T) {
	valid := []string{"room", "abuse@conference.example.org", "a-b_c"}
	for _, name := range valid {
		if err := ValidateChannel(name); err != nil {
			t.Errorf("%q: %v", name, err)
		}
	}
	invalid := []string{"", "a b", "a\tb", "a.*", "a.>", ".a", "a.", "a..b"}
	for _, name := range invalid {
		if err := ValidateChannel(name); !errors.Is(err, errors.ErrInvalidName) {
			t.Errorf("%q: expected invalid name, got %v", name, err)
		}
	}
}

func TestMemoryFanOut(t *testing.T) {
	b := NewMemory(4)
	defer b.Close()
	ctx := context.Background()

	s1, err := b.Join(ctx, "room")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	s2, err := b.Join(ctx, "room")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	other, err := b.Join(ctx, "other")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := b.Send(ctx, "room", []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := receive(t, s1); string(got) != "hello" {
		t.Errorf("s1: got %q", got)
	}
	if got := receive(t, s2); string(got) != "hello" {
		t.Errorf("s2: got %q", got)
	}
	select {
	case msg := <-other.Messages():
		t.Errorf("other channel received %q", msg)
	default:
	}
}

func TestMemorySubscriptionClose(t *testing.T) {
	b := NewMemory(1)
	defer b.Close()
	ctx := context.Background()

	sub, err := b.Join(ctx, "room")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	expectClosed(t, sub)
	if b.Subscribers("room") != 0 {
		t.Errorf("subscriber not removed")
	}
	// Sending to a channel without subscribers is fine.
	if err := b.Send(ctx, "room", []byte("x")); err != nil {
		t.Errorf("send: %v", err)
	}
}

func TestMemoryJoinContextCancel(t *testing.T) {
	b := NewMemory(1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Join(ctx, "room")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	cancel()
	expectClosed(t, sub)
}

func TestMemorySendBlocksUntilContextEnds(t *testing.T) {
	b := NewMemory(1)
	defer b.Close()

	if _, err := b.Join(context.Background(), "room"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := b.Send(context.Background(), "room", []byte("1")); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Send(ctx, "room", []byte("2")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMemoryClose(t *testing.T) {
	b := NewMemory(1)
	sub, err := b.Join(context.Background(), "room")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	expectClosed(t, sub)

	if _, err := b.Join(context.Background(), "room"); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("join after close: %v", err)
	}
	if err := b.Send(context.Background(), "room", nil); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("send after close: %v", err)
	}
}

func TestMailboxCloseUnblocksDeliver(t *testing.T) {
	m := NewMailbox(0)
	done := make(chan error, 1)
	go func() {
		done <- m.Deliver(context.Background(), []byte("x"))
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()

	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deliver still blocked")
	}
	// Closing twice is harmless.
	m.Close()
}
