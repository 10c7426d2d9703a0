package notify

import (
	"context"
	"testing"
	"time"
)

type countingNotifier struct {
	calls int
}

func (c *countingNotifier) Channel() string { return "counting" }

func (c *countingNotifier) Deliver(ctx context.Context, msg Message) error {
	c.calls++
	return nil
}

func TestLimitDelivers(t *testing.T) {
	t.Parallel()
	inner := &countingNotifier{}
	n := Limit(inner, 100)

	for i := 0; i < 3; i++ {
		if err := n.Deliver(context.Background(), Message{Subject: "s"}); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
	if n.Channel() != "counting" {
		t.Fatalf("channel = %q", n.Channel())
	}
}

func TestLimitHonorsCancellation(t *testing.T) {
	t.Parallel()
	inner := &countingNotifier{}
	n := Limit(inner, 1) // burst 1: the second call must wait

	ctx := context.Background()
	if err := n.Deliver(ctx, Message{}); err != nil {
		t.Fatalf("first deliver: %v", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := n.Deliver(cctx, Message{}); err == nil {
		t.Fatal("expected rate-limit wait to fail on cancelled context")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}
