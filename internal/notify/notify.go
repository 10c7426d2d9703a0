// Package notify delivers rendered notifications.
//
// The orchestrator only sees the Notifier interface; concrete drivers
// (SES, Telegram) live here so tests can substitute deterministic fakes.
package notify

import (
	"context"

	"golang.org/x/time/rate"
)

// Message is one rendered notification. To/From are email addresses for
// the SES driver; the Telegram driver ignores them.
type Message struct {
	To      string
	From    string
	Subject string
	Body    string
}

// Notifier attempts delivery of one message. Implementations own their
// per-call timeout; a returned error means this attempt failed and the
// caller decides whether the meeting is retried on a later run.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
	Channel() string
}

// Limited wraps a Notifier with a token-bucket rate limit. Providers
// enforce a max send rate (SES per-account, Telegram per-bot); waiting
// here keeps the sequential send loop inside quota.
type Limited struct {
	inner Notifier
	lim   *rate.Limiter
}

// Limit caps n at perSec deliveries per second. perSec <= 0 means 1.
func Limit(n Notifier, perSec int) *Limited {
	if perSec <= 0 {
		perSec = 1
	}
	return &Limited{
		inner: n,
		lim:   rate.NewLimiter(rate.Limit(perSec), perSec),
	}
}

func (l *Limited) Channel() string { return l.inner.Channel() }

func (l *Limited) Deliver(ctx context.Context, msg Message) error {
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	return l.inner.Deliver(ctx, msg)
}
