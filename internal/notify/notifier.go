// Package notify delivers alert messages to subscribers. Delivery failures
// are logged and never fatal: an unreachable subscriber must not halt the
// evaluation pass that produced the alert, and the state change behind the
// alert (candle, sample, cooldown timestamp) is never rolled back.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is one delivery channel, addressed by subscriber id.
type Sender interface {
	Send(ctx context.Context, subscriberID int64, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans one message out to every configured sender.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Send delivers to all senders. Individual failures are collected into one
// combined error; a failing sender does not block the remaining ones. Callers
// log the returned error and move on.
func (n *Notifier) Send(ctx context.Context, subscriberID int64, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, subscriberID, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.Int64("subscriber", subscriberID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.Int64("subscriber", subscriberID),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}
