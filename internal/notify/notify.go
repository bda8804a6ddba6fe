// Package notify announces settled negotiations to chat platforms
// (Slack, Discord). Delivery is best-effort: the engine never fails a
// round because an announcement could not be posted.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/econexus/parley/internal/config"
)

// Event describes a settled negotiation.
type Event struct {
	ThreadID     string
	Product      string
	Quantity     int
	FinalPrice   float64
	DeliveryDays int
	Reason       string
	Rounds       int
}

// Notifier delivers settlement announcements.
type Notifier interface {
	SettlementReached(ctx context.Context, ev Event) error
}

// Nop is a Notifier that does nothing.
type Nop struct{}

// SettlementReached implements Notifier.
func (Nop) SettlementReached(ctx context.Context, ev Event) error { return nil }

// Multi fans an event out to several notifiers, continuing past failures.
type Multi []Notifier

// SettlementReached delivers to every notifier and joins any errors.
func (m Multi) SettlementReached(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.SettlementReached(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds a Notifier from the configured targets. With no targets
// configured it returns Nop.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var targets Multi
	if cfg.SlackWebhookURL != "" {
		targets = append(targets, NewSlack(SlackOpts{WebhookURL: cfg.SlackWebhookURL}))
	}
	if cfg.DiscordWebhookID != "" {
		d, err := NewDiscord(DiscordOpts{WebhookID: cfg.DiscordWebhookID, WebhookToken: cfg.DiscordWebhookToken})
		if err != nil {
			return nil, err
		}
		targets = append(targets, d)
	}
	if len(targets) == 0 {
		return Nop{}, nil
	}
	return targets, nil
}

// formatEvent renders the shared announcement text.
func formatEvent(ev Event) string {
	return fmt.Sprintf("Deal reached on %s (qty %d): $%.2f, %d-day delivery after %d round(s) [%s]",
		ev.Product, ev.Quantity, ev.FinalPrice, ev.DeliveryDays, ev.Rounds, ev.Reason)
}
