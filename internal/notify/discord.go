package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// webhookExecutor abstracts the Discord API method we use, enabling test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts settlement announcements through a webhook.
type Discord struct {
	session webhookExecutor
	id      string
	token   string
}

// DiscordOpts holds parameters for creating a Discord notifier.
type DiscordOpts struct {
	WebhookID    string
	WebhookToken string
	// For testing: inject a mock session instead of the real API.
	Session webhookExecutor
}

// NewDiscord creates a Discord webhook notifier. Webhook execution needs no
// bot token, so the session is created unauthenticated.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	session := opts.Session
	if session == nil {
		s, err := discordgo.New("")
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		session = s
	}
	return &Discord{session: session, id: opts.WebhookID, token: opts.WebhookToken}, nil
}

// SettlementReached posts the event to the configured webhook.
func (d *Discord) SettlementReached(ctx context.Context, ev Event) error {
	params := &discordgo.WebhookParams{Content: formatEvent(ev)}
	if _, err := d.session.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: discord webhook: %w", err)
	}
	return nil
}
