package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// webhookPoster abstracts the Slack webhook call, enabling test mocks.
type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// Slack posts settlement announcements to an incoming webhook.
type Slack struct {
	webhookURL string
	post       webhookPoster
}

// SlackOpts holds parameters for creating a Slack notifier.
type SlackOpts struct {
	WebhookURL string
	// For testing: inject a mock poster instead of the real API.
	Post webhookPoster
}

// NewSlack creates a Slack webhook notifier.
func NewSlack(opts SlackOpts) *Slack {
	post := opts.Post
	if post == nil {
		post = slackapi.PostWebhookContext
	}
	return &Slack{webhookURL: opts.WebhookURL, post: post}
}

// SettlementReached posts the event to the configured webhook.
func (s *Slack) SettlementReached(ctx context.Context, ev Event) error {
	msg := &slackapi.WebhookMessage{
		Text: formatEvent(ev),
		Attachments: []slackapi.Attachment{{
			Color: "#36a64f",
			Fields: []slackapi.AttachmentField{
				{Title: "Thread", Value: ev.ThreadID, Short: true},
				{Title: "Reason", Value: ev.Reason, Short: true},
				{Title: "Final Price", Value: fmt.Sprintf("$%.2f", ev.FinalPrice), Short: true},
				{Title: "Delivery", Value: fmt.Sprintf("%d days", ev.DeliveryDays), Short: true},
			},
		}},
	}
	if err := s.post(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("notify: slack webhook: %w", err)
	}
	return nil
}
