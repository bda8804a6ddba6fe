// Package offer extracts numeric price offers from negotiation messages.
package offer

import (
	"regexp"
	"strconv"
	"time"

	"github.com/econexus/parley/internal/models"
)

// pricePattern matches $XX or $XX.XX tokens.
var pricePattern = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)

// Offer is a price inferred from a single message.
type Offer struct {
	Price   float64
	Message string
	At      time.Time
}

// Extract returns the last dollar amount mentioned in a message. A message
// may reference earlier prices before stating a new one, so only the final
// match counts as the offer. The second return is false when no price is
// present, which is an expected outcome rather than an error.
func Extract(message string) (float64, bool) {
	matches := pricePattern.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1][1]
	price, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// History returns, in message order, the offers made by a given sender type
// across a thread's message log. Messages without a price are skipped.
func History(msgs []models.ChatMessage, senderType string) []Offer {
	var offers []Offer
	for _, m := range msgs {
		if m.SenderType != senderType {
			continue
		}
		price, ok := Extract(m.Content)
		if !ok {
			continue
		}
		offers = append(offers, Offer{Price: price, Message: m.Content, At: m.CreatedAt})
	}
	return offers
}

// Last returns the most recent offer in a history, if any.
func Last(offers []Offer) (Offer, bool) {
	if len(offers) == 0 {
		return Offer{}, false
	}
	return offers[len(offers)-1], true
}
