package models

import "time"

// NegotiationThread statuses.
const (
	ThreadOpen        = "OPEN"
	ThreadNegotiating = "NEGOTIATING"
	ThreadClosed      = "CLOSED"
)

// NegotiationThread ties one buyer, one seller, one request, and one quote
// into a bilateral bargaining context. Threads are never deleted, only closed.
type NegotiationThread struct {
	ID               string `gorm:"primaryKey;size:26"`
	RequestID        string `gorm:"size:26;not null;index"`
	QuoteID          string `gorm:"size:26;not null;uniqueIndex"`
	BuyerID          string `gorm:"size:26;not null;index"`
	SellerID         string `gorm:"size:26;not null;index"`
	BuyerGuidelines  string `gorm:"type:text"`
	SellerGuidelines string `gorm:"type:text"`
	Status           string `gorm:"size:16;default:OPEN;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
