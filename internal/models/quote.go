package models

import "time"

// SellerQuote statuses.
const (
	QuoteOpen        = "OPEN"
	QuoteNegotiating = "NEGOTIATING"
	QuoteAccepted    = "ACCEPTED"
	QuoteRejected    = "REJECTED"
	QuoteWithdrawn   = "WITHDRAWN"
)

// SellerQuote is a seller's offer against a buyer request.
type SellerQuote struct {
	ID           string  `gorm:"primaryKey;size:26"`
	RequestID    string  `gorm:"size:26;not null;index"`
	SellerID     string  `gorm:"size:26;not null;index"`
	Price        float64 `gorm:"not null"`
	CarbonScore  float64
	DeliveryDays int    `gorm:"default:7"`
	Status       string `gorm:"size:16;default:OPEN;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
