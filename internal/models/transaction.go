package models

import "time"

// Transaction records the terms of a settled negotiation.
type Transaction struct {
	ID           string  `gorm:"primaryKey;size:26"`
	ThreadID     string  `gorm:"size:26;not null;uniqueIndex"`
	RequestID    string  `gorm:"size:26;not null"`
	QuoteID      string  `gorm:"size:26;not null"`
	BuyerID      string  `gorm:"size:26;not null;index"`
	SellerID     string  `gorm:"size:26;not null;index"`
	Price        float64 `gorm:"not null"`
	DeliveryDays int
	Reason       string `gorm:"size:32"`
	CreatedAt    time.Time
}
