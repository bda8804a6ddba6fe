package models

import "time"

// BuyerRequest statuses.
const (
	RequestOpen        = "OPEN"
	RequestNegotiating = "NEGOTIATING"
	RequestClosed      = "CLOSED"
)

// BuyerRequest is a buyer's call for quotes on a product.
type BuyerRequest struct {
	ID                 string  `gorm:"primaryKey;size:26"`
	BuyerID            string  `gorm:"size:26;not null;index"`
	ProductName        string  `gorm:"size:128;not null"`
	Quantity           int     `gorm:"not null;default:1"`
	MaxPrice           float64 `gorm:"not null"`
	DesiredCarbonScore float64
	Status             string `gorm:"size:16;default:OPEN;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
