// Package models defines the marketplace's persisted records.
package models

import "time"

// User roles.
const (
	RoleBuyer  = "BUYER"
	RoleSeller = "SELLER"
)

// User is a marketplace participant.
type User struct {
	ID           string `gorm:"primaryKey;size:26"`
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"size:256;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:128;not null"`
	Role         string `gorm:"size:16;not null"`
	CreatedAt    time.Time
}
