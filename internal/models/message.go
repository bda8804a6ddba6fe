package models

import "time"

// ChatMessage sender types. Agent-authored messages carry no SenderID.
const (
	SenderBuyer       = "BUYER"
	SenderSeller      = "SELLER"
	SenderAgent       = "AGENT"
	SenderAgentBuyer  = "AGENT_BUYER"
	SenderAgentSeller = "AGENT_SELLER"
)

// ChatMessage is one entry in a thread's append-only negotiation log.
// Messages are immutable once created and ordered by CreatedAt; this ordered
// sequence is the sole source of negotiation history.
type ChatMessage struct {
	ID         string `gorm:"primaryKey;size:26"`
	ThreadID   string `gorm:"size:26;not null;index"`
	SenderID   string `gorm:"size:26"`
	SenderType string `gorm:"size:16;not null"`
	SenderName string `gorm:"size:128"`
	Content    string `gorm:"type:text"`
	Hint       string `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// FromAgent reports whether the message was authored by a negotiation agent.
func (m ChatMessage) FromAgent() bool {
	return m.SenderType == SenderAgent ||
		m.SenderType == SenderAgentBuyer ||
		m.SenderType == SenderAgentSeller
}
