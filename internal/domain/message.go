package domain

import (
	"errors"
	"time"
)

// SenderType distinguishes who authored a message.
type SenderType string

const (
	// SenderUser marks a message written by a human user.
	SenderUser SenderType = "user"
	// SenderAI marks a message written by the assistant agent.
	SenderAI SenderType = "ai"
)

// Message is one entry in a chat, written either by a user or by the agent.
// Exactly one of UserSenderID/AgentSenderID is set, matching SenderType.
type Message struct {
	ID            int64      `json:"id"`
	Content       string     `json:"content"`
	SenderType    SenderType `json:"sender_type"`
	ChatID        int64      `json:"chat_id"`
	UserSenderID  *int64     `json:"user_sender_id,omitempty"`
	AgentSenderID *int64     `json:"agent_sender_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ErrInconsistentSender is returned when a message's sender type does not
// match its populated sender id field.
var ErrInconsistentSender = errors.New("message sender type and sender id are inconsistent")

// Validate checks the sender-consistency invariant.
func (m *Message) Validate() error {
	switch m.SenderType {
	case SenderUser:
		if m.UserSenderID == nil || m.AgentSenderID != nil {
			return ErrInconsistentSender
		}
	case SenderAI:
		if m.AgentSenderID == nil || m.UserSenderID != nil {
			return ErrInconsistentSender
		}
	default:
		return ErrInconsistentSender
	}
	return nil
}
