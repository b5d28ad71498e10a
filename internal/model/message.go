package model

import "time"

// ReadReceipt records that a user has seen a message.
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message is a chat message. Exactly one of Channel and RecipientID is set:
// Channel for broadcast-topic messages, RecipientID for direct messages.
type Message struct {
	ID          string        `json:"id"`
	Channel     string        `json:"channel,omitempty"`
	RecipientID string        `json:"recipient_id,omitempty"`
	SenderID    string        `json:"sender_id"`
	Content     string        `json:"content"`
	Mentions    []string      `json:"mentions,omitempty"`
	ReadBy      []ReadReceipt `json:"read_by,omitempty"`
	ReplyTo     string        `json:"reply_to,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsDirect reports whether the message is a 1:1 direct message.
func (m *Message) IsDirect() bool {
	return m.RecipientID != ""
}

// InScope reports whether the message belongs to the given active scope.
//
// A channel message is in scope when its channel matches activeChannel. A
// direct message is in scope when the conversation partner (the sender, or
// the recipient for our own echoed messages) matches activeRecipient;
// selfID identifies the local user for that check.
func (m *Message) InScope(activeChannel, activeRecipient, selfID string) bool {
	if m.Channel != "" {
		return activeChannel != "" && m.Channel == activeChannel
	}
	if activeRecipient == "" {
		return false
	}
	if m.SenderID == activeRecipient && m.RecipientID == selfID {
		return true
	}
	if m.SenderID == selfID && m.RecipientID == activeRecipient {
		return true
	}
	return false
}

// ConversationSummary is the derived per-counterpart projection shown in a
// conversation list: who, the latest message, and how many are unread. It is
// recomputed from the message cache plus the server aggregate, never stored.
type ConversationSummary struct {
	User        User      `json:"user"`
	LastMessage *Message  `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UnreadCounts is the aggregate unread state for the whole account. The
// authoritative copy always comes from GET /messages/unread; the client
// never does local arithmetic on it.
type UnreadCounts struct {
	Total           int            `json:"total"`
	PerChannel      map[string]int `json:"per_channel,omitempty"`
	PerConversation map[string]int `json:"per_conversation,omitempty"`
}
