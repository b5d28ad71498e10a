package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/crewdeck/crewdeck/internal/model"
)

// SendMessageRequest carries an outbound chat message. Exactly one of
// Channel and RecipientID must be set.
type SendMessageRequest struct {
	Channel     string   `json:"channel,omitempty"`
	RecipientID string   `json:"recipient_id,omitempty"`
	Content     string   `json:"content"`
	Mentions    []string `json:"mentions,omitempty"`
	ReplyTo     string   `json:"reply_to,omitempty"`
}

// MarkReadRequest identifies the scope whose messages were just seen.
type MarkReadRequest struct {
	Channel  string `json:"channel,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
}

// messageEnvelope wraps single-message responses.
type messageEnvelope struct {
	Data *model.Message `json:"data"`
}

// messageListEnvelope wraps message history responses.
type messageListEnvelope struct {
	Data []*model.Message `json:"data"`
}

// Conversations fetches the conversation summary list.
func (c *Client) Conversations(ctx context.Context) ([]*model.ConversationSummary, error) {
	var out struct {
		Data []*model.ConversationSummary `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ChannelHistory fetches the message history of a broadcast channel.
func (c *Client) ChannelHistory(ctx context.Context, channel string) ([]*model.Message, error) {
	var out messageListEnvelope
	if err := c.do(ctx, http.MethodGet, "/messages/channel/"+url.PathEscape(channel), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// DirectHistory fetches the 1:1 history with the given user.
func (c *Client) DirectHistory(ctx context.Context, userID string) ([]*model.Message, error) {
	var out messageListEnvelope
	if err := c.do(ctx, http.MethodGet, "/messages/dm/"+url.PathEscape(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// SendMessage posts a message and returns the server's record of it. The
// same message will usually also arrive as a push broadcast; the store's
// dedup guard handles the echo.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*model.Message, error) {
	var out messageEnvelope
	if err := c.do(ctx, http.MethodPost, "/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// MarkRead records that the current user has seen the scope's messages.
func (c *Client) MarkRead(ctx context.Context, req MarkReadRequest) error {
	return c.do(ctx, http.MethodPost, "/messages/read", nil, req, nil)
}

// UnreadCounts fetches the authoritative unread aggregates.
func (c *Client) UnreadCounts(ctx context.Context) (*model.UnreadCounts, error) {
	var out struct {
		Data *model.UnreadCounts `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/unread", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
