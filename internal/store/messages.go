package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/internal/api"
	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/push"
)

// ErrNoActiveScope is returned when a send or mark-read has no channel or
// conversation partner selected to apply to.
var ErrNoActiveScope = errors.New("no active channel or recipient")

// MessagesAPI is the slice of the REST client the message store depends on.
type MessagesAPI interface {
	Conversations(ctx context.Context) ([]*model.ConversationSummary, error)
	ChannelHistory(ctx context.Context, channel string) ([]*model.Message, error)
	DirectHistory(ctx context.Context, userID string) ([]*model.Message, error)
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*model.Message, error)
	MarkRead(ctx context.Context, req api.MarkReadRequest) error
	UnreadCounts(ctx context.Context) (*model.UnreadCounts, error)
}

// Broadcaster is the push surface the message store uses for topic
// membership and live events. *push.Channel satisfies it.
type Broadcaster interface {
	Join(topic string) error
	Leave(topic string) error
	Subscribe(event string, fn push.Handler) *push.Subscription
	Unsubscribe(sub *push.Subscription)
}

// MessageStoreConfig holds message store tunables.
type MessageStoreConfig struct {
	// TypingWindow is how long a typing flag stays set without renewal
	// (default: 3s).
	TypingWindow time.Duration

	// Logger for store activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultMessageStoreConfig returns sensible defaults.
func DefaultMessageStoreConfig() *MessageStoreConfig {
	return &MessageStoreConfig{
		TypingWindow: 3 * time.Second,
		Logger:       log.New(os.Stderr, "[messages] ", log.LstdFlags),
	}
}

// MessageStore caches the message history of exactly one active scope at a
// time: either one broadcast channel or one direct-conversation partner,
// never both. Pushed messages merge into the visible list only when they
// belong to the active scope; everything else only nudges the unread
// counters, which are always refreshed from the server aggregate.
type MessageStore struct {
	api    MessagesAPI
	pusher Broadcaster
	selfID string
	config *MessageStoreConfig

	sub *push.Subscription

	mu              sync.Mutex
	activeChannel   string
	activeRecipient string
	messages        []*model.Message
	seen            map[string]bool
	summaries       []*model.ConversationSummary
	unread          model.UnreadCounts
	typing          map[string]bool
	typingTimers    map[string]*time.Timer
	lastErr         error
}

// NewMessageStore creates a message store and registers its live-event
// handler on the push channel. Call Close when the session ends.
func NewMessageStore(messagesAPI MessagesAPI, pusher Broadcaster, selfID string, config *MessageStoreConfig) *MessageStore {
	if config == nil {
		config = DefaultMessageStoreConfig()
	}
	if config.TypingWindow <= 0 {
		config.TypingWindow = 3 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[messages] ", log.LstdFlags)
	}

	s := &MessageStore{
		api:          messagesAPI,
		pusher:       pusher,
		selfID:       selfID,
		config:       config,
		seen:         make(map[string]bool),
		typing:       make(map[string]bool),
		typingTimers: make(map[string]*time.Timer),
	}
	s.sub = pusher.Subscribe(push.EventMessageNew, s.handleMessageNew)
	return s
}

// Close unregisters the live-event handler and stops pending typing timers.
func (s *MessageStore) Close() {
	s.pusher.Unsubscribe(s.sub)

	s.mu.Lock()
	defer s.mu.Unlock()
	for user, timer := range s.typingTimers {
		timer.Stop()
		delete(s.typingTimers, user)
	}
}

// SetActiveChannel makes the named broadcast channel the open scope:
// leaves the previous channel topic, clears any direct-conversation
// selection, loads the channel history, and joins the topic.
func (s *MessageStore) SetActiveChannel(ctx context.Context, name string) {
	s.mu.Lock()
	previous := s.activeChannel
	s.activeChannel = name
	s.activeRecipient = ""
	s.mu.Unlock()

	if previous != "" && previous != name {
		if err := s.pusher.Leave(previous); err != nil {
			s.config.Logger.Printf("Failed to leave %s: %v", previous, err)
		}
	}

	history, err := s.api.ChannelHistory(ctx, name)
	s.installHistory(history, err)

	if err := s.pusher.Join(name); err != nil {
		s.config.Logger.Printf("Failed to join %s: %v", name, err)
	}
}

// SetActiveRecipient makes the 1:1 conversation with userID the open scope.
// Direct conversations have no broadcast topic, so only the previous
// channel subscription (if any) is released.
func (s *MessageStore) SetActiveRecipient(ctx context.Context, userID string) {
	s.mu.Lock()
	previous := s.activeChannel
	s.activeChannel = ""
	s.activeRecipient = userID
	s.mu.Unlock()

	if previous != "" {
		if err := s.pusher.Leave(previous); err != nil {
			s.config.Logger.Printf("Failed to leave %s: %v", previous, err)
		}
	}

	history, err := s.api.DirectHistory(ctx, userID)
	s.installHistory(history, err)
}

// ClearActive closes the open scope without opening another one.
func (s *MessageStore) ClearActive() {
	s.mu.Lock()
	previous := s.activeChannel
	s.activeChannel = ""
	s.activeRecipient = ""
	s.messages = nil
	s.seen = make(map[string]bool)
	s.mu.Unlock()

	if previous != "" {
		if err := s.pusher.Leave(previous); err != nil {
			s.config.Logger.Printf("Failed to leave %s: %v", previous, err)
		}
	}
}

// installHistory replaces the visible list with a freshly fetched scope
// history. Read-op failure semantics: the scope switch still happens, the
// list starts empty, and the failure lands on Err.
func (s *MessageStore) installHistory(history []*model.Message, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.seen = make(map[string]bool)
	if err != nil {
		s.config.Logger.Printf("History fetch failed: %v", err)
		s.lastErr = err
		return
	}
	for _, msg := range history {
		if !s.seen[msg.ID] {
			s.seen[msg.ID] = true
			s.messages = append(s.messages, msg)
		}
	}
	s.lastErr = nil
}

// handleMessageNew is the push handler for message:new frames.
func (s *MessageStore) handleMessageNew(data json.RawMessage) {
	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.config.Logger.Printf("Dropping malformed message event: %v", err)
		return
	}
	s.AddMessage(&msg)
}

// AddMessage merges one live message into the store. In-scope messages are
// appended unless the id is already present (the sender's own send racing
// the broadcast echo). Out-of-scope messages never touch the visible list.
// Either way the unread counters are refreshed from the server.
func (s *MessageStore) AddMessage(msg *model.Message) {
	s.mu.Lock()
	inScope := msg.InScope(s.activeChannel, s.activeRecipient, s.selfID)
	if inScope && !s.seen[msg.ID] {
		s.seen[msg.ID] = true
		s.messages = append(s.messages, msg)
	}
	s.mu.Unlock()

	s.RefreshUnread(context.Background())
}

// Send posts a message to the active scope. On success the server's record
// is appended (dedup-guarded against its own broadcast echo) and the unread
// counters are refreshed. Write failures are returned and leave the cache
// untouched.
func (s *MessageStore) Send(ctx context.Context, content string, mentions []string, replyTo string) (*model.Message, error) {
	s.mu.Lock()
	req := api.SendMessageRequest{
		Channel:     s.activeChannel,
		RecipientID: s.activeRecipient,
		Content:     content,
		Mentions:    mentions,
		ReplyTo:     replyTo,
	}
	s.mu.Unlock()

	if req.Channel == "" && req.RecipientID == "" {
		return nil, ErrNoActiveScope
	}

	sent, err := s.api.SendMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.seen[sent.ID] {
		s.seen[sent.ID] = true
		s.messages = append(s.messages, sent)
	}
	s.mu.Unlock()

	s.RefreshUnread(ctx)
	return sent, nil
}

// MarkRead tells the server the active scope's messages have been seen,
// then refreshes the unread counters.
func (s *MessageStore) MarkRead(ctx context.Context) error {
	s.mu.Lock()
	req := api.MarkReadRequest{
		Channel:  s.activeChannel,
		SenderID: s.activeRecipient,
	}
	s.mu.Unlock()

	if req.Channel == "" && req.SenderID == "" {
		return ErrNoActiveScope
	}

	if err := s.api.MarkRead(ctx, req); err != nil {
		return err
	}
	s.RefreshUnread(ctx)
	return nil
}

// RefreshUnread replaces the unread counters with the server aggregate.
// The client never does local arithmetic on unread counts.
func (s *MessageStore) RefreshUnread(ctx context.Context) {
	counts, err := s.api.UnreadCounts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.config.Logger.Printf("Unread refresh failed: %v", err)
		s.lastErr = err
		return
	}
	s.unread = *counts
	s.lastErr = nil
}

// RefreshConversations reloads the conversation summary list.
func (s *MessageStore) RefreshConversations(ctx context.Context) []*model.ConversationSummary {
	summaries, err := s.api.Conversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.config.Logger.Printf("Conversations fetch failed: %v", err)
		s.lastErr = err
		return s.summaries
	}
	s.summaries = summaries
	s.lastErr = nil
	return summaries
}

// SetTyping sets or clears a user's typing flag. A set flag auto-clears
// after the configured window; setting it again before expiry restarts the
// window, so at most one pending auto-clear exists per user.
func (s *MessageStore) SetTyping(userID string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !typing {
		s.typing[userID] = false
		if timer, ok := s.typingTimers[userID]; ok {
			timer.Stop()
			delete(s.typingTimers, userID)
		}
		return
	}

	s.typing[userID] = true
	if timer, ok := s.typingTimers[userID]; ok {
		timer.Reset(s.config.TypingWindow)
		return
	}
	s.typingTimers[userID] = time.AfterFunc(s.config.TypingWindow, func() {
		s.expireTyping(userID)
	})
}

func (s *MessageStore) expireTyping(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing[userID] = false
	delete(s.typingTimers, userID)
}

// IsTyping reports whether the user's typing flag is currently set.
func (s *MessageStore) IsTyping(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing[userID]
}

// Messages returns a copy of the visible list for the active scope.
func (s *MessageStore) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Message(nil), s.messages...)
}

// ActiveChannel returns the open broadcast channel, or "".
func (s *MessageStore) ActiveChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChannel
}

// ActiveRecipient returns the open direct-conversation partner, or "".
func (s *MessageStore) ActiveRecipient() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRecipient
}

// Unread returns the last fetched unread aggregate.
func (s *MessageStore) Unread() model.UnreadCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Summaries returns the last fetched conversation list.
func (s *MessageStore) Summaries() []*model.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.ConversationSummary(nil), s.summaries...)
}

// Err returns the failure recorded by the last read operation, or nil.
func (s *MessageStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
