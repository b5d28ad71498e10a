package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/push"
	"github.com/crewdeck/crewdeck/internal/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat <#channel | user>",
	Short: "Chat in a channel or direct conversation",
	Long: `Open a live conversation. A #-prefixed argument names a broadcast
channel; anything else is matched against the roster as a direct recipient.

  crewdeck chat "#general"
  crewdeck chat dana@example.com

Incoming messages print as they arrive. Lines you type are sent to the open
scope; /read marks it read, /quit exits.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		self, err := requireAuth(cmd.Context())
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		pushChan := push.NewChannel(&push.Config{
			URL:               cfg.WSURL,
			ReconnectAttempts: cfg.ReconnectAttempts,
			ReconnectDelay:    cfg.ReconnectDelay,
			Logger:            logs.Logger("push"),
		})
		messages := store.NewMessageStore(client, pushChan, self.ID, &store.MessageStoreConfig{
			TypingWindow: cfg.TypingWindow,
			Logger:       logs.Logger("messages"),
		})
		defer messages.Close()

		if err := pushChan.Connect(ctx, sess.Token()); err != nil {
			return fmt.Errorf("push channel unavailable: %w", err)
		}
		defer pushChan.Disconnect()

		// Live printer. The store handles the cache; this only decides what
		// reaches the terminal, deduped against our own sends.
		printer := newMessagePrinter(self.ID)
		sub := pushChan.Subscribe(push.EventMessageNew, func(data json.RawMessage) {
			var msg model.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				return
			}
			if msg.InScope(messages.ActiveChannel(), messages.ActiveRecipient(), self.ID) {
				printer.print(&msg)
			}
		})
		defer pushChan.Unsubscribe(sub)

		// Open the requested scope.
		if name, ok := strings.CutPrefix(args[0], "#"); ok {
			messages.SetActiveChannel(ctx, name)
			fmt.Printf("Joined #%s\n", name)
		} else {
			recipient, err := resolveUser(ctx, args[0])
			if err != nil {
				return err
			}
			messages.SetActiveRecipient(ctx, recipient.ID)
			fmt.Printf("Chatting with %s\n", recipient.DisplayName())
		}
		if err := messages.Err(); err != nil {
			fmt.Printf("Warning: history unavailable: %v\n", err)
		}
		for _, msg := range messages.Messages() {
			printer.print(msg)
		}
		if err := messages.MarkRead(ctx); err != nil {
			logs.Logger("chat").Printf("Mark read failed: %v", err)
		}

		// React to a logout from another terminal sharing this session.
		if changes, err := sess.Watch(ctx); err == nil {
			go func() {
				for range changes {
					if !sess.Authenticated() {
						fmt.Println("\nSession ended elsewhere, exiting")
						cancel()
						return
					}
				}
			}()
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nLeaving chat")
				return nil

			case line, ok := <-lines:
				if !ok {
					return nil
				}
				line = strings.TrimSpace(line)
				switch {
				case line == "":
					continue
				case line == "/quit":
					return nil
				case line == "/read":
					if err := messages.MarkRead(ctx); err != nil {
						fmt.Printf("Mark read failed: %v\n", err)
					}
				default:
					sent, err := messages.Send(ctx, line, nil, "")
					if err != nil {
						// Failed sends keep the input visible; nothing was
						// cached, so retyping is the whole recovery story.
						fmt.Printf("Send failed: %v\n", err)
						continue
					}
					printer.print(sent)
				}
			}
		}
	},
}

// messagePrinter prints each message id at most once, no matter whether it
// arrived via the send response or the broadcast echo first.
type messagePrinter struct {
	selfID string
	mu     sync.Mutex
	shown  map[string]bool
}

func newMessagePrinter(selfID string) *messagePrinter {
	return &messagePrinter{selfID: selfID, shown: make(map[string]bool)}
}

func (p *messagePrinter) print(msg *model.Message) {
	p.mu.Lock()
	if p.shown[msg.ID] {
		p.mu.Unlock()
		return
	}
	p.shown[msg.ID] = true
	p.mu.Unlock()

	renderMessage(msg, p.selfID)
}

// resolveUser matches the query against the roster by id, email, or name.
func resolveUser(ctx context.Context, query string) (*model.User, error) {
	users, err := client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	for _, user := range users {
		if user.ID == query ||
			strings.ToLower(user.Email) == needle ||
			strings.ToLower(user.Name) == needle {
			return user, nil
		}
	}
	return nil, fmt.Errorf("no user matching %q", query)
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
