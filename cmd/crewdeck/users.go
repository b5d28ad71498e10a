package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/push"
	"github.com/crewdeck/crewdeck/internal/store"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Show the team roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		users, err := client.ListUsers(cmd.Context())
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "NAME", "EMAIL", "ROLE")
		for _, user := range users {
			t.Row(user.ID, user.Name, user.Email, user.Role)
		}
		fmt.Println(t)
		return nil
	},
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Show conversations and unread counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		self, err := requireAuth(cmd.Context())
		if err != nil {
			return err
		}

		// No live connection needed for a one-shot listing; a disconnected
		// channel satisfies the store's push dependency.
		pushChan := push.NewChannel(&push.Config{
			URL:    cfg.WSURL,
			Logger: logs.Logger("push"),
		})
		messages := store.NewMessageStore(client, pushChan, self.ID, &store.MessageStoreConfig{
			Logger: logs.Logger("messages"),
		})
		defer messages.Close()

		summaries := messages.RefreshConversations(cmd.Context())
		messages.RefreshUnread(cmd.Context())
		if err := messages.Err(); err != nil {
			return err
		}

		unread := messages.Unread()
		fmt.Printf("%d unread\n", unread.Total)

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("WITH", "LAST MESSAGE", "UNREAD")
		for _, summary := range summaries {
			last := ""
			if summary.LastMessage != nil {
				last = summary.LastMessage.Content
				if len(last) > 48 {
					last = last[:45] + "..."
				}
			}
			count := ""
			if summary.UnreadCount > 0 {
				count = fmt.Sprintf("%d", summary.UnreadCount)
			}
			t.Row(summary.User.DisplayName(), last, count)
		}
		fmt.Println(t)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(inboxCmd)
}
