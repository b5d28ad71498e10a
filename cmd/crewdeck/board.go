package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/model"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the Kanban board",
	Long: `Show the task board as columns, one per status, each column in its
server-side order. Archived tasks are hidden unless --all is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		tasks := newTaskStore()
		tasks.Fetch(cmd.Context(), model.TaskFilter{})
		if err := tasks.Err(); err != nil {
			return err
		}

		showAll, _ := cmd.Flags().GetBool("all")
		columns := tasks.Columns()

		columnStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faintColor).
			Padding(0, 1).
			Width(28)

		var rendered []string
		for _, status := range model.Statuses {
			if status == model.StatusArchived && !showAll {
				continue
			}
			cards := columns[status]

			body := headerStyle.Render(fmt.Sprintf("%s (%d)", status, len(cards)))
			for _, task := range cards {
				body += "\n\n" + task.Title + "\n" +
					faintStyle.Render(task.ID+" · "+renderPriority(task.Priority))
			}
			rendered = append(rendered, columnStyle.Render(body))
		}

		fmt.Println(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
		return nil
	},
}

func init() {
	boardCmd.Flags().Bool("all", false, "Include the archived column")
	rootCmd.AddCommand(boardCmd)
}
