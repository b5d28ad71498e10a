package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/crewdeck/crewdeck/internal/model"
	"github.com/crewdeck/crewdeck/internal/store"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, list, and edit board tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered",
	Long: `List tasks. All filters combine with AND.

  crewdeck task list --status todo,in_progress --priority high
  crewdeck task list --tag backend --search "flaky" --output json
  crewdeck task list --mine --overdue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		tasks := newTaskStore()
		mine, _ := cmd.Flags().GetBool("mine")

		var list []*model.Task
		if mine {
			list = tasks.FetchMy(cmd.Context())
			// /tasks/my has no server-side filter; re-filter locally.
			if !filter.IsZero() {
				list = tasks.Filter(filter, time.Now())
			}
		} else {
			list = tasks.Fetch(cmd.Context(), filter)
		}
		if err := tasks.Err(); err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		return renderTasks(list, output)
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task with comments and activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		tasks := newTaskStore()
		task := tasks.Get(cmd.Context(), args[0])
		if err := tasks.Err(); err != nil {
			return err
		}

		renderTaskDetail(task)
		return nil
	},
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Long: `Create a task. The due date takes natural language:

  crewdeck task create "Fix login redirect" --priority high --due "next friday"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		task := &model.Task{Title: args[0]}
		task.Description, _ = cmd.Flags().GetString("description")

		if status, _ := cmd.Flags().GetString("status"); status != "" {
			task.Status = model.Status(status)
			if !task.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
		}
		if priority, _ := cmd.Flags().GetString("priority"); priority != "" {
			task.Priority = model.Priority(priority)
			if !task.Priority.Valid() {
				return fmt.Errorf("unknown priority %q", priority)
			}
		}
		task.Tags, _ = cmd.Flags().GetStringSlice("tag")
		task.Assignees, _ = cmd.Flags().GetStringSlice("assignee")

		if due, _ := cmd.Flags().GetString("due"); due != "" {
			at, err := parseNaturalTime(due)
			if err != nil {
				return err
			}
			task.DueAt = at
		}

		created, err := newTaskStore().Create(cmd.Context(), task)
		if err != nil {
			return err
		}

		fmt.Printf("Created %s: %s\n", created.ID, created.Title)
		return nil
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <id> <status>",
	Short: "Move a task to another board column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		status := model.Status(args[1])
		if !status.Valid() {
			return fmt.Errorf("unknown status %q (one of: %s)", args[1], statusNames())
		}

		updated, err := newTaskStore().UpdateStatus(cmd.Context(), args[0], status)
		if err != nil {
			return err
		}

		fmt.Printf("Moved %s to %s\n", updated.ID, updated.Status)
		return nil
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit task fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		var patch model.TaskPatch
		if cmd.Flags().Changed("title") {
			title, _ := cmd.Flags().GetString("title")
			patch.Title = &title
		}
		if cmd.Flags().Changed("description") {
			desc, _ := cmd.Flags().GetString("description")
			patch.Description = &desc
		}
		if cmd.Flags().Changed("priority") {
			raw, _ := cmd.Flags().GetString("priority")
			priority := model.Priority(raw)
			if !priority.Valid() {
				return fmt.Errorf("unknown priority %q", raw)
			}
			patch.Priority = &priority
		}
		if cmd.Flags().Changed("tag") {
			tags, _ := cmd.Flags().GetStringSlice("tag")
			patch.Tags = &tags
		}
		if cmd.Flags().Changed("assignee") {
			assignees, _ := cmd.Flags().GetStringSlice("assignee")
			patch.Assignees = &assignees
		}
		if cmd.Flags().Changed("due") {
			raw, _ := cmd.Flags().GetString("due")
			at, err := parseNaturalTime(raw)
			if err != nil {
				return err
			}
			patch.DueAt = at
		}
		if patch.IsZero() {
			return fmt.Errorf("nothing to change")
		}

		updated, err := newTaskStore().Update(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}

		fmt.Printf("Updated %s\n", updated.ID)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		if err := newTaskStore().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var taskCommentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Comment on a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireAuth(cmd.Context()); err != nil {
			return err
		}

		content := strings.Join(args[1:], " ")
		updated, err := newTaskStore().AddComment(cmd.Context(), args[0], content)
		if err != nil {
			return err
		}

		fmt.Printf("Commented on %s (%d comments)\n", updated.ID, len(updated.Comments))
		return nil
	},
}

// newTaskStore builds a task store on the shared REST client.
func newTaskStore() *store.TaskStore {
	return store.NewTaskStore(client, logs.Logger("tasks"))
}

// filterFromFlags assembles a TaskFilter from the list command's flags.
func filterFromFlags(cmd *cobra.Command) (model.TaskFilter, error) {
	var filter model.TaskFilter

	statuses, _ := cmd.Flags().GetStringSlice("status")
	for _, raw := range statuses {
		status := model.Status(raw)
		if !status.Valid() {
			return filter, fmt.Errorf("unknown status %q (one of: %s)", raw, statusNames())
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	priorities, _ := cmd.Flags().GetStringSlice("priority")
	for _, raw := range priorities {
		priority := model.Priority(raw)
		if !priority.Valid() {
			return filter, fmt.Errorf("unknown priority %q", raw)
		}
		filter.Priorities = append(filter.Priorities, priority)
	}

	filter.AssigneeID, _ = cmd.Flags().GetString("assignee")
	filter.Tags, _ = cmd.Flags().GetStringSlice("tag")
	filter.Search, _ = cmd.Flags().GetString("search")
	filter.Overdue, _ = cmd.Flags().GetBool("overdue")
	return filter, nil
}

// parseNaturalTime parses "tomorrow 5pm", "next friday", and similar into a
// concrete time.
func parseNaturalTime(text string) (*time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(text, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", text, err)
	}
	if result == nil {
		return nil, fmt.Errorf("could not understand %q as a date", text)
	}
	return &result.Time, nil
}

func statusNames() string {
	names := make([]string, len(model.Statuses))
	for i, s := range model.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func init() {
	taskListCmd.Flags().StringSlice("status", nil, "Filter by status (repeatable or comma-separated)")
	taskListCmd.Flags().StringSlice("priority", nil, "Filter by priority")
	taskListCmd.Flags().String("assignee", "", "Filter by assignee user id")
	taskListCmd.Flags().StringSlice("tag", nil, "Filter by tag (all must match)")
	taskListCmd.Flags().String("search", "", "Free-text search over title and description")
	taskListCmd.Flags().Bool("overdue", false, "Only overdue tasks")
	taskListCmd.Flags().Bool("mine", false, "Only tasks assigned to me")
	taskListCmd.Flags().StringP("output", "o", "table", "Output format: table, json, yaml")

	taskCreateCmd.Flags().String("description", "", "Task description")
	taskCreateCmd.Flags().String("status", "", "Initial status (default: todo)")
	taskCreateCmd.Flags().String("priority", "", "Priority (default: medium)")
	taskCreateCmd.Flags().StringSlice("tag", nil, "Tags")
	taskCreateCmd.Flags().StringSlice("assignee", nil, "Assignee user ids")
	taskCreateCmd.Flags().String("due", "", "Due date, natural language accepted")

	taskEditCmd.Flags().String("title", "", "New title")
	taskEditCmd.Flags().String("description", "", "New description")
	taskEditCmd.Flags().String("priority", "", "New priority")
	taskEditCmd.Flags().StringSlice("tag", nil, "Replacement tag set")
	taskEditCmd.Flags().StringSlice("assignee", nil, "Replacement assignee set")
	taskEditCmd.Flags().String("due", "", "New due date, natural language accepted")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskMoveCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskCommentCmd)
	rootCmd.AddCommand(taskCmd)
}
