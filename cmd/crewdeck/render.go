package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"

	"github.com/crewdeck/crewdeck/internal/model"
)

// Colors pick up the terminal background so the board stays readable on
// both light and dark themes.
var (
	accentColor = pickColor("63", "57")
	faintColor  = pickColor("243", "248")
	urgentColor = pickColor("204", "161")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	faintStyle  = lipgloss.NewStyle().Foreground(faintColor)
	urgentStyle = lipgloss.NewStyle().Bold(true).Foreground(urgentColor)
)

func pickColor(dark, light string) lipgloss.Color {
	if termenv.HasDarkBackground() {
		return lipgloss.Color(dark)
	}
	return lipgloss.Color(light)
}

// renderTasks prints a task list in the requested format.
func renderTasks(tasks []*model.Task, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode tasks: %w", err)
		}
		fmt.Println(string(data))
		return nil

	case "yaml":
		data, err := yaml.Marshal(tasks)
		if err != nil {
			return fmt.Errorf("failed to encode tasks: %w", err)
		}
		fmt.Print(string(data))
		return nil

	case "table":
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "TITLE", "STATUS", "PRIORITY", "DUE", "TAGS")
		now := time.Now()
		for _, task := range tasks {
			t.Row(task.ID, task.Title, string(task.Status),
				renderPriority(task.Priority), renderDue(task, now),
				strings.Join(task.Tags, ","))
		}
		fmt.Println(t)
		return nil

	default:
		return fmt.Errorf("unknown output format %q (table, json, yaml)", format)
	}
}

// renderTaskDetail prints one task with its comments and activity trail.
func renderTaskDetail(task *model.Task) {
	fmt.Println(headerStyle.Render(task.Title))
	fmt.Printf("%s  %s / %s\n", task.ID, task.Status, renderPriority(task.Priority))
	if task.Description != "" {
		fmt.Println(task.Description)
	}
	if len(task.Assignees) > 0 {
		fmt.Printf("Assignees: %s\n", strings.Join(task.Assignees, ", "))
	}
	if len(task.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(task.Tags, ", "))
	}
	if task.DueAt != nil {
		fmt.Printf("Due: %s\n", task.DueAt.Local().Format("Mon Jan 2 15:04"))
	}

	if len(task.Comments) > 0 {
		fmt.Println(headerStyle.Render("Comments"))
		for _, comment := range task.Comments {
			fmt.Printf("  %s %s: %s\n",
				faintStyle.Render(comment.CreatedAt.Local().Format("Jan 2 15:04")),
				comment.AuthorID, comment.Content)
		}
	}
	if len(task.Activities) > 0 {
		fmt.Println(headerStyle.Render("Activity"))
		for _, activity := range task.Activities {
			line := activity.Action
			if activity.Detail != "" {
				line += " " + activity.Detail
			}
			fmt.Printf("  %s %s %s\n",
				faintStyle.Render(activity.CreatedAt.Local().Format("Jan 2 15:04")),
				activity.ActorID, line)
		}
	}
}

func renderPriority(p model.Priority) string {
	if p == model.PriorityUrgent {
		return urgentStyle.Render(string(p))
	}
	return string(p)
}

func renderDue(task *model.Task, now time.Time) string {
	if task.DueAt == nil {
		return ""
	}
	due := task.DueAt.Local().Format("Jan 2")
	if task.IsOverdue(now) {
		return urgentStyle.Render(due + "!")
	}
	return due
}

// renderMessage prints one chat line.
func renderMessage(msg *model.Message, selfID string) {
	sender := msg.SenderID
	if sender == selfID {
		sender = "you"
	}
	fmt.Printf("%s %s: %s\n",
		faintStyle.Render(msg.CreatedAt.Local().Format("15:04")),
		headerStyle.Render(sender), msg.Content)
}
