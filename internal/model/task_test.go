package model

import (
	"testing"
	"time"
)

func sampleTask(id string, status Status, priority Priority) *Task {
	return &Task{
		ID:        id,
		Title:     "Write release notes",
		Status:    status,
		Priority:  priority,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestTaskValidate(t *testing.T) {
	task := sampleTask("t-1", StatusTodo, PriorityHigh)
	if err := task.Validate(); err != nil {
		t.Fatalf("Valid task rejected: %v", err)
	}

	task.Status = "doing"
	if err := task.Validate(); err == nil {
		t.Error("Expected error for unknown status")
	}

	task.Status = StatusTodo
	task.Title = ""
	if err := task.Validate(); err == nil {
		t.Error("Expected error for empty title")
	}
}

func TestTaskSetDefaults(t *testing.T) {
	task := &Task{Title: "x"}
	task.SetDefaults()

	if task.Status != StatusTodo {
		t.Errorf("Expected default status todo, got %s", task.Status)
	}
	if task.Priority != PriorityMedium {
		t.Errorf("Expected default priority medium, got %s", task.Priority)
	}
	if task.Tags == nil {
		t.Error("Expected tags to default to empty slice")
	}
}

func TestFilterByStatus(t *testing.T) {
	now := time.Now()
	task := sampleTask("t-1", StatusTodo, PriorityHigh)

	if !(TaskFilter{Statuses: []Status{StatusTodo}}).Match(task, now) {
		t.Error("Filter by status todo should include a todo task")
	}
	if (TaskFilter{Statuses: []Status{StatusDone}}).Match(task, now) {
		t.Error("Filter by status done should exclude a todo task")
	}
	if !(TaskFilter{}).Match(task, now) {
		t.Error("Empty filter should match everything")
	}
}

func TestFilterPredicatesCombine(t *testing.T) {
	now := time.Now()
	due := now.Add(-time.Hour)
	task := &Task{
		ID:          "t-2",
		Title:       "Fix login redirect",
		Description: "401 loops back to /login forever",
		Status:      StatusInProgress,
		Priority:    PriorityUrgent,
		Assignees:   []string{"u-7"},
		Tags:        []string{"auth", "frontend"},
		DueAt:       &due,
		CreatedAt:   now,
	}

	filter := TaskFilter{
		Statuses:   []Status{StatusInProgress},
		Priorities: []Priority{PriorityUrgent},
		AssigneeID: "u-7",
		Tags:       []string{"auth"},
		Search:     "LOGIN",
		Overdue:    true,
	}
	if !filter.Match(task, now) {
		t.Error("All-predicate filter should match")
	}

	filter.Tags = []string{"auth", "backend"}
	if filter.Match(task, now) {
		t.Error("Missing tag should exclude the task")
	}
}

func TestFilterSearchCoversDescription(t *testing.T) {
	now := time.Now()
	task := sampleTask("t-3", StatusTodo, PriorityLow)
	task.Description = "needs pagination"

	if !(TaskFilter{Search: "pagination"}).Match(task, now) {
		t.Error("Search should cover the description")
	}
	if (TaskFilter{Search: "unrelated"}).Match(task, now) {
		t.Error("Search miss should exclude the task")
	}
}

func TestFilterValues(t *testing.T) {
	filter := TaskFilter{
		Statuses:   []Status{StatusTodo, StatusDone},
		Priorities: []Priority{PriorityHigh},
		AssigneeID: "u-1",
		Tags:       []string{"a", "b"},
		Search:     "notes",
		Overdue:    true,
	}

	v := filter.Values()
	if got := v.Get("status"); got != "todo,done" {
		t.Errorf("status = %q, want todo,done", got)
	}
	if got := v.Get("priority"); got != "high" {
		t.Errorf("priority = %q, want high", got)
	}
	if got := v.Get("tags"); got != "a,b" {
		t.Errorf("tags = %q, want a,b", got)
	}
	if got := v.Get("overdue"); got != "true" {
		t.Errorf("overdue = %q, want true", got)
	}

	if len((TaskFilter{}).Values()) != 0 {
		t.Error("Zero filter should encode no parameters")
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	task := sampleTask("t-4", StatusTodo, PriorityLow)
	task.DueAt = &past
	if !task.IsOverdue(now) {
		t.Error("Past due date on an open task should be overdue")
	}

	task.Status = StatusDone
	if task.IsOverdue(now) {
		t.Error("Done tasks are never overdue")
	}

	task.Status = StatusTodo
	task.DueAt = nil
	if task.IsOverdue(now) {
		t.Error("No due date means not overdue")
	}
}

func TestMessageInScope(t *testing.T) {
	channelMsg := &Message{ID: "m-1", Channel: "general", SenderID: "u-2"}

	if !channelMsg.InScope("general", "", "u-1") {
		t.Error("Channel message should be in scope for its channel")
	}
	if channelMsg.InScope("random", "", "u-1") {
		t.Error("Channel message should be out of scope for another channel")
	}
	if channelMsg.InScope("", "u-2", "u-1") {
		t.Error("Channel message should be out of scope in a direct conversation")
	}

	inbound := &Message{ID: "m-2", SenderID: "u-2", RecipientID: "u-1"}
	if !inbound.InScope("", "u-2", "u-1") {
		t.Error("DM from the active partner should be in scope")
	}
	if inbound.InScope("", "u-3", "u-1") {
		t.Error("DM from someone else should be out of scope")
	}

	// Our own message echoed back while chatting with u-2.
	outbound := &Message{ID: "m-3", SenderID: "u-1", RecipientID: "u-2"}
	if !outbound.InScope("", "u-2", "u-1") {
		t.Error("Own echoed DM should be in scope")
	}
}
