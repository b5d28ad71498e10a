// Package model provides the data structures shared by the crewdeck client:
// tasks, messages, users, and the derived projections built from them.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Status represents a task's position on the board.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// Statuses lists all valid statuses in board-column order.
var Statuses = []Status{
	StatusBacklog,
	StatusTodo,
	StatusInProgress,
	StatusInReview,
	StatusDone,
	StatusArchived,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority represents task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists all valid priorities from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Comment is a task comment. Comments are append-only: the server assigns
// IDs and timestamps, the client never edits one in place.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is a file attached to a task.
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploaderID string    `json:"uploader_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Activity is one entry in a task's audit trail.
type Activity struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a board task as returned by the backend.
//
// Order is the intra-column position: unique within a status partition,
// ties broken by creation time.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`

	Assignees []string `json:"assignees,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	StartAt *time.Time `json:"start_at,omitempty"`
	DueAt   *time.Time `json:"due_at,omitempty"`

	Order int `json:"order"`

	Comments    []Comment    `json:"comments,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Activities  []Activity   `json:"activities,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the task has usable field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	return nil
}

// SetDefaults applies defaults for optional fields on a task built locally
// before it is sent to the server.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

// IsOverdue reports whether the task has a due date in the past and is not
// yet done or archived.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueAt == nil {
		return false
	}
	if t.Status == StatusDone || t.Status == StatusArchived {
		return false
	}
	return t.DueAt.Before(now)
}

// HasAssignee reports whether userID appears in the assignee list.
func (t *Task) HasAssignee(userID string) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// TaskFilter is the predicate set accepted by task listing. The zero value
// matches every task and translates to an unfiltered server query.
type TaskFilter struct {
	Statuses   []Status
	Priorities []Priority
	AssigneeID string
	Tags       []string
	Search     string
	Overdue    bool
}

// IsZero reports whether the filter places no constraints.
func (f TaskFilter) IsZero() bool {
	return len(f.Statuses) == 0 && len(f.Priorities) == 0 &&
		f.AssigneeID == "" && len(f.Tags) == 0 && f.Search == "" && !f.Overdue
}

// Match reports whether the task satisfies every predicate in the filter.
// It mirrors the server-side query so a cached list can be re-filtered
// without a round trip.
func (f TaskFilter) Match(t *Task, now time.Time) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if f.AssigneeID != "" && !t.HasAssignee(f.AssigneeID) {
		return false
	}
	for _, tag := range f.Tags {
		if !t.HasTag(tag) {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		title := strings.ToLower(t.Title)
		desc := strings.ToLower(t.Description)
		if !strings.Contains(title, needle) && !strings.Contains(desc, needle) {
			return false
		}
	}
	if f.Overdue && !t.IsOverdue(now) {
		return false
	}
	return true
}

// Values encodes the filter as the query parameters understood by
// GET /tasks. Empty predicates are omitted.
func (f TaskFilter) Values() url.Values {
	v := url.Values{}
	if len(f.Statuses) > 0 {
		v.Set("status", joinStatuses(f.Statuses))
	}
	if len(f.Priorities) > 0 {
		v.Set("priority", joinPriorities(f.Priorities))
	}
	if f.AssigneeID != "" {
		v.Set("assignee", f.AssigneeID)
	}
	if len(f.Tags) > 0 {
		v.Set("tags", strings.Join(f.Tags, ","))
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Overdue {
		v.Set("overdue", "true")
	}
	return v
}

func containsStatus(haystack []Status, needle Status) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsPriority(haystack []Priority, needle Priority) bool {
	for _, p := range haystack {
		if p == needle {
			return true
		}
	}
	return false
}

func joinStatuses(statuses []Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func joinPriorities(priorities []Priority) string {
	parts := make([]string, len(priorities))
	for i, p := range priorities {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

// Pagination is the paging envelope returned by list endpoints.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
