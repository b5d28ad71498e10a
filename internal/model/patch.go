package model

import "time"

// TaskPatch is a partial task update for PATCH /tasks/:id. Nil fields are
// omitted from the request and left untouched by the server.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Assignees   *[]string  `json:"assignees,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Order       *int       `json:"order,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Assignees == nil && p.Tags == nil &&
		p.StartAt == nil && p.DueAt == nil && p.Order == nil
}

// StatusPatch builds a patch that only moves a task to the given status.
func StatusPatch(status Status) TaskPatch {
	return TaskPatch{Status: &status}
}
