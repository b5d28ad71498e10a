package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/crewdeck/crewdeck/internal/model"
)

// TaskList is the paginated envelope returned by task listing endpoints.
type TaskList struct {
	Data       []*model.Task    `json:"data"`
	Pagination model.Pagination `json:"pagination"`
}

// taskEnvelope wraps single-task responses.
type taskEnvelope struct {
	Data *model.Task `json:"data"`
}

// ListTasks fetches tasks matching the filter. A zero filter returns the
// server's default unfiltered, paginated result.
func (c *Client) ListTasks(ctx context.Context, filter model.TaskFilter) (*TaskList, error) {
	var query url.Values
	if !filter.IsZero() {
		query = filter.Values()
	}
	var out TaskList
	if err := c.do(ctx, http.MethodGet, "/tasks", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyTasks fetches tasks assigned to the current user.
func (c *Client) MyTasks(ctx context.Context) (*TaskList, error) {
	var out TaskList
	if err := c.do(ctx, http.MethodGet, "/tasks/my", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches a single task with its full comment and activity history.
func (c *Client) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateTask creates a task and returns the server's authoritative record,
// including the assigned id and column order.
func (c *Client) CreateTask(ctx context.Context, task *model.Task) (*model.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, task, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UpdateTask applies a partial update and returns the updated record.
func (c *Client) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}

// AddComment appends a comment to a task and returns the updated record.
func (c *Client) AddComment(ctx context.Context, id, content string) (*model.Task, error) {
	body := map[string]string{"content": content}
	var out taskEnvelope
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/comments", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
