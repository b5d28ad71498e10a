package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/crewdeck/crewdeck/internal/model"
)

// ListUsers fetches the team roster.
func (c *Client) ListUsers(ctx context.Context) ([]*model.User, error) {
	var out struct {
		Data []*model.User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, id string) (*model.User, error) {
	var out struct {
		Data *model.User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
