// Package api is the REST client for the crewdeck backend. It attaches the
// bearer credential to every call and normalizes all failure shapes into a
// single *Error, whether the failure was a non-2xx response, a transport
// error, or a body the client could not parse.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Credentials is the credential source the client reads from and, on a 401,
// clears. *session.Session satisfies it.
type Credentials interface {
	Token() string
	Clear() error
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient is the transport to use (default: plain client with no
	// request timeout; callers bound requests through their context).
	HTTPClient *http.Client

	// Logger for request activity (default: stderr logger).
	Logger *log.Logger
}

// Client is the authenticated REST client. A single failed call surfaces a
// single normalized error; the client never retries on its own.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	logger  *log.Logger
}

// NewClient creates a client using the given credential source.
func NewClient(creds Credentials, config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    httpClient,
		creds:   creds,
		logger:  logger,
	}
}

// errorBody is the failure payload the backend returns on non-2xx responses.
type errorBody struct {
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

// do performs one request. query may be nil; body is JSON-marshalled when
// non-nil; out, when non-nil, receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to encode request: %v", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("%s %s failed: %v", method, path, err)
		return &Error{Kind: KindNetwork, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	c.logger.Printf("%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(started).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.normalizeFailure(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{
			Kind:    KindServer,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("malformed response body: %v", err),
		}
	}
	return nil
}

// normalizeFailure turns a non-2xx response into an *Error. A 401 clears the
// stored credential before returning; the caller decides what re-auth looks
// like, the client only guarantees the dead token is gone.
func (c *Client) normalizeFailure(resp *http.Response) error {
	var parsed errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(data, &parsed)

	message := parsed.Message
	if message == "" {
		message = parsed.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.creds.Clear(); err != nil {
			c.logger.Printf("Failed to clear credential after 401: %v", err)
		}
	}

	return &Error{
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: message,
		Fields:  parsed.Errors,
	}
}
