// Package pgpt is the REST client for the PrivateGPT API. The client is
// stateless: the bearer token rides on every call and is never stored, so
// concurrent requests with different tokens cannot race on shared headers.
package pgpt

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// customHeaderName is the proxy access header forwarded upstream.
const customHeaderName = "X-Custom-Header"

// APIError is an upstream-reported failure: the HTTP round trip completed but
// the API answered with an error status. Distinct from transport errors,
// which mean no usable response arrived at all.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error (HTTP %d)", e.StatusCode)
}

// Options configure a Client.
type Options struct {
	// BaseURL is the normalized API root (".../api/v1").
	BaseURL string
	// SSLValidate controls TLS certificate verification.
	SSLValidate bool
	// Timeout bounds each HTTP call.
	Timeout time.Duration
	// AccessHeader, when non-empty, is sent as X-Custom-Header.
	AccessHeader string
	// Logger receives request/response events with credentials masked.
	Logger *log.Logger
}

// Client talks to the PrivateGPT API.
type Client struct {
	baseURL      string
	accessHeader string
	http         *http.Client
	log          *log.Logger
}

// New builds a Client from options.
func New(opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.SSLValidate {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:      opts.BaseURL,
		accessHeader: opts.AccessHeader,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: logger.With("component", "pgpt"),
	}
}

// call performs one authenticated API round trip and returns the decoded
// envelope. A non-2xx response becomes an *APIError carrying the upstream
// message; anything preventing a usable response is returned as-is.
func (c *Client) call(ctx context.Context, method, path, token string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.accessHeader != "" {
		req.Header.Set(customHeaderName, c.accessHeader)
	}

	c.log.Debug("request", "method", method, "path", path, "auth", maskToken(token))

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		// Tolerate non-envelope bodies on error paths.
		_ = json.Unmarshal(raw, &env)
	}

	c.log.Debug("response", "method", method, "path", path, "http", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &env, nil
}

// maskToken hides the credential while keeping log lines greppable.
func maskToken(token string) string {
	if token == "" {
		return "-"
	}
	return "Bearer ********"
}

// Login exchanges credentials for a token. Returns the raw data object (passed
// through to clients) and the extracted token.
func (c *Client) Login(ctx context.Context, email, password string) (json.RawMessage, string, error) {
	env, err := c.call(ctx, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, "", err
	}
	var data LoginData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		return nil, "", &APIError{StatusCode: http.StatusOK, Message: "login response carried no token"}
	}
	return env.Data, data.Token, nil
}

// Logout invalidates the token upstream.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.call(ctx, http.MethodDelete, "/logout", token, nil)
	return err
}

// Chat starts a new conversation.
func (c *Client) Chat(ctx context.Context, token string, req ChatRequest) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPost, "/chats", token, req)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ContinueChat appends a question to an existing conversation.
func (c *Client) ContinueChat(ctx context.Context, token, chatID, question string) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPatch, "/chats/"+chatID, token, ContinueChatRequest{Question: question})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetChat fetches conversation metadata and messages.
func (c *Client) GetChat(ctx context.Context, token, chatID string) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodGet, "/chats/"+chatID, token, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateSource uploads a new document.
func (c *Client) CreateSource(ctx context.Context, token string, req CreateSourceRequest) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPost, "/sources", token, req)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetSource fetches one document.
func (c *Client) GetSource(ctx context.Context, token, sourceID string) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodGet, "/sources/"+sourceID, token, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ListSources lists the documents of one group.
func (c *Client) ListSources(ctx context.Context, token, groupName string) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPost, "/sources/groups", token, map[string]string{"groupName": groupName})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// EditSource applies a partial update; payload carries only provided fields.
func (c *Client) EditSource(ctx context.Context, token, sourceID string, payload map[string]any) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPatch, "/sources/"+sourceID, token, payload)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// DeleteSource removes a document. A second delete of the same id surfaces
// the upstream not-found as an *APIError.
func (c *Client) DeleteSource(ctx context.Context, token, sourceID string) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodDelete, "/sources/"+sourceID, token, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ListGroups returns the caller's personal and assignable groups.
func (c *Client) ListGroups(ctx context.Context, token string) (*GroupsData, error) {
	env, err := c.call(ctx, http.MethodGet, "/groups", token, nil)
	if err != nil {
		return nil, err
	}
	var data GroupsData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding groups: %w", err)
	}
	return &data, nil
}

// StoreGroup creates a group.
func (c *Client) StoreGroup(ctx context.Context, token string, req StoreGroupRequest) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPost, "/groups", token, req)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// DeleteGroup removes a group. The upstream API takes the name in the body.
func (c *Client) DeleteGroup(ctx context.Context, token, groupName string) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodDelete, "/groups", token, map[string]string{"groupName": groupName})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// StoreUser creates a user account.
func (c *Client) StoreUser(ctx context.Context, token string, req StoreUserRequest) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPost, "/users", token, req)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// EditUser applies a partial user update; payload carries only provided
// fields plus the identifying email.
func (c *Client) EditUser(ctx context.Context, token string, payload map[string]any) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodPatch, "/users", token, payload)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// DeleteUser removes a user account. The email rides in the body.
func (c *Client) DeleteUser(ctx context.Context, token, email string) (json.RawMessage, error) {
	env, err := c.call(ctx, http.MethodDelete, "/users", token, map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}
