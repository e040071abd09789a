package pgpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorded captures what the stub upstream saw.
type recorded struct {
	method string
	path   string
	auth   string
	custom string
	body   map[string]any
}

func newStub(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		rec.custom = r.Header.Get("X-Custom-Header")
		rec.body = nil
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, SSLValidate: true}), rec
}

func TestLogin(t *testing.T) {
	client, rec := newStub(t, 200, `{"data":{"token":"tok-123","name":"Ada"},"message":"success"}`)

	data, token, err := client.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.JSONEq(t, `{"token":"tok-123","name":"Ada"}`, string(data))

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/login", rec.path)
	assert.Empty(t, rec.auth) // login itself is unauthenticated
	assert.Equal(t, "ada@example.com", rec.body["email"])
}

func TestLoginWithoutToken(t *testing.T) {
	client, _ := newStub(t, 200, `{"data":{},"message":"success"}`)

	_, _, err := client.Login(context.Background(), "ada@example.com", "pw")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "no token")
}

func TestBearerTokenPerCall(t *testing.T) {
	client, rec := newStub(t, 200, `{"data":{}}`)

	_, err := client.GetChat(context.Background(), "tok-abc", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-abc", rec.auth)
	assert.Equal(t, "/chats/chat-1", rec.path)

	_, err = client.GetChat(context.Background(), "tok-xyz", "chat-2")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-xyz", rec.auth)
}

func TestUpstreamErrorBecomesAPIError(t *testing.T) {
	client, _ := newStub(t, 401, `{"message":"invalid token"}`)

	_, err := client.ListGroups(context.Background(), "bad")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "invalid token", apiErr.Message)
}

func TestUpstreamErrorWithoutBody(t *testing.T) {
	client, _ := newStub(t, 502, "")

	_, err := client.GetSource(context.Background(), "tok", "src-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // dead endpoint

	client := New(Options{BaseURL: srv.URL, SSLValidate: true})
	_, err := client.ListGroups(context.Background(), "tok")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestListGroups(t *testing.T) {
	client, rec := newStub(t, 200, `{"data":{"personalGroups":["mine"],"assignableGroups":["a","b"]}}`)

	groups, err := client.ListGroups(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, groups.PersonalGroups)
	assert.Equal(t, []string{"a", "b"}, groups.AssignableGroups)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/groups", rec.path)
}

func TestDeleteGroupSendsBody(t *testing.T) {
	client, rec := newStub(t, 200, `{"data":{}}`)

	_, err := client.DeleteGroup(context.Background(), "tok", "old-group")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/groups", rec.path)
	assert.Equal(t, "old-group", rec.body["groupName"])
}

func TestEditUserForwardsOnlyProvidedFields(t *testing.T) {
	client, rec := newStub(t, 200, `{"data":{}}`)

	_, err := client.EditUser(context.Background(), "tok", map[string]any{
		"email": "ada@example.com",
		"name":  "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, "/users", rec.path)
	assert.Equal(t, map[string]any{"email": "ada@example.com", "name": "Ada"}, rec.body)
}

func TestCustomHeaderForwarded(t *testing.T) {
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.custom = r.Header.Get("X-Custom-Header")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(srv.Close)

	client := New(Options{BaseURL: srv.URL, SSLValidate: true, AccessHeader: "proxy-pass"})
	_, err := client.ListSources(context.Background(), "tok", "g")
	require.NoError(t, err)
	assert.Equal(t, "proxy-pass", rec.custom)
}

func TestChatPayload(t *testing.T) {
	client, rec := newStub(t, 200, `{"data":{"chatId":"c1","answer":"hi"}}`)

	data, err := client.Chat(context.Background(), "tok", ChatRequest{
		Language:  "en",
		Question:  "hello?",
		UsePublic: false,
		Groups:    []string{"team"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chatId":"c1","answer":"hi"}`, string(data))
	assert.Equal(t, "hello?", rec.body["question"])
	assert.Equal(t, false, rec.body["usePublic"])
	assert.Equal(t, []any{"team"}, rec.body["groups"])
}
