// Package protocol defines the JSON envelope exchanged with gateway clients.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Request is a parsed client envelope.
type Request struct {
	Command   string          // Command name (login, chat, store_user, ...)
	Token     string          // Bearer token, empty for the bypass commands
	Arguments json.RawMessage // Raw argument object, never nil after normalization
}

// rawEnvelope covers both envelope shapes seen on the wire: the current
// {command, token, arguments} form and the legacy {command, params:{arguments}}
// form produced by older clients.
type rawEnvelope struct {
	Command   string          `json:"command"`
	Token     string          `json:"token"`
	Arguments json.RawMessage `json:"arguments"`
	Params    *struct {
		Token     string          `json:"token"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"params"`
}

var (
	// ErrInvalidRequest indicates the payload was not a JSON object.
	ErrInvalidRequest = errors.New("invalid or empty request")

	// ErrMissingCommand indicates a well-formed envelope without a command field.
	ErrMissingCommand = errors.New("missing command parameter")
)

// emptyObject is what Arguments normalizes to when a client omits them.
var emptyObject = json.RawMessage(`{}`)

// DecodeRequest parses a wire payload into a canonical Request. Both historical
// envelope shapes are accepted; arguments are normalized so handlers never see
// a nil or non-object argument set.
func DecodeRequest(data []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidRequest
	}

	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, ErrInvalidRequest
	}
	if raw.Command == "" {
		return nil, ErrMissingCommand
	}

	req := &Request{
		Command:   raw.Command,
		Token:     raw.Token,
		Arguments: raw.Arguments,
	}
	if raw.Params != nil {
		if req.Token == "" {
			req.Token = raw.Params.Token
		}
		if len(req.Arguments) == 0 {
			req.Arguments = raw.Params.Arguments
		}
	}
	if len(req.Arguments) == 0 || string(bytes.TrimSpace(req.Arguments)) == "null" {
		req.Arguments = emptyObject
	}
	return req, nil
}

// DecodeArguments unmarshals the request arguments into dst. A missing or
// empty argument object leaves dst at its zero value.
func (r *Request) DecodeArguments(dst any) error {
	return json.Unmarshal(r.Arguments, dst)
}

// Response is the outbound envelope. Every response carries Status and
// Message; Data and Content mirror the per-command payload shapes clients
// already parse.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data,omitempty"`
	Content any    `json:"content,omitempty"`
}

// Encode serializes the response newline-terminated for the wire.
func (r *Response) Encode() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		// Marshal of Response only fails on unmarshalable payloads; fall
		// back to a bare internal error rather than dropping the reply.
		data, _ = json.Marshal(&Response{Status: StatusInternalError, Message: "internal server error"})
	}
	return append(data, '\n')
}

// OK builds a plain success response.
func OK(message string) *Response {
	return &Response{Status: StatusOK, Message: message}
}

// Error builds an error response with a machine-parsable status code.
func Error(code, message string) *Response {
	return &Response{Status: code, Message: message}
}
