// Package tools exposes the gateway commands as MCP tools. Every tool
// delegates to the same dispatch registry the TCP transport uses, so the two
// surfaces cannot drift apart.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/gateway"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/protocol"
)

// GatewayTools wraps the dispatch registry for MCP tool handlers.
type GatewayTools struct {
	registry *gateway.Registry
}

// NewGatewayTools creates the tool wrapper.
func NewGatewayTools(registry *gateway.Registry) *GatewayTools {
	return &GatewayTools{registry: registry}
}

// Output is the common tool result shape, mirroring the wire envelope.
type Output struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data,omitempty"`
	Content any    `json:"content,omitempty"`
}

// dispatch converts a typed tool input into a gateway request. The token
// field rides inside the input struct and is lifted out; everything else
// becomes the argument object.
func (gt *GatewayTools) dispatch(ctx context.Context, command string, input any) (*mcp.CallToolResult, Output, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return errorResult(fmt.Sprintf("encoding arguments: %v", err)), Output{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return errorResult(fmt.Sprintf("encoding arguments: %v", err)), Output{}, nil
	}

	var token string
	if rawToken, ok := fields["token"]; ok {
		_ = json.Unmarshal(rawToken, &token)
		delete(fields, "token")
	}
	args, _ := json.Marshal(fields)

	resp := gt.registry.Dispatch(ctx, &protocol.Request{
		Command:   command,
		Token:     token,
		Arguments: args,
	})

	out := Output{
		Status:  resp.Status,
		Message: resp.Message,
		Token:   resp.Token,
		Data:    resp.Data,
		Content: resp.Content,
	}
	if resp.Status != protocol.StatusOK {
		return errorResult(fmt.Sprintf("[%s] %s", resp.Status, resp.Message)), out, nil
	}
	return nil, out, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// addTool registers one typed tool handler that dispatches through the
// registry under the given command name.
func addTool[In any](server *mcp.Server, gt *GatewayTools, name, description string) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Output, error) {
		return gt.dispatch(ctx, name, input)
	})
}

// Tool input types. Token is part of each authenticated input because the
// gateway is stateless; MCP clients hold the token between calls.

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenInput struct {
	Token string `json:"token"`
}

type ChatInput struct {
	Token     string   `json:"token"`
	Question  string   `json:"question"`
	UsePublic bool     `json:"usePublic,omitempty"`
	Groups    []string `json:"groups,omitempty"`
	Language  string   `json:"language,omitempty"`
}

type ContinueChatInput struct {
	Token    string `json:"token"`
	ChatID   string `json:"chatId"`
	Question string `json:"question"`
}

type ChatInfoInput struct {
	Token  string `json:"token"`
	ChatID string `json:"chatId"`
}

type CreateSourceInput struct {
	Token   string   `json:"token"`
	Name    string   `json:"name"`
	Content string   `json:"content"`
	Groups  []string `json:"groups,omitempty"`
}

type SourceInput struct {
	Token    string `json:"token"`
	SourceID string `json:"sourceId"`
}

type ListSourcesInput struct {
	Token     string `json:"token"`
	GroupName string `json:"groupName"`
}

type EditSourceInput struct {
	Token    string    `json:"token"`
	SourceID string    `json:"sourceId"`
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Groups   *[]string `json:"groups,omitempty"`
}

type StoreGroupInput struct {
	Token       string `json:"token"`
	GroupName   string `json:"groupName"`
	Description string `json:"description,omitempty"`
}

type DeleteGroupInput struct {
	Token     string `json:"token"`
	GroupName string `json:"groupName"`
}

type StoreUserInput struct {
	Token       string   `json:"token"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Language    string   `json:"language,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	UsePublic   bool     `json:"usePublic,omitempty"`
	ActivateFtp bool     `json:"activateFtp,omitempty"`
	FtpPassword string   `json:"ftpPassword,omitempty"`
}

type EditUserInput struct {
	Token       string    `json:"token"`
	Email       string    `json:"email"`
	Name        *string   `json:"name,omitempty"`
	Password    *string   `json:"password,omitempty"`
	Language    *string   `json:"language,omitempty"`
	Timezone    *string   `json:"timezone,omitempty"`
	Roles       *[]string `json:"roles,omitempty"`
	Groups      *[]string `json:"groups,omitempty"`
	UsePublic   *bool     `json:"usePublic,omitempty"`
	ActivateFtp *bool     `json:"activateFtp,omitempty"`
	FtpPassword *string   `json:"ftpPassword,omitempty"`
}

type DeleteUserInput struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type KeygenInput struct {
	Password string `json:"password"`
}

// RegisterGatewayTools adds one MCP tool per gateway command.
func RegisterGatewayTools(server *mcp.Server, gt *GatewayTools) {
	addTool[LoginInput](server, gt, "login",
		"Authenticate against the PrivateGPT backend and obtain a bearer token for the other tools.")
	addTool[TokenInput](server, gt, "logout",
		"Invalidate a bearer token.")

	addTool[ChatInput](server, gt, "chat",
		`Start a new chat. Set usePublic to search the public space or groups to search group documents; when both are set the configured precedence decides.
Example: chat {token: "...", question: "What is in the Q3 report?", groups: ["finance"]}`)
	addTool[ContinueChatInput](server, gt, "continue_chat",
		"Ask a follow-up question in an existing chat.")
	addTool[ChatInfoInput](server, gt, "get_chat_info",
		"Fetch metadata and messages of an existing chat.")

	addTool[CreateSourceInput](server, gt, "create_source",
		"Upload a markdown document. Requested groups are validated against the caller's assignable groups before the upload runs.")
	addTool[SourceInput](server, gt, "get_source",
		"Fetch one document by id.")
	addTool[ListSourcesInput](server, gt, "list_sources",
		"List the documents of one group.")
	addTool[EditSourceInput](server, gt, "edit_source",
		"Update a document. Only the provided fields change.")
	addTool[SourceInput](server, gt, "delete_source",
		"Delete a document by id.")

	addTool[TokenInput](server, gt, "list_groups",
		"List the caller's personal and assignable groups.")
	addTool[StoreGroupInput](server, gt, "store_group",
		"Create a group.")
	addTool[DeleteGroupInput](server, gt, "delete_group",
		"Delete a group by name.")

	addTool[StoreUserInput](server, gt, "store_user",
		"Create a user account. Unset fields get the server defaults.")
	addTool[EditUserInput](server, gt, "edit_user",
		"Update a user account identified by email. Only the provided fields change.")
	addTool[DeleteUserInput](server, gt, "delete_user",
		"Delete a user account by email.")

	addTool[ChatInput](server, gt, "oai_comp_api_chat",
		"Chat via the OpenAI-compatible surface. Requires the openai-compat-api flag.")
	addTool[ContinueChatInput](server, gt, "oai_comp_api_continue_chat",
		"Continue a chat via the OpenAI-compatible surface. Requires the openai-compat-api flag.")

	addTool[KeygenInput](server, gt, "keygen",
		"Encrypt a password with the server public key. Requires allow-keygen.")
}
