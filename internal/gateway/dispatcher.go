// Package gateway implements the TCP transport and the command dispatcher
// shared by the TCP and MCP surfaces.
package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/config"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/pgpt"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/protocol"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/secrets"
)

// Handler executes one command. Handlers never return Go errors to the
// transport; every failure becomes a structured response.
type Handler func(ctx context.Context, req *protocol.Request) *protocol.Response

// Registry maps command names to handlers and owns the dispatch pipeline:
// feature gate, token check, handler call, panic recovery. Both the TCP
// connection loop and the MCP tool surface dispatch through it.
type Registry struct {
	cfg      *config.Config
	api      *pgpt.Client
	codec    *secrets.Codec
	log      *log.Logger
	handlers map[string]Handler
}

// NewRegistry builds the registry with every command handler registered.
func NewRegistry(cfg *config.Config, api *pgpt.Client, codec *secrets.Codec, logger *log.Logger) *Registry {
	r := &Registry{
		cfg:   cfg,
		api:   api,
		codec: codec,
		log:   logger.With("component", "dispatch"),
	}
	r.handlers = map[string]Handler{
		"login":                      r.handleLogin,
		"logout":                     r.handleLogout,
		"chat":                       r.handleChat,
		"continue_chat":              r.handleContinueChat,
		"get_chat_info":              r.handleGetChatInfo,
		"create_source":              r.handleCreateSource,
		"get_source":                 r.handleGetSource,
		"list_sources":               r.handleListSources,
		"edit_source":                r.handleEditSource,
		"delete_source":              r.handleDeleteSource,
		"list_groups":                r.handleListGroups,
		"store_group":                r.handleStoreGroup,
		"delete_group":               r.handleDeleteGroup,
		"store_user":                 r.handleStoreUser,
		"edit_user":                  r.handleEditUser,
		"delete_user":                r.handleDeleteUser,
		"oai_comp_api_chat":          r.handleCompatChat,
		"oai_comp_api_continue_chat": r.handleCompatContinueChat,
		"keygen":                     r.handleKeygen,
	}
	return r
}

// tokenExempt are the commands that run without a bearer token: login mints
// one and keygen is purely local.
var tokenExempt = map[string]bool{
	"login":  true,
	"keygen": true,
}

// Commands returns the registered command names, sorted.
func (r *Registry) Commands() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the pipeline for one request. It never panics and never
// returns nil.
func (r *Registry) Dispatch(ctx context.Context, req *protocol.Request) (resp *protocol.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panic", "command", req.Command, "panic", rec)
			resp = protocol.Error(protocol.StatusInternalError, "internal server error")
		}
	}()

	handler, ok := r.handlers[req.Command]
	if !ok {
		return protocol.Error(protocol.StatusUnknownCommand,
			fmt.Sprintf("unknown command: %s", req.Command))
	}

	if !r.enabled(req.Command) {
		return protocol.Error(protocol.StatusToolDisabled,
			fmt.Sprintf("the %s function is disabled on this server", req.Command))
	}

	if !tokenExempt[req.Command] && req.Token == "" {
		return protocol.Error(protocol.StatusMissingToken,
			"a valid token is required, please login first")
	}

	return handler(ctx, req)
}

// enabled applies the feature gate. keygen has no functions flag; it is
// controlled solely by security allow-keygen.
func (r *Registry) enabled(command string) bool {
	if command == "keygen" {
		return r.cfg.Security.AllowKeygen
	}
	return r.cfg.Functions.Enabled(command)
}

// DispatchBytes decodes a wire payload and dispatches it. Used by the TCP
// transport once a full JSON object has arrived.
func (r *Registry) DispatchBytes(ctx context.Context, data []byte) *protocol.Response {
	req, err := protocol.DecodeRequest(data)
	switch err {
	case nil:
	case protocol.ErrMissingCommand:
		return protocol.Error(protocol.StatusMissingCommand, "missing command parameter")
	default:
		return protocol.Error(protocol.StatusInvalidRequest, "invalid request")
	}
	return r.Dispatch(ctx, req)
}
