package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/config"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/pgpt"
	"github.com/tobiasbaur/MCP-Server-for-MAS-Developments-sub000/internal/protocol"
)

// StringList tolerates both JSON shapes clients send for group lists: a bare
// string and an array of strings.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

// upstreamFail maps an upstream call failure to a response: an API-reported
// error keeps the upstream message, anything else means no usable response
// arrived.
func upstreamFail(err error, failedCode, noResponseCode, action string) *protocol.Response {
	var apiErr *pgpt.APIError
	if errors.As(err, &apiErr) {
		return protocol.Error(failedCode, fmt.Sprintf("%s failed: %s", action, apiErr.Message))
	}
	return protocol.Error(noResponseCode, fmt.Sprintf("no response from server during %s", action))
}

// password returns the usable plaintext password. With pw-encryption on, the
// client value must decrypt; the crypto error is never echoed back.
func (r *Registry) password(encoded string) (string, error) {
	if !r.cfg.Security.PwEncryption {
		return encoded, nil
	}
	return r.codec.Decrypt(encoded)
}

// login

type loginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *Registry) handleLogin(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args loginArgs
	if err := req.DecodeArguments(&args); err != nil || args.Email == "" || args.Password == "" {
		return protocol.Error(protocol.StatusLoginMissingCredentials, "email and password are required")
	}

	password, err := r.password(args.Password)
	if err != nil {
		return protocol.Error(protocol.StatusLoginFailed, "decryption failed")
	}

	data, token, err := r.api.Login(ctx, args.Email, password)
	if err != nil {
		return upstreamFail(err, protocol.StatusLoginFailed, protocol.StatusLoginFailed, "login")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "login successful",
		Token:   token,
		Data:    json.RawMessage(data),
	}
}

// logout

func (r *Registry) handleLogout(ctx context.Context, req *protocol.Request) *protocol.Response {
	if err := r.api.Logout(ctx, req.Token); err != nil {
		return upstreamFail(err, protocol.StatusLogoutFailed, protocol.StatusLogoutFailed, "logout")
	}
	return protocol.OK("logout successful")
}

// chat family

type chatArgs struct {
	Question  string     `json:"question"`
	UsePublic bool       `json:"usePublic"`
	Groups    StringList `json:"groups"`
	Language  string     `json:"language"`
}

// chatContent is the normalized payload both chat commands return. Sources is
// always present, empty when the upstream answer carries none.
type chatContent struct {
	ChatID  string            `json:"chatId"`
	Answer  string            `json:"answer"`
	Sources []json.RawMessage `json:"sources"`
}

func shapeChatContent(data json.RawMessage) chatContent {
	var c chatContent
	_ = json.Unmarshal(data, &c)
	if c.Sources == nil {
		c.Sources = []json.RawMessage{}
	}
	return c
}

// chatRequest applies the defaults and the group-precedence policy: a request
// that sets both usePublic and groups is contradictory, and the configured
// side wins.
func (r *Registry) chatRequest(args chatArgs) pgpt.ChatRequest {
	language := args.Language
	if language == "" {
		language = r.cfg.Server.Language
	}
	usePublic := args.UsePublic
	groups := []string(args.Groups)
	if usePublic && len(groups) > 0 {
		if r.cfg.Restrictions.GroupPrecedence == config.PrecedencePublic {
			groups = nil
		} else {
			usePublic = false
		}
	}
	if groups == nil {
		groups = []string{}
	}
	return pgpt.ChatRequest{
		Language:  language,
		Question:  args.Question,
		UsePublic: usePublic,
		Groups:    groups,
	}
}

func (r *Registry) chat(ctx context.Context, req *protocol.Request, missingCode, failedCode string) *protocol.Response {
	var args chatArgs
	if err := req.DecodeArguments(&args); err != nil || args.Question == "" {
		return protocol.Error(missingCode, "question is required")
	}

	data, err := r.api.Chat(ctx, req.Token, r.chatRequest(args))
	if err != nil {
		return upstreamFail(err, failedCode, failedCode, "chat")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "chat started",
		Content: shapeChatContent(data),
	}
}

func (r *Registry) handleChat(ctx context.Context, req *protocol.Request) *protocol.Response {
	return r.chat(ctx, req, protocol.StatusChatMissingQuestion, protocol.StatusChatFailed)
}

func (r *Registry) handleCompatChat(ctx context.Context, req *protocol.Request) *protocol.Response {
	return r.chat(ctx, req, protocol.StatusCompatChatMissingToken, protocol.StatusCompatChatFailed)
}

type continueChatArgs struct {
	ChatID   string `json:"chatId"`
	Question string `json:"question"`
}

func (r *Registry) continueChat(ctx context.Context, req *protocol.Request, missingCode, failedCode string) *protocol.Response {
	var args continueChatArgs
	if err := req.DecodeArguments(&args); err != nil || args.ChatID == "" || args.Question == "" {
		return protocol.Error(missingCode, "chatId and question are required")
	}

	data, err := r.api.ContinueChat(ctx, req.Token, args.ChatID, args.Question)
	if err != nil {
		return upstreamFail(err, failedCode, failedCode, "continue chat")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "chat continued",
		Content: shapeChatContent(data),
	}
}

func (r *Registry) handleContinueChat(ctx context.Context, req *protocol.Request) *protocol.Response {
	return r.continueChat(ctx, req, protocol.StatusContinueChatMissingParams, protocol.StatusContinueChatFailed)
}

func (r *Registry) handleCompatContinueChat(ctx context.Context, req *protocol.Request) *protocol.Response {
	return r.continueChat(ctx, req, protocol.StatusCompatContinueMissing, protocol.StatusCompatContinueFailed)
}

type chatInfoArgs struct {
	ChatID string `json:"chatId"`
}

func (r *Registry) handleGetChatInfo(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args chatInfoArgs
	if err := req.DecodeArguments(&args); err != nil || args.ChatID == "" {
		return protocol.Error(protocol.StatusChatInfoMissingID, "chatId is required")
	}

	data, err := r.api.GetChat(ctx, req.Token, args.ChatID)
	if err != nil {
		return upstreamFail(err, protocol.StatusChatInfoFailed, protocol.StatusChatInfoFailed, "chat info")
	}
	// An empty data object is a distinct outcome: the call worked but the
	// chat carries nothing to show.
	if isEmptyData(data) {
		return protocol.Error(protocol.StatusChatInfoNoData, "no chat information available")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "chat info retrieved",
		Content: json.RawMessage(data),
	}
}

func isEmptyData(data json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(data))
	return trimmed == "" || trimmed == "null" || trimmed == "{}" || trimmed == "[]"
}

// sources

type createSourceArgs struct {
	Name    string     `json:"name"`
	Content string     `json:"content"`
	Groups  StringList `json:"groups"`
}

func (r *Registry) handleCreateSource(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args createSourceArgs
	if err := req.DecodeArguments(&args); err != nil || args.Name == "" || args.Content == "" {
		return protocol.Error(protocol.StatusCreateSourceMissingParams, "name and content are required")
	}

	// Requested groups must exist and be assignable before the upload runs,
	// so a typo doesn't create an orphaned document.
	if len(args.Groups) > 0 {
		groups, err := r.api.ListGroups(ctx, req.Token)
		if err != nil {
			return upstreamFail(err, protocol.StatusCreateSourceInternal, protocol.StatusCreateSourceInternal, "group validation")
		}
		assignable := make(map[string]bool, len(groups.AssignableGroups))
		for _, g := range groups.AssignableGroups {
			assignable[g] = true
		}
		var invalid []string
		for _, g := range args.Groups {
			if !assignable[g] {
				invalid = append(invalid, g)
			}
		}
		if len(invalid) > 0 {
			return protocol.Error(protocol.StatusCreateSourceInvalidGroups,
				fmt.Sprintf("invalid groups: %s", strings.Join(invalid, ", ")))
		}
	}

	data, err := r.api.CreateSource(ctx, req.Token, pgpt.CreateSourceRequest{
		Name:    args.Name,
		Content: args.Content,
		Groups:  args.Groups,
	})
	if err != nil {
		return upstreamFail(err, protocol.StatusCreateSourceFailed, protocol.StatusCreateSourceNoResponse, "source creation")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "source created",
		Data:    json.RawMessage(data),
	}
}

type sourceIDArgs struct {
	SourceID string `json:"sourceId"`
}

func (r *Registry) handleGetSource(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args sourceIDArgs
	if err := req.DecodeArguments(&args); err != nil || args.SourceID == "" {
		return protocol.Error(protocol.StatusGetSourceMissingID, "sourceId is required")
	}

	data, err := r.api.GetSource(ctx, req.Token, args.SourceID)
	if err != nil {
		return upstreamFail(err, protocol.StatusGetSourceFailed, protocol.StatusGetSourceFailed, "source retrieval")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "source retrieved",
		Data:    json.RawMessage(data),
	}
}

type listSourcesArgs struct {
	GroupName string `json:"groupName"`
}

func (r *Registry) handleListSources(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args listSourcesArgs
	if err := req.DecodeArguments(&args); err != nil || args.GroupName == "" {
		return protocol.Error(protocol.StatusListSourcesMissingGroup, "groupName is required")
	}

	data, err := r.api.ListSources(ctx, req.Token, args.GroupName)
	if err != nil {
		return upstreamFail(err, protocol.StatusListSourcesFailed, protocol.StatusListSourcesFailed, "source listing")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "sources listed",
		Data:    json.RawMessage(data),
	}
}

type editSourceArgs struct {
	SourceID string      `json:"sourceId"`
	Title    *string     `json:"title"`
	Content  *string     `json:"content"`
	Groups   *StringList `json:"groups"`
}

func (r *Registry) handleEditSource(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args editSourceArgs
	if err := req.DecodeArguments(&args); err != nil || args.SourceID == "" {
		return protocol.Error(protocol.StatusEditSourceMissingID, "sourceId is required")
	}

	// Partial update: only fields the client actually sent go upstream.
	payload := map[string]any{}
	if args.Title != nil {
		payload["title"] = *args.Title
	}
	if args.Content != nil {
		payload["content"] = *args.Content
	}
	if args.Groups != nil {
		payload["groups"] = []string(*args.Groups)
	}

	data, err := r.api.EditSource(ctx, req.Token, args.SourceID, payload)
	if err != nil {
		return upstreamFail(err, protocol.StatusEditSourceFailed, protocol.StatusEditSourceFailed, "source update")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "source updated",
		Data:    json.RawMessage(data),
	}
}

func (r *Registry) handleDeleteSource(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args sourceIDArgs
	if err := req.DecodeArguments(&args); err != nil || args.SourceID == "" {
		return protocol.Error(protocol.StatusDeleteSourceMissingID, "sourceId is required")
	}

	data, err := r.api.DeleteSource(ctx, req.Token, args.SourceID)
	if err != nil {
		return upstreamFail(err, protocol.StatusDeleteSourceFailed, protocol.StatusDeleteSourceFailed, "source deletion")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "source deleted",
		Data:    json.RawMessage(data),
	}
}

// groups

func (r *Registry) handleListGroups(ctx context.Context, req *protocol.Request) *protocol.Response {
	groups, err := r.api.ListGroups(ctx, req.Token)
	if err != nil {
		return upstreamFail(err, protocol.StatusListGroupsFailed, protocol.StatusListGroupsUnknown, "group listing")
	}

	assignable := groups.AssignableGroups
	if r.cfg.Restrictions.RestrictedGroups {
		// The mask keeps the field's list shape; clients decode a string array.
		assignable = []string{protocol.NoAccessSentinel}
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "groups listed",
		Data: map[string]any{
			"personalGroups":   groups.PersonalGroups,
			"assignableGroups": assignable,
		},
	}
}

type storeGroupArgs struct {
	GroupName   string `json:"groupName"`
	Description string `json:"description"`
}

func (r *Registry) handleStoreGroup(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args storeGroupArgs
	if err := req.DecodeArguments(&args); err != nil || args.GroupName == "" {
		return protocol.Error(protocol.StatusStoreGroupMissingName, "groupName is required")
	}

	data, err := r.api.StoreGroup(ctx, req.Token, pgpt.StoreGroupRequest{
		GroupName:   args.GroupName,
		Description: args.Description,
	})
	if err != nil {
		return upstreamFail(err, protocol.StatusStoreGroupFailed, protocol.StatusStoreGroupFailed, "group creation")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "group created",
		Data:    json.RawMessage(data),
	}
}

type deleteGroupArgs struct {
	GroupName string `json:"groupName"`
}

func (r *Registry) handleDeleteGroup(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args deleteGroupArgs
	if err := req.DecodeArguments(&args); err != nil || args.GroupName == "" {
		return protocol.Error(protocol.StatusDeleteGroupMissingName, "groupName is required")
	}

	data, err := r.api.DeleteGroup(ctx, req.Token, args.GroupName)
	if err != nil {
		return upstreamFail(err, protocol.StatusDeleteGroupFailed, protocol.StatusDeleteGroupFailed, "group deletion")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "group deleted",
		Data:    json.RawMessage(data),
	}
}

// users

type storeUserArgs struct {
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Language    string     `json:"language"`
	Timezone    string     `json:"timezone"`
	Roles       StringList `json:"roles"`
	Groups      StringList `json:"groups"`
	UsePublic   bool       `json:"usePublic"`
	ActivateFtp bool       `json:"activateFtp"`
	FtpPassword string     `json:"ftpPassword"`
}

func (r *Registry) handleStoreUser(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args storeUserArgs
	if err := req.DecodeArguments(&args); err != nil || args.Name == "" || args.Email == "" || args.Password == "" {
		return protocol.Error(protocol.StatusStoreUserMissingParams, "name, email and password are required")
	}

	password, err := r.password(args.Password)
	if err != nil {
		return protocol.Error(protocol.StatusStoreUserFailed, "decryption failed")
	}

	user := pgpt.StoreUserRequest{
		Name:        args.Name,
		Email:       args.Email,
		Password:    password,
		Language:    args.Language,
		Timezone:    args.Timezone,
		Roles:       args.Roles,
		Groups:      args.Groups,
		UsePublic:   args.UsePublic,
		ActivateFtp: args.ActivateFtp,
		FtpPassword: args.FtpPassword,
	}
	if user.Language == "" {
		user.Language = "en"
	}
	if user.Timezone == "" {
		user.Timezone = "Europe/Berlin"
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	if user.Groups == nil {
		user.Groups = []string{}
	}

	data, err := r.api.StoreUser(ctx, req.Token, user)
	if err != nil {
		return upstreamFail(err, protocol.StatusStoreUserFailed, protocol.StatusStoreUserFailed, "user creation")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "user created",
		Data:    json.RawMessage(data),
	}
}

type editUserArgs struct {
	Email       string      `json:"email"`
	Name        *string     `json:"name"`
	Password    *string     `json:"password"`
	Language    *string     `json:"language"`
	Timezone    *string     `json:"timezone"`
	Roles       *StringList `json:"roles"`
	Groups      *StringList `json:"groups"`
	UsePublic   *bool       `json:"usePublic"`
	ActivateFtp *bool       `json:"activateFtp"`
	FtpPassword *string     `json:"ftpPassword"`
}

func (r *Registry) handleEditUser(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args editUserArgs
	if err := req.DecodeArguments(&args); err != nil || args.Email == "" {
		return protocol.Error(protocol.StatusEditUserMissingEmail, "email is required")
	}

	payload := map[string]any{"email": args.Email}
	if args.Name != nil {
		payload["name"] = *args.Name
	}
	if args.Password != nil {
		password, err := r.password(*args.Password)
		if err != nil {
			return protocol.Error(protocol.StatusEditUserFailed, "decryption failed")
		}
		payload["password"] = password
	}
	if args.Language != nil {
		payload["language"] = *args.Language
	}
	if args.Timezone != nil {
		payload["timezone"] = *args.Timezone
	}
	if args.Roles != nil {
		payload["roles"] = []string(*args.Roles)
	}
	if args.Groups != nil {
		payload["groups"] = []string(*args.Groups)
	}
	if args.UsePublic != nil {
		payload["usePublic"] = *args.UsePublic
	}
	if args.ActivateFtp != nil {
		payload["activateFtp"] = *args.ActivateFtp
	}
	if args.FtpPassword != nil {
		payload["ftpPassword"] = *args.FtpPassword
	}

	data, err := r.api.EditUser(ctx, req.Token, payload)
	if err != nil {
		return upstreamFail(err, protocol.StatusEditUserFailed, protocol.StatusEditUserFailed, "user update")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "user updated",
		Data:    json.RawMessage(data),
	}
}

type deleteUserArgs struct {
	Email string `json:"email"`
}

func (r *Registry) handleDeleteUser(ctx context.Context, req *protocol.Request) *protocol.Response {
	var args deleteUserArgs
	if err := req.DecodeArguments(&args); err != nil || args.Email == "" {
		return protocol.Error(protocol.StatusDeleteUserMissingEmail, "email is required")
	}

	data, err := r.api.DeleteUser(ctx, req.Token, args.Email)
	if err != nil {
		return upstreamFail(err, protocol.StatusDeleteUserFailed, protocol.StatusDeleteUserFailed, "user deletion")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "user deleted",
		Data:    json.RawMessage(data),
	}
}

// keygen

type keygenArgs struct {
	Password string `json:"password"`
}

func (r *Registry) handleKeygen(_ context.Context, req *protocol.Request) *protocol.Response {
	var args keygenArgs
	if err := req.DecodeArguments(&args); err != nil || args.Password == "" {
		return protocol.Error(protocol.StatusKeygenFailed, "password is required")
	}
	if r.codec == nil || !r.codec.CanEncrypt() {
		return protocol.Error(protocol.StatusKeygenFailed, "no public key configured")
	}

	encrypted, err := r.codec.Encrypt(args.Password)
	if err != nil {
		return protocol.Error(protocol.StatusKeygenFailed, "encryption failed")
	}
	return &protocol.Response{
		Status:  protocol.StatusOK,
		Message: "password encrypted",
		Data:    map[string]string{"encryptedPassword": encrypted},
	}
}
