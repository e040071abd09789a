package pgpt

import "encoding/json"

// envelope is the upstream API response shape. Status is a bool on success
// paths and occasionally a number on error paths, so it stays raw.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Status  json.RawMessage `json:"status"`
}

// LoginData is the part of the login response the gateway itself needs; the
// full data object is still passed through to clients untouched.
type LoginData struct {
	Token string `json:"token"`
}

// ChatRequest is the POST /chats payload.
type ChatRequest struct {
	Language  string   `json:"language"`
	Question  string   `json:"question"`
	UsePublic bool     `json:"usePublic"`
	Groups    []string `json:"groups"`
}

// ContinueChatRequest is the PATCH /chats/{id} payload.
type ContinueChatRequest struct {
	Question string `json:"question"`
}

// CreateSourceRequest is the POST /sources payload.
type CreateSourceRequest struct {
	Name    string   `json:"name"`
	Content string   `json:"content"`
	Groups  []string `json:"groups,omitempty"`
}

// GroupsData is the GET /groups response payload.
type GroupsData struct {
	PersonalGroups   []string `json:"personalGroups"`
	AssignableGroups []string `json:"assignableGroups"`
}

// StoreGroupRequest is the POST /groups payload.
type StoreGroupRequest struct {
	GroupName   string `json:"groupName"`
	Description string `json:"description"`
}

// StoreUserRequest is the POST /users payload. The zero-value fields are
// filled with the gateway defaults before sending.
type StoreUserRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Language    string   `json:"language"`
	Timezone    string   `json:"timezone"`
	Roles       []string `json:"roles"`
	Groups      []string `json:"groups"`
	UsePublic   bool     `json:"usePublic"`
	ActivateFtp bool     `json:"activateFtp"`
	FtpPassword string   `json:"ftpPassword"`
}
