// Package config loads and validates the gateway configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config holds the complete gateway configuration. It is built once at
// startup and treated as immutable afterwards.
type Config struct {
	Server       ServerConfig
	Upstream     UpstreamConfig
	Security     SecurityConfig
	Functions    Functions
	Restrictions Restrictions
	Proxy        ProxyConfig
	Logging      LoggingConfig
}

// ServerConfig holds the TCP listener settings.
type ServerConfig struct {
	// Port is the TCP listen port.
	Port int
	// Language is the default answer language forwarded upstream.
	Language string
	// ReadTimeout bounds how long a client may take to deliver its request.
	ReadTimeout time.Duration
	// WriteTimeout bounds the response write.
	WriteTimeout time.Duration
	// MaxClients caps concurrent connections (0 = unlimited).
	MaxClients int
}

// UpstreamConfig holds the PrivateGPT API settings.
type UpstreamConfig struct {
	// BaseURL is the API root, normalized by Validate.
	BaseURL string
	// SSLValidate controls TLS certificate verification.
	SSLValidate bool
	// Timeout bounds each upstream HTTP call.
	Timeout time.Duration
}

// SecurityConfig holds the credential-encryption settings.
type SecurityConfig struct {
	// PwEncryption expects client passwords RSA-encrypted and base64-encoded.
	PwEncryption bool
	// AllowKeygen enables the keygen command.
	AllowKeygen bool
	// PublicKeyPath and PrivateKeyPath point at the PEM keypair.
	PublicKeyPath  string
	PrivateKeyPath string
}

// Functions are the per-command feature flags. A disabled command returns a
// structured "disabled" error without ever reaching its handler.
type Functions struct {
	Login           bool
	Logout          bool
	Chat            bool
	ContinueChat    bool
	GetChatInfo     bool
	ListGroups      bool
	StoreGroup      bool
	DeleteGroup     bool
	CreateSource    bool
	GetSource       bool
	ListSources     bool
	EditSource      bool
	DeleteSource    bool
	StoreUser       bool
	EditUser        bool
	DeleteUser      bool
	OpenAICompatAPI bool
}

// Group-precedence policies for requests that set both usePublic and groups.
const (
	PrecedenceGroups = "groups" // groups win, usePublic forced off
	PrecedencePublic = "public" // public wins, groups dropped
)

// Restrictions holds response-masking and conflict policies.
type Restrictions struct {
	// RestrictedGroups masks the assignable-groups list in list_groups.
	RestrictedGroups bool
	// GroupPrecedence resolves the chat usePublic/groups conflict.
	GroupPrecedence string
}

// ProxyConfig holds the custom-header settings for deployments behind an
// authenticating reverse proxy.
type ProxyConfig struct {
	UseProxy bool
	// AccessHeader is sent upstream as X-Custom-Header.
	AccessHeader string
	// HeaderEncrypted means AccessHeader is RSA-encrypted in the config file
	// and must decrypt at startup.
	HeaderEncrypted bool
}

// LoggingConfig holds the privacy toggles for connection logging.
type LoggingConfig struct {
	// LogIPs logs client addresses verbatim instead of redacting them.
	LogIPs bool
	// AnonymousMode suppresses per-connection logging entirely.
	AnonymousMode bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         5000,
			Language:     "en",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxClients:   100,
		},
		Upstream: UpstreamConfig{
			SSLValidate: true,
			Timeout:     120 * time.Second,
		},
		Restrictions: Restrictions{
			GroupPrecedence: PrecedenceGroups,
		},
	}
}

// doubleSlash matches duplicated path slashes while leaving "://" intact.
var doubleSlash = regexp.MustCompile(`([^:]/)/+`)

// NormalizeBaseURL applies the upstream URL rules: https enforced, duplicate
// slashes collapsed, /api/v1 suffix appended when absent. The returned
// warnings describe each rewrite so the caller can log them.
func NormalizeBaseURL(raw string) (string, []string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", nil, errors.New("upstream base-url is required")
	}

	var warnings []string
	if strings.HasPrefix(u, "http://") {
		warnings = append(warnings, "upstream base-url uses http, rewriting to https")
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	u = doubleSlash.ReplaceAllString(u, "$1")
	if !strings.HasSuffix(u, "/api/v1") {
		warnings = append(warnings, "upstream base-url is missing the /api/v1 suffix, appending it")
		u = strings.TrimSuffix(u, "/") + "/api/v1"
	}
	if _, err := url.ParseRequestURI(u); err != nil {
		return "", warnings, fmt.Errorf("upstream base-url %q is not a valid URL: %w", u, err)
	}
	return u, warnings, nil
}

// Validate checks the configuration and normalizes derived fields. Problems
// are collected and returned joined; only the caller decides to exit.
func (c *Config) Validate() ([]string, error) {
	var errs []error
	var warnings []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d is out of range 1-65535", c.Server.Port))
	}
	if c.Server.MaxClients < 0 {
		errs = append(errs, fmt.Errorf("server max-clients %d must not be negative", c.Server.MaxClients))
	}

	normalized, urlWarnings, err := NormalizeBaseURL(c.Upstream.BaseURL)
	warnings = append(warnings, urlWarnings...)
	if err != nil {
		errs = append(errs, err)
	} else {
		c.Upstream.BaseURL = normalized
	}

	switch c.Restrictions.GroupPrecedence {
	case PrecedenceGroups, PrecedencePublic:
	case "":
		c.Restrictions.GroupPrecedence = PrecedenceGroups
	default:
		errs = append(errs, fmt.Errorf("restrictions group-precedence %q must be %q or %q",
			c.Restrictions.GroupPrecedence, PrecedenceGroups, PrecedencePublic))
	}

	if c.NeedsPublicKey() && c.Security.PublicKeyPath == "" {
		errs = append(errs, errors.New("security public-key is required when pw-encryption or allow-keygen is set"))
	}
	if c.NeedsPrivateKey() && c.Security.PrivateKeyPath == "" {
		errs = append(errs, errors.New("security private-key is required when encrypted credentials are expected"))
	}

	if c.Proxy.UseProxy && c.Proxy.AccessHeader == "" {
		errs = append(errs, errors.New("proxy access-header is required when use-proxy is enabled"))
	}

	return warnings, errors.Join(errs...)
}

// NeedsPublicKey reports whether a public key must be loadable at startup.
func (c *Config) NeedsPublicKey() bool {
	return c.Security.PwEncryption || c.Security.AllowKeygen
}

// NeedsPrivateKey reports whether a private key must be loadable at startup.
func (c *Config) NeedsPrivateKey() bool {
	return c.Security.PwEncryption || (c.Proxy.UseProxy && c.Proxy.HeaderEncrypted)
}

// ExpandPath resolves a leading ~ to the user home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Enabled reports whether the feature flag for a command name is set. Unknown
// names report disabled: a client probing a command this build doesn't know
// gets the same answer as one probing a switched-off command.
func (f *Functions) Enabled(command string) bool {
	switch command {
	case "login":
		return f.Login
	case "logout":
		return f.Logout
	case "chat":
		return f.Chat
	case "continue_chat":
		return f.ContinueChat
	case "get_chat_info":
		return f.GetChatInfo
	case "list_groups":
		return f.ListGroups
	case "store_group":
		return f.StoreGroup
	case "delete_group":
		return f.DeleteGroup
	case "create_source":
		return f.CreateSource
	case "get_source":
		return f.GetSource
	case "list_sources":
		return f.ListSources
	case "edit_source":
		return f.EditSource
	case "delete_source":
		return f.DeleteSource
	case "store_user":
		return f.StoreUser
	case "edit_user":
		return f.EditUser
	case "delete_user":
		return f.DeleteUser
	case "oai_comp_api_chat", "oai_comp_api_continue_chat":
		return f.OpenAICompatAPI
	default:
		return false
	}
}
