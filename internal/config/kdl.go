package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// DefaultConfigFile is the configuration file name.
const DefaultConfigFile = "pgptgate.kdl"

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "PGPTGATE_CONFIG"

// KDLConfig mirrors the KDL file structure. Uses kdl struct tags for
// unmarshaling; timeouts are plain seconds in the file.
type KDLConfig struct {
	Server       *KDLServer       `kdl:"server"`
	Upstream     *KDLUpstream     `kdl:"upstream"`
	Security     *KDLSecurity     `kdl:"security"`
	Functions    *KDLFunctions    `kdl:"functions"`
	Restrictions *KDLRestrictions `kdl:"restrictions"`
	Proxy        *KDLProxy        `kdl:"proxy"`
	Logging      *KDLLogging      `kdl:"logging"`
}

// KDLServer holds the server block.
type KDLServer struct {
	Port         int    `kdl:"port"`
	Language     string `kdl:"language"`
	ReadTimeout  int    `kdl:"read-timeout"`
	WriteTimeout int    `kdl:"write-timeout"`
	MaxClients   int    `kdl:"max-clients"`
}

// KDLUpstream holds the upstream block.
type KDLUpstream struct {
	BaseURL     string `kdl:"base-url"`
	SSLValidate *bool  `kdl:"ssl-validate"`
	Timeout     int    `kdl:"timeout"`
}

// KDLSecurity holds the security block.
type KDLSecurity struct {
	PwEncryption bool   `kdl:"pw-encryption"`
	AllowKeygen  bool   `kdl:"allow-keygen"`
	PublicKey    string `kdl:"public-key"`
	PrivateKey   string `kdl:"private-key"`
}

// KDLFunctions holds the per-command feature flags.
type KDLFunctions struct {
	Login           bool `kdl:"login"`
	Logout          bool `kdl:"logout"`
	Chat            bool `kdl:"chat"`
	ContinueChat    bool `kdl:"continue-chat"`
	GetChatInfo     bool `kdl:"get-chat-info"`
	ListGroups      bool `kdl:"list-groups"`
	StoreGroup      bool `kdl:"store-group"`
	DeleteGroup     bool `kdl:"delete-group"`
	CreateSource    bool `kdl:"create-source"`
	GetSource       bool `kdl:"get-source"`
	ListSources     bool `kdl:"list-sources"`
	EditSource      bool `kdl:"edit-source"`
	DeleteSource    bool `kdl:"delete-source"`
	StoreUser       bool `kdl:"store-user"`
	EditUser        bool `kdl:"edit-user"`
	DeleteUser      bool `kdl:"delete-user"`
	OpenAICompatAPI bool `kdl:"openai-compat-api"`
}

// KDLRestrictions holds the restrictions block.
type KDLRestrictions struct {
	RestrictedGroups bool   `kdl:"restricted-groups"`
	GroupPrecedence  string `kdl:"group-precedence"`
}

// KDLProxy holds the proxy block.
type KDLProxy struct {
	UseProxy        bool   `kdl:"use-proxy"`
	AccessHeader    string `kdl:"access-header"`
	HeaderEncrypted bool   `kdl:"header-encrypted"`
}

// KDLLogging holds the logging block.
type KDLLogging struct {
	LogIPs        bool `kdl:"log-ips"`
	AnonymousMode bool `kdl:"anonymous-mode"`
}

// Resolve returns the config file path: explicit flag value, then the
// environment override, then the file in the working directory.
func Resolve(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultConfigFile
}

// LoadFile loads configuration from a KDL file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses KDL configuration data on top of the defaults.
func Parse(data string) (*Config, error) {
	var kdlCfg KDLConfig
	if err := kdl.Unmarshal([]byte(data), &kdlCfg); err != nil {
		return nil, err
	}
	return kdlToConfig(&kdlCfg), nil
}

// kdlToConfig converts the KDL structure to our Config type.
func kdlToConfig(kdlCfg *KDLConfig) *Config {
	cfg := Default()

	if s := kdlCfg.Server; s != nil {
		if s.Port > 0 {
			cfg.Server.Port = s.Port
		}
		if s.Language != "" {
			cfg.Server.Language = s.Language
		}
		if s.ReadTimeout > 0 {
			cfg.Server.ReadTimeout = time.Duration(s.ReadTimeout) * time.Second
		}
		if s.WriteTimeout > 0 {
			cfg.Server.WriteTimeout = time.Duration(s.WriteTimeout) * time.Second
		}
		if s.MaxClients != 0 {
			cfg.Server.MaxClients = s.MaxClients
		}
	}

	if u := kdlCfg.Upstream; u != nil {
		cfg.Upstream.BaseURL = u.BaseURL
		if u.SSLValidate != nil {
			cfg.Upstream.SSLValidate = *u.SSLValidate
		}
		if u.Timeout > 0 {
			cfg.Upstream.Timeout = time.Duration(u.Timeout) * time.Second
		}
	}

	if s := kdlCfg.Security; s != nil {
		cfg.Security.PwEncryption = s.PwEncryption
		cfg.Security.AllowKeygen = s.AllowKeygen
		cfg.Security.PublicKeyPath = ExpandPath(s.PublicKey)
		cfg.Security.PrivateKeyPath = ExpandPath(s.PrivateKey)
	}

	if f := kdlCfg.Functions; f != nil {
		cfg.Functions = Functions{
			Login:           f.Login,
			Logout:          f.Logout,
			Chat:            f.Chat,
			ContinueChat:    f.ContinueChat,
			GetChatInfo:     f.GetChatInfo,
			ListGroups:      f.ListGroups,
			StoreGroup:      f.StoreGroup,
			DeleteGroup:     f.DeleteGroup,
			CreateSource:    f.CreateSource,
			GetSource:       f.GetSource,
			ListSources:     f.ListSources,
			EditSource:      f.EditSource,
			DeleteSource:    f.DeleteSource,
			StoreUser:       f.StoreUser,
			EditUser:        f.EditUser,
			DeleteUser:      f.DeleteUser,
			OpenAICompatAPI: f.OpenAICompatAPI,
		}
	}

	if r := kdlCfg.Restrictions; r != nil {
		cfg.Restrictions.RestrictedGroups = r.RestrictedGroups
		if r.GroupPrecedence != "" {
			cfg.Restrictions.GroupPrecedence = r.GroupPrecedence
		}
	}

	if p := kdlCfg.Proxy; p != nil {
		cfg.Proxy.UseProxy = p.UseProxy
		cfg.Proxy.AccessHeader = p.AccessHeader
		cfg.Proxy.HeaderEncrypted = p.HeaderEncrypted
	}

	if l := kdlCfg.Logging; l != nil {
		cfg.Logging.LogIPs = l.LogIPs
		cfg.Logging.AnonymousMode = l.AnonymousMode
	}

	return cfg
}

// WriteDefaultConfig writes a documented default config file.
func WriteDefaultConfig(path string) error {
	defaultKDL := `// pgptgate configuration

server {
    // TCP listen port
    port 5000
    // Default answer language forwarded upstream
    language "en"
    // Seconds a client may take to deliver its request
    read-timeout 30
    // Seconds allowed for the response write
    write-timeout 30
    // Concurrent connection cap (0 = unlimited)
    max-clients 100
}

upstream {
    // PrivateGPT API root; http:// is rewritten to https:// and the
    // /api/v1 suffix is appended when missing
    base-url "https://pgpt.example.com/api/v1"
    // Verify the upstream TLS certificate
    ssl-validate true
    // Upstream HTTP timeout in seconds
    timeout 120
}

security {
    // Expect client passwords RSA-encrypted (base64)
    pw-encryption false
    // Enable the keygen command
    allow-keygen false
    public-key "~/keys/public.pem"
    private-key "~/keys/private.pem"
}

// Feature flags, one per command
functions {
    login true
    logout true
    chat true
    continue-chat true
    get-chat-info true
    list-groups true
    store-group true
    delete-group true
    create-source true
    get-source true
    list-sources true
    edit-source true
    delete-source true
    store-user true
    edit-user true
    delete-user true
    openai-compat-api false
}

restrictions {
    // Mask the assignable-groups list in list_groups responses
    restricted-groups false
    // "groups" or "public": which side wins when a chat request sets both
    group-precedence "groups"
}

proxy {
    use-proxy false
    // Forwarded upstream as X-Custom-Header
    access-header ""
    // The access header is stored RSA-encrypted
    header-encrypted false
}

logging {
    // Log client addresses verbatim instead of redacting
    log-ips false
    // Suppress per-connection logging entirely
    anonymous-mode false
}
`
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.TrimSpace(defaultKDL)+"\n"), 0644)
}
