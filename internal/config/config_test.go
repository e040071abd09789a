package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		warnings int
		wantErr  bool
	}{
		{
			name:  "already normalized",
			input: "https://pgpt.example.com/api/v1",
			want:  "https://pgpt.example.com/api/v1",
		},
		{
			name:     "http rewritten to https",
			input:    "http://pgpt.example.com/api/v1",
			want:     "https://pgpt.example.com/api/v1",
			warnings: 1,
		},
		{
			name:     "missing api suffix appended",
			input:    "https://pgpt.example.com",
			want:     "https://pgpt.example.com/api/v1",
			warnings: 1,
		},
		{
			name:     "trailing slash before suffix",
			input:    "https://pgpt.example.com/",
			want:     "https://pgpt.example.com/api/v1",
			warnings: 1,
		},
		{
			name:     "duplicate slashes collapsed",
			input:    "https://pgpt.example.com//api//v1",
			want:     "https://pgpt.example.com/api/v1",
			warnings: 0,
		},
		{
			name:     "everything at once",
			input:    "http://pgpt.example.com//pgpt//",
			want:     "https://pgpt.example.com/pgpt/api/v1",
			warnings: 2,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings, err := NormalizeBaseURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, warnings, tt.warnings)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Upstream.BaseURL = "https://pgpt.example.com/api/v1"
		return cfg
	}

	t.Run("defaults with base-url pass", func(t *testing.T) {
		cfg := base()
		_, err := cfg.Validate()
		require.NoError(t, err)
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 70000
		_, err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})

	t.Run("errors are collected, not fail-fast", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 0
		cfg.Upstream.BaseURL = ""
		cfg.Restrictions.GroupPrecedence = "neither"
		_, err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
		assert.Contains(t, err.Error(), "base-url")
		assert.Contains(t, err.Error(), "group-precedence")
	})

	t.Run("pw-encryption requires key paths", func(t *testing.T) {
		cfg := base()
		cfg.Security.PwEncryption = true
		_, err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "public-key")
		assert.Contains(t, err.Error(), "private-key")
	})

	t.Run("proxy requires access header", func(t *testing.T) {
		cfg := base()
		cfg.Proxy.UseProxy = true
		_, err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access-header")
	})

	t.Run("empty precedence defaults to groups", func(t *testing.T) {
		cfg := base()
		cfg.Restrictions.GroupPrecedence = ""
		_, err := cfg.Validate()
		require.NoError(t, err)
		assert.Equal(t, PrecedenceGroups, cfg.Restrictions.GroupPrecedence)
	})

	t.Run("base-url normalized in place", func(t *testing.T) {
		cfg := base()
		cfg.Upstream.BaseURL = "http://pgpt.example.com"
		warnings, err := cfg.Validate()
		require.NoError(t, err)
		assert.Equal(t, "https://pgpt.example.com/api/v1", cfg.Upstream.BaseURL)
		assert.Len(t, warnings, 2)
	})
}

func TestParseKDL(t *testing.T) {
	data := `
server {
    port 6021
    language "de"
    read-timeout 10
    max-clients 5
}
upstream {
    base-url "https://pgpt.internal/api/v1"
    ssl-validate false
    timeout 60
}
security {
    pw-encryption true
    allow-keygen true
    public-key "/keys/pub.pem"
    private-key "/keys/priv.pem"
}
functions {
    login true
    chat true
    openai-compat-api true
}
restrictions {
    restricted-groups true
    group-precedence "public"
}
proxy {
    use-proxy true
    access-header "secret"
    header-encrypted true
}
logging {
    log-ips true
}
`
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 6021, cfg.Server.Port)
	assert.Equal(t, "de", cfg.Server.Language)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout) // default kept
	assert.Equal(t, 5, cfg.Server.MaxClients)

	assert.Equal(t, "https://pgpt.internal/api/v1", cfg.Upstream.BaseURL)
	assert.False(t, cfg.Upstream.SSLValidate)
	assert.Equal(t, 60*time.Second, cfg.Upstream.Timeout)

	assert.True(t, cfg.Security.PwEncryption)
	assert.True(t, cfg.Security.AllowKeygen)
	assert.Equal(t, "/keys/pub.pem", cfg.Security.PublicKeyPath)

	assert.True(t, cfg.Functions.Login)
	assert.True(t, cfg.Functions.Chat)
	assert.False(t, cfg.Functions.Logout) // flags block replaces defaults wholesale
	assert.True(t, cfg.Functions.OpenAICompatAPI)

	assert.True(t, cfg.Restrictions.RestrictedGroups)
	assert.Equal(t, PrecedencePublic, cfg.Restrictions.GroupPrecedence)

	assert.True(t, cfg.Proxy.UseProxy)
	assert.Equal(t, "secret", cfg.Proxy.AccessHeader)
	assert.True(t, cfg.Proxy.HeaderEncrypted)

	assert.True(t, cfg.Logging.LogIPs)
	assert.False(t, cfg.Logging.AnonymousMode)
}

func TestParseKDLEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFunctionsEnabled(t *testing.T) {
	f := Functions{Chat: true, OpenAICompatAPI: true}

	assert.True(t, f.Enabled("chat"))
	assert.False(t, f.Enabled("login"))
	assert.True(t, f.Enabled("oai_comp_api_chat"))
	assert.True(t, f.Enabled("oai_comp_api_continue_chat"))
	assert.False(t, f.Enabled("no_such_command"))
}
