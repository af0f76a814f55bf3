package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "academia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  signing_key: "0123456789abcdef0123"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, "academia", cfg.GetIssuer())
	assert.Equal(t, []string{"academia-web"}, cfg.GetAudience())
	assert.Equal(t, "user", cfg.GetContextKey())
	assert.Equal(t, "rejected_route", cfg.GetRejectedRouteKey())
	assert.Equal(t, "/", cfg.GetRejectedRouteDefault())
	assert.Equal(t, 5, cfg.GetMaxLoginAttempts())
	assert.Equal(t, "24h", cfg.GetLoginCooldown())
	assert.Equal(t, 12, cfg.GetPasswordCost())
	assert.False(t, cfg.GetDeterministicIDs())
	assert.Equal(t, 5*time.Second, cfg.GateWaitTimeout())
	assert.Equal(t, "/uploads", cfg.Storage.PublicPrefix)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Nil(t, cfg.RuleOverrides())
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "0.0.0.0:9000"
auth:
  signing_key: "0123456789abcdef0123"
  audience: ["web", "admin"]
  deterministic_ids: true
gate:
  wait_timeout: 250ms
rules:
  - key: mentors.list
    expr: signed_in
  - key: courses.get
    expr: ""
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"web", "admin"}, cfg.GetAudience())
	assert.True(t, cfg.GetDeterministicIDs())
	assert.Equal(t, 250*time.Millisecond, cfg.GateWaitTimeout())
	assert.Equal(t, map[string]string{
		"mentors.list": "signed_in",
		"courses.get":  "",
	}, cfg.RuleOverrides())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  signing_key: "from-file-0123456789"
`)
	t.Setenv("ACADEMIA_AUTH_SIGNING_KEY", "from-env-0123456789")
	t.Setenv("ACADEMIA_SERVER_ADDR", "localhost:7000")
	t.Setenv("ACADEMIA_AUTH_MAX_LOGIN_ATTEMPTS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env-0123456789", cfg.GetSigningKey())
	assert.Equal(t, "localhost:7000", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.GetMaxLoginAttempts())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing signing key",
			body:    "log:\n  level: info\n",
			wantErr: "Config.Auth.SigningKey is required",
		},
		{
			name:    "short signing key",
			body:    "auth:\n  signing_key: short\n",
			wantErr: "Config.Auth.SigningKey must be at least 16",
		},
		{
			name:    "bad log level",
			body:    "auth:\n  signing_key: 0123456789abcdef0123\nlog:\n  level: verbose\n",
			wantErr: "Config.Log.Level must be one of: debug info warn error",
		},
		{
			name:    "bad duration",
			body:    "auth:\n  signing_key: 0123456789abcdef0123\ngate:\n  wait_timeout: soon\n",
			wantErr: "Config.Gate.WaitTimeout must be a positive duration",
		},
		{
			name:    "bad address",
			body:    "auth:\n  signing_key: 0123456789abcdef0123\nserver:\n  addr: nowhere\n",
			wantErr: "Config.Server.Addr must be a valid host:port",
		},
		{
			name:    "rule without key",
			body:    "auth:\n  signing_key: 0123456789abcdef0123\nrules:\n  - expr: signed_in\n",
			wantErr: "Config.Rules[0].Key is required",
		},
		{
			name: "google without callback",
			body: "auth:\n  signing_key: 0123456789abcdef0123\n" +
				"google:\n  enabled: true\n  client_id: id\n  client_secret: secret\n",
			wantErr: "google.callback_url is required",
		},
		{
			name: "google without state keys",
			body: "auth:\n  signing_key: 0123456789abcdef0123\n" +
				"google:\n  enabled: true\n  client_id: id\n  client_secret: secret\n" +
				"  callback_url: http://localhost:8080/auth/google/callback\n",
			wantErr: "auth.state_encryption_key and auth.state_hmac_key are required",
		},
		{
			name: "github without client id",
			body: "auth:\n  signing_key: 0123456789abcdef0123\n" +
				"github:\n  enabled: true\n  client_secret: secret\n",
			wantErr: "Config.GitHub.ClientID is required",
		},
		{
			name: "github without callback",
			body: "auth:\n  signing_key: 0123456789abcdef0123\n" +
				"github:\n  enabled: true\n  client_id: id\n  client_secret: secret\n",
			wantErr: "github.callback_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateGoogleEnabled(t *testing.T) {
	path := writeConfig(t, `
auth:
  signing_key: "0123456789abcdef0123"
  state_encryption_key: "0123456789abcdef0123456789abcdef"
  state_hmac_key: "fedcba9876543210"
google:
  enabled: true
  client_id: id
  client_secret: secret
  callback_url: http://localhost:8080/auth/google/callback
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Google.Enabled)
	assert.True(t, cfg.Google.VerifyIDToken)
}

func TestFederatedEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.FederatedEnabled())
	cfg.GitHub.Enabled = true
	assert.True(t, cfg.FederatedEnabled())
}
