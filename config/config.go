// Package config loads the application configuration from a YAML file and
// ACADEMIA_ prefixed environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server" json:"server"`
	Auth        AuthConfig        `yaml:"auth" mapstructure:"auth" json:"auth"`
	Google      GoogleConfig      `yaml:"google" mapstructure:"google" json:"google"`
	GitHub      GitHubConfig      `yaml:"github" mapstructure:"github" json:"github"`
	Persistence PersistenceConfig `yaml:"persistence" mapstructure:"persistence" json:"persistence"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage" json:"storage"`
	Gate        GateConfig        `yaml:"gate" mapstructure:"gate" json:"gate"`
	Rules       []RuleOverride    `yaml:"rules" mapstructure:"rules" json:"rules,omitempty" validate:"omitempty,dive"`
	Log         LogConfig         `yaml:"log" mapstructure:"log" json:"log"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry" json:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr" mapstructure:"addr" json:"addr" validate:"required,hostname_port"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout" validate:"required,duration"`
	Metrics         bool   `yaml:"metrics" mapstructure:"metrics" json:"metrics"`
	PhoneRegion     string `yaml:"phone_region" mapstructure:"phone_region" json:"phone_region" validate:"required,len=2"`
}

// AuthConfig configures accounts and session cookies.
type AuthConfig struct {
	SigningKey           string   `yaml:"signing_key" mapstructure:"signing_key" json:"-" validate:"required,min=16"`
	Issuer               string   `yaml:"issuer" mapstructure:"issuer" json:"issuer"`
	Audience             []string `yaml:"audience" mapstructure:"audience" json:"audience"`
	TokenExpiration      int      `yaml:"token_expiration" mapstructure:"token_expiration" json:"token_expiration" validate:"min=1"`
	ContextKey           string   `yaml:"context_key" mapstructure:"context_key" json:"context_key" validate:"required"`
	CookieName           string   `yaml:"cookie_name" mapstructure:"cookie_name" json:"cookie_name" validate:"required"`
	CookieSecure         bool     `yaml:"cookie_secure" mapstructure:"cookie_secure" json:"cookie_secure"`
	RejectedRouteKey     string   `yaml:"rejected_route_key" mapstructure:"rejected_route_key" json:"rejected_route_key" validate:"required"`
	RejectedRouteDefault string   `yaml:"rejected_route_default" mapstructure:"rejected_route_default" json:"rejected_route_default" validate:"required,startswith=/"`
	SignInPath           string   `yaml:"sign_in_path" mapstructure:"sign_in_path" json:"sign_in_path" validate:"required,startswith=/"`
	MaxLoginAttempts     int      `yaml:"max_login_attempts" mapstructure:"max_login_attempts" json:"max_login_attempts" validate:"min=0"`
	LoginCooldown        string   `yaml:"login_cooldown" mapstructure:"login_cooldown" json:"login_cooldown" validate:"required,duration"`
	PasswordCost         int      `yaml:"password_cost" mapstructure:"password_cost" json:"password_cost" validate:"omitempty,min=4,max=31"`
	DeterministicIDs     bool     `yaml:"deterministic_ids" mapstructure:"deterministic_ids" json:"deterministic_ids"`
	StateEncryptionKey   string   `yaml:"state_encryption_key" mapstructure:"state_encryption_key" json:"-" validate:"omitempty,len=32"`
	StateHMACKey         string   `yaml:"state_hmac_key" mapstructure:"state_hmac_key" json:"-" validate:"omitempty,min=16"`
}

// GoogleConfig configures federated sign-in with Google.
type GoogleConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	ClientID      string `yaml:"client_id" mapstructure:"client_id" json:"client_id" validate:"required_if=Enabled true"`
	ClientSecret  string `yaml:"client_secret" mapstructure:"client_secret" json:"-" validate:"required_if=Enabled true"`
	CallbackURL   string `yaml:"callback_url" mapstructure:"callback_url" json:"callback_url" validate:"omitempty,url"`
	VerifyIDToken bool   `yaml:"verify_id_token" mapstructure:"verify_id_token" json:"verify_id_token"`
	JWKSURL       string `yaml:"jwks_url" mapstructure:"jwks_url" json:"jwks_url" validate:"omitempty,url"`
}

// GitHubConfig configures federated sign-in with GitHub.
type GitHubConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id" json:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret" json:"-" validate:"required_if=Enabled true"`
	CallbackURL  string `yaml:"callback_url" mapstructure:"callback_url" json:"callback_url" validate:"omitempty,url"`
}

// FederatedEnabled reports whether any federated provider is configured.
func (c *Config) FederatedEnabled() bool {
	return c.Google.Enabled || c.GitHub.Enabled
}

// PersistenceConfig configures the SQLite database.
type PersistenceConfig struct {
	DSN   string `yaml:"dsn" mapstructure:"dsn" json:"dsn" validate:"required"`
	Debug bool   `yaml:"debug" mapstructure:"debug" json:"debug"`
	Trace bool   `yaml:"trace" mapstructure:"trace" json:"trace"`
}

// StorageConfig configures blob storage for uploads.
type StorageConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir" json:"dir" validate:"required"`
	PublicPrefix string `yaml:"public_prefix" mapstructure:"public_prefix" json:"public_prefix" validate:"required,startswith=/"`
	MaxSize      int64  `yaml:"max_size" mapstructure:"max_size" json:"max_size" validate:"min=0"`
}

// GateConfig configures the route gate.
type GateConfig struct {
	WaitTimeout string `yaml:"wait_timeout" mapstructure:"wait_timeout" json:"wait_timeout" validate:"required,duration"`
}

// RuleOverride replaces one access rule. An empty Expr removes the rule.
type RuleOverride struct {
	Key  string `yaml:"key" mapstructure:"key" json:"key" validate:"required"`
	Expr string `yaml:"expr" mapstructure:"expr" json:"expr"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" json:"format" validate:"oneof=text json"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Tracing     bool   `yaml:"tracing" mapstructure:"tracing" json:"tracing"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name" json:"service_name"`
}

func (c *Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c *Config) GetTokenExpiration() int {
	return c.Auth.TokenExpiration
}

func (c *Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Auth.Audience
}

func (c *Config) GetContextKey() string {
	return c.Auth.ContextKey
}

func (c *Config) GetRejectedRouteKey() string {
	return c.Auth.RejectedRouteKey
}

func (c *Config) GetRejectedRouteDefault() string {
	return c.Auth.RejectedRouteDefault
}

func (c *Config) GetMaxLoginAttempts() int {
	return c.Auth.MaxLoginAttempts
}

func (c *Config) GetLoginCooldown() string {
	return c.Auth.LoginCooldown
}

func (c *Config) GetPasswordCost() int {
	return c.Auth.PasswordCost
}

func (c *Config) GetDeterministicIDs() bool {
	return c.Auth.DeterministicIDs
}

// RuleOverrides returns the rule overrides keyed by "collection.op".
func (c *Config) RuleOverrides() map[string]string {
	if len(c.Rules) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Rules))
	for _, r := range c.Rules {
		out[r.Key] = r.Expr
	}
	return out
}

// GateWaitTimeout is how long a request waits for the session to settle.
func (c *Config) GateWaitTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Gate.WaitTimeout)
	return d
}

// ShutdownTimeout bounds graceful shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
