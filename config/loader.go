package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// ACADEMIA_AUTH_SIGNING_KEY overrides auth.signing_key.
const EnvPrefix = "ACADEMIA"

// NewViper returns a viper instance with defaults and environment overrides
// set. configFile may be empty, in which case academia.yaml is searched in
// the working directory and /etc/academia.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("academia")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/academia")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads, defaults and validates the configuration.
func Load(configFile string) (*Config, error) {
	return LoadFrom(NewViper(configFile))
}

// LoadFrom loads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.metrics", true)
	v.SetDefault("server.phone_region", "ES")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "academia")
	v.SetDefault("auth.audience", []string{"academia-web"})
	v.SetDefault("auth.token_expiration", 24)
	v.SetDefault("auth.context_key", "user")
	v.SetDefault("auth.cookie_name", "academia_session")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.rejected_route_key", "rejected_route")
	v.SetDefault("auth.rejected_route_default", "/")
	v.SetDefault("auth.sign_in_path", "/auth")
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.login_cooldown", "24h")
	v.SetDefault("auth.password_cost", 12)
	v.SetDefault("auth.deterministic_ids", false)
	v.SetDefault("auth.state_encryption_key", "")
	v.SetDefault("auth.state_hmac_key", "")

	v.SetDefault("google.enabled", false)
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.callback_url", "")
	v.SetDefault("google.verify_id_token", true)
	v.SetDefault("google.jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("github.enabled", false)
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.callback_url", "")

	v.SetDefault("persistence.dsn", "file:academia.db?cache=shared")
	v.SetDefault("persistence.debug", false)
	v.SetDefault("persistence.trace", false)

	v.SetDefault("storage.dir", "./uploads")
	v.SetDefault("storage.public_prefix", "/uploads")
	v.SetDefault("storage.max_size", 5<<20)

	v.SetDefault("gate.wait_timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.service_name", "academia")
}
