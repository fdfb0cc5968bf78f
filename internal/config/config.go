// Package config loads runtime settings for the CanaryTalk server,
// layering environment variables (prefix CANARYTALK) and an optional
// config file over development defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the server reads at startup.
//
// Fields:
//   - Addr: bind address for the combined HTTP/websocket endpoint.
//   - DBPath: sqlite database file ( ":memory:" is valid for tests).
//   - JWTSecret: HMAC secret for signing tokens (HS256). Override in prod.
//   - TokenTTL: bearer token lifetime.
//   - AllowedOrigins: CORS origins for the REST surface.
type Config struct {
	Addr           string        `mapstructure:"addr"`
	DBPath         string        `mapstructure:"db_path"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Load builds a Config from defaults, then CANARYTALK_* environment
// variables, then an optional config file at path (empty skips the file).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":3000")
	v.SetDefault("db_path", "canarytalk.db")
	v.SetDefault("jwt_secret", "canarytalk-secret-key-change-in-production")
	v.SetDefault("token_ttl", 30*24*time.Hour)
	v.SetDefault("allowed_origins", []string{"*"})

	v.SetEnvPrefix("canarytalk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
