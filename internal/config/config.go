package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds everything the server needs at startup. The OAuth client
// secret is only ever taken from the environment, never the config file.
type Config struct {
	ListenAddr   string
	DatabasePath string

	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string

	RateLimitWindowMinutes int
	RateLimitMaxRequests   int

	// DefaultSendQuota seeds a new user's remaining sends at connect time.
	DefaultSendQuota int
}

// Load reads the optional config file at path (when non-empty), applies
// defaults, then applies WELCOMEAGENT_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", "127.0.0.1:8787")
	v.SetDefault("database_path", "./welcomeagent.db")
	v.SetDefault("oauth.redirect_url", "http://127.0.0.1:8787/api/oauth/gmail/callback")
	v.SetDefault("rate_limit.window_minutes", 60)
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("default_send_quota", 50)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	c := Config{
		ListenAddr:             v.GetString("listen_addr"),
		DatabasePath:           v.GetString("database_path"),
		GoogleClientID:         v.GetString("oauth.client_id"),
		OAuthRedirectURL:       v.GetString("oauth.redirect_url"),
		RateLimitWindowMinutes: v.GetInt("rate_limit.window_minutes"),
		RateLimitMaxRequests:   v.GetInt("rate_limit.max_requests"),
		DefaultSendQuota:       v.GetInt("default_send_quota"),
	}

	if val := os.Getenv("WELCOMEAGENT_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := os.Getenv("WELCOMEAGENT_DB_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("WELCOMEAGENT_GOOGLE_CLIENT_ID"); val != "" {
		c.GoogleClientID = val
	}
	if val := os.Getenv("WELCOMEAGENT_GOOGLE_CLIENT_SECRET"); val != "" {
		c.GoogleClientSecret = val
	}
	if val := os.Getenv("WELCOMEAGENT_OAUTH_REDIRECT_URL"); val != "" {
		c.OAuthRedirectURL = val
	}

	return c, nil
}
