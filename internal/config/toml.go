// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// AuthSecretEnv overrides the token signing secret from the config file.
const AuthSecretEnv = "SQLQUEST_AUTH_SECRET"

// DefaultTokenTTL is how long a stored sign-in stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Player    PlayerConfig    `toml:"player"`
	Runner    RunnerConfig    `toml:"runner"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Reminders RemindersConfig `toml:"reminders"`
	Auth      AuthConfig      `toml:"auth"`
}

// PlayerConfig maps player-related settings.
type PlayerConfig struct {
	Account *string `toml:"account"`
}

// RunnerConfig selects the SQL engine.
type RunnerConfig struct {
	Driver *string `toml:"driver"`
}

// CatalogConfig points at lesson content other than the built-in catalog.
type CatalogConfig struct {
	Path *string `toml:"path"`
	URL  *string `toml:"url"`
}

// RemindersConfig lists daily reminder times as "HH:MM".
type RemindersConfig struct {
	Times []string `toml:"times"`
}

// AuthConfig maps session token settings.
type AuthConfig struct {
	Secret   *string `toml:"secret"`
	TokenTTL *string `toml:"token-ttl"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// AuthSecret resolves the token signing secret: environment first, then the
// config file, then fallback.
func (c FileConfig) AuthSecret(fallback string) string {
	if v := strings.TrimSpace(os.Getenv(AuthSecretEnv)); v != "" {
		return v
	}
	if c.Auth.Secret != nil && strings.TrimSpace(*c.Auth.Secret) != "" {
		return strings.TrimSpace(*c.Auth.Secret)
	}
	return fallback
}

// TokenTTL parses the configured token lifetime.
func (c FileConfig) TokenTTL() (time.Duration, error) {
	if c.Auth.TokenTTL == nil {
		return DefaultTokenTTL, nil
	}
	ttl, err := time.ParseDuration(strings.TrimSpace(*c.Auth.TokenTTL))
	if err != nil {
		return 0, fmt.Errorf("invalid auth.token-ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("auth.token-ttl must be > 0")
	}
	return ttl, nil
}

// Template is written by `sqlquest config` when no file exists yet.
func Template(defaultDriver string) string {
	return fmt.Sprintf(`# sqlquest configuration
# Uncomment a value to enable it. CLI flags override config values.

[player]
# account = "local"           # Account used when nobody is signed in

[runner]
# driver = %q              # SQL engine: "sqlite" or "sqlite3" (cgo builds)

[catalog]
# path = "/path/to/lessons.toml"   # Load lessons from a file
# url = "https://example.com/lessons.toml"   # Fetch lessons, cached under %s

[reminders]
# times = ["08:30", "19:00"]  # Daily practice reminders (HH:MM, local time)

[auth]
# secret = ""                 # Token signing secret (or set %s)
# token-ttl = %q           # How long a sign-in stays valid
`,
		defaultDriver,
		DefaultCatalogCacheDir(),
		AuthSecretEnv,
		DefaultTokenTTL.String(),
	)
}
