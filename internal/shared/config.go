package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from config.toml.
const (
	EnvClientID     = "SHELFX_CLIENT_ID"
	EnvClientSecret = "SHELFX_CLIENT_SECRET"
	EnvAPIKey       = "SHELFX_API_KEY"
	EnvRedirectURI  = "SHELFX_REDIRECT_URI"
	EnvDatabasePath = "SHELFX_DB_PATH"
	EnvLogLevel     = "SHELFX_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Library     LibraryConfig     `toml:"library"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Google GoogleConfig `toml:"google"`
}

// GoogleConfig contains the OAuth client and API key used for Google Books.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	APIKey       string `toml:"api_key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the loopback OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LibraryConfig tunes outbound requests to the Books API.
type LibraryConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	PageSize          int     `toml:"page_size"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set.
//
// Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// ApplyEnv overlays non-empty SHELFX_* environment variables onto c.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.Google.ClientID, EnvClientID)
	set(&c.Credentials.Google.ClientSecret, EnvClientSecret)
	set(&c.Credentials.Google.APIKey, EnvAPIKey)
	set(&c.Credentials.Google.RedirectURI, EnvRedirectURI)
	set(&c.Database.Path, EnvDatabasePath)
	set(&c.Log.Level, EnvLogLevel)
}

// Validate reports missing OAuth credentials.
//
// The API key is optional; public catalog requests work without one at a lower quota.
func (c *Config) Validate() error {
	g := c.Credentials.Google
	if g.ClientID == "" || g.ClientID == placeholderClientID {
		return fmt.Errorf("%w: credentials.google.client_id", ErrMissingCredentials)
	}
	if g.ClientSecret == "" || g.ClientSecret == placeholderClientSecret {
		return fmt.Errorf("%w: credentials.google.client_secret", ErrMissingCredentials)
	}
	return nil
}

// CallbackAddr returns host:port for the loopback OAuth server.
func (c *Config) CallbackAddr() string {
	host := c.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8085
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// RedirectURL returns the configured redirect URI or one derived from the callback address.
func (c *Config) RedirectURL() string {
	if c.Credentials.Google.RedirectURI != "" {
		return c.Credentials.Google.RedirectURI
	}
	return "http://" + c.CallbackAddr() + "/callback"
}

const (
	placeholderClientID     = "your_google_client_id"
	placeholderClientSecret = "your_google_client_secret"
)
