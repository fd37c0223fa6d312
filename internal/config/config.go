package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jgoulah/waterdelta/internal/apperr"
)

const (
	DefaultLoginURL      = "https://austintx.watersmart.com/index.php/logout/login?forceEmail=1"
	DefaultSessionCookie = "PHPSESSID"
	DefaultOutputFile    = "download.csv"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRedirects  = 20
	DefaultStrategy      = "nearest"
	DefaultSchedule      = "0 7 * * *"
)

// Environment variables overlaid on top of the config file
const (
	EnvEmail       = "WATERSMART_EMAIL"
	EnvPassword    = "WATERSMART_PASSWORD"
	EnvAuthToken   = "WATERSMART_AUTH_TOKEN"
	EnvDownloadURL = "WATERSMART_DOWNLOAD_URL"
)

// Config holds the application configuration
type Config struct {
	Portal        PortalConfig `yaml:"portal"`
	OutputFile    string       `yaml:"output_file,omitempty"` // fallback: download.csv
	Strategy      string       `yaml:"strategy,omitempty"`    // "nearest" (default) or "month"
	MetricsFile   string       `yaml:"metrics_file,omitempty"`
	Schedule      string       `yaml:"schedule,omitempty"` // cron spec for the watch command
	LogLevel      string       `yaml:"log_level,omitempty"`
	LogFormat     string       `yaml:"log_format,omitempty"` // "console" or "json"
	MQTT          MQTTConfig   `yaml:"mqtt,omitempty"`
	HomeAssistant HAConfig     `yaml:"home_assistant,omitempty"`
}

// PortalConfig holds the WaterSmart account and endpoints
type PortalConfig struct {
	LoginURL      string        `yaml:"login_url,omitempty"`
	DownloadURL   string        `yaml:"download_url"`
	Email         string        `yaml:"email"`
	Password      string        `yaml:"password"`
	AuthToken     string        `yaml:"auth_token"`               // long-lived auth_session cookie value
	SessionCookie string        `yaml:"session_cookie,omitempty"` // name of the short-lived session cookie
	Timeout       time.Duration `yaml:"timeout,omitempty"`        // per request
	MaxRedirects  int           `yaml:"max_redirects,omitempty"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: waterdelta
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://homeassistant.local:8123"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.water_cost_delta"
}

// Load reads the config file and overlays environment variables
func Load(configPath string) (*Config, error) {
	cfg, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFile reads the config file as written, without the environment overlay.
// A missing file yields an empty config.
func LoadFile(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Holds the portal password
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// ApplyEnv overrides portal credentials with any non-empty environment variables
func (c *Config) ApplyEnv() {
	for env, field := range map[string]*string{
		EnvEmail:       &c.Portal.Email,
		EnvPassword:    &c.Portal.Password,
		EnvAuthToken:   &c.Portal.AuthToken,
		EnvDownloadURL: &c.Portal.DownloadURL,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*field = v
		}
	}
}

// Validate checks that everything needed to talk to the portal is present.
// The first missing field is returned as an *apperr.ConfigError.
func (c *Config) Validate() error {
	required := []struct {
		field string
		env   string
		value string
	}{
		{"portal.email", EnvEmail, c.Portal.Email},
		{"portal.password", EnvPassword, c.Portal.Password},
		{"portal.auth_token", EnvAuthToken, c.Portal.AuthToken},
		{"portal.download_url", EnvDownloadURL, c.Portal.DownloadURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &apperr.ConfigError{
				Field:   r.field,
				Message: fmt.Sprintf("is required (set it in the config file or %s)", r.env),
			}
		}
	}

	if c.Portal.MaxRedirects < 0 {
		return &apperr.ConfigError{Field: "portal.max_redirects", Message: "cannot be negative"}
	}
	if c.Portal.Timeout < 0 {
		return &apperr.ConfigError{Field: "portal.timeout", Message: "cannot be negative"}
	}
	switch c.GetStrategy() {
	case "nearest", "month":
	default:
		return &apperr.ConfigError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q (use nearest or month)", c.Strategy)}
	}

	return nil
}

// GetLoginURL returns the login endpoint with a default for the Austin portal
func (c *Config) GetLoginURL() string {
	if c.Portal.LoginURL == "" {
		return DefaultLoginURL
	}
	return c.Portal.LoginURL
}

// GetSessionCookie returns the session cookie name, PHPSESSID by default
func (c *Config) GetSessionCookie() string {
	if c.Portal.SessionCookie == "" {
		return DefaultSessionCookie
	}
	return c.Portal.SessionCookie
}

// GetTimeout returns the per-request timeout with a default of 30s
func (c *Config) GetTimeout() time.Duration {
	if c.Portal.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Portal.Timeout
}

// GetMaxRedirects returns the redirect hop limit with a default of 20
func (c *Config) GetMaxRedirects() int {
	if c.Portal.MaxRedirects <= 0 {
		return DefaultMaxRedirects
	}
	return c.Portal.MaxRedirects
}

// GetOutputFile returns where the downloaded CSV is written
func (c *Config) GetOutputFile() string {
	if c.OutputFile == "" {
		return DefaultOutputFile
	}
	return c.OutputFile
}

// GetStrategy returns the baseline strategy, nearest by default
func (c *Config) GetStrategy() string {
	if c.Strategy == "" {
		return DefaultStrategy
	}
	return strings.ToLower(c.Strategy)
}

// GetSchedule returns the cron spec used by watch
func (c *Config) GetSchedule() string {
	if c.Schedule == "" {
		return DefaultSchedule
	}
	return c.Schedule
}

// GetTopicPrefix returns the MQTT topic prefix
func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "waterdelta"
	}
	return c.MQTT.TopicPrefix
}
