package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LETTERBOXIO_LETTERBOXD_PASSWORD.
const EnvPrefix = "LETTERBOXIO"

// Config holds all Letterboxio configuration
type Config struct {
	Letterboxd LetterboxdConfig `mapstructure:"letterboxd"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// LetterboxdConfig holds the site endpoint and account settings
type LetterboxdConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	User           string        `mapstructure:"user"`     // watchlist owner; defaults to Username
	Username       string        `mapstructure:"username"` // login credentials gate every mutating action
	Password       string        `mapstructure:"password"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BrowserConfig holds the automated browser settings
type BrowserConfig struct {
	Headless             bool          `mapstructure:"headless"`
	SkipInstall          bool          `mapstructure:"skip_install"`
	NavigationTimeout    time.Duration `mapstructure:"navigation_timeout"`
	LoginFormTimeout     time.Duration `mapstructure:"login_form_timeout"` // generous: the site may interpose a challenge page
	LoginSubmitTimeout   time.Duration `mapstructure:"login_submit_timeout"`
	ActionTimeout        time.Duration `mapstructure:"action_timeout"`
	BlockedResourceTypes []string      `mapstructure:"blocked_resource_types"`
	BlockedURLPatterns   []string      `mapstructure:"blocked_url_patterns"`
}

// CacheConfig holds TTLs per cached data kind
type CacheConfig struct {
	ListingTTL  time.Duration `mapstructure:"listing_ttl"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
	IdentityTTL time.Duration `mapstructure:"identity_ttl"`
}

// QueueConfig holds action queue settings
type QueueConfig struct {
	DedupWindow time.Duration `mapstructure:"dedup_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Letterboxd: LetterboxdConfig{
			BaseURL:        "https://letterboxd.com",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			RequestTimeout: 15 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:             true,
			NavigationTimeout:    30 * time.Second,
			LoginFormTimeout:     60 * time.Second,
			LoginSubmitTimeout:   30 * time.Second,
			ActionTimeout:        15 * time.Second,
			BlockedResourceTypes: []string{"image", "stylesheet", "font", "media"},
			BlockedURLPatterns:   []string{"**/*.{png,jpg,jpeg,gif,webp,svg}", "**/*.{woff,woff2,ttf}"},
		},
		Cache: CacheConfig{
			ListingTTL:  10 * time.Minute,
			MetadataTTL: 24 * time.Hour,
			IdentityTTL: 7 * 24 * time.Hour,
		},
		Queue: QueueConfig{
			DedupWindow: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultConfigPath returns the directory searched for config.yaml
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".letterboxio")
}

// Load reads configuration from path (or config.yaml in ~/.letterboxio and the
// working directory when path is empty) and applies LETTERBOXIO_* environment
// overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases for the credentials
	_ = v.BindEnv("letterboxd.username", EnvPrefix+"_LETTERBOXD_USERNAME", EnvPrefix+"_USERNAME")
	_ = v.BindEnv("letterboxd.password", EnvPrefix+"_LETTERBOXD_PASSWORD", EnvPrefix+"_PASSWORD")
	_ = v.BindEnv("letterboxd.user", EnvPrefix+"_LETTERBOXD_USER", EnvPrefix+"_USER")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.Letterboxd.User == "" {
		cfg.Letterboxd.User = cfg.Letterboxd.Username
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("letterboxd.base_url", d.Letterboxd.BaseURL)
	v.SetDefault("letterboxd.user", d.Letterboxd.User)
	v.SetDefault("letterboxd.username", d.Letterboxd.Username)
	v.SetDefault("letterboxd.password", d.Letterboxd.Password)
	v.SetDefault("letterboxd.user_agent", d.Letterboxd.UserAgent)
	v.SetDefault("letterboxd.request_timeout", d.Letterboxd.RequestTimeout)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.skip_install", d.Browser.SkipInstall)
	v.SetDefault("browser.navigation_timeout", d.Browser.NavigationTimeout)
	v.SetDefault("browser.login_form_timeout", d.Browser.LoginFormTimeout)
	v.SetDefault("browser.login_submit_timeout", d.Browser.LoginSubmitTimeout)
	v.SetDefault("browser.action_timeout", d.Browser.ActionTimeout)
	v.SetDefault("browser.blocked_resource_types", d.Browser.BlockedResourceTypes)
	v.SetDefault("browser.blocked_url_patterns", d.Browser.BlockedURLPatterns)

	v.SetDefault("cache.listing_ttl", d.Cache.ListingTTL)
	v.SetDefault("cache.metadata_ttl", d.Cache.MetadataTTL)
	v.SetDefault("cache.identity_ttl", d.Cache.IdentityTTL)

	v.SetDefault("queue.dedup_window", d.Queue.DedupWindow)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
}

// HasCredentials returns true if both username and password are set
func (c *Config) HasCredentials() bool {
	return c.Letterboxd.Username != "" && c.Letterboxd.Password != ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Letterboxd.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid letterboxd.base_url: %q", c.Letterboxd.BaseURL)
	}

	if (c.Letterboxd.Username == "") != (c.Letterboxd.Password == "") {
		return fmt.Errorf("letterboxd.username and letterboxd.password must be set together")
	}

	durations := map[string]time.Duration{
		"letterboxd.request_timeout":   c.Letterboxd.RequestTimeout,
		"browser.navigation_timeout":   c.Browser.NavigationTimeout,
		"browser.login_form_timeout":   c.Browser.LoginFormTimeout,
		"browser.login_submit_timeout": c.Browser.LoginSubmitTimeout,
		"browser.action_timeout":       c.Browser.ActionTimeout,
		"cache.listing_ttl":            c.Cache.ListingTTL,
		"cache.metadata_ttl":           c.Cache.MetadataTTL,
		"cache.identity_ttl":           c.Cache.IdentityTTL,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}

	if c.Queue.DedupWindow < 0 {
		return fmt.Errorf("queue.dedup_window cannot be negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}

	return nil
}

// renderedConfig mirrors Config with human-readable durations and the password redacted.
type renderedConfig struct {
	Letterboxd struct {
		BaseURL        string `yaml:"base_url"`
		User           string `yaml:"user,omitempty"`
		Username       string `yaml:"username,omitempty"`
		Password       string `yaml:"password,omitempty"`
		UserAgent      string `yaml:"user_agent"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"letterboxd"`
	Browser struct {
		Headless             bool     `yaml:"headless"`
		SkipInstall          bool     `yaml:"skip_install"`
		NavigationTimeout    string   `yaml:"navigation_timeout"`
		LoginFormTimeout     string   `yaml:"login_form_timeout"`
		LoginSubmitTimeout   string   `yaml:"login_submit_timeout"`
		ActionTimeout        string   `yaml:"action_timeout"`
		BlockedResourceTypes []string `yaml:"blocked_resource_types,flow"`
		BlockedURLPatterns   []string `yaml:"blocked_url_patterns"`
	} `yaml:"browser"`
	Cache struct {
		ListingTTL  string `yaml:"listing_ttl"`
		MetadataTTL string `yaml:"metadata_ttl"`
		IdentityTTL string `yaml:"identity_ttl"`
	} `yaml:"cache"`
	Queue struct {
		DedupWindow string `yaml:"dedup_window"`
	} `yaml:"queue"`
	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir,omitempty"`
	} `yaml:"logging"`
}

// YAML renders the effective configuration as YAML with the password redacted.
func (c *Config) YAML() ([]byte, error) {
	var r renderedConfig

	r.Letterboxd.BaseURL = c.Letterboxd.BaseURL
	r.Letterboxd.User = c.Letterboxd.User
	r.Letterboxd.Username = c.Letterboxd.Username
	if c.Letterboxd.Password != "" {
		r.Letterboxd.Password = "********"
	}
	r.Letterboxd.UserAgent = c.Letterboxd.UserAgent
	r.Letterboxd.RequestTimeout = c.Letterboxd.RequestTimeout.String()

	r.Browser.Headless = c.Browser.Headless
	r.Browser.SkipInstall = c.Browser.SkipInstall
	r.Browser.NavigationTimeout = c.Browser.NavigationTimeout.String()
	r.Browser.LoginFormTimeout = c.Browser.LoginFormTimeout.String()
	r.Browser.LoginSubmitTimeout = c.Browser.LoginSubmitTimeout.String()
	r.Browser.ActionTimeout = c.Browser.ActionTimeout.String()
	r.Browser.BlockedResourceTypes = c.Browser.BlockedResourceTypes
	r.Browser.BlockedURLPatterns = c.Browser.BlockedURLPatterns

	r.Cache.ListingTTL = c.Cache.ListingTTL.String()
	r.Cache.MetadataTTL = c.Cache.MetadataTTL.String()
	r.Cache.IdentityTTL = c.Cache.IdentityTTL.String()

	r.Queue.DedupWindow = c.Queue.DedupWindow.String()

	r.Logging.Level = c.Logging.Level
	r.Logging.Dir = c.Logging.Dir

	out, err := yaml.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
