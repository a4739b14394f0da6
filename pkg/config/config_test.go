package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://letterboxd.com", cfg.Letterboxd.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Queue.DedupWindow)
	assert.Equal(t, 60*time.Second, cfg.Browser.LoginFormTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.HasCredentials())
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
letterboxd:
  username: alice
  password: from-file
browser:
  headless: false
  action_timeout: 20s
cache:
  listing_ttl: 2m
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("LETTERBOXIO_PASSWORD", "from-env")
	t.Setenv("LETTERBOXIO_QUEUE_DEDUP_WINDOW", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Letterboxd.Username)
	assert.Equal(t, "alice", cfg.Letterboxd.User, "watchlist owner should default to the login user")
	assert.Equal(t, "from-env", cfg.Letterboxd.Password)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 20*time.Second, cfg.Browser.ActionTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Cache.ListingTTL)
	assert.Equal(t, 3*time.Second, cfg.Queue.DedupWindow)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.HasCredentials())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("letterboxd: [unterminated"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "credentials set together",
			mutate: func(c *Config) {
				c.Letterboxd.Username = "alice"
				c.Letterboxd.Password = "secret"
			},
			wantErr: false,
		},
		{
			name:    "username without password",
			mutate:  func(c *Config) { c.Letterboxd.Username = "alice" },
			wantErr: true,
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Letterboxd.BaseURL = "letterboxd.com" },
			wantErr: true,
		},
		{
			name:    "zero navigation timeout",
			mutate:  func(c *Config) { c.Browser.NavigationTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative dedup window",
			mutate:  func(c *Config) { c.Queue.DedupWindow = -time.Second },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_YAMLRedactsPassword(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Letterboxd.Username = "alice"
	cfg.Letterboxd.Password = "hunter2"

	out, err := cfg.YAML()
	require.NoError(t, err)

	rendered := string(out)
	assert.NotContains(t, rendered, "hunter2")
	assert.Contains(t, rendered, "********")
	assert.Contains(t, rendered, "dedup_window: 5s")
	assert.Contains(t, rendered, "username: alice")
}
