package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: Asia/Seoul
log_level: verbose
default_event_hour: 42
subscriptions:
  - name: holidays
    url: https://example.com/holidays.ics
  - url: https://example.com/team.ics
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	assert.Equal(t, defaultEventHour, cfg.DefaultEventHour)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, defaultRefreshCron, cfg.RefreshCron)
	require.Len(t, cfg.Subscriptions, 2)
	assert.Equal(t, "holidays", cfg.Subscriptions[0].ID)
	assert.Equal(t, "https://example.com/team.ics", cfg.Subscriptions[1].ID)
	assert.Nil(t, cfg.BasicAuth)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [oops"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Listen = ":9000"
	cfg.BasicAuth = &BasicAuthConfig{Username: "me", Password: "secret"}
	cfg.Subscriptions = []SubscriptionConfig{{ID: "team", Name: "Team", URL: "https://example.com/team.ics"}}

	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".baekon-config-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, ok := cfg.Location()
	assert.True(t, ok)
	assert.Equal(t, "Local", loc.String())

	cfg.Timezone = "Asia/Seoul"
	loc, ok = cfg.Location()
	assert.True(t, ok)
	assert.Equal(t, "Asia/Seoul", loc.String())

	cfg.Timezone = "Mars/Olympus"
	_, ok = cfg.Location()
	assert.False(t, ok)
}
