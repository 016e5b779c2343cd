// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/brainbox/internal/backoff"
	"github.com/jeranaias/brainbox/internal/model"
)

// clearEnv isolates a test from the caller's BRAINBOX_* variables.
func clearEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"BRAINBOX_QUEUE_BACKEND", "BRAINBOX_QUEUE_PATH", "BRAINBOX_REDIS_ADDR",
		"BRAINBOX_REDIS_PASSWORD", "BRAINBOX_INTERVAL", "BRAINBOX_SERVER_URL",
		"BRAINBOX_TOKEN", "BRAINBOX_COOKIE", "BRAINBOX_LOG_LEVEL",
		"BRAINBOX_LOG_FORMAT", "BRAINBOX_STATUS_ADDR", "BRAINBOX_STATUS_TOKEN",
	} {
		t.Setenv(k, "")
	}
	home := t.TempDir()
	t.Setenv("BRAINBOX_HOME", home)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendSQLite, cfg.Queue.Backend)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Interval.Duration)
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant}, cfg.Roles())
	assert.Equal(t, "brainbox:retry_queue", cfg.Namespace().String())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Remote.BaseURL, cfg.Remote.BaseURL)
}

func TestLoad_FormatPrecedence(t *testing.T) {
	home := clearEnv(t)
	writeFile(t, filepath.Join(home, "config.yaml"), "remote:\n  base_url: https://yaml.example.com\n")
	writeFile(t, filepath.Join(home, "config.json"), `{"remote":{"base_url":"https://json.example.com"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://json.example.com", cfg.Remote.BaseURL)

	writeFile(t, filepath.Join(home, "config.toml"), "[remote]\nbase_url = \"https://toml.example.com\"\n")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "https://toml.example.com", cfg.Remote.BaseURL)
}

func TestLoadFromPath_Formats(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "c.toml",
			content: `
[queue]
backend = "file"
path = "/var/lib/brainbox"

[scheduler]
interval = "2s"
max_delay = "10m"
eligible_roles = ["assistant"]
`,
		},
		{
			name:    "json",
			file:    "c.json",
			content: `{"queue":{"backend":"file","path":"/var/lib/brainbox"},"scheduler":{"interval":"2s","max_delay":"10m","eligible_roles":["assistant"]}}`,
		},
		{
			name: "yaml",
			file: "c.yml",
			content: `
queue:
  backend: file
  path: /var/lib/brainbox
scheduler:
  interval: 2s
  max_delay: 10m
  eligible_roles: [assistant]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			cfg, err := LoadFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, BackendFile, cfg.Queue.Backend)
			assert.Equal(t, "/var/lib/brainbox", cfg.Queue.Path)
			assert.Equal(t, 2*time.Second, cfg.Scheduler.Interval.Duration)
			assert.Equal(t, 10*time.Minute, cfg.Scheduler.MaxDelay.Duration)
			assert.Equal(t, time.Second, cfg.Scheduler.BaseDelay.Duration, "unset keys keep defaults")
			assert.Equal(t, []model.Role{model.RoleAssistant}, cfg.Roles())
		})
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	writeFile(t, bad, "[scheduler]\ninterval = \"soon\"\n")
	_, err := LoadFromPath(bad)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	writeFile(t, invalid, "[queue]\nbackend = \"postgres\"\n[scheduler]\nconcurrency = 500\n")
	_, err = LoadFromPath(invalid)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestLoadTOML_FixesPermissions(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0644))

	cfg := Default()
	require.NoError(t, LoadTOML(cfg, path))
	assert.Equal(t, "debug", cfg.Log.Level)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"backend", func(c *Config) { c.Queue.Backend = "mongo" }, "queue.backend"},
		{"redis addr", func(c *Config) { c.Queue.Backend = BackendRedis; c.Queue.RedisAddr = "" }, "queue.redis_addr"},
		{"names", func(c *Config) { c.Queue.StoreName = "a:b" }, "queue.db_name"},
		{"interval", func(c *Config) { c.Scheduler.Interval = D(time.Millisecond) }, "scheduler.interval"},
		{"max below base", func(c *Config) { c.Scheduler.MaxDelay = D(time.Millisecond) }, "scheduler.max_delay"},
		{"concurrency", func(c *Config) { c.Scheduler.Concurrency = 0 }, "scheduler.concurrency"},
		{"roles", func(c *Config) { c.Scheduler.EligibleRoles = []string{"robot"} }, "scheduler.eligible_roles"},
		{"base url", func(c *Config) { c.Remote.BaseURL = "localhost:3000" }, "remote.base_url"},
		{"rate", func(c *Config) { c.Remote.RatePerSec = -1 }, "remote.rate_per_sec"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"server addr", func(c *Config) { c.Server.Enabled = true; c.Server.Addr = "" }, "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRAINBOX_QUEUE_BACKEND", "REDIS")
	t.Setenv("BRAINBOX_REDIS_ADDR", "cache:6379")
	t.Setenv("BRAINBOX_INTERVAL", "250ms")
	t.Setenv("BRAINBOX_SERVER_URL", "https://chat.example.com")
	t.Setenv("BRAINBOX_TOKEN", "tok")
	t.Setenv("BRAINBOX_STATUS_ADDR", ":9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Queue.Backend)
	assert.Equal(t, "cache:6379", cfg.Queue.RedisAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.Interval.Duration)
	assert.Equal(t, "https://chat.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "tok", cfg.Remote.Token)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestQueuePath(t *testing.T) {
	home := clearEnv(t)

	cfg := Default()
	p, err := cfg.QueuePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "queue.db"), p)

	cfg.Queue.Backend = BackendFile
	p, err = cfg.QueuePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "queue"), p)

	cfg.Queue.Path = "/tmp/q"
	p, err = cfg.QueuePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/q", p)
}

func TestStrategy(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.BaseDelay = D(500 * time.Millisecond)
	cfg.Scheduler.MaxDelay = D(4 * time.Second)

	s := cfg.Strategy()
	assert.Equal(t, 500*time.Millisecond, s.Delay(0))
	assert.Equal(t, 4*time.Second, s.Delay(10))
	assert.Equal(t, backoff.DefaultMax, Default().Strategy().Delay(30))
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("remote.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", v)

	require.NoError(t, cfg.Set("scheduler.interval", "750ms"))
	assert.Equal(t, 750*time.Millisecond, cfg.Scheduler.Interval.Duration)

	require.NoError(t, cfg.Set("scheduler.concurrency", "8"))
	assert.Equal(t, 8, cfg.Scheduler.Concurrency)

	require.NoError(t, cfg.Set("server.enabled", "yes"))
	assert.True(t, cfg.Server.Enabled)

	require.NoError(t, cfg.Set("scheduler.eligible_roles", "user, assistant, tool"))
	assert.Equal(t, []string{"user", "assistant", "tool"}, cfg.Scheduler.EligibleRoles)

	require.NoError(t, cfg.Set("queue.redis_db", "2"))
	assert.Equal(t, 2, cfg.Queue.RedisDB)

	_, err = cfg.Get("queue.nope")
	assert.Error(t, err)
	_, err = cfg.Get("scheduler.interval.seconds")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("scheduler.concurrency", "many"))
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Remote.Token = "secret"
	cfg.Scheduler.Interval = D(7 * time.Second)

	require.NoError(t, Save(cfg))
	path, err := ConfigPathTOML()
	require.NoError(t, err)

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.Remote.Token)
	assert.Equal(t, 7*time.Second, loaded.Scheduler.Interval.Duration)
}

func TestString_Redacts(t *testing.T) {
	cfg := Default()
	cfg.Remote.Token = "tok-123"
	cfg.Remote.Cookie = "session=abc"
	cfg.Queue.RedisPassword = "pw"

	s := cfg.String()
	assert.NotContains(t, s, "tok-123")
	assert.NotContains(t, s, "session=abc")
	assert.NotContains(t, s, `"pw"`)
	assert.Contains(t, s, "[REDACTED]")
	assert.Contains(t, s, `"interval": "5s"`)
	assert.Equal(t, "tok-123", cfg.Remote.Token)
}
