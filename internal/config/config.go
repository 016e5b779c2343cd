// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/brainbox/internal/backoff"
	"github.com/jeranaias/brainbox/internal/model"
	"github.com/jeranaias/brainbox/internal/queue"
	"github.com/jeranaias/brainbox/internal/util"
)

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as a string ("5s", "1h") in every
// config format.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration {
	return Duration{d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete brainbox configuration.
type Config struct {
	Queue     QueueConfig     `toml:"queue" json:"queue" yaml:"queue"`
	Scheduler SchedulerConfig `toml:"scheduler" json:"scheduler" yaml:"scheduler"`
	Remote    RemoteConfig    `toml:"remote" json:"remote" yaml:"remote"`
	Log       LogConfig       `toml:"log" json:"log" yaml:"log"`
	Server    ServerConfig    `toml:"server" json:"server" yaml:"server"`
}

// QueueConfig selects and configures the durable store.
type QueueConfig struct {
	// Backend is one of "sqlite", "file", "redis", "memory".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// Path is the sqlite database file or the file-store directory.
	// Empty means a location under the config directory.
	Path string `toml:"path" json:"path" yaml:"path"`

	DBName    string `toml:"db_name" json:"db_name" yaml:"db_name"`
	StoreName string `toml:"store_name" json:"store_name" yaml:"store_name"`

	RedisAddr     string   `toml:"redis_addr" json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string   `toml:"redis_password" json:"redis_password" yaml:"redis_password"`
	RedisDB       int      `toml:"redis_db" json:"redis_db" yaml:"redis_db"`
	RedisTimeout  Duration `toml:"redis_timeout" json:"redis_timeout" yaml:"redis_timeout"`
}

// SchedulerConfig tunes the retry scheduler.
type SchedulerConfig struct {
	Interval      Duration `toml:"interval" json:"interval" yaml:"interval"`
	BaseDelay     Duration `toml:"base_delay" json:"base_delay" yaml:"base_delay"`
	MaxDelay      Duration `toml:"max_delay" json:"max_delay" yaml:"max_delay"`
	Concurrency   int      `toml:"concurrency" json:"concurrency" yaml:"concurrency"`
	EligibleRoles []string `toml:"eligible_roles" json:"eligible_roles" yaml:"eligible_roles"`
}

// RemoteConfig points at the chat server.
type RemoteConfig struct {
	BaseURL    string   `toml:"base_url" json:"base_url" yaml:"base_url"`
	Token      string   `toml:"token" json:"token" yaml:"token"`
	Cookie     string   `toml:"cookie" json:"cookie" yaml:"cookie"`
	Timeout    Duration `toml:"timeout" json:"timeout" yaml:"timeout"`
	RatePerSec float64  `toml:"rate_per_sec" json:"rate_per_sec" yaml:"rate_per_sec"`
	Burst      int      `toml:"burst" json:"burst" yaml:"burst"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level" yaml:"level"`
	// Format is "console" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`
	// File adds a log file next to stderr.
	File string `toml:"file" json:"file" yaml:"file"`
}

// ServerConfig configures the local status server.
type ServerConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" json:"addr" yaml:"addr"`
	// Token, when set, is required as a bearer token on every route except
	// /health.
	Token string `toml:"token" json:"token" yaml:"token"`
}

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			Backend:      BackendSQLite,
			DBName:       queue.DefaultDBName,
			StoreName:    queue.DefaultStoreName,
			RedisAddr:    "localhost:6379",
			RedisTimeout: D(3 * time.Second),
		},
		Scheduler: SchedulerConfig{
			Interval:      D(5 * time.Second),
			BaseDelay:     D(backoff.DefaultBase),
			MaxDelay:      D(backoff.DefaultMax),
			Concurrency:   4,
			EligibleRoles: []string{"user", "assistant"},
		},
		Remote: RemoteConfig{
			BaseURL:    "http://localhost:3000",
			Timeout:    D(30 * time.Second),
			RatePerSec: 5,
			Burst:      10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the brainbox configuration directory. BRAINBOX_HOME
// overrides the default ~/.brainbox.
func ConfigDir() (string, error) {
	if dir := os.Getenv("BRAINBOX_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".brainbox"), nil
}

// configPath returns a file inside the config directory.
func configPath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) { return configPath("config.toml") }

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) { return configPath("config.json") }

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) { return configPath("config.yaml") }

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens config files to 0600; they may hold a
// session token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory. It tries TOML, then
// JSON, then YAML, and falls back to defaults. Environment overrides are
// applied last.
func Load() (*Config, error) {
	finders := []func() (string, error){ConfigPathTOML, ConfigPathJSON, ConfigPathYAML}
	for _, find := range finders {
		path, err := find()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	warnPermissions(path)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadYAML decodes a YAML file over cfg.
func LoadYAML(cfg *Config, path string) error {
	warnPermissions(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return fillDefaults(cfg)
}

func warnPermissions(path string) {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
}

// LoadFromPath loads configuration from a specific file, picking the
// decoder by extension (TOML when unknown).
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = LoadJSON(cfg, path)
	case ".yaml", ".yml":
		err = LoadYAML(cfg, path)
	default:
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills values a file explicitly left empty.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = defaults.Queue.Backend
	}
	cfg.Queue.Backend = strings.ToLower(cfg.Queue.Backend)
	if cfg.Queue.DBName == "" {
		cfg.Queue.DBName = defaults.Queue.DBName
	}
	if cfg.Queue.StoreName == "" {
		cfg.Queue.StoreName = defaults.Queue.StoreName
	}
	if cfg.Queue.RedisAddr == "" {
		cfg.Queue.RedisAddr = defaults.Queue.RedisAddr
	}
	if cfg.Queue.RedisTimeout.Duration == 0 {
		cfg.Queue.RedisTimeout = defaults.Queue.RedisTimeout
	}

	if cfg.Scheduler.Interval.Duration == 0 {
		cfg.Scheduler.Interval = defaults.Scheduler.Interval
	}
	if cfg.Scheduler.BaseDelay.Duration == 0 {
		cfg.Scheduler.BaseDelay = defaults.Scheduler.BaseDelay
	}
	if cfg.Scheduler.MaxDelay.Duration == 0 {
		cfg.Scheduler.MaxDelay = defaults.Scheduler.MaxDelay
	}
	if cfg.Scheduler.Concurrency == 0 {
		cfg.Scheduler.Concurrency = defaults.Scheduler.Concurrency
	}
	if len(cfg.Scheduler.EligibleRoles) == 0 {
		cfg.Scheduler.EligibleRoles = defaults.Scheduler.EligibleRoles
	}

	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = defaults.Remote.BaseURL
	}
	if cfg.Remote.Timeout.Duration == 0 {
		cfg.Remote.Timeout = defaults.Remote.Timeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# brainbox retry queue configuration\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Queue
	switch c.Queue.Backend {
	case BackendSQLite, BackendFile, BackendRedis, BackendMemory:
	default:
		add("queue.backend", "invalid backend '%s', must be one of: sqlite, file, redis, memory", c.Queue.Backend)
	}
	if strings.ContainsAny(c.Queue.DBName+c.Queue.StoreName, ":/\\") {
		add("queue.db_name", "database and store names must not contain ':', '/' or '\\'")
	}
	if c.Queue.Backend == BackendRedis && c.Queue.RedisAddr == "" {
		add("queue.redis_addr", "required when backend is redis")
	}
	if c.Queue.RedisDB < 0 {
		add("queue.redis_db", "must be >= 0")
	}

	// Scheduler
	if c.Scheduler.Interval.Duration < 100*time.Millisecond {
		add("scheduler.interval", "must be at least 100ms, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.BaseDelay.Duration <= 0 {
		add("scheduler.base_delay", "must be positive")
	}
	if c.Scheduler.MaxDelay.Duration < c.Scheduler.BaseDelay.Duration {
		add("scheduler.max_delay", "must be >= base_delay (%s)", c.Scheduler.BaseDelay)
	}
	if c.Scheduler.Concurrency < 1 || c.Scheduler.Concurrency > 64 {
		add("scheduler.concurrency", "must be between 1 and 64, got %d", c.Scheduler.Concurrency)
	}
	for _, r := range c.Scheduler.EligibleRoles {
		if _, err := model.ParseRole(r); err != nil {
			add("scheduler.eligible_roles", "unknown role '%s'", r)
		}
	}

	// Remote
	if u, err := url.Parse(c.Remote.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("remote.base_url", "must be an http(s) URL, got '%s'", c.Remote.BaseURL)
	}
	if c.Remote.Timeout.Duration <= 0 {
		add("remote.timeout", "must be positive")
	}
	if c.Remote.RatePerSec < 0 {
		add("remote.rate_per_sec", "must be >= 0 (0 disables limiting)")
	}
	if c.Remote.Burst < 0 {
		add("remote.burst", "must be >= 0")
	}

	// Log
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "invalid level '%s'", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		add("log.format", "invalid format '%s', must be console or json", c.Log.Format)
	}

	// Server
	if c.Server.Enabled && c.Server.Addr == "" {
		add("server.addr", "required when the status server is enabled")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - BRAINBOX_QUEUE_BACKEND: queue.backend
//   - BRAINBOX_QUEUE_PATH: queue.path
//   - BRAINBOX_REDIS_ADDR, BRAINBOX_REDIS_PASSWORD: queue.redis_*
//   - BRAINBOX_INTERVAL: scheduler.interval
//   - BRAINBOX_SERVER_URL: remote.base_url
//   - BRAINBOX_TOKEN, BRAINBOX_COOKIE: remote credentials
//   - BRAINBOX_LOG_LEVEL, BRAINBOX_LOG_FORMAT: log.*
//   - BRAINBOX_STATUS_ADDR: server.addr (and enables the server)
//   - BRAINBOX_STATUS_TOKEN: server.token
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("BRAINBOX_QUEUE_BACKEND"); v != "" {
		c.Queue.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("BRAINBOX_QUEUE_PATH"); v != "" {
		c.Queue.Path = v
	}
	if v := os.Getenv("BRAINBOX_REDIS_ADDR"); v != "" {
		c.Queue.RedisAddr = v
	}
	if v := os.Getenv("BRAINBOX_REDIS_PASSWORD"); v != "" {
		c.Queue.RedisPassword = v
	}
	if v := os.Getenv("BRAINBOX_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scheduler.Interval = D(d)
		}
	}
	if v := os.Getenv("BRAINBOX_SERVER_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("BRAINBOX_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("BRAINBOX_COOKIE"); v != "" {
		c.Remote.Cookie = v
	}
	if v := os.Getenv("BRAINBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BRAINBOX_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("BRAINBOX_STATUS_ADDR"); v != "" {
		c.Server.Addr = v
		c.Server.Enabled = true
	}
	if v := os.Getenv("BRAINBOX_STATUS_TOKEN"); v != "" {
		c.Server.Token = v
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// QueuePath returns the store location, defaulting to queue.db (sqlite) or
// queue/ (file) inside the config directory.
func (c *Config) QueuePath() (string, error) {
	if c.Queue.Path != "" {
		return c.Queue.Path, nil
	}
	name := "queue.db"
	if c.Queue.Backend == BackendFile {
		name = "queue"
	}
	return configPath(name)
}

// Namespace returns the queue namespace.
func (c *Config) Namespace() queue.Namespace {
	return queue.Namespace{DB: c.Queue.DBName, Store: c.Queue.StoreName}.WithDefaults()
}

// Strategy returns the backoff strategy.
func (c *Config) Strategy() backoff.Strategy {
	return backoff.NewExponential(c.Scheduler.BaseDelay.Duration, c.Scheduler.MaxDelay.Duration)
}

// Roles returns the eligible roles. Unknown names are skipped; Validate
// reports them.
func (c *Config) Roles() []model.Role {
	roles := make([]model.Role, 0, len(c.Scheduler.EligibleRoles))
	for _, name := range c.Scheduler.EligibleRoles {
		if r, err := model.ParseRole(name); err == nil {
			roles = append(roles, r)
		}
	}
	return roles
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value using dot notation (e.g. "scheduler.interval").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a value using dot notation. String input is converted to the
// field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) == 0 {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct || field.Type() == reflect.TypeOf(Duration{}) {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to the Go field name.
// Acronym fields (BaseURL, RedisDB, DBName) match case-insensitively.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue assigns value to field with string conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		if d, ok := field.Addr().Interface().(*Duration); ok {
			return d.UnmarshalText([]byte(strVal))
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// String returns the configuration as JSON with credentials redacted.
func (c *Config) String() string {
	safe := *c
	if safe.Remote.Token != "" {
		safe.Remote.Token = "[REDACTED]"
	}
	if safe.Remote.Cookie != "" {
		safe.Remote.Cookie = "[REDACTED]"
	}
	if safe.Server.Token != "" {
		safe.Server.Token = "[REDACTED]"
	}
	if safe.Queue.RedisPassword != "" {
		safe.Queue.RedisPassword = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
