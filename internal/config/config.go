// Package config loads gateway configuration from a file and RESTGATE_*
// environment variables, then validates it against a CUE schema.
//
// Keys are case-insensitive, so SQL database names and script names are
// stored lower-cased; lookups go through SQLMappingFor and Script.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix = "RESTGATE"

	DefaultBackend        = "dataapi"
	DefaultDataAPIVersion = "vLatest"
	DefaultTimeout        = 30 * time.Second
	DefaultLoginRetries   = 3
	DefaultMaxRecords     = 100
)

// Config is the full gateway configuration.
type Config struct {
	// Backend is the proprietary connector used when the requested database
	// has no SQL mapping: "legacy", "dataapi", or "none" for SQL-only
	// deployments.
	Backend string                `json:"backend"       mapstructure:"backend"`
	Legacy  LegacyConfig          `json:"legacy"        mapstructure:"legacy"`
	DataAPI DataAPIConfig         `json:"dataapi"       mapstructure:"dataapi"`
	SQL     map[string]SQLMapping `json:"sql,omitempty" mapstructure:"sql"`
	HTTP    HTTPConfig            `json:"http"          mapstructure:"http"`
}

// LegacyConfig addresses the legacy XML endpoint.
type LegacyConfig struct {
	URL     string        `json:"url"     mapstructure:"url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// DataAPIConfig addresses the JSON data API.
type DataAPIConfig struct {
	URL          string        `json:"url"           mapstructure:"url"`
	Version      string        `json:"version"       mapstructure:"version"`
	Timeout      time.Duration `json:"timeout"       mapstructure:"timeout"`
	LoginRetries int           `json:"login_retries" mapstructure:"login_retries"`
}

// SQLMapping routes one database name to a database/sql driver.
type SQLMapping struct {
	Driver   string            `json:"driver"            mapstructure:"driver"`
	DSN      string            `json:"dsn"               mapstructure:"dsn"`
	IDColumn string            `json:"id_column"         mapstructure:"id_column"`
	Scripts  map[string]string `json:"scripts,omitempty" mapstructure:"scripts"`
}

// HTTPConfig holds defaults shared with the HTTP layer.
type HTTPConfig struct {
	MaxRecords int `json:"max_records" mapstructure:"max_records"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: DefaultBackend,
		Legacy:  LegacyConfig{Timeout: DefaultTimeout},
		DataAPI: DataAPIConfig{
			Version:      DefaultDataAPIVersion,
			Timeout:      DefaultTimeout,
			LoginRetries: DefaultLoginRetries,
		},
		HTTP: HTTPConfig{MaxRecords: DefaultMaxRecords},
	}
}

// SQLMappingFor returns the SQL mapping for database, if any.
func (c *Config) SQLMappingFor(database string) (SQLMapping, bool) {
	if c == nil || database == "" {
		return SQLMapping{}, false
	}
	m, ok := c.SQL[strings.ToLower(database)]
	return m, ok
}

// Script returns the statement configured for a script name.
func (m SQLMapping) Script(name string) (string, bool) {
	stmt, ok := m.Scripts[strings.ToLower(name)]
	return stmt, ok
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()

	def := Default()
	defaults := map[string]any{
		"backend":               def.Backend,
		"legacy.url":            def.Legacy.URL,
		"legacy.timeout":        def.Legacy.Timeout,
		"dataapi.url":           def.DataAPI.URL,
		"dataapi.version":       def.DataAPI.Version,
		"dataapi.timeout":       def.DataAPI.Timeout,
		"dataapi.login_retries": def.DataAPI.LoginRetries,
		"http.max_records":      def.HTTP.MaxRecords,
	}
	for key, value := range defaults {
		_ = v.BindEnv(key)
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize lower-cases map keys so lookups do not depend on whether a
// value came from a file or from the environment.
func (c *Config) normalize() {
	c.Backend = strings.ToLower(c.Backend)
	if len(c.SQL) == 0 {
		return
	}
	sql := make(map[string]SQLMapping, len(c.SQL))
	for name, m := range c.SQL {
		if len(m.Scripts) > 0 {
			scripts := make(map[string]string, len(m.Scripts))
			for k, stmt := range m.Scripts {
				scripts[strings.ToLower(k)] = stmt
			}
			m.Scripts = scripts
		}
		sql[strings.ToLower(name)] = m
	}
	c.SQL = sql
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")
