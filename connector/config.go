package connector

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML either as a Go
// duration string ("3s", "250ms") or as a bare number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config represents database connection configuration.
type Config struct {
	Host           string            `json:"host" yaml:"host"`
	Port           int               `json:"port" yaml:"port"`
	Database       string            `json:"database" yaml:"database"`
	Username       string            `json:"username" yaml:"username"`
	Password       string            `json:"password" yaml:"password"`
	SSLMode        string            `json:"ssl_mode" yaml:"ssl_mode"`
	Params         map[string]string `json:"params" yaml:"params"`
	Pool           PoolConfig        `json:"pool" yaml:"pool"`
	ConnectTimeout Duration          `json:"connect_timeout" yaml:"connect_timeout"`
	Retry          *RetryConfig      `json:"retry,omitempty" yaml:"retry,omitempty"`

	// UseAliasSelection gates the "first|second" column-alias rewrite.
	UseAliasSelection bool `json:"use_alias_selection" yaml:"use_alias_selection"`
	// UseConditional gates #if/#elif/#else/#endif block resolution.
	UseConditional bool `json:"use_conditional" yaml:"use_conditional"`
}

// PoolConfig defines connection pool settings.
type PoolConfig struct {
	MinConns int `json:"min_conns" yaml:"min_conns"`
	MaxConns int `json:"max_conns" yaml:"max_conns"`
	// AcquireTimeout bounds how long Acquire blocks when every
	// connection is checked out. Zero means wait until the caller's
	// context expires.
	AcquireTimeout Duration `json:"acquire_timeout" yaml:"acquire_timeout"`
}

// RetryConfig defines connection retry behavior.
type RetryConfig struct {
	MaxRetries int      `json:"max_retries" yaml:"max_retries"`
	BaseDelay  Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay   Duration `json:"max_delay" yaml:"max_delay"`
}

// LoadConfig reads a YAML settings file into a Config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields every connection attempt needs.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Pool.MaxConns < 0 || c.Pool.MinConns < 0 {
		return fmt.Errorf("pool bounds must not be negative")
	}
	if c.Pool.MaxConns > 0 && c.Pool.MinConns > c.Pool.MaxConns {
		return fmt.Errorf("min_conns %d exceeds max_conns %d", c.Pool.MinConns, c.Pool.MaxConns)
	}
	return nil
}

// WithDefaults returns a copy with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.Pool.MaxConns == 0 {
		c.Pool.MaxConns = 10
	}
	return c
}

// DSN builds the PostgreSQL connection string for this config.
func (c *Config) DSN() string {
	return NewDSNBuilder("postgres").
		Auth(c.Username, c.Password).
		Host(c.Host, c.Port).
		Database(c.Database).
		Param("sslmode", c.SSLMode).
		Params(c.Params).
		Build()
}
