// Package config defines the service configuration.
//
// Configuration is loaded from a YAML file with environment variable
// expansion (${VAR}, ${VAR:-default}). Every section implements
// SetDefaults() and Validate(); a zero-value Config is usable after
// SetDefaults().
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML decoding of values like "30s".
type Duration time.Duration

// UnmarshalYAML decodes a duration string or integer nanoseconds.
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
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML encodes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// StorageBackend identifies a job store backend.
type StorageBackend string

const (
	// StorageBackendInMemory keeps job records in process memory (default).
	StorageBackendInMemory StorageBackend = "inmemory"

	// StorageBackendSQLite persists job records to a SQLite database.
	StorageBackendSQLite StorageBackend = "sqlite"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SetDefaults applies server defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Port)
	}
	return nil
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// SetDefaults applies logging defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// StorageConfig configures job record persistence.
type StorageConfig struct {
	// Backend is "inmemory" (default) or "sqlite".
	Backend StorageBackend `yaml:"backend,omitempty"`

	// Path is the SQLite database file. Required when Backend is "sqlite".
	Path string `yaml:"path,omitempty"`
}

// SetDefaults applies storage defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StorageBackendInMemory
	}
}

// Validate checks the storage configuration.
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case StorageBackendInMemory:
		return nil
	case StorageBackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("storage: path is required for sqlite backend")
		}
		return nil
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Backend)
	}
}

// BreakerConfig configures the per-agent circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens a breaker.
	FailureThreshold int `yaml:"failure_threshold,omitempty"`

	// OpenDuration is the initial time an open breaker stays open.
	OpenDuration Duration `yaml:"open_duration,omitempty"`

	// MaxOpenDuration caps the exponential backoff of repeated failures.
	MaxOpenDuration Duration `yaml:"max_open_duration,omitempty"`
}

// SetDefaults applies breaker defaults.
func (c *BreakerConfig) SetDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.OpenDuration == 0 {
		c.OpenDuration = Duration(30 * time.Second)
	}
	if c.MaxOpenDuration == 0 {
		c.MaxOpenDuration = Duration(10 * time.Minute)
	}
}

// Validate checks the breaker configuration.
func (c *BreakerConfig) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("breaker: failure_threshold must be >= 1")
	}
	if c.MaxOpenDuration < c.OpenDuration {
		return fmt.Errorf("breaker: max_open_duration must be >= open_duration")
	}
	return nil
}

// OrchestratorConfig configures job orchestration.
type OrchestratorConfig struct {
	// JobDeadline bounds a whole job; tasks still outstanding when it
	// elapses are force-settled as timed out.
	JobDeadline Duration `yaml:"job_deadline,omitempty"`

	// DefaultAgents is the agent subset used when a submission names none.
	DefaultAgents []string `yaml:"default_agents,omitempty"`

	// MaxQueryLength rejects overlong queries at submission.
	MaxQueryLength int `yaml:"max_query_length,omitempty"`
}

// SetDefaults applies orchestrator defaults.
func (c *OrchestratorConfig) SetDefaults() {
	if c.JobDeadline == 0 {
		c.JobDeadline = Duration(2 * time.Minute)
	}
	if c.MaxQueryLength == 0 {
		c.MaxQueryLength = 500
	}
}

// Validate checks the orchestrator configuration.
func (c *OrchestratorConfig) Validate() error {
	if c.JobDeadline.Duration() < time.Second {
		return fmt.Errorf("orchestrator: job_deadline must be >= 1s")
	}
	return nil
}

// RetentionConfig configures job record eviction.
type RetentionConfig struct {
	// TTL is how long settled jobs are retained.
	TTL Duration `yaml:"ttl,omitempty"`

	// MaxJobs caps the number of retained jobs; oldest are evicted first.
	MaxJobs int `yaml:"max_jobs,omitempty"`

	// SweepInterval is how often the sweeper runs.
	SweepInterval Duration `yaml:"sweep_interval,omitempty"`
}

// SetDefaults applies retention defaults.
func (c *RetentionConfig) SetDefaults() {
	if c.TTL == 0 {
		c.TTL = Duration(time.Hour)
	}
	if c.MaxJobs == 0 {
		c.MaxJobs = 100
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = Duration(5 * time.Minute)
	}
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether metrics are on (default true).
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AgentConfig configures one analysis agent.
type AgentConfig struct {
	// Timeout bounds a single live invocation of this agent.
	Timeout Duration `yaml:"timeout,omitempty"`

	// APIURL is the upstream data source endpoint for the live path.
	APIURL string `yaml:"api_url,omitempty"`

	// APIKey authenticates against the upstream source.
	APIKey string `yaml:"api_key,omitempty"`

	// UseAPI enables the live path; when false the agent always serves
	// from its local fallback data.
	UseAPI bool `yaml:"use_api,omitempty"`
}

// SetDefaults applies per-agent defaults.
func (c *AgentConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = Duration(10 * time.Second)
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.UseAPI && c.APIURL == "" {
		return fmt.Errorf("agent: api_url is required when use_api is set")
	}
	return nil
}

// Config is the root configuration.
type Config struct {
	Server       ServerConfig            `yaml:"server,omitempty"`
	Logging      LoggingConfig           `yaml:"logging,omitempty"`
	Storage      StorageConfig           `yaml:"storage,omitempty"`
	Breaker      BreakerConfig           `yaml:"breaker,omitempty"`
	Orchestrator OrchestratorConfig      `yaml:"orchestrator,omitempty"`
	Retention    RetentionConfig         `yaml:"retention,omitempty"`
	Metrics      MetricsConfig           `yaml:"metrics,omitempty"`
	Agents       map[string]*AgentConfig `yaml:"agents,omitempty"`
}

// SetDefaults applies defaults to all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Storage.SetDefaults()
	c.Breaker.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.Retention.SetDefaults()
	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}
	for _, ac := range c.Agents {
		ac.SetDefaults()
	}
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Breaker.Validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	for name, ac := range c.Agents {
		if err := ac.Validate(); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
	}
	return nil
}

// Agent returns the configuration for the named agent, creating a
// defaulted entry if none is configured.
func (c *Config) Agent(name string) *AgentConfig {
	if ac, ok := c.Agents[name]; ok {
		return ac
	}
	ac := &AgentConfig{}
	ac.SetDefaults()
	return ac
}

// Load reads, expands, decodes, defaults, and validates a config file.
// An empty path yields a defaulted config.
func Load(path string) (*Config, error) {
	LoadEnvFiles()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
