package agentlens

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DropLogConfig configures the local audit file that preserves the contents
// of dropped batches. Disabled by default.
type DropLogConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" env:"AGENTLENS_DROPLOG_ENABLED"`
	Path       string `yaml:"path" json:"path" env:"AGENTLENS_DROPLOG_PATH"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Config controls the full export pipeline. Zero values fall back to the
// documented defaults; only Endpoint is required.
type Config struct {
	// Endpoint is the backend ingestion endpoint. Accepts host:port or a
	// full URL; an explicit http:// or https:// scheme overrides Insecure.
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"AGENTLENS_ENDPOINT"`
	// Insecure disables TLS for bare host:port endpoints.
	Insecure bool `yaml:"insecure" json:"insecure" env:"AGENTLENS_INSECURE"`
	// Protocol selects the transport: "http" (default) or "grpc".
	Protocol string `yaml:"protocol" json:"protocol" env:"AGENTLENS_PROTOCOL"`

	// APIKey authenticates the producer. Sent as X-Api-Key.
	APIKey string `yaml:"api_key" json:"api_key" env:"AGENTLENS_API_KEY"`
	// Project scopes spans to a project. Sent as X-Project-Id.
	Project string `yaml:"project" json:"project" env:"AGENTLENS_PROJECT"`
	// Stream scopes spans to an ingestion stream. Sent as X-Stream-Id.
	Stream string `yaml:"stream" json:"stream" env:"AGENTLENS_STREAM"`
	// Username and Password add HTTP basic auth for proxied backends.
	Username string `yaml:"username" json:"username" env:"AGENTLENS_USERNAME"`
	Password string `yaml:"password" json:"password" env:"AGENTLENS_PASSWORD"`
	// Headers are extra headers attached to every delivery.
	Headers map[string]string `yaml:"headers" json:"headers"`

	// ServiceName and ServiceVersion identify the producer in the exported
	// resource.
	ServiceName    string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
	ServiceVersion string `yaml:"service_version" json:"service_version" env:"SERVICE_VERSION"`

	// Sampler selects which traces are captured: "always" (default),
	// "never", or "ratio:<0..1>". The root span decides; children inherit.
	Sampler string `yaml:"sampler" json:"sampler" env:"AGENTLENS_SAMPLER"`

	// BatchSize seals a batch when this many records accumulate.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BatchTimeout seals a non-empty batch this long after its first record.
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	// QueueSize bounds the intake queue between span producers and the
	// buffer. A full queue drops, never blocks.
	QueueSize int `yaml:"queue_size" json:"queue_size"`

	// MaxRetries bounds delivery retries after the first attempt.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// RetryInitialInterval is the first backoff delay.
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval" json:"retry_initial_interval"`
	// RetryMaxInterval caps the backoff delay.
	RetryMaxInterval time.Duration `yaml:"retry_max_interval" json:"retry_max_interval"`
	// RetryMultiplier grows the delay between attempts.
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// RequestTimeout bounds each individual delivery attempt.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// FlushTimeout bounds the shutdown drain.
	FlushTimeout time.Duration `yaml:"flush_timeout" json:"flush_timeout"`

	// Development enables human-readable diagnostic logging.
	Development bool `yaml:"development" json:"development" env:"AGENTLENS_DEVELOPMENT"`
	// LogLevel sets the diagnostic log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" env:"AGENTLENS_LOG_LEVEL"`
	// Logger overrides the internally constructed diagnostic logger.
	Logger *zap.Logger `yaml:"-" json:"-"`

	// DropLog configures the dropped-batch audit file.
	DropLog DropLogConfig `yaml:"drop_log" json:"drop_log"`
}

// Default returns the production configuration. The endpoint and
// credentials must still be set before use.
func Default() Config {
	return Config{
		Protocol:             "http",
		Sampler:              "always",
		BatchSize:            512,
		BatchTimeout:         5 * time.Second,
		QueueSize:            2048,
		MaxRetries:           5,
		RetryInitialInterval: 500 * time.Millisecond,
		RetryMaxInterval:     30 * time.Second,
		RetryMultiplier:      2.0,
		RequestTimeout:       10 * time.Second,
		FlushTimeout:         30 * time.Second,
		LogLevel:             "info",
	}
}

// Development returns a configuration tuned for local work: small batches,
// quick flushes, verbose console logging.
func Development() Config {
	cfg := Default()
	cfg.Development = true
	cfg.LogLevel = "debug"
	cfg.BatchSize = 16
	cfg.BatchTimeout = time.Second
	cfg.FlushTimeout = 5 * time.Second
	return cfg
}

// WithEndpoint sets the backend endpoint.
func (c Config) WithEndpoint(endpoint string) Config {
	c.Endpoint = endpoint
	return c
}

// WithCredentials sets the API key, project, and stream in one call.
func (c Config) WithCredentials(apiKey, project, stream string) Config {
	c.APIKey = apiKey
	c.Project = project
	c.Stream = stream
	return c
}

// WithService sets the exported resource identity.
func (c Config) WithService(name, version string) Config {
	c.ServiceName = name
	c.ServiceVersion = version
	return c
}

// WithSampler sets the sampling policy.
func (c Config) WithSampler(sampler string) Config {
	c.Sampler = sampler
	return c
}

// WithBatching overrides the batch size and age trigger.
func (c Config) WithBatching(size int, timeout time.Duration) Config {
	c.BatchSize = size
	c.BatchTimeout = timeout
	return c
}

// WithLogger supplies an external diagnostic logger.
func (c Config) WithLogger(log *zap.Logger) Config {
	c.Logger = log
	return c
}

// yamlDuration accepts "2s"-style duration strings in config files; a bare
// integer is taken as nanoseconds, matching the yaml default for int64.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = yamlDuration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration node %q", value.Value)
	}
	*d = yamlDuration(n)
	return nil
}

// configYAML shadows Config for file decoding so duration fields accept
// human-readable strings.
type configYAML struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Protocol string `yaml:"protocol"`

	APIKey   string            `yaml:"api_key"`
	Project  string            `yaml:"project"`
	Stream   string            `yaml:"stream"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Headers  map[string]string `yaml:"headers"`

	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`

	Sampler string `yaml:"sampler"`

	BatchSize    int          `yaml:"batch_size"`
	BatchTimeout yamlDuration `yaml:"batch_timeout"`
	QueueSize    int          `yaml:"queue_size"`

	MaxRetries           int          `yaml:"max_retries"`
	RetryInitialInterval yamlDuration `yaml:"retry_initial_interval"`
	RetryMaxInterval     yamlDuration `yaml:"retry_max_interval"`
	RetryMultiplier      float64      `yaml:"retry_multiplier"`
	RequestTimeout       yamlDuration `yaml:"request_timeout"`
	FlushTimeout         yamlDuration `yaml:"flush_timeout"`

	Development bool   `yaml:"development"`
	LogLevel    string `yaml:"log_level"`

	DropLog DropLogConfig `yaml:"drop_log"`
}

// UnmarshalYAML decodes through the shadow struct. Fields absent from the
// document keep whatever the target already holds, so defaults survive.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	raw := configYAML{
		Endpoint:             c.Endpoint,
		Insecure:             c.Insecure,
		Protocol:             c.Protocol,
		APIKey:               c.APIKey,
		Project:              c.Project,
		Stream:               c.Stream,
		Username:             c.Username,
		Password:             c.Password,
		Headers:              c.Headers,
		ServiceName:          c.ServiceName,
		ServiceVersion:       c.ServiceVersion,
		Sampler:              c.Sampler,
		BatchSize:            c.BatchSize,
		BatchTimeout:         yamlDuration(c.BatchTimeout),
		QueueSize:            c.QueueSize,
		MaxRetries:           c.MaxRetries,
		RetryInitialInterval: yamlDuration(c.RetryInitialInterval),
		RetryMaxInterval:     yamlDuration(c.RetryMaxInterval),
		RetryMultiplier:      c.RetryMultiplier,
		RequestTimeout:       yamlDuration(c.RequestTimeout),
		FlushTimeout:         yamlDuration(c.FlushTimeout),
		Development:          c.Development,
		LogLevel:             c.LogLevel,
		DropLog:              c.DropLog,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Endpoint = raw.Endpoint
	c.Insecure = raw.Insecure
	c.Protocol = raw.Protocol
	c.APIKey = raw.APIKey
	c.Project = raw.Project
	c.Stream = raw.Stream
	c.Username = raw.Username
	c.Password = raw.Password
	c.Headers = raw.Headers
	c.ServiceName = raw.ServiceName
	c.ServiceVersion = raw.ServiceVersion
	c.Sampler = raw.Sampler
	c.BatchSize = raw.BatchSize
	c.BatchTimeout = time.Duration(raw.BatchTimeout)
	c.QueueSize = raw.QueueSize
	c.MaxRetries = raw.MaxRetries
	c.RetryInitialInterval = time.Duration(raw.RetryInitialInterval)
	c.RetryMaxInterval = time.Duration(raw.RetryMaxInterval)
	c.RetryMultiplier = raw.RetryMultiplier
	c.RequestTimeout = time.Duration(raw.RequestTimeout)
	c.FlushTimeout = time.Duration(raw.FlushTimeout)
	c.Development = raw.Development
	c.LogLevel = raw.LogLevel
	c.DropLog = raw.DropLog
	return nil
}

// LoadConfig reads a YAML configuration file and applies environment
// overrides on top of it. Fields absent from both keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
// Environment always wins over file values.
func (c *Config) applyEnv() {
	setEnvString(&c.Endpoint, "AGENTLENS_ENDPOINT")
	setEnvString(&c.Protocol, "AGENTLENS_PROTOCOL")
	setEnvString(&c.APIKey, "AGENTLENS_API_KEY")
	setEnvString(&c.Project, "AGENTLENS_PROJECT")
	setEnvString(&c.Stream, "AGENTLENS_STREAM")
	setEnvString(&c.Username, "AGENTLENS_USERNAME")
	setEnvString(&c.Password, "AGENTLENS_PASSWORD")
	setEnvString(&c.ServiceName, "SERVICE_NAME")
	setEnvString(&c.ServiceVersion, "SERVICE_VERSION")
	setEnvString(&c.Sampler, "AGENTLENS_SAMPLER")
	setEnvString(&c.LogLevel, "AGENTLENS_LOG_LEVEL")
	setEnvBool(&c.Insecure, "AGENTLENS_INSECURE")
	setEnvBool(&c.Development, "AGENTLENS_DEVELOPMENT")
}

func setEnvString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setEnvBool(dst *bool, key string) {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	}
}
