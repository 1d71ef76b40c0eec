// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fd1az/handshake-client/internal/circuitbreaker"
	"github.com/fd1az/handshake-client/pkg/transport"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Node      NodeConfig      `mapstructure:"node"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Events    EventsConfig    `mapstructure:"events"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// NodeConfig describes the hsd node HTTP and socket server.
type NodeConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	User    string        `mapstructure:"user"`
	APIKey  string        `mapstructure:"api_key"`
	SSL     bool          `mapstructure:"ssl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Endpoint converts the node section into a transport endpoint.
func (c NodeConfig) Endpoint() transport.Endpoint {
	return transport.Endpoint{
		SSL:     c.SSL,
		Host:    c.Host,
		Port:    c.Port,
		User:    c.User,
		APIKey:  c.APIKey,
		Timeout: c.Timeout,
	}
}

// WalletConfig describes the wallet server. Host, SSL, user and timeout are
// shared with the node.
type WalletConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	ID     string `mapstructure:"id"`
}

// WalletEndpoint builds the wallet endpoint on the node's host.
func (c *Config) WalletEndpoint() transport.Endpoint {
	ep := c.Node.Endpoint()
	ep.Port = c.Wallet.Port
	if c.Wallet.APIKey != "" {
		ep.APIKey = c.Wallet.APIKey
	}
	return ep
}

// EventsConfig selects the socket subscriptions.
type EventsConfig struct {
	WatchChain    bool          `mapstructure:"watch_chain"`
	WatchMempool  bool          `mapstructure:"watch_mempool"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
}

// LimitsConfig holds optional client-side guards. Zero values disable them.
type LimitsConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the circuit breaker around HTTP calls.
type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Interval            time.Duration `mapstructure:"interval"`
}

// CircuitBreaker returns the breaker config for name, or nil when disabled.
func (c BreakerConfig) CircuitBreaker(name string) *circuitbreaker.Config {
	if !c.Enabled {
		return nil
	}
	cfg := circuitbreaker.DefaultConfig(name)
	if c.ConsecutiveFailures > 0 {
		cfg.ConsecutiveFailures = c.ConsecutiveFailures
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.Interval > 0 {
		cfg.Interval = c.Interval
	}
	return &cfg
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // console, zipkin, otlp-http, otlp-grpc
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	// TraceBodies adds request and response bodies to HTTP spans.
	TraceBodies bool `mapstructure:"trace_bodies"`
}

// HealthConfig holds the health server settings. Port 0 disables it.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("HSC")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "HSC_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "HSC_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "HSC_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("app.log_format", "HSC_LOG_FORMAT")

	// Node
	_ = v.BindEnv("node.host", "HSC_NODE_HOST", "HSD_HOST")
	_ = v.BindEnv("node.port", "HSC_NODE_PORT", "HSD_PORT")
	_ = v.BindEnv("node.user", "HSC_NODE_USER")
	_ = v.BindEnv("node.api_key", "HSC_NODE_API_KEY", "HSD_API_KEY")
	_ = v.BindEnv("node.ssl", "HSC_NODE_SSL")
	_ = v.BindEnv("node.timeout", "HSC_NODE_TIMEOUT")

	// Wallet
	_ = v.BindEnv("wallet.port", "HSC_WALLET_PORT")
	_ = v.BindEnv("wallet.api_key", "HSC_WALLET_API_KEY")
	_ = v.BindEnv("wallet.id", "HSC_WALLET_ID")

	// Events
	_ = v.BindEnv("events.watch_chain", "HSC_WATCH_CHAIN")
	_ = v.BindEnv("events.watch_mempool", "HSC_WATCH_MEMPOOL")

	// Limits
	_ = v.BindEnv("limits.requests_per_minute", "HSC_REQUESTS_PER_MINUTE")
	_ = v.BindEnv("limits.breaker.enabled", "HSC_BREAKER_ENABLED")

	// Telemetry
	_ = v.BindEnv("telemetry.enabled", "HSC_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "HSC_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.trace_provider", "HSC_TRACE_PROVIDER")
	_ = v.BindEnv("telemetry.otlp_endpoint", "HSC_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.prometheus_port", "HSC_PROMETHEUS_PORT")
	_ = v.BindEnv("telemetry.trace_bodies", "HSC_TRACE_BODIES")

	// Health
	_ = v.BindEnv("health.port", "HSC_HEALTH_PORT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "hsclient")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// Node defaults, hsd mainnet
	v.SetDefault("node.host", "127.0.0.1")
	v.SetDefault("node.port", 12037)
	v.SetDefault("node.user", transport.DefaultUser)
	v.SetDefault("node.ssl", false)
	v.SetDefault("node.timeout", transport.DefaultTimeout)

	// Wallet defaults
	v.SetDefault("wallet.port", 12039)
	v.SetDefault("wallet.id", "primary")

	// Events defaults
	v.SetDefault("events.watch_chain", true)
	v.SetDefault("events.watch_mempool", true)
	v.SetDefault("events.queue_capacity", 256)
	v.SetDefault("events.call_timeout", "30s")

	// Limits defaults
	v.SetDefault("limits.requests_per_minute", 0)
	v.SetDefault("limits.breaker.enabled", false)
	v.SetDefault("limits.breaker.consecutive_failures", 5)
	v.SetDefault("limits.breaker.timeout", "30s")
	v.SetDefault("limits.breaker.interval", "60s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "hsclient")
	v.SetDefault("telemetry.trace_provider", "console")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.trace_bodies", false)

	// Health defaults
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Node.Endpoint().Validate(); err != nil {
		return fmt.Errorf("node: %w", err)
	}
	if c.Wallet.Port < 0 || c.Wallet.Port > 65535 {
		return fmt.Errorf("wallet.port out of range: %d", c.Wallet.Port)
	}
	if c.Node.Timeout < 0 {
		return fmt.Errorf("node.timeout cannot be negative")
	}
	if c.Limits.RequestsPerMinute < 0 {
		return fmt.Errorf("limits.requests_per_minute cannot be negative")
	}
	switch c.Telemetry.TraceProvider {
	case "", "console", "zipkin", "otlp-http", "otlp-grpc":
	default:
		return fmt.Errorf("unknown telemetry.trace_provider: %s", c.Telemetry.TraceProvider)
	}
	switch c.App.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown app.log_format: %s", c.App.LogFormat)
	}
	return nil
}
