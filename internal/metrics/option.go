package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "customOtelCollector"
	InsecureOtel                = false
	SecureOtel                  = true
)

// NewOtelCollectorConfig exports metrics over OTLP/gRPC to url.
func NewOtelCollectorConfig(url string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OtelCollector,
		Endpoint: url,
		Headers:  headers,
		Insecure: insecure,
	}
}

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
	// Registerer receives the Prometheus collectors; defaults to the
	// process-wide registry.
	Registerer prometheus.Registerer
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)

		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName

		return config
	}
}

func WithRegisterer(reg prometheus.Registerer) OptionFn {
	return func(config Config) Config {
		config.Registerer = reg

		return config
	}
}

type PromServerConfig struct {
	port     string
	gatherer prometheus.Gatherer
}

type PromOptionFn func(config PromServerConfig) PromServerConfig

func WithPort(port string) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.port = port
		return config
	}
}

func WithGatherer(g prometheus.Gatherer) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		config.gatherer = g
		return config
	}
}
