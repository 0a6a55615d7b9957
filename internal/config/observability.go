package config

// TracingConfig holds OTLP trace export configuration.
//
// Traces are exported over OTLP/HTTP to a local collector.
// See internal/observability/tracing.go for setup.
type TracingConfig struct {
	// AgentHost is the OTLP collector endpoint (default: localhost:4318)
	AgentHost string `mapstructure:"agent_host" json:"agent_host"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name attached to exported spans (default: libram)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
