// Package observability wires OpenTelemetry trace export into Genkit.
//
// Traces are exported over OTLP HTTP to a local collector agent
// (localhost:4318 by default). The agent handles authentication,
// buffering, and forwarding to whatever backend is configured, so the
// application never needs backend credentials.
//
// Configuration (~/.libram/config.yaml):
//
//	tracing:
//	  agent_host: "localhost:4318"
//	  environment: "dev"
//	  service_name: "libram"
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP trace export.
type Config struct {
	// AgentHost is the OTLP collector endpoint (default: localhost:4318)
	AgentHost string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name attached to exported spans
	ServiceName string
}

// DefaultAgentHost is the default OTLP HTTP collector endpoint.
const DefaultAgentHost = "localhost:4318"

// SetupTracing registers an OTLP exporter with Genkit's TracerProvider.
// Must run before genkit.Init so the provider is ready when Genkit
// creates its first spans.
//
// Returns a shutdown function that flushes pending spans. Exporter
// creation failure disables tracing with a warning rather than failing
// startup.
func SetupTracing(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}

	// Genkit's TracerProvider reads service identity from the OTEL env
	// vars. Setenv here is safe: this runs exactly once during startup,
	// before any goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
