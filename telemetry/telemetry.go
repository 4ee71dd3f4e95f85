// Package telemetry wires OpenTelemetry tracing and log export for processes that host
// state machines. Engines always emit spans through the global tracer provider; this
// package decides where those spans, and optionally slog records, are shipped.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/amp-labs/amp-hfsm/logger"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	defaultServiceName    = "hfsm"
	defaultServiceVersion = "1.0.0"
	defaultTimeout        = 5 * time.Second

	inClusterEndpoint = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"
)

// ErrInvalidEnv is returned when a telemetry environment variable cannot be parsed.
var ErrInvalidEnv = errors.New("invalid telemetry environment variable")

var (
	tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals
	loggerProvider *sdklog.LoggerProvider   //nolint:gochecknoglobals
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Enabled        bool
	Logs           bool
	Timeout        time.Duration
}

// LoadConfigFromEnv loads the configuration from OTEL_ENABLED, OTEL_LOGS_ENABLED,
// OTEL_SERVICE_NAME, OTEL_SERVICE_VERSION, OTEL_EXPORTER_OTLP_ENDPOINT and
// OTEL_EXPORTER_OTLP_TIMEOUT.
func LoadConfigFromEnv(ctx context.Context, runningEnv string) (*Config, error) {
	enabled, err := envBool("OTEL_ENABLED", false)
	if err != nil {
		return nil, err
	}

	logs, err := envBool("OTEL_LOGS_ENABLED", false)
	if err != nil {
		return nil, err
	}

	timeout, err := envDuration("OTEL_EXPORTER_OTLP_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, err
	}

	// Inside Kubernetes default to the cluster collector.
	defaultEndpoint := ""
	if envString("KUBERNETES_SERVICE_HOST", "") != "" {
		defaultEndpoint = inClusterEndpoint
	}

	serviceName := logger.GetSubsystem(ctx)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	return &Config{
		ServiceName:    envString("OTEL_SERVICE_NAME", serviceName),
		ServiceVersion: envString("OTEL_SERVICE_VERSION", defaultServiceVersion),
		Environment:    runningEnv,
		Endpoint:       envString("OTEL_EXPORTER_OTLP_ENDPOINT", defaultEndpoint),
		Enabled:        enabled,
		Logs:           logs,
		Timeout:        timeout,
	}, nil
}

// Initialize installs the global tracer provider and, when Logs is set, the global
// logger provider. It does nothing when telemetry is disabled or has no endpoint.
func Initialize(ctx context.Context, config *Config) error {
	if !config.Enabled {
		logger.Get(ctx).Info("OpenTelemetry is disabled")

		return nil
	}

	if config.Endpoint == "" {
		logger.Get(ctx).Warn("OpenTelemetry endpoint not configured, telemetry will be disabled")

		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.Logs {
		logExporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(config.Endpoint),
			otlploghttp.WithTimeout(config.Timeout),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}

		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)

		global.SetLoggerProvider(loggerProvider)
	}

	logger.Get(ctx).Info("OpenTelemetry initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"endpoint", config.Endpoint,
		"logs", config.Logs,
	)

	return nil
}

// Logger returns a slog logger whose records are exported through the OTLP log
// pipeline, or the process logger when log export is not initialized.
func Logger(ctx context.Context, name string) *slog.Logger {
	if loggerProvider == nil {
		return logger.Get(ctx)
	}

	return otelslog.NewLogger(name, otelslog.WithLoggerProvider(loggerProvider))
}

// Shutdown flushes and stops whatever Initialize installed.
func Shutdown(ctx context.Context) error {
	var errs []error

	if loggerProvider != nil {
		logger.Get(ctx).Info("Shutting down OpenTelemetry logger provider")

		errs = append(errs, loggerProvider.Shutdown(ctx))
		loggerProvider = nil
	}

	if tracerProvider != nil {
		logger.Get(ctx).Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, tracerProvider.Shutdown(ctx))
		tracerProvider = nil
	}

	return errors.Join(errs...)
}

func envString(key, dfl string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}

	return dfl
}

func envBool(key string, dfl bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return dfl, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, key, value, err)
	}

	return parsed, nil
}

func envDuration(key string, dfl time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return dfl, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, key, value, err)
	}

	return parsed, nil
}
