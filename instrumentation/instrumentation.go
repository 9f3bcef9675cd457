// Package instrumentation provides OpenTelemetry metrics and tracing for
// the authorization-server library. When disabled it falls back to no-op
// providers with zero overhead.
package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when no service name is configured
	DefaultServiceName = "oauth-wrap"

	// DefaultServiceVersion is used when no version is configured
	DefaultServiceVersion = "unknown"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active.
	// When false, no-op providers are used.
	Enabled bool

	// Resource allows custom resource attributes. If nil, a default
	// resource is created with service name and version.
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	// Initialize providers based on configuration. Metric instruments are
	// created either way so call sites stay unconditional.
	if config.Enabled {
		if err := inst.initializeProviders(); err != nil {
			return nil, fmt.Errorf("failed to initialize providers: %w", err)
		}
	} else {
		// Use no-op providers for zero overhead
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	metrics, err := newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	inst.metrics = metrics

	return inst, nil
}

// initializeProviders initializes metric and trace providers for enabled
// instrumentation. Currently uses no-op providers; actual exporters
// (Prometheus, OTLP, stdout) can be added in a backward-compatible way.
func (i *Instrumentation) initializeProviders() error {
	i.meterProvider = noop.NewMeterProvider()
	i.tracerProvider = tracenoop.NewTracerProvider()
	return nil
}

// Shutdown gracefully shuts down all instrumentation providers
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope ("channel", "server",
// "storage").
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter("github.com/giantswarm/oauth-wrap/" + scope)
}

// Tracer returns a named tracer for the given scope.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer("github.com/giantswarm/oauth-wrap/" + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// StorageSizeCallback reports the current size of one storage component.
type StorageSizeCallback func() int64

// RegisterStorageSizeCallbacks registers gauges for store sizes. Storage
// implementations call this after instrumentation is wired.
func (i *Instrumentation) RegisterStorageSizeCallbacks(clients, grants, nonces StorageSizeCallback) error {
	meter := i.Meter("storage")

	_, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			if clients != nil {
				observer.ObserveInt64(i.metrics.StorageClientsCount, clients())
			}
			if grants != nil {
				observer.ObserveInt64(i.metrics.StorageGrantsCount, grants())
			}
			if nonces != nil {
				observer.ObserveInt64(i.metrics.StorageNoncesCount, nonces())
			}
			return nil
		},
		i.metrics.StorageClientsCount,
		i.metrics.StorageGrantsCount,
		i.metrics.StorageNoncesCount,
	)
	return err
}
