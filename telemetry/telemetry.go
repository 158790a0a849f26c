// Package telemetry publishes session and delivery metrics over
// OpenTelemetry. A nil *Metrics is valid and records nothing, so callers
// never have to guard their instrumentation sites.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/quicmoq/moqt"

// Metrics carries the instruments the session layer reports into.
type Metrics struct {
	sessionsOpened      metric.Int64Counter
	sessionsClosed      metric.Int64Counter
	subscriptionsActive metric.Int64UpDownCounter
	objectsSent         metric.Int64Counter
	objectBytesSent     metric.Int64Counter
	objectsReceived     metric.Int64Counter
	objectBytesReceived metric.Int64Counter
	controlSent         metric.Int64Counter
	controlReceived     metric.Int64Counter
}

// NewMetrics registers the session instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.sessionsOpened, err = meter.Int64Counter("moqt.sessions.opened",
		metric.WithDescription("Sessions that completed the setup handshake")); err != nil {
		return nil, err
	}
	if m.sessionsClosed, err = meter.Int64Counter("moqt.sessions.closed",
		metric.WithDescription("Sessions that terminated")); err != nil {
		return nil, err
	}
	if m.subscriptionsActive, err = meter.Int64UpDownCounter("moqt.subscriptions.active",
		metric.WithDescription("Currently served downstream subscriptions")); err != nil {
		return nil, err
	}
	if m.objectsSent, err = meter.Int64Counter("moqt.objects.sent",
		metric.WithDescription("Objects written to data streams and datagrams")); err != nil {
		return nil, err
	}
	if m.objectBytesSent, err = meter.Int64Counter("moqt.objects.sent.bytes",
		metric.WithDescription("Payload bytes written to data streams and datagrams"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.objectsReceived, err = meter.Int64Counter("moqt.objects.received",
		metric.WithDescription("Objects fully received from data streams and datagrams")); err != nil {
		return nil, err
	}
	if m.objectBytesReceived, err = meter.Int64Counter("moqt.objects.received.bytes",
		metric.WithDescription("Payload bytes received from data streams and datagrams"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.controlSent, err = meter.Int64Counter("moqt.control.sent",
		metric.WithDescription("Control messages sent")); err != nil {
		return nil, err
	}
	if m.controlReceived, err = meter.Int64Counter("moqt.control.received",
		metric.WithDescription("Control messages received")); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsFromGlobal registers the instruments on the globally installed
// meter provider.
func NewMetricsFromGlobal() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider().Meter(meterName))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Add(context.Background(), 1)
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsClosed.Add(context.Background(), 1)
}

func (m *Metrics) SubscriptionStarted() {
	if m == nil {
		return
	}
	m.subscriptionsActive.Add(context.Background(), 1)
}

func (m *Metrics) SubscriptionEnded() {
	if m == nil {
		return
	}
	m.subscriptionsActive.Add(context.Background(), -1)
}

func (m *Metrics) ObjectSent(payloadBytes int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.objectsSent.Add(ctx, 1)
	m.objectBytesSent.Add(ctx, int64(payloadBytes))
}

func (m *Metrics) ObjectReceived(payloadBytes int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.objectsReceived.Add(ctx, 1)
	m.objectBytesReceived.Add(ctx, int64(payloadBytes))
}

func (m *Metrics) ControlMessageSent() {
	if m == nil {
		return
	}
	m.controlSent.Add(context.Background(), 1)
}

func (m *Metrics) ControlMessageReceived() {
	if m == nil {
		return
	}
	m.controlReceived.Add(context.Background(), 1)
}

// Setup installs a global meter provider that exports over OTLP gRPC to the
// given endpoint. The returned function flushes and shuts the provider down.
func Setup(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}
