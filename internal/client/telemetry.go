package client

import (
	"bh/internal/application/common/slogger"
	"bh/internal/version"
	"context"
	"errors"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Telemetry owns an in-process meter provider whose data is read back at
// the end of a command instead of being exported.
type Telemetry struct {
	Metrics  *RequestMetrics
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// Summary aggregates what a single invocation did on the network.
type Summary struct {
	Requests        int64
	Failed          int64
	DurationSeconds float64
	BytesDownloaded int64
	BytesUploaded   int64
}

// NewTelemetry builds a meter provider with a manual reader and the client instruments.
func NewTelemetry(ctx context.Context) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", version.ApplicationName),
			attribute.String("service.version", version.GetVersion().Version),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	metrics, err := NewRequestMetrics(provider)
	if err != nil {
		return nil, err
	}

	return &Telemetry{Metrics: metrics, reader: reader, provider: provider}, nil
}

// Summary collects the recorded metrics.
func (t *Telemetry) Summary(ctx context.Context) (Summary, error) {
	var summary Summary
	if t == nil {
		return summary, errors.New("telemetry is not initialized")
	}

	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return summary, err
	}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case RequestCounterName:
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					continue
				}
				for _, dp := range sum.DataPoints {
					summary.Requests += dp.Value
					if code, ok := dp.Attributes.Value(AttrStatusCode); ok && (code.AsInt64() == 0 || code.AsInt64() >= 400) {
						summary.Failed += dp.Value
					}
				}
			case RequestDurationName:
				hist, ok := m.Data.(metricdata.Histogram[float64])
				if !ok {
					continue
				}
				for _, dp := range hist.DataPoints {
					summary.DurationSeconds += dp.Sum
				}
			case TransferredBytesCounter:
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					continue
				}
				for _, dp := range sum.DataPoints {
					direction, _ := dp.Attributes.Value(AttrDirection)
					switch direction.AsString() {
					case DirectionDownload:
						summary.BytesDownloaded += dp.Value
					case DirectionUpload:
						summary.BytesUploaded += dp.Value
					}
				}
			}
		}
	}

	return summary, nil
}

// LogSummary writes the collected metrics at debug level.
func (t *Telemetry) LogSummary(ctx context.Context) {
	summary, err := t.Summary(ctx)
	if err != nil {
		slogger.Debug(ctx, "Failed to collect request metrics", slogger.Fields{"error": err.Error()})
		return
	}

	slogger.Debug(ctx, "Request summary", slogger.Fields{
		"requests":        summary.Requests,
		"failed":          summary.Failed,
		"request_seconds": summary.DurationSeconds,
		"downloaded":      humanize.IBytes(uint64(summary.BytesDownloaded)),
		"uploaded":        humanize.IBytes(uint64(summary.BytesUploaded)),
	})
}

// Shutdown releases the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
