package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names recorded by the client transport.
const (
	RequestCounterName      = "bh_client_requests_total"
	RequestDurationName     = "bh_client_request_duration_seconds"
	TransferredBytesCounter = "bh_client_transfer_bytes_total"
)

// Attribute keys for request metrics.
const (
	AttrTarget     = "target"
	AttrMethod     = "method"
	AttrStatusCode = "status_code"
	AttrDirection  = "direction"
)

// Request targets and transfer directions.
const (
	TargetAPI  = "api"
	TargetFile = "file"

	DirectionDownload = "download"
	DirectionUpload   = "upload"
)

const meterName = "bh/internal/client"

// RequestMetrics records request counts, latency and transferred bytes.
// A nil *RequestMetrics is valid and records nothing.
type RequestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	transfer metric.Int64Counter
}

// NewRequestMetrics creates the client instruments on provider.
func NewRequestMetrics(provider metric.MeterProvider) (*RequestMetrics, error) {
	if provider == nil {
		return nil, errors.New("meter provider cannot be nil")
	}

	meter := provider.Meter(meterName)

	requests, err := meter.Int64Counter(
		RequestCounterName,
		metric.WithDescription("Number of HTTP requests sent"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		RequestDurationName,
		metric.WithDescription("Time until response headers were received"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	transfer, err := meter.Int64Counter(
		TransferredBytesCounter,
		metric.WithDescription("Bytes moved to or from storage"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &RequestMetrics{
		requests: requests,
		duration: duration,
		transfer: transfer,
	}, nil
}

// Transport wraps base so every round trip is recorded under target.
func (m *RequestMetrics) Transport(base http.RoundTripper, target string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if m == nil {
		return base
	}
	return &instrumentedTransport{base: base, target: target, metrics: m}
}

func (m *RequestMetrics) recordTransfer(ctx context.Context, direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.transfer.Add(ctx, n, metric.WithAttributes(attribute.String(AttrDirection, direction)))
}

type instrumentedTransport struct {
	base    http.RoundTripper
	target  string
	metrics *RequestMetrics
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	resp, err := t.base.RoundTrip(req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrTarget, t.target),
		attribute.String(AttrMethod, req.Method),
		attribute.Int(AttrStatusCode, status),
	)
	t.metrics.requests.Add(ctx, 1, attrs)
	t.metrics.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil || t.target != TargetFile || status < 200 || status >= 300 {
		return resp, err
	}

	switch req.Method {
	case http.MethodPut:
		t.metrics.recordTransfer(ctx, DirectionUpload, req.ContentLength)
	case http.MethodGet:
		resp.Body = &countingBody{ReadCloser: resp.Body, ctx: ctx, metrics: t.metrics}
	}
	return resp, nil
}

// countingBody records the bytes read from a download once it is closed.
type countingBody struct {
	io.ReadCloser
	ctx     context.Context
	metrics *RequestMetrics
	n       int64
	once    sync.Once
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

func (b *countingBody) Close() error {
	b.once.Do(func() {
		b.metrics.recordTransfer(context.WithoutCancel(b.ctx), DirectionDownload, b.n)
	})
	return b.ReadCloser.Close()
}
