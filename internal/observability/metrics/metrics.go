package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	documentsRendered metric.Int64Counter
	documentPages     metric.Int64Histogram
	documentFailures  metric.Int64Counter
	invoiceWrites     metric.Int64Counter
	auditWrites       metric.Int64Counter
	emailsSent        metric.Int64Counter
	rateLimitAllowed  metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New creates the domain instruments on provider's meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "vetbilling"
	}
	b := instrumentBuilder{meter: provider.Meter(name)}

	m := &Metrics{
		documentsRendered: b.counter("vetbilling_documents_rendered_total", "Invoice PDFs generated.", "{document}"),
		documentPages: b.histogram("vetbilling_document_pages", "Pages per generated invoice PDF.", "{page}",
			1, 2, 3, 5, 10, 25, 50),
		documentFailures: b.counter("vetbilling_document_failures_total", "Invoice PDFs rejected or failed.", "{document}"),
		invoiceWrites:    b.counter("vetbilling_invoice_writes_total", "Invoice record mutations.", "{write}"),
		auditWrites:      b.counter("vetbilling_audit_writes_total", "Write operations recorded in the audit log.", "{entry}"),
		emailsSent:       b.counter("vetbilling_emails_sent_total", "Transactional emails attempted.", "{email}"),
		rateLimitAllowed: b.counter("vetbilling_rate_limit_allowed_total", "Requests admitted by the rate limiter.", "{request}"),
		rateLimitDenied:  b.counter("vetbilling_rate_limit_denied_total", "Requests rejected by the rate limiter.", "{request}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// instrumentBuilder keeps the first instrument creation error.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("counter %s: %w", name, err)
	}
	return c
}

func (b *instrumentBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Int64Histogram {
	h, err := b.meter.Int64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("histogram %s: %w", name, err)
	}
	return h
}

// RecordDocumentRendered counts a generated document and its page count.
func (m *Metrics) RecordDocumentRendered(ctx context.Context, currency string, pages int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("currency", strings.TrimSpace(currency)))
	m.documentsRendered.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.documentPages.Record(ctx, int64(pages), metric.WithAttributes(attrs...))
}

// RecordDocumentFailure counts rejected or failed document renders.
func (m *Metrics) RecordDocumentFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.documentFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceWrite counts invoice record mutations by operation.
func (m *Metrics) RecordInvoiceWrite(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("operation", strings.TrimSpace(operation)))
	m.invoiceWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuditWrite counts audit log inserts.
func (m *Metrics) RecordAuditWrite(ctx context.Context, method string, ok bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("method", strings.TrimSpace(method)),
		attribute.Bool("success", ok),
	)
	m.auditWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmailSent counts outgoing transactional emails.
func (m *Metrics) RecordEmailSent(ctx context.Context, template string, ok bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("template", strings.TrimSpace(template)),
		attribute.Bool("success", ok),
	)
	m.emailsSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"currency":    {},
	"operation":   {},
	"method":      {},
	"template":    {},
	"success":     {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
