package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/excimetry/excimetry/pkg/format"
	"github.com/excimetry/excimetry/pkg/profile"
)

// tracesPath is the OTLP/HTTP trace ingestion path, fixed by the protocol.
const tracesPath = "/v1/traces"

// CollectorConfig configures an OTLP collector backend.
type CollectorConfig struct {
	// Endpoint is the collector base URL; the backend always posts to
	// <Endpoint>/v1/traces.
	Endpoint string

	// ServiceName is carried as the service.name resource attribute.
	ServiceName string

	// Encoding selects the OTLP formatter encoding. Defaults to
	// EncodingReadable.
	Encoding format.Encoding

	// Headers are extra request headers (e.g. authentication).
	Headers map[string]string

	// TraceID and SpanID, when set, tag every exported profile with an
	// existing trace context. They are written into the profile metadata
	// at send time and picked up by the OTLP formatter.
	TraceID string
	SpanID  string

	// Timeout bounds each individual attempt. Defaults to 10s.
	Timeout time.Duration

	// Options is the delivery policy.
	Options Options
}

// Collector ships OTLP payloads to a trace collector. The formatter is kept
// in sync with the backend configuration: service name, encoding and trace
// context all flow from the same config, and reconfiguring produces a new
// backend instance rather than mutating this one.
type Collector struct {
	cfg       CollectorConfig
	formatter *format.OTLP
	client    *http.Client
	url       string
	logger    zerolog.Logger
}

// NewCollector returns a collector backend. A missing endpoint or an
// unknown encoding is a configuration error.
func NewCollector(cfg CollectorConfig) (*Collector, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Encoding == 0 {
		cfg.Encoding = format.EncodingReadable
	}
	formatter, err := format.NewOTLP(format.OTLPOptions{
		ServiceName: cfg.ServiceName,
		Encoding:    cfg.Encoding,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Options = cfg.Options.withDefaults()

	headers := make(map[string]string, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	headers["Accept"] = formatter.ContentType()
	cfg.Headers = headers

	return &Collector{
		cfg:       cfg,
		formatter: formatter,
		client:    &http.Client{Timeout: cfg.Timeout},
		url:       strings.TrimRight(cfg.Endpoint, "/") + tracesPath,
		logger:    cfg.Options.Logger.With().Str("backend", "otlp_collector").Str("endpoint", cfg.Endpoint).Logger(),
	}, nil
}

// WithServiceName returns a new backend exporting under a different service
// name.
func (b *Collector) WithServiceName(name string) (*Collector, error) {
	cfg := b.cfg
	cfg.ServiceName = name
	return NewCollector(cfg)
}

// WithEncoding returns a new backend using a different OTLP encoding. The
// Accept header is recomputed by NewCollector from the new formatter.
func (b *Collector) WithEncoding(enc format.Encoding) (*Collector, error) {
	cfg := b.cfg
	cfg.Encoding = enc
	return NewCollector(cfg)
}

// WithTraceContext returns a new backend tagging every export with the
// given trace and span ids (lowercase hex).
func (b *Collector) WithTraceContext(traceID, spanID string) (*Collector, error) {
	cfg := b.cfg
	cfg.TraceID = traceID
	cfg.SpanID = spanID
	return NewCollector(cfg)
}

// Formatter exposes the backend's OTLP formatter, mainly for callers that
// want to inspect the effective encoding or service name.
func (b *Collector) Formatter() *format.OTLP { return b.formatter }

// Send implements Backend. The trace context, when configured, is applied
// to a metadata copy so the caller's profile stays untouched.
func (b *Collector) Send(ctx context.Context, p *profile.Profile) bool {
	export := p
	if b.cfg.TraceID != "" || b.cfg.SpanID != "" {
		md := p.Metadata.Clone()
		if b.cfg.TraceID != "" {
			md.Set(profile.KeyTraceID, profile.StringValue(b.cfg.TraceID))
		}
		if b.cfg.SpanID != "" {
			md.Set(profile.KeySpanID, profile.StringValue(b.cfg.SpanID))
		}
		export = profile.New(p.Samples, md)
	}

	payload, err := b.formatter.Format(export)
	if err != nil {
		b.logger.Error().Err(err).Msg("formatting profile failed")
		return false
	}

	return deliver(ctx, b.cfg.Options, b.logger, func(ctx context.Context) error {
		return postBytes(ctx, b.client, b.url, b.formatter.ContentType(), b.cfg.Headers, payload)
	}, nil)
}

// Available probes the collector's trace endpoint.
func (b *Collector) Available(ctx context.Context) bool {
	return probeURL(ctx, b.client, b.url)
}
