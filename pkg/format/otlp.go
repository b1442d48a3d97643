package format

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/excimetry/excimetry/pkg/profile"
)

// ErrUnknownEncoding reports an encoding selector outside the known set. It
// is a configuration error raised by NewOTLP, never defaulted.
var ErrUnknownEncoding = errors.New("unknown otlp encoding")

// Encoding selects the OTLP wire representation.
type Encoding int

const (
	// EncodingReadable serializes samples as spans in OTLP/JSON.
	EncodingReadable Encoding = iota + 1
	// EncodingBinary serializes samples as gauge metrics in OTLP protobuf.
	EncodingBinary
)

// String returns the selector name for the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingReadable:
		return "readable"
	case EncodingBinary:
		return "binary"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding maps a selector string to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "readable":
		return EncodingReadable, nil
	case "binary":
		return EncodingBinary, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// Per-record attribute keys.
const (
	attrStack = "excimetry.stack"
	attrCount = "excimetry.count"
)

// serviceNameKey is the reserved OTLP resource attribute for the service
// name.
const serviceNameKey = "service.name"

// scopeName identifies this library in the OTLP instrumentation scope.
const scopeName = "excimetry"

// OTLPOptions configures the OTLP formatter.
type OTLPOptions struct {
	// ServiceName is carried as the service.name resource attribute.
	// Defaults to "excimetry".
	ServiceName string
	// Encoding selects readable (JSON spans) or binary (protobuf gauges).
	Encoding Encoding
}

// OTLP maps each sample to one trace- or metric-shaped record. The record
// name is the leaf frame; the synthetic time range starts at the profile's
// capture timestamp and spans one millisecond per profiler tick.
//
// Compatibility caveat: the two encodings are schematically different. The
// readable encoding produces spans, the binary encoding produces gauge
// metrics, for the same logical content. Callers switching encodings must
// expect a different shape, not just a different serialization.
type OTLP struct {
	opts OTLPOptions
}

// NewOTLP returns an OTLP formatter. An encoding outside the known set
// fails with ErrUnknownEncoding.
func NewOTLP(opts OTLPOptions) (*OTLP, error) {
	if opts.Encoding != EncodingReadable && opts.Encoding != EncodingBinary {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEncoding, int(opts.Encoding))
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "excimetry"
	}
	return &OTLP{opts: opts}, nil
}

// ServiceName returns the configured service name.
func (f *OTLP) ServiceName() string { return f.opts.ServiceName }

// Encoding returns the configured encoding.
func (f *OTLP) Encoding() Encoding { return f.opts.Encoding }

// Format implements Formatter.
func (f *OTLP) Format(p *profile.Profile) ([]byte, error) {
	start := p.Timestamp()
	if start.IsZero() {
		start = time.Now()
	}

	if f.opts.Encoding == EncodingBinary {
		return f.formatMetrics(p, start)
	}
	return f.formatTraces(p, start)
}

func (f *OTLP) formatTraces(p *profile.Profile, start time.Time) ([]byte, error) {
	td := ptrace.NewTraces()
	rs := td.ResourceSpans().AppendEmpty()
	f.fillResource(rs.Resource().Attributes(), p)

	ss := rs.ScopeSpans().AppendEmpty()
	ss.Scope().SetName(scopeName)

	traceID := traceIDFromMetadata(p.Metadata)
	parentSpanID, hasParent := spanIDFromMetadata(p.Metadata)

	for _, s := range p.Samples {
		span := ss.Spans().AppendEmpty()
		span.SetName(s.Leaf())
		span.SetTraceID(traceID)
		span.SetSpanID(newSpanID())
		if hasParent {
			span.SetParentSpanID(parentSpanID)
		}
		span.SetStartTimestamp(pcommon.NewTimestampFromTime(start))
		span.SetEndTimestamp(pcommon.NewTimestampFromTime(start.Add(time.Duration(s.Count) * time.Millisecond)))
		span.Attributes().PutStr(attrStack, s.StackKey(profile.StackDelimiter))
		span.Attributes().PutInt(attrCount, s.Count)
	}

	out, err := (&ptrace.JSONMarshaler{}).MarshalTraces(td)
	if err != nil {
		return nil, fmt.Errorf("marshaling otlp traces: %w", err)
	}
	return out, nil
}

func (f *OTLP) formatMetrics(p *profile.Profile, start time.Time) ([]byte, error) {
	md := pmetric.NewMetrics()
	rm := md.ResourceMetrics().AppendEmpty()
	f.fillResource(rm.Resource().Attributes(), p)

	sm := rm.ScopeMetrics().AppendEmpty()
	sm.Scope().SetName(scopeName)

	for _, s := range p.Samples {
		m := sm.Metrics().AppendEmpty()
		m.SetName(s.Leaf())
		m.SetUnit("samples")
		dp := m.SetEmptyGauge().DataPoints().AppendEmpty()
		dp.SetStartTimestamp(pcommon.NewTimestampFromTime(start))
		dp.SetTimestamp(pcommon.NewTimestampFromTime(start.Add(time.Duration(s.Count) * time.Millisecond)))
		dp.SetIntValue(s.Count)
		dp.Attributes().PutStr(attrStack, s.StackKey(profile.StackDelimiter))
		dp.Attributes().PutInt(attrCount, s.Count)
	}

	out, err := (&pmetric.ProtoMarshaler{}).MarshalMetrics(md)
	if err != nil {
		return nil, fmt.Errorf("marshaling otlp metrics: %w", err)
	}
	return out, nil
}

// fillResource attaches the service name and every profile metadata entry as
// string resource attributes. Metadata keys outside the excimetry namespace
// are prefixed so exported resources stay recognizable.
func (f *OTLP) fillResource(attrs pcommon.Map, p *profile.Profile) {
	attrs.PutStr(serviceNameKey, f.opts.ServiceName)
	p.Metadata.Range(func(key string, v profile.Value) bool {
		if !strings.HasPrefix(key, "excimetry.") {
			key = "excimetry." + key
		}
		attrs.PutStr(key, v.String())
		return true
	})
}

// traceIDFromMetadata uses an injected trace id when one is present and
// valid, otherwise generates a fresh one.
func traceIDFromMetadata(md *profile.Metadata) pcommon.TraceID {
	if v, ok := md.Get(profile.KeyTraceID); ok {
		if raw, err := hex.DecodeString(v.String()); err == nil && len(raw) == 16 {
			var id pcommon.TraceID
			copy(id[:], raw)
			return id
		}
	}
	return pcommon.TraceID(uuid.New())
}

// spanIDFromMetadata decodes an injected parent span id, if any.
func spanIDFromMetadata(md *profile.Metadata) (pcommon.SpanID, bool) {
	v, ok := md.Get(profile.KeySpanID)
	if !ok {
		return pcommon.SpanID{}, false
	}
	raw, err := hex.DecodeString(v.String())
	if err != nil || len(raw) != 8 {
		return pcommon.SpanID{}, false
	}
	var id pcommon.SpanID
	copy(id[:], raw)
	return id, true
}

func newSpanID() pcommon.SpanID {
	u := uuid.New()
	var id pcommon.SpanID
	copy(id[:], u[:8])
	return id
}

// ContentType implements Formatter.
func (f *OTLP) ContentType() string {
	if f.opts.Encoding == EncodingBinary {
		return "application/x-protobuf"
	}
	return "application/json"
}

// FileExtension implements Formatter.
func (f *OTLP) FileExtension() string {
	if f.opts.Encoding == EncodingBinary {
		return "bin"
	}
	return "json"
}
