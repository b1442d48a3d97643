package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Reserved metadata keys. Keys set by the session layer and consumed by
// formatters and backends all live under the "excimetry." prefix.
const (
	KeyTimestamp = "excimetry.timestamp" // unix seconds the profile was captured
	KeyPeriod    = "excimetry.period"    // sampling period in seconds
	KeyMode      = "excimetry.mode"      // "wall" or "cpu"
	KeyTraceID   = "excimetry.trace_id"  // hex trace id injected by the collector backend
	KeySpanID    = "excimetry.span_id"   // hex span id injected by the collector backend
)

// ValueKind identifies the scalar type carried by a metadata Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
)

// Value is a tagged scalar metadata value. Keeping the type explicit gives
// every formatter an exhaustive mapping to its target representation instead
// of reflecting over an untyped interface at serialization time.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

// StringValue returns a Value holding a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// IntValue returns a Value holding an int64.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue returns a Value holding a float64.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BoolValue returns a Value holding a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the scalar type tag.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.s }

// Int returns the integer payload. Valid only for KindInt.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload. Valid only for KindFloat.
func (v Value) Float() float64 { return v.f }

// Bool returns the bool payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.b }

// String renders the canonical string form used wherever a target format
// only accepts string attributes (e.g. OTLP resource attributes).
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// MarshalJSON emits the native JSON scalar for the tagged type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}

// Metadata is an insertion-ordered mapping of string keys to scalar values.
// Iteration and JSON serialization preserve the order keys were first set,
// so repeated exports of the same profile are byte-for-byte reproducible.
type Metadata struct {
	keys   []string
	values map[string]Value
}

// NewMetadata returns an empty metadata mapping.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]Value)}
}

// Set inserts or updates a key. An updated key keeps its original position.
func (m *Metadata) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get looks up a key.
func (m *Metadata) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of entries.
func (m *Metadata) Len() int { return len(m.keys) }

// Range calls fn for every entry in insertion order. Iteration stops early
// when fn returns false.
func (m *Metadata) Range(fn func(key string, v Value) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns an independent copy. Backends that need to tag a profile at
// send time (e.g. trace context) clone the metadata instead of mutating the
// caller's profile.
func (m *Metadata) Clone() *Metadata {
	out := NewMetadata()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// MarshalJSON emits a JSON object with keys in insertion order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata value for %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
