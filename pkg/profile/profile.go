// Package profile defines the in-memory profile model shared by every
// formatter and backend: ordered stack samples, insertion-ordered metadata,
// the raw sample log parser, and the frame table that assigns stable integer
// identities to frame names.
package profile

import (
	"strings"
	"time"
)

// StackDelimiter separates frames in a raw sample line and in stack keys.
const StackDelimiter = ";"

// Sample is one call-stack observation: the frames root-to-leaf and the
// number of profiler ticks attributed to that stack.
type Sample struct {
	Frames []string
	Count  int64
}

// StackKey joins the sample's frames with delim. It is the aggregation key
// used by the collapsed formatter and the stack attribute carried by the
// OTLP formatter.
func (s Sample) StackKey(delim string) string {
	return strings.Join(s.Frames, delim)
}

// Leaf returns the innermost frame, or "" for an empty stack.
func (s Sample) Leaf() string {
	if len(s.Frames) == 0 {
		return ""
	}
	return s.Frames[len(s.Frames)-1]
}

// Profile is the read-only input to every formatter. Samples keep the order
// they appeared in the raw log. Owners may extend Metadata before export;
// formatters never mutate it.
type Profile struct {
	Samples  []Sample
	Metadata *Metadata
}

// New builds a profile. A nil metadata is replaced with an empty one so
// formatters never have to nil-check.
func New(samples []Sample, metadata *Metadata) *Profile {
	if metadata == nil {
		metadata = NewMetadata()
	}
	return &Profile{Samples: samples, Metadata: metadata}
}

// Timestamp returns the capture time recorded under KeyTimestamp, or the
// zero time when absent. Integer and float values are both accepted as unix
// seconds.
func (p *Profile) Timestamp() time.Time {
	v, ok := p.Metadata.Get(KeyTimestamp)
	if !ok {
		return time.Time{}
	}
	switch v.Kind() {
	case KindInt:
		return time.Unix(v.Int(), 0)
	case KindFloat:
		sec := int64(v.Float())
		nsec := int64((v.Float() - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec)
	default:
		return time.Time{}
	}
}
