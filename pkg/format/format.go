// Package format converts a profile into one of the known output
// representations: collapsed flamegraph text, the speedscope evented JSON
// document, OTLP trace/metric payloads, and binary pprof.
package format

import (
	"errors"
	"fmt"

	"github.com/excimetry/excimetry/pkg/profile"
)

// ErrUnknownKind reports a format selector outside the known set. It is a
// configuration error and is raised at selection time, never defaulted.
var ErrUnknownKind = errors.New("unknown format kind")

// Formatter serializes a profile into a byte payload for delivery. All
// implementations are pure, synchronous transforms over the read-only
// profile; the same profile may be formatted many times and concurrently.
type Formatter interface {
	// Format renders the profile.
	Format(p *profile.Profile) ([]byte, error)
	// ContentType returns the MIME type of the payload.
	ContentType() string
	// FileExtension returns the suggested file extension, without dot.
	FileExtension() string
}

// Kind enumerates the closed set of formatter kinds.
type Kind int

const (
	KindCollapsed Kind = iota + 1
	KindSpeedscope
	KindOTLP
	KindPprof
)

// String returns the selector name for the kind.
func (k Kind) String() string {
	switch k {
	case KindCollapsed:
		return "collapsed"
	case KindSpeedscope:
		return "speedscope"
	case KindOTLP:
		return "otlp"
	case KindPprof:
		return "pprof"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a selector string to a Kind. Unknown selectors fail with
// ErrUnknownKind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "collapsed":
		return KindCollapsed, nil
	case "speedscope":
		return KindSpeedscope, nil
	case "otlp":
		return KindOTLP, nil
	case "pprof":
		return KindPprof, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}
