package format

import (
	"bytes"
	"strconv"

	"github.com/excimetry/excimetry/pkg/profile"
)

// CollapsedOptions configures the collapsed formatter. The zero value emits
// root-to-leaf stacks joined by ";".
type CollapsedOptions struct {
	// ReverseStack emits frames leaf-to-root instead of root-to-leaf.
	ReverseStack bool
	// Delimiter joins frames within one stack. Defaults to ";".
	Delimiter string
}

// Collapsed aggregates identical stacks and emits one "<stack> <count>" line
// per distinct stack, in first-seen order. This is the text format consumed
// by flamegraph tooling.
type Collapsed struct {
	opts CollapsedOptions
}

// NewCollapsed returns a collapsed formatter.
func NewCollapsed(opts CollapsedOptions) *Collapsed {
	if opts.Delimiter == "" {
		opts.Delimiter = profile.StackDelimiter
	}
	return &Collapsed{opts: opts}
}

// Format aggregates the profile's samples. Samples with the same stack key
// have their counts summed; keys keep the order of first appearance. An
// empty profile yields empty output.
func (f *Collapsed) Format(p *profile.Profile) ([]byte, error) {
	counts := make(map[string]int64, len(p.Samples))
	order := make([]string, 0, len(p.Samples))

	for _, s := range p.Samples {
		frames := s.Frames
		if f.opts.ReverseStack {
			frames = reversed(frames)
		}
		key := profile.Sample{Frames: frames}.StackKey(f.opts.Delimiter)
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key] += s.Count
	}

	var buf bytes.Buffer
	for _, key := range order {
		buf.WriteString(key)
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatInt(counts[key], 10))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ContentType implements Formatter.
func (f *Collapsed) ContentType() string { return "text/plain" }

// FileExtension implements Formatter.
func (f *Collapsed) FileExtension() string { return "txt" }

func reversed(frames []string) []string {
	out := make([]string, len(frames))
	for i, fr := range frames {
		out[len(frames)-1-i] = fr
	}
	return out
}
