package format

import (
	"bytes"
	"fmt"
	"time"

	gprofile "github.com/google/pprof/profile"

	"github.com/excimetry/excimetry/pkg/profile"
)

// defaultPeriod is assumed when the profile carries no sampling period:
// one tick per millisecond, matching the synthetic OTLP time mapping.
const defaultPeriod = 0.001

// PprofOptions configures the pprof formatter.
type PprofOptions struct {
	// SampleType names the duration sample type ("wall" or "cpu"). When
	// empty it is taken from the profile's mode metadata, falling back to
	// "wall".
	SampleType string
}

// Pprof renders the profile as a gzipped pprof protobuf. Each sample's tick
// count is also expressed as nanoseconds using the recorded sampling period.
type Pprof struct {
	opts PprofOptions
}

// NewPprof returns a pprof formatter.
func NewPprof(opts PprofOptions) *Pprof {
	return &Pprof{opts: opts}
}

// Format implements Formatter.
func (f *Pprof) Format(p *profile.Profile) ([]byte, error) {
	period := defaultPeriod
	if v, ok := p.Metadata.Get(profile.KeyPeriod); ok && v.Kind() == profile.KindFloat && v.Float() > 0 {
		period = v.Float()
	}
	periodNanos := int64(period * float64(time.Second))

	sampleType := f.opts.SampleType
	if sampleType == "" {
		sampleType = "wall"
		if v, ok := p.Metadata.Get(profile.KeyMode); ok && v.String() != "" {
			sampleType = v.String()
		}
	}

	prof := &gprofile.Profile{
		SampleType: []*gprofile.ValueType{
			{Type: sampleType, Unit: "nanoseconds"},
			{Type: "samples", Unit: "count"},
		},
		PeriodType: &gprofile.ValueType{Type: sampleType, Unit: "nanoseconds"},
		Period:     periodNanos,
	}
	if ts := p.Timestamp(); !ts.IsZero() {
		prof.TimeNanos = ts.UnixNano()
	}

	functions := make(map[string]*gprofile.Function)
	locations := make(map[string]*gprofile.Location)

	for _, s := range p.Samples {
		// pprof wants the leaf first.
		locs := make([]*gprofile.Location, 0, len(s.Frames))
		for i := len(s.Frames) - 1; i >= 0; i-- {
			locs = append(locs, f.locationFor(prof, functions, locations, s.Frames[i]))
		}
		prof.Sample = append(prof.Sample, &gprofile.Sample{
			Location: locs,
			Value:    []int64{s.Count * periodNanos, s.Count},
		})
	}

	var buf bytes.Buffer
	if err := prof.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing pprof profile: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Pprof) locationFor(
	prof *gprofile.Profile,
	functions map[string]*gprofile.Function,
	locations map[string]*gprofile.Location,
	name string,
) *gprofile.Location {
	if loc, ok := locations[name]; ok {
		return loc
	}

	fn, ok := functions[name]
	if !ok {
		fn = &gprofile.Function{
			ID:         uint64(len(prof.Function) + 1),
			Name:       name,
			SystemName: name,
		}
		functions[name] = fn
		prof.Function = append(prof.Function, fn)
	}

	loc := &gprofile.Location{
		ID:   uint64(len(prof.Location) + 1),
		Line: []gprofile.Line{{Function: fn}},
	}
	locations[name] = loc
	prof.Location = append(prof.Location, loc)
	return loc
}

// ContentType implements Formatter.
func (f *Pprof) ContentType() string { return "application/octet-stream" }

// FileExtension implements Formatter.
func (f *Pprof) FileExtension() string { return "pb.gz" }
