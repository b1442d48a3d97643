package format

import (
	"encoding/json"
	"fmt"

	"github.com/excimetry/excimetry/pkg/profile"
)

// speedscopeVersion is the evented document format version.
const speedscopeVersion = "1.0.0"

// Event type markers in the evented document.
const (
	eventOpen  = "O"
	eventClose = "C"
)

// SpeedscopeOptions configures the evented formatter.
type SpeedscopeOptions struct {
	// ProfileName labels the exported profile record. Defaults to
	// "excimetry".
	ProfileName string
}

// Speedscope converts the sample sequence into an evented timeline for
// interactive flamegraph viewers: a balanced stream of open/close events
// over a synthetic time axis, one virtual time unit per profiler tick.
//
// Every open and close event occupies one tick of its own, which keeps
// event times strictly increasing (viewers reject zero-width events) but
// means endValue exceeds the plain sum of sample counts by the number of
// emitted events minus one per sample.
//
// Known quirk, preserved for viewer compatibility: whether an open frame
// must be closed is decided by checking if its name occurs anywhere in the
// next sample, not at the matching stack depth. A frame name recurring at a
// different depth is therefore treated as still open, which can under-close
// frames.
type Speedscope struct {
	opts SpeedscopeOptions
}

// NewSpeedscope returns an evented formatter.
func NewSpeedscope(opts SpeedscopeOptions) *Speedscope {
	if opts.ProfileName == "" {
		opts.ProfileName = "excimetry"
	}
	return &Speedscope{opts: opts}
}

type speedscopeDocument struct {
	Version            string              `json:"version"`
	Frames             []speedscopeFrame   `json:"frames"`
	Profiles           []speedscopeProfile `json:"profiles"`
	ActiveProfileIndex int                 `json:"activeProfileIndex"`
	Metadata           *profile.Metadata   `json:"metadata"`
}

type speedscopeFrame struct {
	Name string `json:"name"`
}

type speedscopeProfile struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Unit       string            `json:"unit"`
	StartValue int64             `json:"startValue"`
	EndValue   int64             `json:"endValue"`
	Events     []speedscopeEvent `json:"events"`
}

type speedscopeEvent struct {
	Type  string `json:"type"`
	At    int64  `json:"at"`
	Frame int    `json:"frame"`
}

// Format builds the evented document and serializes it as JSON.
func (f *Speedscope) Format(p *profile.Profile) ([]byte, error) {
	table := profile.BuildFrameTable(p.Samples)
	events, endValue := buildEvents(p.Samples, table)

	frames := make([]speedscopeFrame, table.Len())
	for i, name := range table.Names() {
		frames[i] = speedscopeFrame{Name: name}
	}

	doc := speedscopeDocument{
		Version: speedscopeVersion,
		Frames:  frames,
		Profiles: []speedscopeProfile{{
			Type:       "evented",
			Name:       f.opts.ProfileName,
			Unit:       "samples",
			StartValue: 0,
			EndValue:   endValue,
			Events:     events,
		}},
		ActiveProfileIndex: 0,
		Metadata:           p.Metadata,
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling evented document: %w", err)
	}
	return out, nil
}

// buildEvents diffs consecutive stacks into open/close events. For each
// sample it closes the open frames whose names no longer occur in the
// sample, opens the sample's frames that are not already open, then advances
// the clock by the remainder of the sample's count. After the last sample
// every frame left open is closed, so the stream always balances: at any
// prefix opens minus closes is >= 0 and at the end it is exactly 0.
func buildEvents(samples []profile.Sample, table *profile.FrameTable) ([]speedscopeEvent, int64) {
	var (
		events    []speedscopeEvent
		openStack []int
		tick      int64
	)

	for _, s := range samples {
		ids := make([]int, len(s.Frames))
		inSample := make(map[int]bool, len(s.Frames))
		for i, name := range s.Frames {
			id, _ := table.ID(name)
			ids[i] = id
			inSample[id] = true
		}

		// Close frames that fell off the stack. Membership is tested
		// against the whole sample, not the matching depth (see the
		// quirk note on the type).
		for len(openStack) > 0 && !inSample[openStack[len(openStack)-1]] {
			top := openStack[len(openStack)-1]
			openStack = openStack[:len(openStack)-1]
			events = append(events, speedscopeEvent{Type: eventClose, At: tick, Frame: top})
			tick++
		}

		isOpen := make(map[int]bool, len(openStack))
		for _, id := range openStack {
			isOpen[id] = true
		}

		// Open the sample's new frames root-to-leaf.
		for _, id := range ids {
			if isOpen[id] {
				continue
			}
			events = append(events, speedscopeEvent{Type: eventOpen, At: tick, Frame: id})
			tick++
			openStack = append(openStack, id)
			isOpen[id] = true
		}

		// The leaf tick is already spent; account for the rest of the
		// sample's duration.
		tick += s.Count - 1
	}

	for len(openStack) > 0 {
		top := openStack[len(openStack)-1]
		openStack = openStack[:len(openStack)-1]
		events = append(events, speedscopeEvent{Type: eventClose, At: tick, Frame: top})
		tick++
	}

	return events, tick
}

// ContentType implements Formatter.
func (f *Speedscope) ContentType() string { return "application/json" }

// FileExtension implements Formatter.
func (f *Speedscope) FileExtension() string { return "json" }
