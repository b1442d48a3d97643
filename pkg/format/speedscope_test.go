package format

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excimetry/excimetry/pkg/profile"
)

func formatSpeedscope(t *testing.T, raw string) speedscopeDocument {
	t.Helper()

	md := profile.NewMetadata()
	md.Set(profile.KeyMode, profile.StringValue("wall"))
	p := profile.New(profile.NewParser().Parse(raw), md)

	out, err := NewSpeedscope(SpeedscopeOptions{ProfileName: "test"}).Format(p)
	require.NoError(t, err)

	var doc speedscopeDocument
	require.NoError(t, json.Unmarshal(out, &doc))
	return doc
}

// checkBalanced runs Open=+1/Close=-1 over the events: the running depth
// never goes negative and ends at exactly zero.
func checkBalanced(t *testing.T, events []speedscopeEvent) {
	t.Helper()

	depth := 0
	opens, closes := 0, 0
	for i, ev := range events {
		switch ev.Type {
		case eventOpen:
			depth++
			opens++
		case eventClose:
			depth--
			closes++
		default:
			t.Fatalf("event %d has unknown type %q", i, ev.Type)
		}
		require.GreaterOrEqual(t, depth, 0, "depth went negative at event %d", i)
	}
	assert.Zero(t, depth, "every opened frame must be closed")
	assert.Equal(t, opens, closes)
}

func checkTicksStrictlyIncreasing(t *testing.T, events []speedscopeEvent) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		require.Greater(t, events[i].At, events[i-1].At,
			"event %d at=%d not after event %d at=%d", i, events[i].At, i-1, events[i-1].At)
	}
}

func TestSpeedscope_EndToEndExample(t *testing.T) {
	doc := formatSpeedscope(t, "main;A;B 1\nmain;A;C 2\n")

	assert.Equal(t, []speedscopeFrame{{"main"}, {"A"}, {"B"}, {"C"}}, doc.Frames)
	require.Len(t, doc.Profiles, 1)

	prof := doc.Profiles[0]
	assert.Equal(t, "evented", prof.Type)
	assert.Equal(t, "test", prof.Name)
	assert.Equal(t, "samples", prof.Unit)
	assert.Equal(t, int64(0), prof.StartValue)
	assert.Equal(t, 0, doc.ActiveProfileIndex)

	expected := []speedscopeEvent{
		{Type: "O", At: 0, Frame: 0}, // main
		{Type: "O", At: 1, Frame: 1}, // A
		{Type: "O", At: 2, Frame: 2}, // B
		{Type: "C", At: 3, Frame: 2}, // B left the stack
		{Type: "O", At: 4, Frame: 3}, // C
		{Type: "C", At: 6, Frame: 3}, // final unwind after count=2 sample
		{Type: "C", At: 7, Frame: 1},
		{Type: "C", At: 8, Frame: 0},
	}
	assert.Equal(t, expected, prof.Events)
	assert.Equal(t, int64(9), prof.EndValue)

	checkBalanced(t, prof.Events)
	checkTicksStrictlyIncreasing(t, prof.Events)
}

func TestSpeedscope_BalanceInvariant(t *testing.T) {
	raws := []string{
		"a 1\n",
		"a;b;c 3\na;b 1\na;d 2\ne 1\n",
		"x;y 1\nx;y 1\nx;y 1\n",
		"a;b;c;d;e 10\nf 1\na;b 2\n",
	}
	for _, raw := range raws {
		doc := formatSpeedscope(t, raw)
		prof := doc.Profiles[0]
		checkBalanced(t, prof.Events)
		checkTicksStrictlyIncreasing(t, prof.Events)
		assert.Equal(t, prof.EndValue, prof.Events[len(prof.Events)-1].At+1)
	}
}

func TestSpeedscope_IdenticalSamplesOpenOnce(t *testing.T) {
	doc := formatSpeedscope(t, "a;b 2\na;b 3\n")

	prof := doc.Profiles[0]
	// One open and one close per frame; the second sample only extends
	// the timeline.
	require.Len(t, prof.Events, 4)
	assert.Equal(t, "O", prof.Events[0].Type)
	assert.Equal(t, "O", prof.Events[1].Type)
	assert.Equal(t, "C", prof.Events[2].Type)
	assert.Equal(t, "C", prof.Events[3].Type)
	checkBalanced(t, prof.Events)
}

// A frame name recurring at a different depth is treated as still open:
// the stack is neither closed nor re-opened. This matches what downstream
// viewers already consume.
func TestSpeedscope_RecurringFrameAtDifferentDepthStaysOpen(t *testing.T) {
	doc := formatSpeedscope(t, "a;b 1\nb;a 1\n")

	prof := doc.Profiles[0]
	require.Len(t, prof.Events, 4, "second sample must not emit events")
	assert.Equal(t, []speedscopeEvent{
		{Type: "O", At: 0, Frame: 0},
		{Type: "O", At: 1, Frame: 1},
		{Type: "C", At: 2, Frame: 1},
		{Type: "C", At: 3, Frame: 0},
	}, prof.Events)
	checkBalanced(t, prof.Events)
}

func TestSpeedscope_EmptyProfile(t *testing.T) {
	doc := formatSpeedscope(t, "")

	require.Len(t, doc.Profiles, 1)
	assert.Empty(t, doc.Profiles[0].Events)
	assert.Equal(t, int64(0), doc.Profiles[0].EndValue)
	assert.Empty(t, doc.Frames)
}

func TestSpeedscope_MetadataCarriedVerbatim(t *testing.T) {
	md := profile.NewMetadata()
	md.Set(profile.KeyMode, profile.StringValue("cpu"))
	md.Set("team", profile.StringValue("perf"))
	p := profile.New(profile.NewParser().Parse("a 1\n"), md)

	out, err := NewSpeedscope(SpeedscopeOptions{}).Format(p)
	require.NoError(t, err)

	var doc struct {
		Metadata map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "cpu", doc.Metadata[profile.KeyMode])
	assert.Equal(t, "perf", doc.Metadata["team"])
}

func TestSpeedscope_ContentType(t *testing.T) {
	f := NewSpeedscope(SpeedscopeOptions{})

	assert.Equal(t, "application/json", f.ContentType())
	assert.Equal(t, "json", f.FileExtension())
}
