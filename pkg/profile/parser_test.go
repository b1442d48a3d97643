package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Basic(t *testing.T) {
	raw := "main;A;B 1\nmain;A;C 2\n"

	samples := NewParser().Parse(raw)

	require.Len(t, samples, 2)
	assert.Equal(t, Sample{Frames: []string{"main", "A", "B"}, Count: 1}, samples[0])
	assert.Equal(t, Sample{Frames: []string{"main", "A", "C"}, Count: 2}, samples[1])
}

func TestParser_LenientDropsMalformedLines(t *testing.T) {
	raw := "main;A 1\n" +
		"no trailing integer\n" + // count is not an integer
		"main;B notanumber\n" +
		"main;C 0\n" + // count must be positive
		" 5\n" + // empty stack
		"\n" +
		"main;D 3\n"

	samples := NewParser().Parse(raw)

	require.Len(t, samples, 2)
	assert.Equal(t, []string{"main", "A"}, samples[0].Frames)
	assert.Equal(t, []string{"main", "D"}, samples[1].Frames)
	assert.Equal(t, int64(3), samples[1].Count)
}

func TestParser_EmptyInput(t *testing.T) {
	assert.Empty(t, NewParser().Parse(""))
	assert.Empty(t, NewParser().Parse("\n\n"))
}

func TestParser_CarriageReturns(t *testing.T) {
	samples := NewParser().Parse("main;A 2\r\nmain;B 1\r\n")

	require.Len(t, samples, 2)
	assert.Equal(t, int64(2), samples[0].Count)
}

func TestParser_SingleFrameStack(t *testing.T) {
	samples := NewParser().Parse("main 7")

	require.Len(t, samples, 1)
	assert.Equal(t, []string{"main"}, samples[0].Frames)
	assert.Equal(t, int64(7), samples[0].Count)
}

func TestParser_Idempotent(t *testing.T) {
	raw := "main;A;B 1\nmain;A;C 2\n"
	p := NewParser()

	first := p.Parse(raw)
	second := p.Parse(raw)

	assert.Equal(t, first, second, "parsing twice yields identical sequences")
}

func TestParser_Memoized(t *testing.T) {
	raw := "main;A;B 1\nmain;A;C 2\n"
	p := NewParser()

	first := p.Parse(raw)
	second := p.Parse(raw)

	require.NotEmpty(t, first)
	assert.Same(t, &first[0], &second[0], "repeated parse should return the cached sequence")

	// A different parser re-parses.
	other := NewParser().Parse(raw)
	assert.Equal(t, first, other)
}

func TestSample_StackKey(t *testing.T) {
	s := Sample{Frames: []string{"main", "A", "B"}, Count: 1}

	assert.Equal(t, "main;A;B", s.StackKey(";"))
	assert.Equal(t, "main|A|B", s.StackKey("|"))
	assert.Equal(t, "B", s.Leaf())
}
