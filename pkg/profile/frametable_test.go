package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrameTable_FirstSeenOrder(t *testing.T) {
	samples := NewParser().Parse("main;A;B 1\nmain;A;C 2\n")

	table := BuildFrameTable(samples)

	assert.Equal(t, []string{"main", "A", "B", "C"}, table.Names())

	id, ok := table.ID("main")
	require.True(t, ok)
	assert.Equal(t, 0, id, "id 0 is the first frame encountered in sample order")

	id, ok = table.ID("C")
	require.True(t, ok)
	assert.Equal(t, 3, id)

	_, ok = table.ID("unknown")
	assert.False(t, ok)
}

func TestBuildFrameTable_Deterministic(t *testing.T) {
	samples := NewParser().Parse("x;y 1\nz;x 4\ny 2\n")

	first := BuildFrameTable(samples)
	second := BuildFrameTable(samples)

	assert.Equal(t, first.Names(), second.Names(),
		"two exports of the same profile assign identical ids")
	assert.Equal(t, 3, first.Len())
}

func TestBuildFrameTable_Empty(t *testing.T) {
	table := BuildFrameTable(nil)

	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Names())
}
