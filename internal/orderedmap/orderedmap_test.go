package orderedmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapShiftOldestIsFIFO(t *testing.T) {
	t.Parallel()

	m := New[string, string]()
	m.Append("r1", "r1")
	m.Append("r2", "r2")
	m.Append("r3", "r3")

	k, _, ok := m.ShiftOldest()
	require.True(t, ok)
	assert.Equal(t, "r1", k)

	k, _, ok = m.ShiftOldest()
	require.True(t, ok)
	assert.Equal(t, "r2", k)
}

func TestMapForefrontBecomesNewOldest(t *testing.T) {
	t.Parallel()

	m := New[string, string]()
	m.Append("r1", "r1")
	m.Append("r2", "r2")
	m.Forefront("r3", "r3")

	k, _, ok := m.ShiftOldest()
	require.True(t, ok)
	assert.Equal(t, "r3", k)
}

func TestMapForefrontMovesExistingKey(t *testing.T) {
	t.Parallel()

	m := New[string, string]()
	m.Append("r1", "r1")
	m.Append("r2", "r2")
	// r2 already exists further back; Forefront should relocate it.
	m.Forefront("r2", "r2")

	k, _, ok := m.ShiftOldest()
	require.True(t, ok)
	assert.Equal(t, "r2", k)

	k, _, ok = m.ShiftOldest()
	require.True(t, ok)
	assert.Equal(t, "r1", k)
}

func TestMapHasAndRemove(t *testing.T) {
	t.Parallel()

	m := New[string, int]()
	m.Append("a", 1)
	assert.True(t, m.Has("a"))
	m.Remove("a")
	assert.False(t, m.Has("a"))
	assert.Equal(t, 0, m.Len())
}

func TestMapShiftOldestOnEmpty(t *testing.T) {
	t.Parallel()

	m := New[string, int]()
	_, _, ok := m.ShiftOldest()
	assert.False(t, ok)
}

func TestMapClearAndKeys(t *testing.T) {
	t.Parallel()

	m := New[string, int]()
	m.Append("a", 1)
	m.Append("b", 2)
	assert.Equal(t, []string{"a", "b"}, m.Keys())

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Keys())
}
