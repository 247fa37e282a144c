package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddIgnoresDuplicateSerial(t *testing.T) {
	updates := 0
	r := NewRegistry(func() { updates++ })

	first, err := r.Add("probe", "12345678", "")
	require.NoError(t, err)

	second, err := r.Add("probe-again", "12345678", "")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_AddRejectsDuplicateName(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Add("probe", "11111111", "")
	require.NoError(t, err)

	_, err = r.Add("probe", "22222222", "")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestRegistry_AssignPortHandleIndexesLookup(t *testing.T) {
	r := NewRegistry(nil)
	probe, err := r.Add("probe", "12345678", "")
	require.NoError(t, err)

	r.AssignPortHandle(probe, "01")
	found, ok := r.ToolByPortHandle("01")
	require.True(t, ok)
	assert.Same(t, probe, found)

	r.AssignPortHandle(probe, "02")
	_, ok = r.ToolByPortHandle("01")
	assert.False(t, ok)
	found, ok = r.ToolByPortHandle("02")
	require.True(t, ok)
	assert.Same(t, probe, found)
}

func TestRegistry_ToolNameAtIndex(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Add("a", "11111111", "")
	require.NoError(t, err)
	_, err = r.Add("b", "22222222", "")
	require.NoError(t, err)

	name, ok := r.ToolNameAtIndex(1)
	require.True(t, ok)
	assert.Equal(t, "b", name)

	_, ok = r.ToolNameAtIndex(2)
	assert.False(t, ok)
}

func TestRegistry_WithDefinition(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Add("wired", "11111111", "")
	require.NoError(t, err)
	_, err = r.Add("passive", "22222222", "/defs/passive.rom")
	require.NoError(t, err)

	withDef := r.WithDefinition()
	require.Len(t, withDef, 1)
	assert.Equal(t, "passive", withDef[0].Name)
}
