package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	c := newClient(nil, nil)

	prev := reg.Register("u-1", c)
	assert.Nil(t, prev)

	got, ok := reg.Lookup("u-1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, reg.Count())
}

func TestLookupOffline(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Lookup("u-1")
	assert.False(t, ok)
}

func TestRegisterLastWriterWins(t *testing.T) {
	reg := NewRegistry()
	first := newClient(nil, nil)
	second := newClient(nil, nil)

	reg.Register("u-1", first)
	prev := reg.Register("u-1", second)
	assert.Same(t, first, prev)

	got, ok := reg.Lookup("u-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, reg.Count())
}

func TestStaleUnregisterDoesNotEvict(t *testing.T) {
	reg := NewRegistry()
	stale := newClient(nil, nil)
	fresh := newClient(nil, nil)

	reg.Register("u-1", stale)
	reg.Register("u-1", fresh)

	// The superseded connection's disconnect arrives late.
	removed := reg.Unregister("u-1", stale)
	assert.False(t, removed)

	got, ok := reg.Lookup("u-1")
	require.True(t, ok)
	assert.Same(t, fresh, got)

	removed = reg.Unregister("u-1", fresh)
	assert.True(t, removed)
	_, ok = reg.Lookup("u-1")
	assert.False(t, ok)
}
