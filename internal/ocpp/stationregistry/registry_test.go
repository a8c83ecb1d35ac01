package stationregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id       string
	evicted  bool
	evictMsg string
}

func (f *fakeSession) StationID() string { return f.id }
func (f *fakeSession) EvictWithCode(code int, reason string) {
	f.evicted = true
	f.evictMsg = reason
}

func TestAttach_NewStation(t *testing.T) {
	r := New()
	sess := &fakeSession{id: "CP-1"}

	evicted := r.Attach("CP-1", sess)
	assert.Nil(t, evicted)
	assert.Equal(t, 1, r.Count())

	got, ok := r.Get("CP-1")
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestAttach_EvictsPreviousSession(t *testing.T) {
	r := New()
	first := &fakeSession{id: "CP-1"}
	second := &fakeSession{id: "CP-1"}

	r.Attach("CP-1", first)
	evicted := r.Attach("CP-1", second)

	require.NotNil(t, evicted)
	assert.Same(t, first, evicted)

	got, ok := r.Get("CP-1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Count())
}

func TestDetach_RemovesCurrentSession(t *testing.T) {
	r := New()
	sess := &fakeSession{id: "CP-1"}
	r.Attach("CP-1", sess)

	r.Detach("CP-1", sess)

	_, ok := r.Get("CP-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestDetach_NoopIfSessionIsStale(t *testing.T) {
	r := New()
	first := &fakeSession{id: "CP-1"}
	second := &fakeSession{id: "CP-1"}

	r.Attach("CP-1", first)
	r.Attach("CP-1", second)

	r.Detach("CP-1", first)

	got, ok := r.Get("CP-1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestGet_UnknownStation(t *testing.T) {
	r := New()
	_, ok := r.Get("unknown")
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	r := New()
	r.Attach("CP-1", &fakeSession{id: "CP-1"})
	r.Attach("CP-2", &fakeSession{id: "CP-2"})

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
}

func TestCount(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.Count())
	r.Attach("CP-1", &fakeSession{id: "CP-1"})
	assert.Equal(t, 1, r.Count())
}
