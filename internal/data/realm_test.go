package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMember struct{ cleared int }

func (f *fakeMember) Clear() { f.cleared++ }

func TestRealmTeardown(t *testing.T) {
	r := NewRealm("browse", context.Background())
	m := &fakeMember{}
	r.Register("m", m)
	require.Equal(t, 1, r.Len())

	r.Teardown()

	assert.Equal(t, 1, m.cleared)
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, r.Context().Err(), context.Canceled)
	assert.True(t, r.TornDown())
}

func TestRealmRegisterReplaces(t *testing.T) {
	r := NewRealm("browse", context.Background())
	old := &fakeMember{}
	r.Register("m", old)
	r.Register("m", &fakeMember{})
	assert.Equal(t, 1, old.cleared)
}

func TestScopedReturnsSameMember(t *testing.T) {
	r := NewRealm("browse", context.Background())
	created := 0
	mk := func() *fakeMember { created++; return &fakeMember{} }

	a := Scoped(r, "m", mk)
	b := Scoped(r, "m", mk)
	assert.Same(t, a, b)
	assert.Equal(t, 1, created)
}

func TestScopedTypeMismatchPanics(t *testing.T) {
	r := NewRealm("browse", context.Background())
	r.Register("m", &fakeMember{})
	assert.Panics(t, func() {
		Scoped(r, "m", func() *Debouncer { return NewDebouncer(0, nil) })
	})
}

func TestRealmTeardownStopsMembers(t *testing.T) {
	r := NewRealm("browse", context.Background())
	f := &scriptedFetcher{pages: map[int][]item{1: seq("a", 3)}}
	s := Scoped(r, "listings", func() *Synchronizer[item] {
		return NewSynchronizer("listings", f.fetch, itemID)
	})
	d := Scoped(r, "search", func() *Debouncer { return NewDebouncer(testQuiet, nil) })

	s.Reset(r.Context(), nil)()
	d.Input("steel")
	require.NotEmpty(t, s.Get().Items)

	r.Teardown()
	assert.Empty(t, s.Get().Items)
	assert.False(t, d.Pending())
}
