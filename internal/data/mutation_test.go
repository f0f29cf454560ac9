package data

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadedSync returns a synchronizer holding exactly the given ids.
func loadedSync(t *testing.T, initial ...string) *Synchronizer[item] {
	t.Helper()
	f := &scriptedFetcher{pages: map[int][]item{1: items(initial...)}}
	s := NewSynchronizer("k", f.fetch, itemID, WithPageSize(len(initial)+1))
	s.Reset(context.Background(), nil)()
	require.Equal(t, initial, ids(s.Get()))
	return s
}

// Property 6.
func TestApplyCreateInsertsAtHead(t *testing.T) {
	s := loadedSync(t, "b", "c")
	s.ApplyCreate(item{ID: "a"})
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Get()))
}

func TestApplyCreateKeepsIDsUnique(t *testing.T) {
	s := loadedSync(t, "b", "a", "c")
	s.ApplyCreate(item{ID: "a", Name: "fresh"})

	coll := s.Get()
	assert.Equal(t, []string{"a", "b", "c"}, ids(coll))
	assert.Equal(t, "fresh", coll.Items[0].Name)
}

func TestApplyUpdateReplacesInPlace(t *testing.T) {
	s := loadedSync(t, "a", "b", "c")
	ok := s.ApplyUpdate(item{ID: "b", Name: "updated"})
	require.True(t, ok)

	coll := s.Get()
	assert.Equal(t, []string{"a", "b", "c"}, ids(coll))
	assert.Equal(t, "updated", coll.Items[1].Name)
}

func TestApplyDeleteRemoves(t *testing.T) {
	s := loadedSync(t, "a", "b", "c")
	assert.True(t, s.ApplyDelete("b"))
	assert.Equal(t, []string{"a", "c"}, ids(s.Get()))
}

func TestApplyOnAbsentIDIsNoop(t *testing.T) {
	s := loadedSync(t, "a", "b", "c")
	before := s.Get()

	assert.False(t, s.ApplyUpdate(item{ID: "zzz", Name: "ghost"}))
	assert.False(t, s.ApplyDelete("zzz"))
	assert.Equal(t, before, s.Get())
}

func TestApplyIgnoresFailedResult(t *testing.T) {
	s := loadedSync(t, "a", "b")
	applied := s.Apply(Created(item{ID: "n"}, errors.New("rejected")))
	assert.False(t, applied)
	assert.Equal(t, []string{"a", "b"}, ids(s.Get()))
}

func TestDeletedIDCanBePagedInAgain(t *testing.T) {
	s := loadedSync(t, "a", "b")
	s.ApplyDelete("a")
	s.ApplyCreate(item{ID: "a"})
	assert.Equal(t, []string{"a", "b"}, ids(s.Get()))
}

func TestMutateAppliesOnSuccess(t *testing.T) {
	s := loadedSync(t, "a", "b")
	ctx := context.Background()

	cmd := s.Mutate(ctx, func(context.Context) MutationResult[item] {
		return Created(item{ID: "n"}, nil)
	})
	// Nothing changes before the server confirms.
	assert.Equal(t, []string{"a", "b"}, ids(s.Get()))

	msg, ok := cmd().(MutationDoneMsg)
	require.True(t, ok)
	assert.Equal(t, MutationCreate, msg.Kind)
	assert.Equal(t, "n", msg.ID)
	assert.True(t, msg.Applied)
	assert.NoError(t, msg.Err)
	assert.Equal(t, []string{"n", "a", "b"}, ids(s.Get()))
}

func TestMutateFailureLeavesCollection(t *testing.T) {
	s := loadedSync(t, "a", "b")
	rejected := errors.New("title is required")

	msg := s.Mutate(context.Background(), func(context.Context) MutationResult[item] {
		return Updated(item{ID: "a", Name: "x"}, rejected)
	})().(MutationDoneMsg)

	assert.ErrorIs(t, msg.Err, rejected)
	assert.False(t, msg.Applied)
	coll := s.Get()
	assert.Equal(t, "item a", coll.Items[0].Name)
}

func TestMutatePartialSuccess(t *testing.T) {
	s := loadedSync(t, "a")
	secondary := errors.New("favorites not saved")

	msg := s.Mutate(context.Background(), func(context.Context) MutationResult[item] {
		r := Created(item{ID: "u1"}, nil)
		r.SecondaryErr = secondary
		return r
	})().(MutationDoneMsg)

	assert.NoError(t, msg.Err)
	assert.ErrorIs(t, msg.SecondaryErr, secondary)
	assert.True(t, msg.Applied)
	assert.Equal(t, []string{"u1", "a"}, ids(s.Get()))
}

func TestMutateDelete(t *testing.T) {
	s := loadedSync(t, "a", "b")
	msg := s.Mutate(context.Background(), func(context.Context) MutationResult[item] {
		return Deleted[item]("a", nil)
	})().(MutationDoneMsg)

	assert.Equal(t, "a", msg.ID)
	assert.True(t, msg.Applied)
	assert.Equal(t, []string{"b"}, ids(s.Get()))
}

func TestMutateAfterResetNotApplied(t *testing.T) {
	s := loadedSync(t, "a")
	ctx := context.Background()

	cmd := s.Mutate(ctx, func(context.Context) MutationResult[item] {
		return Created(item{ID: "n"}, nil)
	})
	s.Reset(ctx, Filters{"status": "sold"})()

	msg := cmd().(MutationDoneMsg)
	assert.NoError(t, msg.Err)
	assert.False(t, msg.Applied)
	assert.NotContains(t, ids(s.Get()), "n")
}

func TestMutationResultHelpers(t *testing.T) {
	ok := Updated(item{ID: "a"}, nil)
	assert.True(t, ok.OK())
	assert.False(t, ok.Partial())

	partial := ok
	partial.SecondaryErr = errors.New("side effect")
	assert.True(t, partial.Partial())

	failed := Deleted[item]("a", errors.New("nope"))
	assert.False(t, failed.OK())
	assert.False(t, failed.Partial())

	assert.Equal(t, "create", MutationCreate.String())
	assert.Equal(t, "update", MutationUpdate.String())
	assert.Equal(t, "delete", MutationDelete.String())
}
