package data

import (
	"context"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// MutationKind identifies a create, update, or delete.
type MutationKind int

const (
	MutationCreate MutationKind = iota + 1
	MutationUpdate
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MutationResult is the outcome of a remote create, update, or delete.
// A primary success may still carry a SecondaryErr from a follow-up call
// that failed after the entity was saved.
type MutationResult[T any] struct {
	Kind         MutationKind
	Entity       T
	ID           string
	Err          error
	SecondaryErr error
}

// OK reports whether the primary mutation succeeded.
func (r MutationResult[T]) OK() bool { return r.Err == nil }

// Partial reports a primary success with a failed side effect.
func (r MutationResult[T]) Partial() bool { return r.Err == nil && r.SecondaryErr != nil }

// Created wraps the return of a create call.
func Created[T any](entity T, err error) MutationResult[T] {
	return MutationResult[T]{Kind: MutationCreate, Entity: entity, Err: err}
}

// Updated wraps the return of an update call.
func Updated[T any](entity T, err error) MutationResult[T] {
	return MutationResult[T]{Kind: MutationUpdate, Entity: entity, Err: err}
}

// Deleted wraps the return of a delete call.
func Deleted[T any](id string, err error) MutationResult[T] {
	return MutationResult[T]{Kind: MutationDelete, ID: id, Err: err}
}

// MutationDoneMsg is emitted when a command from Mutate completes.
type MutationDoneMsg struct {
	Key          string
	Kind         MutationKind
	ID           string
	Err          error
	SecondaryErr error
	// Applied is false when the collection was left untouched: on failure,
	// on an update for an id that is not loaded, or after a reset.
	Applied bool
}

// ApplyCreate inserts entity at the head of the collection. If the id was
// already delivered by a page fetch, the older copy is removed so ids stay
// unique.
func (s *Synchronizer[T]) ApplyCreate(entity T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCreateLocked(entity)
}

func (s *Synchronizer[T]) applyCreateLocked(entity T) {
	id := s.id(entity)
	if _, ok := s.index[id]; ok {
		s.removeLocked(id)
	}
	s.coll.Items = slices.Insert(s.coll.Items, 0, entity)
	s.index[id] = struct{}{}
}

// ApplyUpdate replaces the entity with the same id in place. Returns false,
// leaving the collection unchanged, when the id is not loaded.
func (s *Synchronizer[T]) ApplyUpdate(entity T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyUpdateLocked(entity)
}

func (s *Synchronizer[T]) applyUpdateLocked(entity T) bool {
	id := s.id(entity)
	i := s.positionLocked(id)
	if i < 0 {
		return false
	}
	s.coll.Items[i] = entity
	return true
}

// ApplyDelete removes the entity with id. Returns false when absent.
func (s *Synchronizer[T]) ApplyDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Synchronizer[T]) removeLocked(id string) bool {
	i := s.positionLocked(id)
	if i < 0 {
		return false
	}
	s.coll.Items = slices.Delete(s.coll.Items, i, i+1)
	delete(s.index, id)
	return true
}

func (s *Synchronizer[T]) positionLocked(id string) int {
	if _, ok := s.index[id]; !ok {
		return -1
	}
	return slices.IndexFunc(s.coll.Items, func(item T) bool { return s.id(item) == id })
}

// Apply patches the collection from a result. Failed results are ignored.
func (s *Synchronizer[T]) Apply(result MutationResult[T]) bool {
	if !result.OK() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(result)
}

func (s *Synchronizer[T]) applyLocked(result MutationResult[T]) bool {
	switch result.Kind {
	case MutationCreate:
		s.applyCreateLocked(result.Entity)
		return true
	case MutationUpdate:
		return s.applyUpdateLocked(result.Entity)
	case MutationDelete:
		return s.removeLocked(result.ID)
	default:
		return false
	}
}

// Mutate returns a command that runs the remote call and, on success,
// patches the collection without a refetch. Nothing is applied before the
// server confirms. A result landing after a Reset is not applied, since the
// new generation's page fetch already reflects the server.
func (s *Synchronizer[T]) Mutate(ctx context.Context, run func(ctx context.Context) MutationResult[T]) tea.Cmd {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	return func() tea.Msg {
		result := run(ctx)

		msg := MutationDoneMsg{
			Key:          s.key,
			Kind:         result.Kind,
			ID:           result.ID,
			Err:          result.Err,
			SecondaryErr: result.SecondaryErr,
		}
		if result.OK() && result.Kind != MutationDelete {
			msg.ID = s.id(result.Entity)
		}
		if !result.OK() {
			return msg
		}

		s.mu.Lock()
		if gen == s.generation {
			msg.Applied = s.applyLocked(result)
		}
		s.mu.Unlock()
		return msg
	}
}
