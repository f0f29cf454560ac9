package data

import (
	"context"
	"fmt"
	"sync"
)

// Member is anything a realm tears down: synchronizers discard their
// collection, debouncers cancel their timer.
type Member interface {
	Clear()
}

// Realm scopes a group of members to one view's lifetime. Teardown cancels
// the realm context, which aborts in-flight requests issued with it, and
// clears every member. Collections are never shared between realms.
type Realm struct {
	mu       sync.RWMutex
	name     string
	ctx      context.Context
	cancel   context.CancelFunc
	members  map[string]Member
	tornDown bool
}

// NewRealm creates a realm with a cancellable context derived from parent.
func NewRealm(name string, parent context.Context) *Realm { //nolint:revive // context-as-argument: name is the primary differentiator
	ctx, cancel := context.WithCancel(parent)
	return &Realm{
		name:    name,
		ctx:     ctx,
		cancel:  cancel,
		members: make(map[string]Member),
	}
}

// Name returns the realm's identifier.
func (r *Realm) Name() string { return r.name }

// Context returns the realm's context. Canceled on teardown.
func (r *Realm) Context() context.Context { return r.ctx }

// Register adds a member for lifecycle management, replacing (and
// clearing) any previous member under key.
func (r *Realm) Register(key string, m Member) {
	r.mu.Lock()
	old := r.members[key]
	r.members[key] = m
	r.mu.Unlock()
	if old != nil && old != m {
		old.Clear()
	}
}

// Member returns a registered member by key, or nil.
func (r *Realm) Member(key string) Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[key]
}

// Len returns the number of registered members.
func (r *Realm) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Teardown cancels the realm's context and clears all members.
// After teardown, the realm should not be reused.
func (r *Realm) Teardown() {
	r.cancel()
	r.mu.Lock()
	members := r.members
	r.members = make(map[string]Member)
	r.tornDown = true
	r.mu.Unlock()
	for _, m := range members {
		m.Clear()
	}
}

// TornDown reports whether Teardown has run.
func (r *Realm) TornDown() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tornDown
}

// Scoped retrieves or creates a typed member within a realm.
// Each key maps to exactly one concrete type; callers must be consistent.
func Scoped[M Member](r *Realm, key string, create func() M) M {
	r.mu.RLock()
	if m, ok := r.members[key]; ok {
		r.mu.RUnlock()
		return mustType[M](r, key, m)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[key]; ok {
		return mustType[M](r, key, m)
	}
	m := create()
	r.members[key] = m
	return m
}

func mustType[M Member](r *Realm, key string, m Member) M {
	typed, ok := m.(M)
	if !ok {
		panic(fmt.Sprintf("realm %q: member %q has type %T, want %T", r.name, key, m, *new(M)))
	}
	return typed
}
