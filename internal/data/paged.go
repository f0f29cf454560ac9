package data

import (
	"context"
	"errors"
	"slices"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultPageSize is the number of entities requested per list call.
const DefaultPageSize = 10

// DefaultLookAhead is how many rows before the end of the loaded items a
// cursor must reach to request the next page.
const DefaultLookAhead = 3

// ErrStalePage marks a page response that arrived after a reset.
var ErrStalePage = errors.New("page response superseded by reset")

// PageState is the synchronizer's fetch state.
type PageState int

const (
	StateIdle PageState = iota
	StateFetching
	StateExhausted
)

func (s PageState) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// PagedCollection is a deduplicated, arrival-ordered list of entities
// loaded page by page.
type PagedCollection[T any] struct {
	Items          []T
	Page           int
	HasMore        bool
	IsFetchingMore bool
}

// PageLoadedMsg is emitted when a page request completes.
// Views match on Key and then read the collection via Get.
type PageLoadedMsg struct {
	Key     string
	Page    int
	Replace bool
	Count   int
	HasMore bool
	Err     error
	// Stale is set when the response belonged to a superseded generation
	// and was dropped without touching the collection.
	Stale bool
}

// SyncOption configures a Synchronizer.
type SyncOption func(*syncConfig)

type syncConfig struct {
	pageSize int
	observer FetchObserver
}

// WithPageSize overrides DefaultPageSize. Values below 1 are ignored.
func WithPageSize(n int) SyncOption {
	return func(c *syncConfig) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithObserver registers a callback for completed page requests.
func WithObserver(fn FetchObserver) SyncOption {
	return func(c *syncConfig) { c.observer = fn }
}

// Synchronizer owns one PagedCollection and keeps it in step with a remote
// list endpoint. At most one page request is in flight; extra triggers are
// dropped, not queued. Every request is tagged with the generation active
// when it was issued, and Reset advances the generation so late responses
// for an old filter set are discarded.
type Synchronizer[T any] struct {
	mu         sync.Mutex
	key        string
	fetch      PageFetcher[T]
	id         IDFunc[T]
	cfg        syncConfig
	filters    Filters
	coll       PagedCollection[T]
	index      map[string]struct{}
	generation uint64
	loadedPage int // last page merged successfully
}

// NewSynchronizer creates a synchronizer with an empty collection.
// Call Reset to load the first page.
func NewSynchronizer[T any](key string, fetch PageFetcher[T], id IDFunc[T], opts ...SyncOption) *Synchronizer[T] {
	cfg := syncConfig{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Synchronizer[T]{
		key:     key,
		fetch:   fetch,
		id:      id,
		cfg:     cfg,
		filters: Filters{},
		coll:    PagedCollection[T]{Page: 1, HasMore: true},
		index:   make(map[string]struct{}),
	}
}

// Key returns the synchronizer's identifier.
func (s *Synchronizer[T]) Key() string { return s.key }

// PageSize returns the configured page size.
func (s *Synchronizer[T]) PageSize() int { return s.cfg.pageSize }

// Get returns a copy of the collection. Never blocks on network.
func (s *Synchronizer[T]) Get() PagedCollection[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll
	c.Items = slices.Clone(s.coll.Items)
	return c
}

// Len returns the number of loaded items.
func (s *Synchronizer[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coll.Items)
}

// Filters returns a copy of the active filters.
func (s *Synchronizer[T]) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Clone()
}

// Generation returns the current generation counter.
func (s *Synchronizer[T]) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// State reports the fetch state.
func (s *Synchronizer[T]) State() PageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Synchronizer[T]) stateLocked() PageState {
	switch {
	case s.coll.IsFetchingMore:
		return StateFetching
	case !s.coll.HasMore:
		return StateExhausted
	default:
		return StateIdle
	}
}

// Reset clears the collection, installs filters, and returns the command
// that fetches page 1 in replace mode. Any request still in flight belongs
// to the previous generation and will be discarded when it lands.
func (s *Synchronizer[T]) Reset(ctx context.Context, filters Filters) tea.Cmd {
	s.mu.Lock()
	s.resetLocked(filters)
	cmd := s.issueLocked(ctx, 1, true)
	s.mu.Unlock()
	return cmd
}

func (s *Synchronizer[T]) resetLocked(filters Filters) {
	s.generation++
	s.filters = filters.Clone()
	s.coll = PagedCollection[T]{Page: 1, HasMore: true}
	s.index = make(map[string]struct{})
	s.loadedPage = 0
}

// Clear discards the collection and drops any in-flight request without
// issuing a new one.
func (s *Synchronizer[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(s.filters)
}

// FetchPage returns a command requesting one page with the current filters.
// Returns nil if a request is already in flight.
func (s *Synchronizer[T]) FetchPage(ctx context.Context, page int, replace bool) tea.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coll.IsFetchingMore {
		return nil
	}
	return s.issueLocked(ctx, page, replace)
}

// RequestNext returns the command for the next page, or nil when a request
// is in flight or the collection is exhausted. A nil return means no
// network call will be made.
func (s *Synchronizer[T]) RequestNext(ctx context.Context) tea.Cmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coll.IsFetchingMore || !s.coll.HasMore {
		return nil
	}
	return s.issueLocked(ctx, s.coll.Page+1, false)
}

// NearEnd reports whether cursor is within threshold rows of the last
// loaded item. An empty collection is never near its end.
func (s *Synchronizer[T]) NearEnd(cursor, threshold int) bool {
	s.mu.Lock()
	n := len(s.coll.Items)
	s.mu.Unlock()
	if n == 0 {
		return false
	}
	return n-1-cursor < threshold
}

// RequestNextNear is the level-triggered look-ahead: it requests the next
// page when cursor is near the end, subject to the usual guards.
func (s *Synchronizer[T]) RequestNextNear(ctx context.Context, cursor, threshold int) tea.Cmd {
	if !s.NearEnd(cursor, threshold) {
		return nil
	}
	return s.RequestNext(ctx)
}

func (s *Synchronizer[T]) issueLocked(ctx context.Context, page int, replace bool) tea.Cmd {
	if page < 1 {
		page = 1
	}
	s.coll.IsFetchingMore = true
	s.coll.Page = page
	gen := s.generation
	filters := s.filters.Clone()
	limit := s.cfg.pageSize

	return func() tea.Msg {
		results, err := s.fetch(ctx, page, limit, filters)
		return s.land(gen, page, replace, results, err)
	}
}

// land merges a completed response into the collection.
func (s *Synchronizer[T]) land(gen uint64, page int, replace bool, results []T, err error) PageLoadedMsg {
	s.mu.Lock()
	msg := PageLoadedMsg{Key: s.key, Page: page, Replace: replace, Count: len(results), Err: err}

	if gen != s.generation {
		// The collection belongs to a newer generation, as does its
		// in-flight flag.
		msg.Stale = true
		msg.HasMore = s.coll.HasMore
		s.mu.Unlock()
		s.observe(page, len(results), err)
		return msg
	}

	s.coll.IsFetchingMore = false
	if err != nil {
		s.coll.HasMore = false
		if s.loadedPage > 0 {
			s.coll.Page = s.loadedPage
		} else {
			s.coll.Page = 1
		}
		msg.HasMore = false
		s.mu.Unlock()
		s.observe(page, 0, err)
		return msg
	}

	if replace {
		s.coll.Items = make([]T, 0, len(results))
		s.index = make(map[string]struct{}, len(results))
	}
	for _, item := range results {
		id := s.id(item)
		if _, seen := s.index[id]; seen {
			continue
		}
		s.index[id] = struct{}{}
		s.coll.Items = append(s.coll.Items, item)
	}
	s.coll.HasMore = len(results) == s.cfg.pageSize
	s.loadedPage = page
	msg.HasMore = s.coll.HasMore
	s.mu.Unlock()

	s.observe(page, len(results), nil)
	return msg
}

func (s *Synchronizer[T]) observe(page, count int, err error) {
	if s.cfg.observer != nil {
		s.cfg.observer(s.key, page, count, err)
	}
}

// Drain loads pages synchronously until the collection is exhausted or
// maxPages have been loaded (0 means no limit). It starts from a reset.
// Used by non-interactive callers that want the whole result set.
func (s *Synchronizer[T]) Drain(ctx context.Context, filters Filters, maxPages int) ([]T, error) {
	cmd := s.Reset(ctx, filters)
	loaded := 0
	for cmd != nil {
		msg, _ := cmd().(PageLoadedMsg)
		if msg.Err != nil {
			return s.Get().Items, msg.Err
		}
		if msg.Stale {
			return s.Get().Items, ErrStalePage
		}
		loaded++
		if maxPages > 0 && loaded >= maxPages {
			break
		}
		if err := ctx.Err(); err != nil {
			return s.Get().Items, err
		}
		cmd = s.RequestNext(ctx)
	}
	return s.Get().Items, nil
}
