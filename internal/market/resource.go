package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/matmarket/market-cli/internal/api"
	"github.com/matmarket/market-cli/internal/data"
	"github.com/matmarket/market-cli/internal/observability"
)

// Entity is implemented by every marketplace type with a server id.
type Entity interface {
	Listing | Material | Category | Company | Country | User
}

// Resource is a typed REST collection at one path. T is the entity type
// and In its create/update payload.
type Resource[T Entity, In any] struct {
	client *api.Client
	name   string
	path   string
	// localized resources send lang so the server resolves names.
	localized bool
}

func newResource[T Entity, In any](client *api.Client, name string, localized bool) *Resource[T, In] {
	return &Resource[T, In]{client: client, name: name, path: "/" + name, localized: localized}
}

// Name returns the resource name, e.g. "listings".
func (r *Resource[T, In]) Name() string { return r.name }

// Path returns the collection path.
func (r *Resource[T, In]) Path() string { return r.path }

// List fetches one page. Pages are 1-based.
func (r *Resource[T, In]) List(ctx context.Context, page, limit int, filters data.Filters) (items []T, err error) {
	ctx, done := r.operation(ctx, "List", "", false)
	defer func() { done(err) }()

	query := filters.Values()
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	r.addLang(query)

	resp, err := r.client.Get(ctx, r.path, query)
	if err != nil {
		return nil, err
	}
	items, err = decodeList[T](resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s page %d: %w", r.name, page, err)
	}
	return items, nil
}

// Get fetches one entity with names resolved to the client language.
func (r *Resource[T, In]) Get(ctx context.Context, id string) (T, error) {
	return r.get(ctx, id, r.localized)
}

// GetForEdit fetches one entity with every language variant of its
// localized fields, for edit forms.
func (r *Resource[T, In]) GetForEdit(ctx context.Context, id string) (T, error) {
	return r.get(ctx, id, false)
}

func (r *Resource[T, In]) get(ctx context.Context, id string, withLang bool) (entity T, err error) {
	ctx, done := r.operation(ctx, "Get", id, false)
	defer func() { done(err) }()

	query := url.Values{}
	if withLang {
		r.addLang(query)
	}
	resp, err := r.client.Get(ctx, r.itemPath(id), query)
	if err != nil {
		return entity, err
	}
	if err := decodeEntity(resp.Data, &entity); err != nil {
		return entity, fmt.Errorf("decode %s %s: %w", r.name, id, err)
	}
	return entity, nil
}

// Create posts a new entity and returns it with its server id.
func (r *Resource[T, In]) Create(ctx context.Context, in In) (entity T, err error) {
	ctx, done := r.operation(ctx, "Create", "", true)
	defer func() { done(err) }()

	resp, err := r.client.Post(ctx, r.path, in)
	if err != nil {
		return entity, err
	}
	if err := decodeEntity(resp.Data, &entity); err != nil {
		return entity, fmt.Errorf("decode created %s: %w", r.name, err)
	}
	return entity, nil
}

// Update patches an entity and returns the full updated entity.
func (r *Resource[T, In]) Update(ctx context.Context, id string, in In) (entity T, err error) {
	ctx, done := r.operation(ctx, "Update", id, true)
	defer func() { done(err) }()

	resp, err := r.client.Patch(ctx, r.itemPath(id), in)
	if err != nil {
		return entity, err
	}
	if err := decodeEntity(resp.Data, &entity); err != nil {
		return entity, fmt.Errorf("decode updated %s %s: %w", r.name, id, err)
	}
	return entity, nil
}

// Delete removes an entity. Success is status-code based.
func (r *Resource[T, In]) Delete(ctx context.Context, id string) (err error) {
	ctx, done := r.operation(ctx, "Delete", id, true)
	defer func() { done(err) }()

	_, err = r.client.Delete(ctx, r.itemPath(id))
	return err
}

// Pager adapts List to a page fetcher for data.Synchronizer.
func (r *Resource[T, In]) Pager() data.PageFetcher[T] {
	return r.List
}

// Synchronizer returns a paged collection over this resource keyed by its name.
func (r *Resource[T, In]) Synchronizer(opts ...data.SyncOption) *data.Synchronizer[T] {
	return data.NewSynchronizer(r.name, r.Pager(), EntityID[T], opts...)
}

// CreateResult runs Create and wraps the outcome for the mutation applier.
func (r *Resource[T, In]) CreateResult(ctx context.Context, in In) data.MutationResult[T] {
	entity, err := r.Create(ctx, in)
	return data.Created(entity, err)
}

// UpdateResult runs Update and wraps the outcome for the mutation applier.
func (r *Resource[T, In]) UpdateResult(ctx context.Context, id string, in In) data.MutationResult[T] {
	entity, err := r.Update(ctx, id, in)
	return data.Updated(entity, err)
}

// DeleteResult runs Delete and wraps the outcome for the mutation applier.
func (r *Resource[T, In]) DeleteResult(ctx context.Context, id string) data.MutationResult[T] {
	return data.Deleted[T](id, r.Delete(ctx, id))
}

func (r *Resource[T, In]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func (r *Resource[T, In]) addLang(query url.Values) {
	if r.localized && r.client.Language() != "" {
		query.Set("lang", r.client.Language())
	}
}

func (r *Resource[T, In]) operation(ctx context.Context, op, id string, mutation bool) (context.Context, func(error)) {
	hooks := r.client.Hooks()
	info := observability.OperationInfo{
		Resource:   r.name,
		Operation:  op,
		IsMutation: mutation,
		ResourceID: id,
	}
	start := time.Now()
	ctx = hooks.OnOperationStart(ctx, info)
	return ctx, func(err error) {
		hooks.OnOperationEnd(ctx, info, err, time.Since(start))
	}
}

// EntityID returns the server id of any marketplace entity.
func EntityID[T Entity](v T) string {
	switch e := any(v).(type) {
	case Listing:
		return string(e.ID)
	case Material:
		return string(e.ID)
	case Category:
		return string(e.ID)
	case Company:
		return string(e.ID)
	case Country:
		return string(e.ID)
	case User:
		return string(e.ID)
	}
	return ""
}

// decodeList accepts a bare array or an object wrapping it under
// "data" or "items".
func decodeList[T any](body []byte) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []T{}, nil
	}
	if body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var wrapped struct {
		Data  *[]T `json:"data"`
		Items *[]T `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	switch {
	case wrapped.Data != nil:
		return *wrapped.Data, nil
	case wrapped.Items != nil:
		return *wrapped.Items, nil
	}
	return nil, fmt.Errorf("expected a list")
}

// decodeEntity accepts a bare object or one wrapped under "data".
func decodeEntity[T any](body []byte, out *T) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}
	var probe struct {
		Data json.RawMessage `json:"data"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && len(probe.ID) == 0 && len(probe.Data) > 0 && probe.Data[0] == '{' {
		body = probe.Data
	}
	return json.Unmarshal(body, out)
}
