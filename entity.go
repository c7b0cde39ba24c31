package snoo

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Thing is implemented by every typed entity (Comment, Submission, Redditor,
// Subreddit, PrivateMessage). The unexported method keeps the set of
// implementations closed to this package.
type Thing interface {
	// Kind returns the reddit kind tag ("t1", "t3", ...).
	Kind() string
	// ID returns the bare id, without the kind prefix.
	ID() string
	// Fullname returns the prefixed identifier ("t1_abc123").
	Fullname() string

	entity() *Entity
}

// fetchTransform reshapes the raw response for an entity's canonical
// resource into a field map to merge. Entity-specific: a comment's hook
// turns reply data into a nested Listing.
type fetchTransform func(ctx context.Context, c *Client, raw []byte) (map[string]any, error)

// Entity is the lazy base shared by all typed objects. It wraps a raw field
// map and defers fetching the full resource until a field that is not
// already known is requested. Concurrent fetches of one Entity are collapsed
// into a single network call.
type Entity struct {
	client *Client
	kind   string

	uriFn     func() (string, url.Values, error)
	transform fetchTransform

	mu      sync.Mutex
	fields  map[string]any
	fetched bool
	gen     int
	flight  singleflight.Group
}

func newEntity(client *Client, kind string, fields map[string]any) *Entity {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Entity{client: client, kind: kind, fields: fields}
}

func (e *Entity) entity() *Entity { return e }

// Kind returns the reddit kind tag for this entity.
func (e *Entity) Kind() string { return e.kind }

// ID returns the bare id. Identifying fields never trigger a fetch.
func (e *Entity) ID() string {
	s, _ := e.peekString("id")
	return s
}

// Fullname returns the prefixed identifier, deriving it from the kind and id
// when the name field is not present.
func (e *Entity) Fullname() string {
	if s, ok := e.peekString("name"); ok && s != "" {
		return s
	}
	if id := e.ID(); id != "" {
		return e.kind + "_" + id
	}
	return ""
}

// HasFetched reports whether the entity's canonical resource has been
// retrieved.
func (e *Entity) HasFetched() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetched
}

// Peek returns a field without ever triggering a fetch.
func (e *Entity) Peek(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.fields[name]
	return v, ok
}

func (e *Entity) peekString(name string) (string, bool) {
	v, ok := e.Peek(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Get returns a field, fetching the canonical resource first when the field
// is not already known and the entity has not been fetched. Fields that are
// already present (including identifying ones) are returned without a
// network call. A field still absent after a fetch yields (nil, false, nil).
func (e *Entity) Get(ctx context.Context, name string) (any, bool, error) {
	if v, ok := e.Peek(name); ok {
		return v, true, nil
	}
	if e.HasFetched() {
		return nil, false, nil
	}
	if err := e.Fetch(ctx); err != nil {
		return nil, false, err
	}
	v, ok := e.Peek(name)
	return v, ok, nil
}

// Fetch retrieves the entity's canonical resource and merges the transformed
// fields in. A resolved entity returns immediately; concurrent callers of an
// in-flight fetch share the same pending call and observe the same result.
func (e *Entity) Fetch(ctx context.Context) error {
	e.mu.Lock()
	if e.fetched {
		e.mu.Unlock()
		return nil
	}
	if e.uriFn == nil {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	e.mu.Unlock()

	_, err, _ := e.flight.Do(strconv.Itoa(gen), func() (any, error) {
		path, params, err := e.uriFn()
		if err != nil {
			return nil, err
		}

		raw, err := e.client.http.Get(ctx, path, params)
		if err != nil {
			return nil, err
		}

		fields := map[string]any{}
		if e.transform != nil {
			fields, err = e.transform(ctx, e.client, raw)
			if err != nil {
				return nil, err
			}
		}

		e.mu.Lock()
		// A Refresh that raced this fetch invalidated the generation; its
		// own fetch owns the merge then.
		if e.gen == gen {
			for k, v := range fields {
				e.fields[k] = v
			}
			e.fetched = true
		}
		e.mu.Unlock()
		return nil, nil
	})
	return err
}

// Refresh clears the fetch memo and retrieves the resource again, so
// server-side mutations made since the last fetch become visible.
func (e *Entity) Refresh(ctx context.Context) error {
	e.mu.Lock()
	e.fetched = false
	e.gen++
	e.mu.Unlock()
	return e.Fetch(ctx)
}

// merge stores fields on the entity and marks it fetched. Used by the
// populate layer when an entity arrives fully-formed inside a response.
func (e *Entity) merge(fields map[string]any, fetched bool) {
	e.mu.Lock()
	for k, v := range fields {
		e.fields[k] = v
	}
	if fetched {
		e.fetched = true
	}
	e.mu.Unlock()
}

// clone copies the entity. A shallow clone copies own fields by reference; a
// deep clone recursively clones nested entities and Listings, registering
// every comment node by id in childIndex so tree-expansion operations can
// later locate it.
func (e *Entity) clone(deep bool, childIndex map[string]Thing) *Entity {
	e.mu.Lock()
	fields := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}
	fetched := e.fetched
	e.mu.Unlock()

	dup := newEntity(e.client, e.kind, fields)
	dup.uriFn = e.uriFn
	dup.transform = e.transform
	dup.fetched = fetched

	if deep {
		for k, v := range dup.fields {
			switch val := v.(type) {
			case Thing:
				dup.fields[k] = cloneThing(val, true, childIndex)
			case *Listing:
				dup.fields[k] = val.clone(true, childIndex)
			}
		}
	}
	return dup
}

// cloneThing clones a typed entity, preserving its concrete type via the
// client's kind dispatch table. Comments are registered in childIndex.
func cloneThing(t Thing, deep bool, childIndex map[string]Thing) Thing {
	e := t.entity()
	dup := e.client.wrapEntity(e.kind, e.clone(deep, childIndex))
	if childIndex != nil && dup.Kind() == kindComment {
		if id := dup.ID(); id != "" {
			if _, seen := childIndex[id]; !seen {
				childIndex[id] = dup
			}
		}
	}
	return dup
}

// Clone returns a structural copy of t with independent identity. A deep
// clone recursively clones nested entities and Listings.
func Clone(t Thing, deep bool) Thing {
	return cloneThing(t, deep, map[string]Thing{})
}

// snapshotRaw returns a shallow copy of the field map without reducing
// nested values.
func (e *Entity) snapshotRaw() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// Snapshot serializes the entity's fields, reducing unresolved nested
// entities to their minimal identifying form (a user becomes its name, other
// entities their fullname) so a partially-fetched graph never expands
// endlessly.
func (e *Entity) Snapshot() map[string]any {
	e.mu.Lock()
	fields := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		fields[k] = v
	}
	e.mu.Unlock()

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = snapshotValue(v)
	}
	return out
}

func snapshotValue(v any) any {
	switch val := v.(type) {
	case Thing:
		ent := val.entity()
		if !ent.HasFetched() {
			switch val.Kind() {
			case kindAccount:
				if name, ok := ent.peekString("name"); ok {
					return name
				}
			case kindSubreddit:
				if name, ok := ent.peekString("display_name"); ok {
					return name
				}
			}
			return val.Fullname()
		}
		return ent.Snapshot()
	case *Listing:
		items := make([]any, val.Len())
		for i, child := range val.Children() {
			items[i] = snapshotValue(child)
		}
		return items
	default:
		return v
	}
}
