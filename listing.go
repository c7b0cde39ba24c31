package snoo

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"

	pkgerrs "github.com/graywind/snoo/pkg/errors"
	"github.com/graywind/snoo/pkg/types"
)

// maxPageLimit is the largest page size reddit serves per request.
const maxPageLimit = 100

// FetchOptions controls a Listing extension.
type FetchOptions struct {
	// Amount is how many additional items to retrieve. Must be
	// non-negative; zero is a no-op.
	Amount int
	// SkipReplies selects the flat fast path when resolving truncated
	// comment continuations: children come back as leaf comments without
	// nested replies.
	SkipReplies bool
	// OnlyNew makes the returned Listing contain only the freshly fetched
	// items instead of extending a copy of the original.
	OnlyNew bool
}

// listingSpec carries the state needed to construct a Listing.
type listingSpec struct {
	uri       string
	method    string
	query     url.Values
	after     string
	before    string
	done      bool
	limit     int
	children  []Thing
	more      *More
	transform func([]byte) (*types.Thing, error)
}

// Listing is an ordered, incrementally extensible sequence of entities over
// a paged endpoint. Extension never mutates the receiver: FetchMore returns
// a new, longer Listing and the original keeps its length, so multiple
// in-flight extensions of one base page cannot corrupt each other.
type Listing struct {
	client *Client

	children []Thing
	uri      string
	method   string
	query    url.Values
	after    string
	before   string
	// done latches once the advancing cursor comes back null. A
	// never-fetched Listing with empty cursors is not finished yet.
	done  bool
	limit int
	more  *More
	// transform is an optional hook that reshapes a raw page response into
	// a Listing Thing before it is decoded, for endpoints whose page shape
	// is not a bare Listing.
	transform func([]byte) (*types.Thing, error)
}

func newListing(client *Client, spec listingSpec) *Listing {
	method := spec.method
	if method == "" {
		method = http.MethodGet
	}
	query := spec.query
	if query == nil {
		query = url.Values{}
	}
	// Cursors supplied as query params become pagination state rather than
	// constant parameters.
	if v := query.Get("after"); v != "" && spec.after == "" {
		spec.after = v
		query.Del("after")
	}
	if v := query.Get("before"); v != "" && spec.before == "" {
		spec.before = v
		query.Del("before")
	}
	return &Listing{
		client:    client,
		children:  spec.children,
		uri:       spec.uri,
		method:    method,
		query:     query,
		after:     spec.after,
		before:    spec.before,
		done:      spec.done,
		limit:     spec.limit,
		more:      spec.more,
		transform: spec.transform,
	}
}

// Len returns the number of items currently materialized.
func (l *Listing) Len() int { return len(l.children) }

// Get returns the item at index i.
func (l *Listing) Get(i int) Thing { return l.children[i] }

// Children returns a copy of the materialized items.
func (l *Listing) Children() []Thing {
	out := make([]Thing, len(l.children))
	copy(out, l.children)
	return out
}

// Comments returns the materialized items that are comments.
func (l *Listing) Comments() []*Comment {
	var out []*Comment
	for _, child := range l.children {
		if c, ok := child.(*Comment); ok {
			out = append(out, c)
		}
	}
	return out
}

// More returns the continuation attached to a truncated comment list, or
// nil.
func (l *Listing) More() *More { return l.more }

// IsFinished reports whether the Listing can be extended further: a comment
// list is finished when its continuation is exhausted; otherwise a Listing
// is finished when it has no uri or its cursors are spent.
func (l *Listing) IsFinished() bool {
	if l.more != nil {
		return l.more.IsFinished()
	}
	if l.uri == "" {
		return true
	}
	return l.done
}

// FetchMore retrieves up to opts.Amount additional items and returns a new
// Listing holding them; the receiver is unchanged. Forward pagination
// appends, backward pagination (an active before cursor) prepends. Comment
// lists delegate to the attached More continuation.
func (l *Listing) FetchMore(ctx context.Context, opts FetchOptions) (*Listing, error) {
	if opts.Amount < 0 {
		return nil, &pkgerrs.ArgumentError{Argument: "amount", Message: "amount must be a non-negative number"}
	}
	if opts.Amount == 0 || l.IsFinished() {
		return l.clone(false, nil), nil
	}
	if l.more != nil {
		return l.fetchMoreComments(ctx, opts)
	}
	return l.fetchMoreRegular(ctx, opts)
}

// FetchAll retrieves every remaining item. On unbounded resources this can
// exhaust the ratelimit quota, which is warned about through the client's
// logger.
func (l *Listing) FetchAll(ctx context.Context, opts FetchOptions) (*Listing, error) {
	l.client.http.Warnf("fetching all items of a listing; this may exhaust the ratelimit quota on unbounded resources", "uri", l.uri)
	opts.Amount = math.MaxInt32
	return l.FetchMore(ctx, opts)
}

func (l *Listing) fetchMoreRegular(ctx context.Context, opts FetchOptions) (*Listing, error) {
	work := l.clone(false, nil)
	baseLen := len(l.children)

	remaining := opts.Amount
	for remaining > 0 && !work.IsFinished() {
		received, err := work.fetchPage(ctx, remaining)
		if err != nil {
			return nil, err
		}
		if received == 0 {
			break
		}
		remaining -= received
	}

	if opts.OnlyNew {
		fetched := len(work.children) - baseLen
		if work.before != "" || l.before != "" {
			work.children = work.children[:fetched]
		} else {
			work.children = work.children[baseLen:]
		}
	}
	return work, nil
}

// fetchPage issues one paged request and splices the results into work,
// advancing the active cursor and nulling the opposite one. Returns the
// number of items received.
func (l *Listing) fetchPage(ctx context.Context, amount int) (int, error) {
	pageLimit := l.limit
	if pageLimit <= 0 || pageLimit > maxPageLimit {
		pageLimit = maxPageLimit
	}
	limitForRequest := amount
	if limitForRequest > pageLimit {
		limitForRequest = pageLimit
	}

	params := url.Values{}
	for key, vals := range l.query {
		for _, val := range vals {
			params.Add(key, val)
		}
	}
	params.Set("limit", strconv.Itoa(limitForRequest))

	backward := l.before != ""
	if backward {
		params.Set("before", l.before)
	} else if l.after != "" {
		params.Set("after", l.after)
	}

	raw, err := l.client.http.Do(ctx, l.method, l.uri, params)
	if err != nil {
		return 0, err
	}

	var thing *types.Thing
	if l.transform != nil {
		thing, err = l.transform(raw)
		if err != nil {
			return 0, err
		}
	} else {
		thing = &types.Thing{}
		if err := json.Unmarshal(raw, thing); err != nil {
			return 0, &pkgerrs.ParseError{Operation: "listing page", Err: err}
		}
	}

	page, err := l.client.populateListing(thing)
	if err != nil {
		return 0, err
	}

	items := page.children

	// In-page order is preserved in both directions; backward pages are
	// prepended as a block.
	if backward {
		l.children = append(append([]Thing{}, items...), l.children...)
		l.before = page.before
		l.after = ""
		if page.before == "" {
			l.done = true
		}
	} else {
		l.children = append(l.children, items...)
		l.after = page.after
		l.before = ""
		if page.after == "" {
			l.done = true
		}
	}

	if page.more != nil {
		l.more = page.more
	}

	return len(items), nil
}

func (l *Listing) fetchMoreComments(ctx context.Context, opts FetchOptions) (*Listing, error) {
	work := l.clone(false, nil)

	newItems, err := work.more.fetchMore(ctx, opts.Amount, opts.SkipReplies)
	if err != nil {
		return nil, err
	}

	if opts.OnlyNew {
		work.children = newItems
	} else {
		work.children = append(work.children, newItems...)
	}
	return work, nil
}

// clone copies the Listing. A deep clone recursively clones the items,
// registering comment nodes in childIndex.
func (l *Listing) clone(deep bool, childIndex map[string]Thing) *Listing {
	children := make([]Thing, len(l.children))
	if deep {
		for i, child := range l.children {
			children[i] = cloneThing(child, true, childIndex)
		}
	} else {
		copy(children, l.children)
	}

	query := url.Values{}
	for key, vals := range l.query {
		query[key] = append([]string(nil), vals...)
	}

	var more *More
	if l.more != nil {
		more = l.more.clone()
	}

	return &Listing{
		client:    l.client,
		children:  children,
		uri:       l.uri,
		method:    l.method,
		query:     query,
		after:     l.after,
		before:    l.before,
		done:      l.done,
		limit:     l.limit,
		more:      more,
		transform: l.transform,
	}
}

// CloneListing returns a structural copy of l. A deep clone recursively
// clones the contained entities.
func (l *Listing) CloneListing(deep bool) *Listing {
	return l.clone(deep, map[string]Thing{})
}
