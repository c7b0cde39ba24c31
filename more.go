package snoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/graywind/snoo/internal"
	pkgerrs "github.com/graywind/snoo/pkg/errors"
	"github.com/graywind/snoo/pkg/types"
)

const (
	// infoBatchSize is the id cap per request on the info endpoint (fast
	// path, flat results).
	infoBatchSize = 100
	// treeBatchSize is the id cap per request on the morechildren endpoint
	// (tree path, nested results).
	treeBatchSize = 20
	// continuedThreadID is the sentinel id reddit uses for replies beyond
	// the nesting depth cutoff, which carry no child ids and require
	// re-fetching the parent comment instead.
	continuedThreadID = "_"
)

// More is a continuation node for a truncated comment tree: an ordered list
// of not-yet-fetched child ids under one parent. Ids are consumed from the
// front as they are resolved.
//
// reddit documents that the morechildren endpoint must not be called
// concurrently for the same account; serializing those calls is the
// caller's responsibility.
type More struct {
	client *Client

	name     string
	id       string
	parentID string
	linkID   string
	depth    int
	count    int
	children []string

	// Continued-thread state: the parent's replies Listing, built lazily on
	// first resolution, and a monotonically advancing read offset into it.
	cache  *Listing
	offset int
}

func newMore(client *Client, data *types.MoreData, linkID string) *More {
	return &More{
		client:   client,
		name:     data.Name,
		id:       data.ID,
		parentID: data.ParentID,
		linkID:   linkID,
		depth:    data.Depth,
		count:    data.Count,
		children: append([]string(nil), data.Children...),
	}
}

// ID returns the marker's id; "_" marks a continued thread.
func (m *More) ID() string { return m.id }

// ParentID returns the fullname of the node this continuation hangs under.
func (m *More) ParentID() string { return m.parentID }

// ChildIDs returns a copy of the unresolved child ids.
func (m *More) ChildIDs() []string {
	return append([]string(nil), m.children...)
}

// isContinued reports whether this marker is a continued-thread stub rather
// than a normal truncation.
func (m *More) isContinued() bool {
	return m.id == continuedThreadID
}

// IsFinished reports whether the continuation has anything left to resolve.
func (m *More) IsFinished() bool {
	if m.isContinued() {
		return m.cache != nil && m.cache.IsFinished() && m.offset >= m.cache.Len()
	}
	return len(m.children) == 0
}

// clone copies the child-id list and offset state. The continued-thread
// cache is shared lazily rather than copied; a clone that extends its cache
// replaces its own pointer.
func (m *More) clone() *More {
	dup := *m
	dup.children = append([]string(nil), m.children...)
	return &dup
}

// fetchMore resolves up to amount children. skipReplies selects the flat
// info-endpoint path; otherwise the morechildren tree path runs, and any
// nested continuation stubs the server sends back are resolved recursively
// before returning.
func (m *More) fetchMore(ctx context.Context, amount int, skipReplies bool) ([]Thing, error) {
	if amount < 0 {
		return nil, &pkgerrs.ArgumentError{Argument: "amount", Message: "amount must be a non-negative number"}
	}
	if amount == 0 || m.IsFinished() {
		return nil, nil
	}
	if m.isContinued() {
		return m.fetchContinued(ctx, amount, skipReplies)
	}
	if skipReplies {
		return m.fetchFlat(ctx, amount)
	}
	return m.fetchTree(ctx, amount)
}

// fetchFlat batches ids against the info endpoint. Children come back as
// leaf comments regardless of their true reply depth. Batches run in
// parallel; results keep the original child order.
func (m *More) fetchFlat(ctx context.Context, amount int) ([]Thing, error) {
	ids := m.take(amount)
	if len(ids) == 0 {
		return nil, nil
	}

	var batches [][]string
	for start := 0; start < len(ids); start += infoBatchSize {
		end := start + infoBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}

	results := make([][]Thing, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			if err := internal.ValidateCommentIDs(batch); err != nil {
				return err
			}

			fullnames := make([]string, len(batch))
			for j, id := range batch {
				fullnames[j] = types.KindComment + "_" + id
			}
			params := url.Values{}
			params.Set("id", strings.Join(fullnames, ","))

			raw, err := m.client.http.Get(gctx, "api/info", params)
			if err != nil {
				return err
			}

			var thing types.Thing
			if err := json.Unmarshal(raw, &thing); err != nil {
				return &pkgerrs.ParseError{Operation: "info batch", Err: err}
			}
			page, err := m.client.populateListing(&thing)
			if err != nil {
				return err
			}
			results[i] = page.children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Thing
	for _, batch := range results {
		out = append(out, batch...)
	}
	return out, nil
}

// fetchTree batches ids against the morechildren endpoint and rebuilds the
// nested reply tree from the flat response.
func (m *More) fetchTree(ctx context.Context, amount int) ([]Thing, error) {
	var out []Thing
	for amount > 0 && len(m.children) > 0 {
		n := amount
		if n > treeBatchSize {
			n = treeBatchSize
		}
		ids := m.take(n)

		nodes, err := m.resolveTreeBatch(ctx, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
		amount -= len(ids)
	}
	return out, nil
}

// moreChildrenEnvelope is the response shape of the morechildren endpoint.
type moreChildrenEnvelope struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []*types.Thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// resolveTreeBatch issues one morechildren call and reconstructs a reply
// tree from the flat result: each comment is attached under its parent when
// the parent is part of the batch, and any smaller continuation markers the
// server stubbed in are resolved recursively with unbounded amount, so the
// returned subtree never contains residual unresolved markers.
func (m *More) resolveTreeBatch(ctx context.Context, ids []string) ([]Thing, error) {
	linkID, err := m.resolveLinkID()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("link_id", linkID)
	params.Set("children", strings.Join(ids, ","))
	params.Set("api_type", "json")

	raw, err := m.client.http.Post(ctx, "api/morechildren", params)
	if err != nil {
		return nil, err
	}

	var envelope moreChildrenEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "morechildren", Err: err}
	}
	if len(envelope.JSON.Errors) > 0 {
		return nil, &pkgerrs.ParseError{Operation: "morechildren", Message: fmt.Sprintf("API error: %v", envelope.JSON.Errors[0])}
	}

	byName := map[string]*Comment{}
	var roots []Thing
	var stubs []*More

	for _, thing := range envelope.JSON.Data.Things {
		switch thing.Kind {
		case types.KindComment:
			comment, err := m.client.populateComment(thing, linkID)
			if err != nil {
				return nil, err
			}
			byName[comment.Fullname()] = comment
			if parent, ok := byName[comment.ParentID()]; ok {
				parent.addReply(comment)
			} else {
				roots = append(roots, comment)
			}
		case types.KindMore:
			var data types.MoreData
			if err := json.Unmarshal(thing.Data, &data); err != nil {
				return nil, &pkgerrs.ParseError{Operation: "morechildren", Err: err}
			}
			stubs = append(stubs, newMore(m.client, &data, linkID))
		}
	}

	// The server may legitimately return a subset of the batch stubbed out
	// with a smaller continuation; dropping it would leave a visibly
	// incomplete tree.
	for _, stub := range stubs {
		resolved, err := stub.fetchMore(ctx, math.MaxInt32, false)
		if err != nil {
			return nil, err
		}
		if parent, ok := byName[stub.ParentID()]; ok {
			for _, node := range resolved {
				if c, isComment := node.(*Comment); isComment {
					parent.addReply(c)
					continue
				}
				roots = append(roots, node)
			}
		} else {
			roots = append(roots, resolved...)
		}
	}

	return roots, nil
}

// fetchContinued serves a continued-thread marker: the parent comment is
// re-fetched once to obtain its replies Listing, which is cached on the
// marker; subsequent calls return advancing slices of the cache, extending
// it only when the requested amount exceeds what is cached.
func (m *More) fetchContinued(ctx context.Context, amount int, skipReplies bool) ([]Thing, error) {
	if m.cache == nil {
		cache, err := m.buildContinuedCache(ctx)
		if err != nil {
			return nil, err
		}
		m.cache = cache
	}

	want := m.offset + amount
	if want < 0 {
		want = math.MaxInt32 // overflow from an unbounded amount
	}
	if want > m.cache.Len() && !m.cache.IsFinished() {
		extended, err := m.cache.FetchMore(ctx, FetchOptions{Amount: want - m.cache.Len(), SkipReplies: skipReplies})
		if err != nil {
			return nil, err
		}
		m.cache = extended
	}

	end := want
	if end > m.cache.Len() {
		end = m.cache.Len()
	}
	if m.offset >= end {
		return nil, nil
	}
	out := m.cache.Children()[m.offset:end]
	m.offset = end
	return out, nil
}

// buildContinuedCache re-fetches the parent comment through the permalink
// endpoint and returns its replies Listing.
func (m *More) buildContinuedCache(ctx context.Context) (*Listing, error) {
	linkID, err := m.resolveLinkID()
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(m.parentID, types.KindComment+"_") {
		return nil, &pkgerrs.ParseError{Operation: "continued thread", Message: fmt.Sprintf("continued thread parent is not a comment: %q", m.parentID)}
	}

	path := fmt.Sprintf("comments/%s/_/%s", strings.TrimPrefix(linkID, types.KindLink+"_"), strings.TrimPrefix(m.parentID, types.KindComment+"_"))
	raw, err := m.client.http.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	_, comments, err := m.client.populateCommentsResponse(raw)
	if err != nil {
		return nil, err
	}
	for _, child := range comments.children {
		if parent, ok := child.(*Comment); ok && parent.Fullname() == m.parentID {
			return parent.Replies(), nil
		}
	}
	return nil, &pkgerrs.ParseError{Operation: "continued thread", Message: fmt.Sprintf("parent comment %s missing from response", m.parentID)}
}

// take removes up to n ids from the front of the child list.
func (m *More) take(n int) []string {
	if n > len(m.children) {
		n = len(m.children)
	}
	ids := m.children[:n]
	m.children = m.children[n:]
	return ids
}

// resolveLinkID returns the t3-prefixed link fullname, falling back to the
// parent id when the marker sits directly under the submission.
func (m *More) resolveLinkID() (string, error) {
	linkID := m.linkID
	if linkID == "" && strings.HasPrefix(m.parentID, types.KindLink+"_") {
		linkID = m.parentID
	}
	if linkID == "" {
		return "", &pkgerrs.ParseError{Operation: "morechildren", Message: "continuation has no link id"}
	}
	if !strings.HasPrefix(linkID, types.KindLink+"_") {
		linkID = types.KindLink + "_" + linkID
	}
	return linkID, nil
}
