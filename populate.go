package snoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/graywind/snoo/internal"
	pkgerrs "github.com/graywind/snoo/pkg/errors"
	"github.com/graywind/snoo/pkg/types"
)

// entityBuilder constructs the typed wrapper for a kind tag. The table is
// owned by the client instance; there is no process-wide registry.
type entityBuilder func(e *Entity) Thing

func defaultBuilders() map[string]entityBuilder {
	return map[string]entityBuilder{
		kindComment:   func(e *Entity) Thing { return &Comment{Entity: e} },
		kindAccount:   func(e *Entity) Thing { return &Redditor{Entity: e} },
		kindLink:      func(e *Entity) Thing { return &Submission{Entity: e} },
		kindMessage:   func(e *Entity) Thing { return &PrivateMessage{Entity: e} },
		kindSubreddit: func(e *Entity) Thing { return &Subreddit{Entity: e} },
	}
}

// wrapEntity attaches the typed wrapper for kind. Unknown kinds fall back to
// an untyped wrapper so cloning never loses data.
func (c *Client) wrapEntity(kind string, e *Entity) Thing {
	if build, ok := c.builders[kind]; ok {
		return build(e)
	}
	return &genericThing{Entity: e}
}

// genericThing carries kinds the dispatch table does not know.
type genericThing struct {
	*Entity
}

// decodeFields unmarshals a Thing payload into an entity field map.
func decodeFields(data json.RawMessage) (map[string]any, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "decode entity", Err: err}
	}
	return fields, nil
}

// newRedditorRef builds an unfetched Redditor from just a username. Name
// validation happens when the URI is computed, so placeholder authors like
// "[deleted]" fail at fetch time, not at populate time.
func (c *Client) newRedditorRef(name string) *Redditor {
	ent := newEntity(c, kindAccount, map[string]any{"name": name})
	ent.uriFn = func() (string, url.Values, error) {
		if err := internal.ValidateUsername(name); err != nil {
			return "", nil, err
		}
		return "user/" + name + "/about", nil, nil
	}
	ent.transform = transformSingleThing(kindAccount)
	return &Redditor{Entity: ent}
}

// newSubredditRef builds an unfetched Subreddit from a display name.
func (c *Client) newSubredditRef(name string) *Subreddit {
	ent := newEntity(c, kindSubreddit, map[string]any{"display_name": name})
	ent.uriFn = func() (string, url.Values, error) {
		if err := internal.ValidateSubredditName(name); err != nil {
			return "", nil, err
		}
		return "r/" + name + "/about", nil, nil
	}
	ent.transform = transformSingleThing(kindSubreddit)
	return &Subreddit{Entity: ent}
}

// wrapReferences replaces raw name strings with lazy entity references, so
// a partially-known graph can be walked without further plumbing.
func (c *Client) wrapReferences(kind string, fields map[string]any) {
	switch kind {
	case kindComment, kindLink, kindMessage:
		if author, ok := fields["author"].(string); ok && author != "" {
			fields["author"] = c.newRedditorRef(author)
		}
	}
	switch kind {
	case kindComment, kindLink:
		if sub, ok := fields["subreddit"].(string); ok && sub != "" {
			fields["subreddit"] = c.newSubredditRef(sub)
		}
	}
}

// populateThing wraps one raw Thing into its typed entity. Entities built
// from response data are born fetched.
func (c *Client) populateThing(thing *types.Thing, linkID string) (Thing, error) {
	if thing == nil {
		return nil, &pkgerrs.ParseError{Operation: "populate", Message: "thing is nil"}
	}

	if thing.Kind == kindComment {
		return c.populateComment(thing, linkID)
	}

	fields, err := decodeFields(thing.Data)
	if err != nil {
		return nil, err
	}
	c.wrapReferences(thing.Kind, fields)

	if thing.Kind == kindLink {
		// A submission arriving inside a listing has no comments inline;
		// give it a lazy comment Listing against its own permalink endpoint.
		if id, ok := fields["id"].(string); ok && id != "" {
			if _, present := fields["comments"]; !present {
				fields["comments"] = c.newCommentsListing(id)
			}
		}
	}

	ent := newEntity(c, thing.Kind, fields)
	ent.fetched = true
	c.attachCanonicalURI(thing.Kind, ent)
	return c.wrapEntity(thing.Kind, ent), nil
}

// populateComment wraps a raw t1 Thing, reshaping its reply data into a
// nested Listing with any trailing continuation attached.
func (c *Client) populateComment(thing *types.Thing, linkID string) (*Comment, error) {
	if thing.Kind != kindComment {
		return nil, &pkgerrs.ParseError{Operation: "populate comment", Message: fmt.Sprintf("expected %s, got %s", kindComment, thing.Kind)}
	}

	fields, err := decodeFields(thing.Data)
	if err != nil {
		return nil, err
	}

	if linkID == "" {
		if lid, ok := fields["link_id"].(string); ok {
			linkID = lid
		}
	} else if _, ok := fields["link_id"]; !ok {
		fields["link_id"] = linkID
	}

	// reddit sends replies as either a nested Listing Thing or "".
	replies := newListing(c, listingSpec{done: true})
	var rawReplies struct {
		Replies json.RawMessage `json:"replies"`
	}
	if err := json.Unmarshal(thing.Data, &rawReplies); err == nil && len(rawReplies.Replies) > 0 && string(rawReplies.Replies) != `""` && string(rawReplies.Replies) != "null" {
		var repliesThing types.Thing
		if err := json.Unmarshal(rawReplies.Replies, &repliesThing); err != nil {
			return nil, &pkgerrs.ParseError{Operation: "populate comment replies", Err: err}
		}
		replies, err = c.populateListing(&repliesThing)
		if err != nil {
			return nil, err
		}
	}
	fields["replies"] = replies

	c.wrapReferences(kindComment, fields)

	ent := newEntity(c, kindComment, fields)
	ent.fetched = true
	c.attachCanonicalURI(kindComment, ent)
	return &Comment{Entity: ent}, nil
}

// populateListing wraps a raw Listing Thing: children become typed entities
// in order, and a trailing "more" child becomes the attached continuation.
func (c *Client) populateListing(thing *types.Thing) (*Listing, error) {
	if thing == nil || thing.Kind != types.KindListing {
		kind := "<nil>"
		if thing != nil {
			kind = thing.Kind
		}
		return nil, &pkgerrs.ParseError{Operation: "populate listing", Message: fmt.Sprintf("expected Listing, got %s", kind)}
	}

	var data types.ListingData
	if err := json.Unmarshal(thing.Data, &data); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "populate listing", Err: err}
	}

	var children []Thing
	var more *More
	linkID := ""
	var pendingMore []*types.MoreData

	for _, child := range data.Children {
		if child == nil {
			continue
		}
		if child.Kind == types.KindMore {
			var md types.MoreData
			if err := json.Unmarshal(child.Data, &md); err != nil {
				return nil, &pkgerrs.ParseError{Operation: "populate listing", Err: err}
			}
			pendingMore = append(pendingMore, &md)
			continue
		}

		wrapped, err := c.populateThing(child, linkID)
		if err != nil {
			return nil, err
		}
		if comment, ok := wrapped.(*Comment); ok && linkID == "" {
			linkID = comment.LinkID()
		}
		children = append(children, wrapped)
	}

	// The continuation, when present, is the trailing child. linkID is only
	// known after walking the comments, so More construction is deferred.
	if len(pendingMore) > 0 {
		more = newMore(c, pendingMore[len(pendingMore)-1], linkID)
	}

	return newListing(c, listingSpec{
		after:    data.After,
		before:   data.Before,
		done:     data.After == "" && data.Before == "",
		children: children,
		more:     more,
	}), nil
}

// populateCommentsResponse parses the two-listing shape of the permalink
// comments endpoint: [post listing, comment listing]. reddit occasionally
// sends just the comment listing.
func (c *Client) populateCommentsResponse(raw []byte) (*Submission, *Listing, error) {
	var parts []*types.Thing
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, nil, &pkgerrs.ParseError{Operation: "comments response", Err: err}
		}
	} else {
		var single types.Thing
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, nil, &pkgerrs.ParseError{Operation: "comments response", Err: err}
		}
		parts = []*types.Thing{&single}
	}
	if len(parts) == 0 {
		return nil, nil, &pkgerrs.ParseError{Operation: "comments response", Message: "empty response"}
	}

	var submission *Submission
	commentsPart := parts[0]

	if len(parts) >= 2 {
		postListing, err := c.populateListing(parts[0])
		if err != nil {
			return nil, nil, err
		}
		for _, child := range postListing.children {
			if s, ok := child.(*Submission); ok {
				submission = s
				break
			}
		}
		commentsPart = parts[1]
	}

	comments, err := c.populateListing(commentsPart)
	if err != nil {
		return nil, nil, err
	}
	return submission, comments, nil
}

// attachCanonicalURI wires the fetch target for an entity built from
// response data, so Refresh can re-retrieve it.
func (c *Client) attachCanonicalURI(kind string, ent *Entity) {
	switch kind {
	case kindComment:
		ent.uriFn = func() (string, url.Values, error) {
			id := ent.ID()
			if err := internal.ValidateCommentIDs([]string{id}); err != nil {
				return "", nil, err
			}
			params := url.Values{}
			params.Set("id", kindComment+"_"+id)
			return "api/info", params, nil
		}
		ent.transform = transformCommentInfo
	case kindLink:
		ent.uriFn = func() (string, url.Values, error) {
			return "comments/" + ent.ID(), nil, nil
		}
		ent.transform = transformSubmission
	case kindAccount:
		ent.uriFn = func() (string, url.Values, error) {
			name, _ := ent.peekString("name")
			if err := internal.ValidateUsername(name); err != nil {
				return "", nil, err
			}
			return "user/" + name + "/about", nil, nil
		}
		ent.transform = transformSingleThing(kindAccount)
	case kindSubreddit:
		ent.uriFn = func() (string, url.Values, error) {
			name, _ := ent.peekString("display_name")
			if err := internal.ValidateSubredditName(name); err != nil {
				return "", nil, err
			}
			return "r/" + name + "/about", nil, nil
		}
		ent.transform = transformSingleThing(kindSubreddit)
	case kindMessage:
		ent.uriFn = func() (string, url.Values, error) {
			return "message/messages/" + ent.ID(), nil, nil
		}
		ent.transform = transformSingleThing(kindMessage)
	}
}

// newCommentsListing builds the lazy comment Listing for a submission id.
// The permalink endpoint returns [post, comments], so the page transform
// slices out the second element.
func (c *Client) newCommentsListing(id string) *Listing {
	return newListing(c, listingSpec{
		uri:       "comments/" + id,
		transform: commentsPageTransform,
	})
}

// commentsPageTransform reshapes the [post, comments] array into the
// comment Listing Thing.
func commentsPageTransform(raw []byte) (*types.Thing, error) {
	var parts []*types.Thing
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, &pkgerrs.ParseError{Operation: "comments page", Err: err}
		}
		if len(parts) < 2 {
			return nil, &pkgerrs.ParseError{Operation: "comments page", Message: "expected [post, comments] response"}
		}
		return parts[1], nil
	}

	var single types.Thing
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "comments page", Err: err}
	}
	return &single, nil
}

// transformSingleThing builds the fetch hook for entities whose canonical
// resource returns one Thing of the given kind, possibly inside a Listing.
func transformSingleThing(kind string) fetchTransform {
	return func(ctx context.Context, c *Client, raw []byte) (map[string]any, error) {
		var thing types.Thing
		if err := json.Unmarshal(raw, &thing); err != nil {
			return nil, &pkgerrs.ParseError{Operation: "fetch " + kind, Err: err}
		}

		if thing.Kind == types.KindListing {
			var data types.ListingData
			if err := json.Unmarshal(thing.Data, &data); err != nil {
				return nil, &pkgerrs.ParseError{Operation: "fetch " + kind, Err: err}
			}
			for _, child := range data.Children {
				if child != nil && child.Kind == kind {
					thing = *child
					break
				}
			}
		}

		if thing.Kind != kind {
			return nil, &pkgerrs.ParseError{Operation: "fetch " + kind, Message: fmt.Sprintf("expected %s, got %s", kind, thing.Kind)}
		}

		fields, err := decodeFields(thing.Data)
		if err != nil {
			return nil, err
		}
		c.wrapReferences(kind, fields)
		return fields, nil
	}
}

// transformCommentInfo is the fetch hook for a comment retrieved through the
// info endpoint, which returns it inside a Listing and without replies.
func transformCommentInfo(ctx context.Context, c *Client, raw []byte) (map[string]any, error) {
	var thing types.Thing
	if err := json.Unmarshal(raw, &thing); err != nil {
		return nil, &pkgerrs.ParseError{Operation: "fetch comment", Err: err}
	}
	if thing.Kind != types.KindListing {
		return nil, &pkgerrs.ParseError{Operation: "fetch comment", Message: fmt.Sprintf("expected Listing, got %s", thing.Kind)}
	}

	listing, err := c.populateListing(&thing)
	if err != nil {
		return nil, err
	}
	for _, child := range listing.children {
		if comment, ok := child.(*Comment); ok {
			return comment.entity().snapshotRaw(), nil
		}
	}
	return nil, &pkgerrs.ParseError{Operation: "fetch comment", Message: "comment missing from info response"}
}

// transformSubmission is the fetch hook for a submission's permalink
// endpoint: post fields plus its comment Listing (with any trailing
// continuation attached).
func transformSubmission(ctx context.Context, c *Client, raw []byte) (map[string]any, error) {
	submission, comments, err := c.populateCommentsResponse(raw)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, &pkgerrs.ParseError{Operation: "fetch submission", Message: "post missing from response"}
	}

	fields := submission.entity().snapshotRaw()
	comments.uri = "comments/" + submission.ID()
	comments.transform = commentsPageTransform
	fields["comments"] = comments
	return fields, nil
}
