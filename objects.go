package snoo

import (
	"context"
	"net/url"

	"github.com/graywind/snoo/internal"
	"github.com/graywind/snoo/pkg/types"
)

// Kind tags re-exported for dispatch.
const (
	kindComment   = types.KindComment
	kindAccount   = types.KindAccount
	kindLink      = types.KindLink
	kindMessage   = types.KindMessage
	kindSubreddit = types.KindSubreddit
)

// Comment is a single comment node. Its replies arrive as a nested Listing;
// truncated reply trees carry a More continuation on that Listing.
type Comment struct {
	*Entity
}

// Body returns the comment text.
func (c *Comment) Body() string {
	s, _ := c.peekString("body")
	return s
}

// Author returns the comment author as an unfetched Redditor.
func (c *Comment) Author() *Redditor {
	v, _ := c.Peek("author")
	r, _ := v.(*Redditor)
	return r
}

// Score returns the comment score.
func (c *Comment) Score() int {
	return peekInt(c.Entity, "score")
}

// Edited reports whether and when the comment was edited. reddit sends the
// field as false, true (legacy edits) or a float timestamp.
func (c *Comment) Edited() types.Edited {
	switch v, _ := c.Peek("edited"); val := v.(type) {
	case bool:
		return types.Edited{IsEdited: val}
	case float64:
		return types.Edited{IsEdited: true, Timestamp: val}
	default:
		return types.Edited{}
	}
}

// ParentID returns the fullname of the parent comment or submission.
func (c *Comment) ParentID() string {
	s, _ := c.peekString("parent_id")
	return s
}

// LinkID returns the fullname of the submission this comment belongs to.
func (c *Comment) LinkID() string {
	s, _ := c.peekString("link_id")
	return s
}

// Replies returns the nested reply Listing, which may carry a More
// continuation when the tree was truncated.
func (c *Comment) Replies() *Listing {
	v, _ := c.Peek("replies")
	if l, ok := v.(*Listing); ok {
		return l
	}
	return newListing(c.entity().client, listingSpec{done: true})
}

// addReply appends a freshly built reply during tree reconstruction. Only
// the resolver calls this, on nodes it owns.
func (c *Comment) addReply(reply *Comment) {
	replies := c.Replies()
	replies.children = append(replies.children, reply)
	c.merge(map[string]any{"replies": replies}, false)
}

// Submission is a post. Fetching it materializes both the post fields and
// its comment Listing.
type Submission struct {
	*Entity
}

// Title returns the post title.
func (s *Submission) Title() string {
	v, _ := s.peekString("title")
	return v
}

// Author returns the post author as an unfetched Redditor.
func (s *Submission) Author() *Redditor {
	v, _ := s.Peek("author")
	r, _ := v.(*Redditor)
	return r
}

// Score returns the post score.
func (s *Submission) Score() int {
	return peekInt(s.Entity, "score")
}

// NumComments returns the comment count reported by reddit.
func (s *Submission) NumComments() int {
	return peekInt(s.Entity, "num_comments")
}

// Comments returns the post's comment Listing, fetching the submission
// first if needed.
func (s *Submission) Comments(ctx context.Context) (*Listing, error) {
	v, _, err := s.Get(ctx, "comments")
	if err != nil {
		return nil, err
	}
	if l, ok := v.(*Listing); ok {
		return l, nil
	}
	return newListing(s.entity().client, listingSpec{done: true}), nil
}

// Redditor is a user account. The account's wire "name" field is the
// username, so Fullname is derived from the id instead.
type Redditor struct {
	*Entity
}

// Name returns the username. Identifying, so it never triggers a fetch.
func (r *Redditor) Name() string {
	s, _ := r.peekString("name")
	return s
}

// Fullname returns "t2_<id>", or empty when the account has not been
// fetched yet.
func (r *Redditor) Fullname() string {
	if id := r.Entity.ID(); id != "" {
		return kindAccount + "_" + id
	}
	return ""
}

// LinkKarma returns the account's link karma.
func (r *Redditor) LinkKarma() int {
	return peekInt(r.Entity, "link_karma")
}

// CommentKarma returns the account's comment karma.
func (r *Redditor) CommentKarma() int {
	return peekInt(r.Entity, "comment_karma")
}

// Overview returns the user's combined post/comment history as a lazy
// Listing.
func (r *Redditor) Overview() *Listing {
	return r.entity().client.NewListing("user/"+r.Name()+"/overview", nil)
}

// Subreddit is a community. display_name is the identifying field; the wire
// "name" field is the fullname.
type Subreddit struct {
	*Entity
}

// DisplayName returns the subreddit name without the "r/" prefix.
func (s *Subreddit) DisplayName() string {
	v, _ := s.peekString("display_name")
	return v
}

// Subscribers returns the subscriber count.
func (s *Subreddit) Subscribers() int {
	return peekInt(s.Entity, "subscribers")
}

// Hot returns the subreddit's hot posts as a lazy Listing.
func (s *Subreddit) Hot() *Listing {
	return s.entity().client.NewListing("r/"+s.DisplayName()+"/hot", nil)
}

// New returns the subreddit's newest posts as a lazy Listing.
func (s *Subreddit) New() *Listing {
	return s.entity().client.NewListing("r/"+s.DisplayName()+"/new", nil)
}

// PrivateMessage is an inbox message.
type PrivateMessage struct {
	*Entity
}

// Subject returns the message subject line.
func (m *PrivateMessage) Subject() string {
	v, _ := m.peekString("subject")
	return v
}

// Body returns the message text.
func (m *PrivateMessage) Body() string {
	v, _ := m.peekString("body")
	return v
}

// peekInt reads a numeric field; JSON numbers decode as float64.
func peekInt(e *Entity, name string) int {
	v, ok := e.Peek(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

// User returns an unfetched Redditor for the given username. The name shape
// is validated here, before any network call.
func (c *Client) User(name string) (*Redditor, error) {
	if err := internal.ValidateUsername(name); err != nil {
		return nil, err
	}
	ent := newEntity(c, kindAccount, map[string]any{"name": name})
	ent.uriFn = func() (string, url.Values, error) {
		if err := internal.ValidateUsername(name); err != nil {
			return "", nil, err
		}
		return "user/" + name + "/about", nil, nil
	}
	ent.transform = transformSingleThing(kindAccount)
	return &Redditor{Entity: ent}, nil
}

// Sub returns an unfetched Subreddit for the given display name.
func (c *Client) Sub(name string) (*Subreddit, error) {
	if err := internal.ValidateSubredditName(name); err != nil {
		return nil, err
	}
	ent := newEntity(c, kindSubreddit, map[string]any{"display_name": name})
	ent.uriFn = func() (string, url.Values, error) {
		if err := internal.ValidateSubredditName(name); err != nil {
			return "", nil, err
		}
		return "r/" + name + "/about", nil, nil
	}
	ent.transform = transformSingleThing(kindSubreddit)
	return &Subreddit{Entity: ent}, nil
}

// SubmissionByID returns an unfetched Submission for a bare base36 id.
func (c *Client) SubmissionByID(id string) *Submission {
	ent := newEntity(c, kindLink, map[string]any{"id": id, "name": kindLink + "_" + id})
	ent.uriFn = func() (string, url.Values, error) {
		return "comments/" + id, nil, nil
	}
	ent.transform = transformSubmission
	return &Submission{Entity: ent}
}

// CommentByID returns an unfetched Comment for a bare base36 id. Fetching it
// goes through the info endpoint, which returns the comment without its
// reply tree.
func (c *Client) CommentByID(id string) *Comment {
	ent := newEntity(c, kindComment, map[string]any{"id": id, "name": kindComment + "_" + id})
	ent.uriFn = func() (string, url.Values, error) {
		if err := internal.ValidateCommentIDs([]string{id}); err != nil {
			return "", nil, err
		}
		params := url.Values{}
		params.Set("id", kindComment+"_"+id)
		return "api/info", params, nil
	}
	ent.transform = transformCommentInfo
	return &Comment{Entity: ent}
}

// MessageByID returns an unfetched PrivateMessage for a bare base36 id.
func (c *Client) MessageByID(id string) *PrivateMessage {
	ent := newEntity(c, kindMessage, map[string]any{"id": id, "name": kindMessage + "_" + id})
	ent.uriFn = func() (string, url.Values, error) {
		return "message/messages/" + id, nil, nil
	}
	ent.transform = transformSingleThing(kindMessage)
	return &PrivateMessage{Entity: ent}
}
