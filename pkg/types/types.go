// Package types defines the wire-level shapes of reddit API responses.
// Every payload arrives as a kind-tagged "Thing" envelope whose data is
// decoded into one of the *Data structs below by the populate layer.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags used by the reddit API to label Things.
const (
	KindComment   = "t1"
	KindAccount   = "t2"
	KindLink      = "t3"
	KindMessage   = "t4"
	KindSubreddit = "t5"
	KindListing   = "Listing"
	KindMore      = "more"
)

// Thing is the envelope for all reddit API objects. Data is left raw so the
// caller can decode it according to Kind.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// ListingData is the payload of a Thing of kind "Listing". The cursors are
// fullnames ("t3_abc123"); reddit sends null when a page is terminal, which
// decodes to the empty string here.
type ListingData struct {
	After    string   `json:"after"`
	Before   string   `json:"before"`
	Modhash  string   `json:"modhash"`
	Dist     int      `json:"dist"`
	Children []*Thing `json:"children"`
}

// Edited represents the "edited" field, which reddit sends as false, true
// (legacy edits), or a float timestamp.
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON implements json.Unmarshaler for the mixed-type field.
func (e *Edited) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "false", "null":
		*e = Edited{}
		return nil
	case "true":
		*e = Edited{IsEdited: true}
		return nil
	}

	var ts float64
	if err := json.Unmarshal(data, &ts); err == nil {
		*e = Edited{IsEdited: true, Timestamp: ts}
		return nil
	}

	return fmt.Errorf("unrecognized type for 'edited' field: %s", string(data))
}

// CommentData is the payload of a Thing of kind "t1". Replies is kept raw:
// reddit sends either a nested Listing Thing or the empty string.
type CommentData struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	ParentID   string          `json:"parent_id"`
	LinkID     string          `json:"link_id"`
	Subreddit  string          `json:"subreddit"`
	Depth      int             `json:"depth"`
	CreatedUTC float64         `json:"created_utc"`
	Edited     Edited          `json:"edited"`
	Replies    json.RawMessage `json:"replies"`
}

// LinkData is the payload of a Thing of kind "t3" (a submission).
type LinkData struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	SelfText    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Over18      bool    `json:"over_18"`
	Stickied    bool    `json:"stickied"`
	CreatedUTC  float64 `json:"created_utc"`
	Edited      Edited  `json:"edited"`
}

// AccountData is the payload of a Thing of kind "t2".
type AccountData struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	LinkKarma    int     `json:"link_karma"`
	CommentKarma int     `json:"comment_karma"`
	IsMod        bool    `json:"is_mod"`
	IsGold       bool    `json:"is_gold"`
	CreatedUTC   float64 `json:"created_utc"`
}

// SubredditData is the payload of a Thing of kind "t5".
type SubredditData struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	DisplayName       string  `json:"display_name"`
	Title             string  `json:"title"`
	PublicDescription string  `json:"public_description"`
	Subscribers       int     `json:"subscribers"`
	Over18            bool    `json:"over18"`
	CreatedUTC        float64 `json:"created_utc"`
}

// MessageData is the payload of a Thing of kind "t4".
type MessageData struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Author     string  `json:"author"`
	Dest       string  `json:"dest"`
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	New        bool    `json:"new"`
	CreatedUTC float64 `json:"created_utc"`
}

// MoreData is the payload of a Thing of kind "more": a truncated comment-tree
// continuation holding the ids of children that were not returned inline.
// A "continued thread" marker carries ID "_" and an empty Children list.
type MoreData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id"`
	Depth    int      `json:"depth"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}
