package snoo

// CommentTree provides traversal helpers over a fetched comment tree. It
// only walks materialized replies; unresolved continuations are not
// expanded.
type CommentTree struct {
	Comments []*Comment
}

// NewCommentTree creates a CommentTree over top-level comments.
func NewCommentTree(comments []*Comment) *CommentTree {
	return &CommentTree{Comments: comments}
}

// TreeFromListing creates a CommentTree over a comment Listing's items.
func TreeFromListing(l *Listing) *CommentTree {
	return NewCommentTree(l.Comments())
}

// Flatten returns all comments in the tree as a flat slice, depth-first.
func (ct *CommentTree) Flatten() []*Comment {
	var result []*Comment
	flattenRecursive(ct.Comments, &result)
	return result
}

func flattenRecursive(comments []*Comment, result *[]*Comment) {
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		*result = append(*result, comment)
		if replies := comment.Replies().Comments(); len(replies) > 0 {
			flattenRecursive(replies, result)
		}
	}
}

// Walk applies fn to each comment in the tree, depth-first.
func (ct *CommentTree) Walk(fn func(*Comment)) {
	for _, comment := range ct.Flatten() {
		fn(comment)
	}
}

// Filter returns the comments matching the given predicate.
func (ct *CommentTree) Filter(pred func(*Comment) bool) []*Comment {
	var result []*Comment
	for _, comment := range ct.Flatten() {
		if pred(comment) {
			result = append(result, comment)
		}
	}
	return result
}

// Find returns the first comment matching the given predicate, or nil.
func (ct *CommentTree) Find(pred func(*Comment) bool) *Comment {
	for _, comment := range ct.Flatten() {
		if pred(comment) {
			return comment
		}
	}
	return nil
}

// GetByID returns the comment with the given bare id, or nil.
func (ct *CommentTree) GetByID(id string) *Comment {
	return ct.Find(func(c *Comment) bool { return c.ID() == id })
}

// Count returns the total number of comments in the tree.
func (ct *CommentTree) Count() int {
	return len(ct.Flatten())
}

// Depth returns the maximum nesting depth of the tree; a flat list has
// depth zero.
func (ct *CommentTree) Depth() int {
	return depthRecursive(ct.Comments, 0)
}

func depthRecursive(comments []*Comment, current int) int {
	max := current
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		if replies := comment.Replies().Comments(); len(replies) > 0 {
			if d := depthRecursive(replies, current+1); d > max {
				max = d
			}
		}
	}
	return max
}

// UnresolvedMarkers returns every continuation marker still present in the
// tree, including those nested inside reply Listings.
func (ct *CommentTree) UnresolvedMarkers() []*More {
	var markers []*More
	for _, comment := range ct.Flatten() {
		if m := comment.Replies().More(); m != nil && !m.IsFinished() {
			markers = append(markers, m)
		}
	}
	return markers
}
