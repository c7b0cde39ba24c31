package snoo

import (
	"net/http"
	"testing"
)

// fixtureTree builds:
//
//	c1
//	├── c2
//	│   └── c4
//	└── c3
//	c5 (with an unresolved continuation under it)
func fixtureTree(t *testing.T) *Listing {
	t.Helper()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	c4 := commentJSON("c4", "t1_c2", "deep", "")
	c2 := commentJSON("c2", "t1_c1", "mid", listingJSON("", "", c4))
	c3 := commentJSON("c3", "t1_c1", "mid sibling", "")
	c1 := commentJSON("c1", "t3_l1", "top", listingJSON("", "", c2, c3))
	c5 := commentJSON("c5", "t3_l1", "top sibling", listingJSON("", "",
		`{"kind":"more","data":{"id":"c6","name":"t1_c6","parent_id":"t1_c5","count":2,"children":["c6","c7"]}}`,
	))

	return mustListing(t, client, listingJSON("", "", c1, c5))
}

func TestTreeFlattenDepthFirst(t *testing.T) {
	t.Parallel()

	tree := TreeFromListing(fixtureTree(t))

	var ids []string
	for _, c := range tree.Flatten() {
		ids = append(ids, c.ID())
	}
	want := []string{"c1", "c2", "c4", "c3", "c5"}
	if len(ids) != len(want) {
		t.Fatalf("Flatten = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Flatten order = %v, want %v", ids, want)
		}
	}
}

func TestTreeCountAndDepth(t *testing.T) {
	t.Parallel()

	tree := TreeFromListing(fixtureTree(t))
	if got := tree.Count(); got != 5 {
		t.Errorf("Count = %d, want 5", got)
	}
	if got := tree.Depth(); got != 2 {
		t.Errorf("Depth = %d, want 2", got)
	}

	flat := NewCommentTree(nil)
	if flat.Count() != 0 || flat.Depth() != 0 {
		t.Errorf("empty tree Count/Depth = %d/%d", flat.Count(), flat.Depth())
	}
}

func TestTreeFindAndFilter(t *testing.T) {
	t.Parallel()

	tree := TreeFromListing(fixtureTree(t))

	if got := tree.GetByID("c4"); got == nil || got.Body() != "deep" {
		t.Errorf("GetByID(c4) = %v", got)
	}
	if got := tree.GetByID("missing"); got != nil {
		t.Errorf("GetByID(missing) = %v, want nil", got)
	}

	mids := tree.Filter(func(c *Comment) bool { return c.ParentID() == "t1_c1" })
	if len(mids) != 2 {
		t.Errorf("Filter = %d comments, want 2", len(mids))
	}

	found := tree.Find(func(c *Comment) bool { return c.Body() == "top sibling" })
	if found == nil || found.ID() != "c5" {
		t.Errorf("Find = %v", found)
	}
}

func TestTreeWalk(t *testing.T) {
	t.Parallel()

	tree := TreeFromListing(fixtureTree(t))
	visited := 0
	tree.Walk(func(*Comment) { visited++ })
	if visited != 5 {
		t.Errorf("Walk visited %d comments, want 5", visited)
	}
}

func TestTreeUnresolvedMarkers(t *testing.T) {
	t.Parallel()

	tree := TreeFromListing(fixtureTree(t))
	markers := tree.UnresolvedMarkers()
	if len(markers) != 1 {
		t.Fatalf("UnresolvedMarkers = %d, want 1", len(markers))
	}
	if got := markers[0].ParentID(); got != "t1_c5" {
		t.Errorf("marker parent = %q, want t1_c5", got)
	}
	if got := markers[0].ChildIDs(); len(got) != 2 {
		t.Errorf("marker ids = %v, want 2 ids", got)
	}
}
