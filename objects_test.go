package snoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	pkgerrs "github.com/graywind/snoo/pkg/errors"
)

func TestFactoryValidation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failures must not reach the server")
	}))

	var argErr *pkgerrs.ArgumentError
	if _, err := client.User("no spaces allowed"); !errors.As(err, &argErr) {
		t.Errorf("User: expected *ArgumentError, got %v", err)
	}
	if _, err := client.Sub("ab"); !errors.As(err, &argErr) {
		t.Errorf("Sub: expected *ArgumentError, got %v", err)
	}
}

func TestRedditorFullnameDerivedFromID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, accountJSON("u9", "someuser", 50))
	}))

	user, err := client.User("someuser")
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	// The account's wire name is the username, so the fullname is unknown
	// until the id arrives.
	if got := user.Fullname(); got != "" {
		t.Errorf("unfetched Fullname = %q, want empty", got)
	}
	if err := user.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := user.Fullname(); got != "t2_u9" {
		t.Errorf("Fullname = %q, want t2_u9", got)
	}
	if user.CommentKarma() != 7 {
		t.Errorf("CommentKarma = %d, want 7", user.CommentKarma())
	}
}

func TestSubredditFetchAndListings(t *testing.T) {
	t.Parallel()

	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/r/golang/about":
			fmt.Fprint(w, `{"kind":"t5","data":{"id":"s1","name":"t5_s1","display_name":"golang","subscribers":250000}}`)
		default:
			fmt.Fprint(w, listingJSON("", "", linkJSON("p1")))
		}
	}))
	ctx := context.Background()

	sub, err := client.Sub("golang")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if err := sub.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sub.Subscribers() != 250000 {
		t.Errorf("Subscribers = %d", sub.Subscribers())
	}

	hot, err := sub.Hot().FetchMore(ctx, FetchOptions{Amount: 1})
	if err != nil {
		t.Fatalf("Hot FetchMore: %v", err)
	}
	if hot.Len() != 1 {
		t.Errorf("hot Len = %d", hot.Len())
	}
	if want := "/r/golang/hot"; paths[len(paths)-1] != want {
		t.Errorf("hot path = %q, want %q", paths[len(paths)-1], want)
	}
}

func TestCommentByIDFetchesThroughInfo(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/info" {
			t.Errorf("path = %q, want /api/info", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "t1_c9" {
			t.Errorf("id param = %q, want t1_c9", got)
		}
		fmt.Fprint(w, listingJSON("", "", commentJSON("c9", "t3_l1", "looked up", "")))
	}))

	comment := client.CommentByID("c9")
	if got := comment.Fullname(); got != "t1_c9" {
		t.Errorf("Fullname = %q before fetch", got)
	}
	if err := comment.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if comment.Body() != "looked up" {
		t.Errorf("Body = %q", comment.Body())
	}
	if comment.Score() != 3 {
		t.Errorf("Score = %d", comment.Score())
	}
}

func TestMessageByID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message/messages/m1" {
			t.Errorf("path = %q, want /message/messages/m1", r.URL.Path)
		}
		fmt.Fprint(w, `{"kind":"t4","data":{"id":"m1","name":"t4_m1","subject":"hello","body":"message text"}}`)
	}))

	msg := client.MessageByID("m1")
	if err := msg.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if msg.Subject() != "hello" || msg.Body() != "message text" {
		t.Errorf("message = %q / %q", msg.Subject(), msg.Body())
	}
}

func TestListedSubmissionGetsLazyComments(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/r/golang/hot":
			fmt.Fprint(w, listingJSON("", "", linkJSON("p1")))
		case "/comments/p1":
			post := listingJSON("", "", linkJSON("p1"))
			comments := listingJSON("", "", commentJSON("c1", "t3_p1", "nice post", ""))
			fmt.Fprintf(w, "[%s,%s]", post, comments)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	ctx := context.Background()

	page, err := client.NewListing("r/golang/hot", nil).FetchMore(ctx, FetchOptions{Amount: 1})
	if err != nil {
		t.Fatalf("FetchMore: %v", err)
	}
	post, ok := page.Get(0).(*Submission)
	if !ok {
		t.Fatalf("expected *Submission, got %T", page.Get(0))
	}

	// The comment listing hangs off the post lazily; paging it hits the
	// permalink endpoint.
	comments, err := post.Comments(ctx)
	if err != nil {
		t.Fatalf("Comments: %v", err)
	}
	if comments.Len() != 0 {
		t.Fatalf("lazy comments already materialized: %d", comments.Len())
	}
	filled, err := comments.FetchMore(ctx, FetchOptions{Amount: 5})
	if err != nil {
		t.Fatalf("comments FetchMore: %v", err)
	}
	if filled.Len() != 1 || filled.Comments()[0].Body() != "nice post" {
		t.Errorf("comments = %v", childIDs(filled))
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}
