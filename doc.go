// Package snoo presents the reddit REST API as a graph of typed,
// lazily-populated domain objects: users, posts, comments, subreddits and
// messages.
//
// The package is organized around three mechanisms:
//
//   - a request core that owns OAuth token lifecycle, inter-request
//     throttling, rate-limit bookkeeping and bounded retry;
//   - a lazy entity base that defers fetching a full resource until a field
//     not already known is requested, with at most one in-flight fetch per
//     entity shared by all concurrent callers;
//   - a Listing container for cursor pagination, plus a More continuation
//     resolver that reconstructs truncated comment trees.
//
// Basic usage:
//
//	client, err := snoo.NewClient(&snoo.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		UserAgent:    "myapp/1.0 by /u/yourusername",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sub, err := client.Sub("golang")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	hot, err := sub.Hot().FetchMore(ctx, snoo.FetchOptions{Amount: 25})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Listings never mutate in place: FetchMore returns a new, longer Listing
// and the original keeps its length, so concurrent extensions of the same
// base page stay independent.
package snoo
