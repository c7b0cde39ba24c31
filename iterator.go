package snoo

import (
	"context"
	"fmt"
)

// defaultIteratorStep is how many items an iterator requests per extension.
const defaultIteratorStep = 100

// ListingIterator walks a Listing item by item, extending it through
// FetchMore as the materialized items run out. The underlying Listing is
// never mutated; the iterator tracks successive extended copies.
type ListingIterator struct {
	ctx     context.Context
	listing *Listing
	idx     int
	step    int
	err     error
}

// Iterate returns an iterator over the Listing starting at its first item.
func (l *Listing) Iterate(ctx context.Context) *ListingIterator {
	return &ListingIterator{ctx: ctx, listing: l, step: defaultIteratorStep}
}

// WithStep sets how many items are fetched per extension.
func (it *ListingIterator) WithStep(step int) *ListingIterator {
	if step < 1 {
		step = 1
	}
	if step > maxPageLimit {
		step = maxPageLimit
	}
	it.step = step
	return it
}

// HasNext returns true if there are more items to iterate through.
func (it *ListingIterator) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.idx < it.listing.Len() || !it.listing.IsFinished()
}

// Next returns the next item, fetching another page when the materialized
// items are exhausted.
func (it *ListingIterator) Next() (Thing, error) {
	if it.err != nil {
		return nil, it.err
	}

	if it.idx >= it.listing.Len() {
		if it.listing.IsFinished() {
			return nil, fmt.Errorf("no more items available")
		}

		extended, err := it.listing.FetchMore(it.ctx, FetchOptions{Amount: it.step})
		if err != nil {
			it.err = err
			return nil, err
		}
		if extended.Len() == it.listing.Len() {
			it.listing = extended
			return nil, fmt.Errorf("no more items available")
		}
		it.listing = extended
	}

	item := it.listing.Get(it.idx)
	it.idx++

	if item == nil {
		return it.Next()
	}
	return item, nil
}

// Err returns the first error encountered during iteration.
func (it *ListingIterator) Err() error {
	return it.err
}

// Collect drains the iterator up to maxItems (zero or negative for no
// bound).
func (it *ListingIterator) Collect(maxItems int) ([]Thing, error) {
	var items []Thing
	for it.HasNext() && (maxItems <= 0 || len(items) < maxItems) {
		item, err := it.Next()
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
