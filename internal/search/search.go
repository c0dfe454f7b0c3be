// Package search implements the paginated full-text search overlay. It is an
// independent read path: results replace the working set entirely and are
// never merged with the live feed.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kmorand/killfeed/internal/event"
	"github.com/kmorand/killfeed/internal/feed"
)

// DebounceFor gates queries fired from text changes.
const DebounceFor = 300 * time.Millisecond

const failureCooldown = 5 * time.Second

// Source serves matching events for a query, newest first.
type Source interface {
	SearchEvents(ctx context.Context, query string, pageSize, offset int) (feed.Page, error)
}

// Overlay holds the result set for the active query. It follows the same
// pagination contract as the live feed but keeps no sliding window: results
// only grow until the query changes.
type Overlay struct {
	src      Source
	prep     feed.Preparer
	pageSize int

	mu           sync.Mutex
	query        string
	results      []event.KillEvent
	hasMore      bool
	loading      bool
	cooldownTill time.Time
}

// New builds an Overlay. pageSize bounds each upstream request.
func New(src Source, prep feed.Preparer, pageSize int) *Overlay {
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Overlay{src: src, prep: prep, pageSize: pageSize}
}

// Active reports whether a query is in effect. An empty or whitespace query
// deactivates the overlay and the live feed becomes authoritative again.
func (o *Overlay) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.query != ""
}

// Query returns the active query text.
func (o *Overlay) Query() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.query
}

// Start resets the overlay to a fresh query. The first page replaces any
// previous working set. A blank query clears the overlay.
func (o *Overlay) Start(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		o.Clear()
		return nil
	}

	o.mu.Lock()
	o.query = query
	o.results = nil
	o.hasMore = false
	o.cooldownTill = time.Time{}
	o.mu.Unlock()

	page, err := o.src.SearchEvents(ctx, query, o.pageSize, 0)
	if err == nil {
		o.prepare(ctx, page.Events)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.query != query {
		// Superseded by a newer query while in flight.
		return nil
	}
	if err != nil {
		o.hasMore = false
		o.cooldownTill = time.Now().Add(failureCooldown)
		return err
	}
	o.results = page.Events
	o.hasMore = page.HasMore
	return nil
}

// LoadMore appends the next page of matches, filtering duplicate ids at the
// boundary. No-op while a load is in flight or when exhausted.
func (o *Overlay) LoadMore(ctx context.Context) error {
	o.mu.Lock()
	if o.query == "" || o.loading || !o.hasMoreLocked() {
		o.mu.Unlock()
		return nil
	}
	o.loading = true
	query := o.query
	offset := len(o.results)
	o.mu.Unlock()

	page, err := o.src.SearchEvents(ctx, query, o.pageSize, offset)
	if err == nil {
		o.prepare(ctx, page.Events)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.loading = false
	if o.query != query {
		return nil
	}
	if err != nil {
		o.hasMore = false
		o.cooldownTill = time.Now().Add(failureCooldown)
		return err
	}
	seen := make(map[string]struct{}, len(o.results))
	for _, ev := range o.results {
		seen[ev.ID] = struct{}{}
	}
	for _, ev := range page.Events {
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		o.results = append(o.results, ev)
	}
	o.hasMore = page.HasMore
	o.cooldownTill = time.Time{}
	return nil
}

// Clear exits search mode and drops the working set.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.query = ""
	o.results = nil
	o.hasMore = false
	o.cooldownTill = time.Time{}
}

// Results returns a copy of the current result set, newest first.
func (o *Overlay) Results() []event.KillEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]event.KillEvent, len(o.results))
	copy(out, o.results)
	return out
}

// HasMore reports whether further matches can be fetched.
func (o *Overlay) HasMore() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hasMoreLocked()
}

// Loading reports whether a page fetch is in flight.
func (o *Overlay) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

func (o *Overlay) hasMoreLocked() bool {
	if o.hasMore {
		return true
	}
	if !o.cooldownTill.IsZero() && time.Now().After(o.cooldownTill) {
		o.hasMore = true
		o.cooldownTill = time.Time{}
		return true
	}
	return false
}

func (o *Overlay) prepare(ctx context.Context, events []event.KillEvent) {
	if o.prep == nil || len(events) == 0 {
		return
	}
	o.prep.Prepare(ctx, events)
}
