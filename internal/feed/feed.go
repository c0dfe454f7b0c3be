package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kmorand/killfeed/internal/event"
)

// Origin identifies which producer delivered an event.
type Origin int

const (
	OriginLocal Origin = iota
	OriginServer
)

// Page is one slice of the backward-paginated event history.
type Page struct {
	Events  []event.KillEvent
	HasMore bool
}

// Source is the upstream the store pages against. Events are returned
// newest-first.
type Source interface {
	RecentEvents(ctx context.Context, limit int) ([]event.KillEvent, error)
	MoreEvents(ctx context.Context, pageSize, offset int) (Page, error)
}

// Preparer readies a batch of events for display before they are published,
// typically by resolving the entity ids they reference.
type Preparer interface {
	Prepare(ctx context.Context, events []event.KillEvent)
}

// ChangeKind describes what a store notification refers to.
type ChangeKind int

const (
	// ChangeLoaded fires after LoadInitial or ResetToRecent replaces the window.
	ChangeLoaded ChangeKind = iota
	// ChangeNew fires when a previously unseen event is prepended.
	ChangeNew
	// ChangeUpdated fires when an existing event is replaced in place.
	ChangeUpdated
	// ChangeAppended fires after LoadMore grows the tail.
	ChangeAppended
	// ChangeEvicted fires after an eviction pass shrinks the window.
	ChangeEvicted
	// ChangeCleared fires on the upstream clear sentinel.
	ChangeCleared
)

// Change is delivered synchronously to subscribed listeners.
type Change struct {
	Kind ChangeKind
	ID   string // event id for ChangeNew / ChangeUpdated
}

// Listener receives store change notifications.
type Listener func(Change)

const (
	// DefaultMaxUIEvents bounds the in-memory window.
	DefaultMaxUIEvents = 250
	// DefaultResyncThreshold is the window drift beyond which a scroll-to-top
	// becomes a hard resync instead of a smooth scroll.
	DefaultResyncThreshold = 200
	// DefaultResetLoadCount is how many fresh events a hard resync reloads.
	DefaultResetLoadCount = 100

	defaultHighlightFor = time.Second
	loadMoreCooldown    = 5 * time.Second
)

// Options configure a Store.
type Options struct {
	Source          Source
	Preparer        Preparer // optional
	MaxUIEvents     int      // zero uses DefaultMaxUIEvents
	ResyncThreshold int      // zero uses DefaultResyncThreshold
	ResetLoadCount  int      // zero uses DefaultResetLoadCount
	HighlightFor    time.Duration
}

// Store is the single source of truth for what events are currently visible.
// It merges two producers into one de-duplicated, newest-first window with a
// bounded memory footprint and unbounded backward pagination.
type Store struct {
	src      Source
	prep     Preparer
	max      int
	resyncAt int
	resetN   int
	highlife time.Duration

	mu           sync.Mutex
	events       []event.KillEvent
	windowOffset int
	hasMore      bool
	loading      bool
	cooldownTill time.Time
	pendingTrim  bool
	highlights   map[string]time.Time

	listenMu  sync.Mutex
	listeners map[int]Listener
	nextSub   int
}

// New builds a Store around the given source.
func New(opts Options) *Store {
	max := opts.MaxUIEvents
	if max <= 0 {
		max = DefaultMaxUIEvents
	}
	resync := opts.ResyncThreshold
	if resync <= 0 {
		resync = DefaultResyncThreshold
	}
	resetN := opts.ResetLoadCount
	if resetN <= 0 {
		resetN = DefaultResetLoadCount
	}
	highlife := opts.HighlightFor
	if highlife <= 0 {
		highlife = defaultHighlightFor
	}
	return &Store{
		src:        opts.Source,
		prep:       opts.Preparer,
		max:        max,
		resyncAt:   resync,
		resetN:     resetN,
		highlife:   highlife,
		hasMore:    true,
		highlights: make(map[string]time.Time),
		listeners:  make(map[int]Listener),
	}
}

// Subscribe registers a listener called synchronously on every state change.
// The returned id unsubscribes.
func (s *Store) Subscribe(l Listener) int {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	return id
}

// Unsubscribe removes a listener registered with Subscribe.
func (s *Store) Unsubscribe(id int) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	delete(s.listeners, id)
}

func (s *Store) notify(c Change) {
	s.listenMu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.listenMu.Unlock()
	for _, l := range ls {
		l(c)
	}
}

// LoadInitial fetches the most recent events and resets the window. A probe
// one record past the loaded count records whether older history exists.
func (s *Store) LoadInitial(ctx context.Context, limit int) error {
	events, err := s.src.RecentEvents(ctx, limit)
	if err != nil {
		return err
	}
	for i := range events {
		events[i].Metadata.Source.Server = true
		events[i].Metadata.Source.External = true
	}
	s.prepare(ctx, events)

	probe, probeErr := s.src.MoreEvents(ctx, 1, len(events))
	hasMore := probeErr == nil && (len(probe.Events) > 0 || probe.HasMore)

	s.mu.Lock()
	s.events = events
	s.windowOffset = 0
	s.hasMore = hasMore
	s.cooldownTill = time.Time{}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded})
	return nil
}

// Ingest merges one live event into the window. An id already present is
// replaced in place, preserving its position; a new id is prepended. Malformed
// events are dropped. Eviction from a prepend is deferred until Flush so that
// rapid arrivals coalesce into a single structural pass.
func (s *Store) Ingest(ctx context.Context, ev event.KillEvent, origin Origin) {
	if err := ev.Validate(); err != nil {
		log.Printf("feed: dropping malformed event: %v", err)
		return
	}
	s.prepare(ctx, []event.KillEvent{ev})

	s.mu.Lock()
	switch origin {
	case OriginServer:
		ev.Metadata.Source.Server = true
		ev.Metadata.Source.External = true
	default:
		ev.Metadata.Source.Local = true
	}

	for i := range s.events {
		if s.events[i].ID == ev.ID {
			ev.Metadata.Source.Server = ev.Metadata.Source.Server || s.events[i].Metadata.Source.Server
			ev.Metadata.Source.Local = ev.Metadata.Source.Local || s.events[i].Metadata.Source.Local
			ev.Metadata.Source.External = ev.Metadata.Source.External || s.events[i].Metadata.Source.External
			s.events[i] = ev
			s.highlights[ev.ID] = time.Now()
			s.mu.Unlock()
			s.notify(Change{Kind: ChangeUpdated, ID: ev.ID})
			return
		}
	}

	s.events = append([]event.KillEvent{ev}, s.events...)
	s.highlights[ev.ID] = time.Now()
	if len(s.events) > s.max {
		s.pendingTrim = true
	}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeNew, ID: ev.ID})
}

// NeedsFlush reports whether a deferred eviction pass is pending.
func (s *Store) NeedsFlush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingTrim
}

// Flush applies any deferred eviction in one pass. The UI schedules it once
// per frame after live ingests.
func (s *Store) Flush() {
	s.mu.Lock()
	s.pendingTrim = false
	evicted := s.trimLocked()
	now := time.Now()
	for id, at := range s.highlights {
		if now.Sub(at) >= s.highlife {
			delete(s.highlights, id)
		}
	}
	s.mu.Unlock()
	if evicted > 0 {
		s.notify(Change{Kind: ChangeEvicted})
	}
}

// trimLocked enforces the window bound, evicting from the tail (oldest end)
// and advancing windowOffset by the evicted count. Caller holds mu.
func (s *Store) trimLocked() int {
	over := len(s.events) - s.max
	if over <= 0 {
		return 0
	}
	s.events = append([]event.KillEvent(nil), s.events[:s.max]...)
	s.windowOffset += over
	return over
}

// LoadMore appends the next page of older events at the tail. It is a no-op
// while a prior load is in flight or when no more data is available. A failed
// load disables pagination until a fixed cooldown elapses.
func (s *Store) LoadMore(ctx context.Context, pageSize int) error {
	s.mu.Lock()
	if s.loading || !s.hasMoreLocked() {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	trueOffset := s.windowOffset + len(s.events)
	s.mu.Unlock()

	page, err := s.src.MoreEvents(ctx, pageSize, trueOffset)

	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.hasMore = false
		s.cooldownTill = time.Now().Add(loadMoreCooldown)
		s.mu.Unlock()
		return err
	}

	for i := range page.Events {
		page.Events[i].Metadata.Source.Server = true
		page.Events[i].Metadata.Source.External = true
	}
	s.prepare(ctx, page.Events)

	s.mu.Lock()
	s.loading = false
	seen := make(map[string]struct{}, len(s.events))
	for _, ev := range s.events {
		seen[ev.ID] = struct{}{}
	}
	for _, ev := range page.Events {
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}
		s.events = append(s.events, ev)
	}
	s.hasMore = page.HasMore
	s.cooldownTill = time.Time{}
	evicted := s.trimLocked()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAppended})
	if evicted > 0 {
		s.notify(Change{Kind: ChangeEvicted})
	}
	return nil
}

// hasMoreLocked re-arms pagination after a failure cooldown. Caller holds mu.
func (s *Store) hasMoreLocked() bool {
	if s.hasMore {
		return true
	}
	if !s.cooldownTill.IsZero() && time.Now().After(s.cooldownTill) {
		s.hasMore = true
		s.cooldownTill = time.Time{}
		return true
	}
	return false
}

// ShouldResync reports whether the window has drifted far enough from live
// data that scroll-to-top should hard-resync instead of smooth-scrolling.
func (s *Store) ShouldResync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowOffset > s.resyncAt
}

// ResetToRecent discards the drifted window and reloads the most recent
// events fresh, returning the store to offset zero.
func (s *Store) ResetToRecent(ctx context.Context) error {
	return s.LoadInitial(ctx, s.resetN)
}

// Clear handles the upstream clear sentinel (for example a log rescan).
func (s *Store) Clear() {
	s.mu.Lock()
	s.events = nil
	s.windowOffset = 0
	s.hasMore = true
	s.cooldownTill = time.Time{}
	s.pendingTrim = false
	s.highlights = make(map[string]time.Time)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeCleared})
}

// Events returns a copy of the visible window, newest first. The published
// view never exceeds the window bound even while an eviction pass is pending.
func (s *Store) Events() []event.KillEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.events)
	if n > s.max {
		n = s.max
	}
	out := make([]event.KillEvent, n)
	copy(out, s.events[:n])
	return out
}

// WindowOffset returns how many older events have been evicted from the
// materialized window.
func (s *Store) WindowOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowOffset
}

// HasMore reports whether backward pagination can proceed.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMoreLocked()
}

// Loading reports whether a LoadMore is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Highlighted reports whether the event id is inside its transient
// recently-updated window.
func (s *Store) Highlighted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.highlights[id]
	return ok && time.Since(at) < s.highlife
}

func (s *Store) prepare(ctx context.Context, events []event.KillEvent) {
	if s.prep == nil || len(events) == 0 {
		return
	}
	s.prep.Prepare(ctx, events)
}
