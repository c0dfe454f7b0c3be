// Package feed maintains the merged, windowed kill-event stream.
//
// # Overview
//
// Two producers deliver events independently: the local journal tailer and
// the remote tracker poll loop. Both feed the same Store, which keeps one
// de-duplicated, newest-first sequence and publishes a bounded window of it
// to the UI.
//
// # Reconciliation
//
// Event ids are globally unique across producers. When an id arrives that is
// already in the window, the existing entry is replaced in place - position
// preserved - and its provenance flags are merged. This is how a locally
// parsed event gets "confirmed" by the server without being duplicated or
// re-sorted. Unseen ids are prepended at the newest end.
//
// # Sliding window
//
//	windowOffset            events (newest first)
//	<- evicted history -> | [e0 e1 e2 ... eN] | <- older pages on demand
//
// The window holds at most MaxUIEvents entries. Eviction always removes from
// the tail (oldest end) and advances windowOffset by the evicted count, so
// windowOffset + len(events) is the true position reached in the backward
// paginated stream. Live-ingest eviction is deferred to Flush, which the UI
// schedules once per frame; Events() clamps to the bound in the meantime so
// readers never observe an oversized window.
//
// # Pagination
//
// LoadMore requests the next page at the true offset and appends it at the
// tail after filtering ids already present, which defends against boundary
// duplication when a live event arrives mid-pagination. A failed page load
// reports "no more data" and silently re-arms after a cooldown rather than
// wedging pagination permanently.
//
// # Concurrency
//
// Producers run on their own goroutines, so mutations are mutex-guarded.
// Listeners registered with Subscribe are invoked synchronously after each
// state change, outside the lock.
package feed
