package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kmorand/killfeed/internal/event"
	"github.com/kmorand/killfeed/internal/kvstore"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
	err   error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{calls: map[string]int{}}
}

func (f *fakeResolver) ResolveEntity(_ context.Context, id, _ string) (Entity, error) {
	f.mu.Lock()
	f.calls[id]++
	f.mu.Unlock()
	f.total.Add(1)
	if f.err != nil {
		return Entity{}, f.err
	}
	return Entity{
		DisplayName: "Resolved " + id,
		IsNPC:       id == "npc-1",
		Category:    CategoryShip,
		MatchMethod: MatchExact,
	}, nil
}

func (f *fakeResolver) IsNPCEntity(_ context.Context, id string) (bool, error) {
	return id == "npc-1", nil
}

func (f *fakeResolver) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestFallbackName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"AEGS_Gladius_123", "Gladius"},
		{"PU_Pilots-Human-Pirate_01", "Pilots Human Pirate"},
		{"KLWE_LaserRepeater_S3", "KLWE LaserRepeater S3"},
		{"Yela_OM3", "Yela OM3"},
		{"simple", "simple"},
		{"", ""},
		{"12345", "12345"},
	}
	for _, tt := range tests {
		if got := FallbackName(tt.id); got != tt.want {
			t.Errorf("FallbackName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestPrepare_EagerAndIdempotent(t *testing.T) {
	r := newFakeResolver()
	c := NewCache(r, nil)
	ctx := context.Background()

	events := []event.KillEvent{
		{Killers: []string{"p1"}, Victims: []string{"npc-1"}, VehicleModel: "AEGS_Gladius"},
		{Killers: []string{"p1"}, Victims: []string{"p2"}, VehicleModel: "AEGS_Gladius"},
	}
	c.Prepare(ctx, events)

	if got := c.Size(); got != 4 {
		t.Fatalf("Size() = %d, want 4 distinct ids resolved", got)
	}
	if got := r.callCount("AEGS_Gladius"); got != 1 {
		t.Fatalf("resolver called %d times for shared id, want 1", got)
	}

	// Second pass over the same batch is a pure cache hit.
	c.Prepare(ctx, events)
	if got := r.callCount("AEGS_Gladius"); got != 1 {
		t.Fatalf("resolver called %d times after second Prepare, want 1", got)
	}

	if got := c.DisplayName("AEGS_Gladius"); got != "Resolved AEGS_Gladius" {
		t.Fatalf("DisplayName = %q, want resolved name", got)
	}
	if !c.IsNPC("npc-1") {
		t.Fatal("IsNPC(npc-1) = false, want true")
	}
	if c.IsNPC("p1") {
		t.Fatal("IsNPC(p1) = true, want false")
	}
}

func TestDisplayName_FallbackThenBackfill(t *testing.T) {
	r := newFakeResolver()
	c := NewCache(r, nil)

	// Immediate answer is the deterministic fallback.
	if got := c.DisplayName("AEGS_Gladius_01"); got != "Gladius" {
		t.Fatalf("DisplayName = %q, want fallback \"Gladius\"", got)
	}

	// Background resolution backfills for next time.
	waitFor(t, func() bool { return c.Size() == 1 })
	if got := c.DisplayName("AEGS_Gladius_01"); got != "Resolved AEGS_Gladius_01" {
		t.Fatalf("DisplayName after backfill = %q, want resolved name", got)
	}
}

func TestResolveFailure_NotCachedAsFinal(t *testing.T) {
	r := newFakeResolver()
	r.err = errors.New("resolver down")
	c := NewCache(r, nil)
	ctx := context.Background()

	got := c.resolveAndCache(ctx, "AEGS_Gladius")
	if got.MatchMethod != MatchFallback || got.DisplayName != "Gladius" {
		t.Fatalf("failure result = %+v, want fallback entity", got)
	}
	if c.Size() != 0 {
		t.Fatal("failed resolution was cached; a later pass could never correct it")
	}

	// Once the resolver recovers, the id resolves and caches.
	r.err = nil
	got = c.resolveAndCache(ctx, "AEGS_Gladius")
	if got.MatchMethod != MatchExact {
		t.Fatalf("post-recovery result = %+v, want exact match", got)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	store := kvstore.NewMemory()
	r := newFakeResolver()

	c := NewCache(r, store)
	c.Prepare(context.Background(), []event.KillEvent{{Killers: []string{"p1", "p2"}}})
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh cache over the same store starts warm, no resolver calls needed.
	c2 := NewCache(newFakeResolver(), store)
	c2.Load()
	if got := c2.Size(); got != 2 {
		t.Fatalf("Size() after Load = %d, want 2", got)
	}
	if got := c2.DisplayName("p1"); got != "Resolved p1" {
		t.Fatalf("DisplayName after Load = %q, want persisted resolution", got)
	}
}

func TestLoad_VersionMismatchResetsClean(t *testing.T) {
	store := kvstore.NewMemory()
	raw, _ := json.Marshal(envelope{
		Version:          "0",
		Timestamp:        time.Now().UnixMilli(),
		ResolvedEntities: map[string]Entity{"stale": {DisplayName: "Stale"}},
	})
	if err := store.Set(entitiesKey, string(raw)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c := NewCache(newFakeResolver(), store)
	c.Load()
	if got := c.Size(); got != 0 {
		t.Fatalf("Size() = %d after version mismatch, want 0", got)
	}
}

func TestLoad_CorruptPayloadResetsClean(t *testing.T) {
	store := kvstore.NewMemory()
	if err := store.Set(entitiesKey, "{not json"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c := NewCache(newFakeResolver(), store)
	c.Load()
	if got := c.Size(); got != 0 {
		t.Fatalf("Size() = %d after corrupt payload, want 0", got)
	}
}

func TestLegacyNPCCache(t *testing.T) {
	store := kvstore.NewMemory()
	raw, _ := json.Marshal(envelope{
		Version:     cacheVersion,
		Timestamp:   time.Now().UnixMilli(),
		NPCStatuses: map[string]bool{"PU_Pilots-Human-Pirate": true},
	})
	if err := store.Set(legacyNPCKey, string(raw)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c := NewCache(nil, store)
	c.Load()
	if !c.IsNPC("PU_Pilots-Human-Pirate") {
		t.Fatal("IsNPC = false, want true from legacy cache")
	}
}

func TestInvalidateClearsEverything(t *testing.T) {
	r := newFakeResolver()
	c := NewCache(r, nil)
	c.Prepare(context.Background(), []event.KillEvent{{Killers: []string{"p1"}, Victims: []string{"npc-1"}}})
	if c.Size() == 0 {
		t.Fatal("expected resolutions before invalidation")
	}

	c.Invalidate()
	if got := c.Size(); got != 0 {
		t.Fatalf("Size() = %d after Invalidate, want 0", got)
	}
}
