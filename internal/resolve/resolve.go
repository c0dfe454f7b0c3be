// Package resolve maps raw entity identifiers (ship codes, NPC archetypes,
// location codes) to resolved display names and classifications through a
// two-tier cache: an in-memory map backed by a persisted, versioned
// key-value entry.
package resolve

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/kmorand/killfeed/internal/event"
	"github.com/kmorand/killfeed/internal/kvstore"
)

// Category classifies a resolved entity.
type Category string

const (
	CategoryShip     Category = "ship"
	CategoryVehicle  Category = "vehicle"
	CategoryWeapon   Category = "weapon"
	CategoryLocation Category = "location"
	CategoryNPC      Category = "npc"
	CategoryPlayer   Category = "player"
	CategoryUnknown  Category = "unknown"
)

// MatchMethod records how a resolution was obtained.
type MatchMethod string

const (
	MatchExact    MatchMethod = "exact"
	MatchPattern  MatchMethod = "pattern"
	MatchFallback MatchMethod = "fallback"
)

// Entity is the resolved form of a raw identifier. Immutable once cached;
// only a cache invalidation replaces it.
type Entity struct {
	DisplayName string      `json:"displayName"`
	IsNPC       bool        `json:"isNpc"`
	Category    Category    `json:"category"`
	MatchMethod MatchMethod `json:"matchMethod"`
	OriginalID  string      `json:"originalId"`
}

// Resolver performs the (possibly remote) lookups backing the cache.
type Resolver interface {
	ResolveEntity(ctx context.Context, id, hint string) (Entity, error)
	IsNPCEntity(ctx context.Context, id string) (bool, error)
}

const (
	cacheVersion   = "1"
	entitiesKey    = "resolvedEntities"
	legacyNPCKey   = "npcStatuses"
	resolveTimeout = 5 * time.Second

	// saveChance throttles persistence to roughly one save per several
	// resolutions, bounding write amplification without affecting correctness.
	saveChance = 0.15
)

type envelope struct {
	Version          string            `json:"version"`
	Timestamp        int64             `json:"timestamp"`
	ResolvedEntities map[string]Entity `json:"resolvedEntities,omitempty"`
	NPCStatuses      map[string]bool   `json:"npcStatuses,omitempty"`
}

// Cache is the entity resolution cache. Safe for concurrent use; writes are
// first-resolution-wins per key.
type Cache struct {
	resolver Resolver
	store    kvstore.Store

	mu       sync.RWMutex
	entities map[string]Entity
	npc      map[string]bool // legacy classification cache
	inflight map[string]struct{}
}

// NewCache builds a Cache over the given resolver and persistence store.
// Either may be nil: a nil resolver leaves only the fallback heuristic, a nil
// store disables persistence.
func NewCache(resolver Resolver, store kvstore.Store) *Cache {
	return &Cache{
		resolver: resolver,
		store:    store,
		entities: make(map[string]Entity),
		npc:      make(map[string]bool),
		inflight: make(map[string]struct{}),
	}
}

// Load restores the persisted caches. A version mismatch or undecodable
// payload resets the cache clean; the corrupt payload is never retried.
func (c *Cache) Load() {
	if c.store == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if raw, ok, err := c.store.Get(entitiesKey); err == nil && ok {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Version != cacheVersion {
			log.Printf("resolve: discarding entity cache (version %q, err %v)", env.Version, err)
		} else if env.ResolvedEntities != nil {
			c.entities = env.ResolvedEntities
		}
	}
	if raw, ok, err := c.store.Get(legacyNPCKey); err == nil && ok {
		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Version != cacheVersion {
			log.Printf("resolve: discarding npc cache (version %q, err %v)", env.Version, err)
		} else if env.NPCStatuses != nil {
			c.npc = env.NPCStatuses
		}
	}
}

// Save persists the resolved-entity map unconditionally.
func (c *Cache) Save() error {
	if c.store == nil {
		return nil
	}
	c.mu.RLock()
	env := envelope{
		Version:          cacheVersion,
		Timestamp:        time.Now().UnixMilli(),
		ResolvedEntities: make(map[string]Entity, len(c.entities)),
	}
	for id, e := range c.entities {
		env.ResolvedEntities[id] = e
	}
	c.mu.RUnlock()

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.store.Set(entitiesKey, string(raw))
}

// Prepare implements feed.Preparer: eagerly resolve every distinct id a batch
// of events references before the batch is published, so the first render
// shows resolved names rather than placeholders.
func (c *Cache) Prepare(ctx context.Context, events []event.KillEvent) {
	var missing []string
	seen := make(map[string]struct{})
	c.mu.RLock()
	for _, ev := range events {
		for _, id := range ev.EntityIDs() {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := c.entities[id]; !ok {
				missing = append(missing, id)
			}
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 || c.resolver == nil {
		return
	}

	var wg sync.WaitGroup
	for _, id := range missing {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.resolveAndCache(ctx, id)
		}(id)
	}
	wg.Wait()
}

// DisplayName returns a renderable name for id immediately: the cached
// resolution when present, otherwise a deterministic fallback while a
// background resolution backfills the cache for next time.
func (c *Cache) DisplayName(id string) string {
	c.mu.RLock()
	e, ok := c.entities[id]
	c.mu.RUnlock()
	if ok {
		return e.DisplayName
	}
	c.backfill(id)
	return FallbackName(id)
}

// IsNPC reports the NPC classification for id: resolved cache, then the
// legacy classification cache, then false while a background resolution runs.
func (c *Cache) IsNPC(id string) bool {
	c.mu.RLock()
	if e, ok := c.entities[id]; ok {
		c.mu.RUnlock()
		return e.IsNPC
	}
	npc, ok := c.npc[id]
	c.mu.RUnlock()
	if ok {
		return npc
	}
	c.backfill(id)
	return false
}

// Invalidate clears all caches after a definitions update. The caller is
// expected to re-run Prepare over the live window.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entities = make(map[string]Entity)
	c.npc = make(map[string]bool)
	c.mu.Unlock()
}

// Size returns the number of cached resolutions.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// resolveAndCache performs one resolver call for id. A failure synthesizes a
// fallback entity for the caller but does not cache it, so a later pass may
// retry and replace the guess.
func (c *Cache) resolveAndCache(ctx context.Context, id string) Entity {
	c.mu.RLock()
	if e, ok := c.entities[id]; ok {
		c.mu.RUnlock()
		return e
	}
	c.mu.RUnlock()

	e, err := c.resolver.ResolveEntity(ctx, id, "")
	if err != nil {
		return Entity{
			DisplayName: FallbackName(id),
			Category:    CategoryUnknown,
			MatchMethod: MatchFallback,
			OriginalID:  id,
		}
	}
	e.OriginalID = id

	c.mu.Lock()
	if existing, ok := c.entities[id]; ok {
		// First resolution wins.
		c.mu.Unlock()
		return existing
	}
	c.entities[id] = e
	c.mu.Unlock()

	c.maybePersist()
	return e
}

// backfill kicks off an async resolution for id unless one is already
// running or no resolver is available.
func (c *Cache) backfill(id string) {
	if c.resolver == nil || id == "" {
		return
	}
	c.mu.Lock()
	if _, busy := c.inflight[id]; busy {
		c.mu.Unlock()
		return
	}
	c.inflight[id] = struct{}{}
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.inflight, id)
			c.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		c.resolveAndCache(ctx, id)
	}()
}

func (c *Cache) maybePersist() {
	if c.store == nil || rand.Float64() >= saveChance {
		return
	}
	if err := c.Save(); err != nil {
		log.Printf("resolve: persist cache: %v", err)
	}
}
