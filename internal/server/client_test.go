package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kmorand/killfeed/internal/event"
	"github.com/kmorand/killfeed/internal/resolve"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultAPIBind {
		t.Fatalf("host = %q, want %q", u.Host, defaultAPIBind)
	}

	u, err = parseBaseURL("http://example.com:1234/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_FetchesEndpointsAndEncodesQueries(t *testing.T) {
	t.Parallel()

	var gotMoreQuery, gotSearchQuery, gotPollQuery url.Values
	var gotUserAgent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/events/recent":
			_ = json.NewEncoder(w).Encode(pageResponse{
				Events: []event.KillEvent{{ID: "k-1", Timestamp: "2026-08-20T11:04:05Z"}},
			})
		case "/api/events":
			gotMoreQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode(pageResponse{
				Events:  []event.KillEvent{{ID: "k-2", Timestamp: "2026-08-20T10:00:00Z"}},
				HasMore: true,
			})
		case "/api/events/search":
			gotSearchQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode(pageResponse{
				Events: []event.KillEvent{{ID: "k-3", Timestamp: "2026-08-19T10:00:00Z"}},
			})
		case "/api/entities/resolve":
			_ = json.NewEncoder(w).Encode(resolve.Entity{
				DisplayName: "Gladius",
				Category:    resolve.CategoryShip,
				MatchMethod: resolve.MatchExact,
			})
		case "/api/entities/npc":
			_ = json.NewEncoder(w).Encode(map[string]bool{"isNpc": true})
		case "/api/events/poll":
			gotPollQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode(EventBatch{
				Events: []event.KillEvent{{ID: "k-4", Timestamp: "2026-08-20T11:05:00Z"}},
				Next:   77,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	recent, err := c.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents returned error: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "k-1" {
		t.Fatalf("RecentEvents payload = %#v, want one event k-1", recent)
	}
	if !strings.HasPrefix(gotUserAgent, "killfeed/") {
		t.Fatalf("User-Agent = %q, want killfeed/*", gotUserAgent)
	}

	page, err := c.MoreEvents(ctx, 25, 100)
	if err != nil {
		t.Fatalf("MoreEvents returned error: %v", err)
	}
	if !page.HasMore || len(page.Events) != 1 {
		t.Fatalf("MoreEvents payload = %#v, want one event hasMore=true", page)
	}
	if gotMoreQuery.Get("limit") != "25" || gotMoreQuery.Get("offset") != "100" {
		t.Fatalf("MoreEvents query = %v, want limit=25 offset=100", gotMoreQuery)
	}

	page, err = c.SearchEvents(ctx, "gladius pirate", 25, 0)
	if err != nil {
		t.Fatalf("SearchEvents returned error: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].ID != "k-3" {
		t.Fatalf("SearchEvents payload = %#v, want one event k-3", page)
	}
	if gotSearchQuery.Get("q") != "gladius pirate" || gotSearchQuery.Get("offset") != "0" {
		t.Fatalf("SearchEvents query = %v, want q and offset encoded", gotSearchQuery)
	}

	entity, err := c.ResolveEntity(ctx, "AEGS_Gladius", "ship")
	if err != nil {
		t.Fatalf("ResolveEntity returned error: %v", err)
	}
	if entity.DisplayName != "Gladius" || entity.MatchMethod != resolve.MatchExact {
		t.Fatalf("ResolveEntity payload = %#v", entity)
	}

	npc, err := c.IsNPCEntity(ctx, "PU_Pilots-Human-Pirate")
	if err != nil {
		t.Fatalf("IsNPCEntity returned error: %v", err)
	}
	if !npc {
		t.Fatal("IsNPCEntity = false, want true")
	}

	batch, err := c.PollEvents(ctx, 42, 100)
	if err != nil {
		t.Fatalf("PollEvents returned error: %v", err)
	}
	if batch.Next != 77 || len(batch.Events) != 1 {
		t.Fatalf("PollEvents payload = %#v, want one event next=77", batch)
	}
	if gotPollQuery.Get("since") != "42" || gotPollQuery.Get("limit") != "100" {
		t.Fatalf("PollEvents query = %v, want since=42 limit=100", gotPollQuery)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.RecentEvents(context.Background(), 5); err == nil {
		t.Fatal("RecentEvents returned nil error, want status error")
	}
	if _, err := c.IsNPCEntity(context.Background(), "x"); err == nil {
		t.Fatal("IsNPCEntity returned nil error, want status error")
	}
}

func TestClient_NilGuards(t *testing.T) {
	var c *Client
	if _, err := c.RecentEvents(context.Background(), 1); err == nil {
		t.Fatal("nil client RecentEvents returned nil error")
	}
	if _, err := c.PollEvents(context.Background(), 0, 1); err == nil {
		t.Fatal("nil client PollEvents returned nil error")
	}
}
