// Package server talks to the kill-tracker HTTP API: event history, search,
// entity resolution, and the live broadcast cursor.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kmorand/killfeed/internal/event"
	"github.com/kmorand/killfeed/internal/feed"
	"github.com/kmorand/killfeed/internal/resolve"
)

// API defines the tracker operations the client exposes. Implemented by
// *Client; fakes implement it in tests.
type API interface {
	RecentEvents(ctx context.Context, limit int) ([]event.KillEvent, error)
	MoreEvents(ctx context.Context, pageSize, offset int) (feed.Page, error)
	SearchEvents(ctx context.Context, query string, pageSize, offset int) (feed.Page, error)
	ResolveEntity(ctx context.Context, id, hint string) (resolve.Entity, error)
	IsNPCEntity(ctx context.Context, id string) (bool, error)
	PollEvents(ctx context.Context, since uint64, limit int) (EventBatch, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the tracker HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBind   = "127.0.0.1:8421"
	defaultUserAgent = "killfeed/0.1"
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client using the provided apiBind host:port value.
func NewClient(apiBind string) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

type pageResponse struct {
	Events  []event.KillEvent `json:"events"`
	HasMore bool              `json:"hasMore"`
}

// EventBatch is one poll of the live broadcast stream.
type EventBatch struct {
	Events []event.KillEvent `json:"events"`
	// Next is the cursor to resume from; zero resets to the stream tail.
	Next uint64 `json:"next"`
}

// RecentEvents retrieves the most recent events, newest first.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]event.KillEvent, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	rel := &url.URL{Path: "/api/events/recent", RawQuery: values.Encode()}
	var payload pageResponse
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return nil, err
	}
	return payload.Events, nil
}

// MoreEvents retrieves one page of older history starting at offset.
func (c *Client) MoreEvents(ctx context.Context, pageSize, offset int) (feed.Page, error) {
	if c == nil {
		return feed.Page{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if pageSize > 0 {
		values.Set("limit", strconv.Itoa(pageSize))
	}
	values.Set("offset", strconv.Itoa(offset))
	rel := &url.URL{Path: "/api/events", RawQuery: values.Encode()}
	var payload pageResponse
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return feed.Page{}, err
	}
	return feed.Page{Events: payload.Events, HasMore: payload.HasMore}, nil
}

// SearchEvents retrieves one page of events matching query.
func (c *Client) SearchEvents(ctx context.Context, query string, pageSize, offset int) (feed.Page, error) {
	if c == nil {
		return feed.Page{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("q", query)
	if pageSize > 0 {
		values.Set("limit", strconv.Itoa(pageSize))
	}
	values.Set("offset", strconv.Itoa(offset))
	rel := &url.URL{Path: "/api/events/search", RawQuery: values.Encode()}
	var payload pageResponse
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return feed.Page{}, err
	}
	return feed.Page{Events: payload.Events, HasMore: payload.HasMore}, nil
}

// ResolveEntity resolves one raw identifier to its display form.
func (c *Client) ResolveEntity(ctx context.Context, id, hint string) (resolve.Entity, error) {
	if c == nil {
		return resolve.Entity{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("id", id)
	if hint = strings.TrimSpace(hint); hint != "" {
		values.Set("hint", hint)
	}
	rel := &url.URL{Path: "/api/entities/resolve", RawQuery: values.Encode()}
	var payload resolve.Entity
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return resolve.Entity{}, err
	}
	return payload, nil
}

// IsNPCEntity reports the server's NPC classification for id.
func (c *Client) IsNPCEntity(ctx context.Context, id string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("id", id)
	rel := &url.URL{Path: "/api/entities/npc", RawQuery: values.Encode()}
	var payload struct {
		IsNPC bool `json:"isNpc"`
	}
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return false, err
	}
	return payload.IsNPC, nil
}

// PollEvents retrieves live broadcast events past the since cursor.
func (c *Client) PollEvents(ctx context.Context, since uint64, limit int) (EventBatch, error) {
	if c == nil {
		return EventBatch{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if since > 0 {
		values.Set("since", strconv.FormatUint(since, 10))
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	rel := &url.URL{Path: "/api/events/poll", RawQuery: values.Encode()}
	var payload EventBatch
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return EventBatch{}, err
	}
	return payload, nil
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
