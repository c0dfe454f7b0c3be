// Package app wires the killfeed client together: configuration, the entity
// cache, both event producers, the reconnection controller, and the UI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kmorand/killfeed/internal/config"
	"github.com/kmorand/killfeed/internal/conn"
	"github.com/kmorand/killfeed/internal/event"
	"github.com/kmorand/killfeed/internal/feed"
	"github.com/kmorand/killfeed/internal/journal"
	"github.com/kmorand/killfeed/internal/kvstore"
	"github.com/kmorand/killfeed/internal/prefs"
	"github.com/kmorand/killfeed/internal/resolve"
	"github.com/kmorand/killfeed/internal/search"
	"github.com/kmorand/killfeed/internal/server"
	"github.com/kmorand/killfeed/internal/ui"
)

const (
	initialLoad    = 100
	searchPageSize = 25
)

// Options configure the killfeed application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/killfeed/prefs.toml
	PollEvery  int    // seconds; zero uses the config value
}

// Run boots the killfeed TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	userPrefs, _ := prefs.Load(opts.PrefsPath)

	setupLogging(cfg.LogPath)

	client, err := server.NewClient(cfg.APIBind)
	if err != nil {
		return fmt.Errorf("init tracker client: %w", err)
	}

	// The entity cache degrades to memory-only persistence on disk trouble.
	var store kvstore.Store
	if disk, err := kvstore.OpenSQLite(cfg.CachePath); err != nil {
		log.Printf("app: entity cache persistence disabled: %v", err)
		store = kvstore.NewMemory()
	} else {
		store = disk
	}
	defer store.Close()

	cache := resolve.NewCache(client, store)
	cache.Load()
	defer func() {
		if err := cache.Save(); err != nil {
			log.Printf("app: final cache save failed: %v", err)
		}
	}()

	events := feed.New(feed.Options{Source: client, Preparer: cache})
	overlay := search.New(client, cache, searchPageSize)

	interval := time.Duration(cfg.PollInterval) * time.Second
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}
	poller := NewPoller(events, client, interval)

	ctrl := conn.New(conn.Options{Reconnect: poller.Kick})
	defer ctrl.Close()
	poller.OnUp = ctrl.Connected
	poller.OnDown = ctrl.Disconnected

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := poller.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("app: poller stopped: %v", err)
		}
	}()

	startJournal(runCtx, cfg.JournalPath, events)

	// Populate the window before the UI starts; a dead tracker is a state
	// for the controller, not a startup failure.
	loadCtx, loadCancel := context.WithTimeout(runCtx, 10*time.Second)
	if err := events.LoadInitial(loadCtx, initialLoad); err != nil {
		log.Printf("app: initial load failed: %v", err)
	}
	loadCancel()

	return ui.Run(ui.Options{
		Context:   runCtx,
		Feed:      events,
		Search:    overlay,
		Resolver:  cache,
		Conn:      ctrl,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
	})
}

// startJournal launches the local producer tail. A missing journal directory
// just disables the surface; it never takes the client down.
func startJournal(ctx context.Context, path string, events *feed.Store) {
	if path == "" {
		return
	}
	tailer := journal.New(path,
		func(ev event.KillEvent) { events.Ingest(ctx, ev, feed.OriginLocal) },
		events.Clear)
	if err := tailer.SeekEnd(); err != nil {
		log.Printf("app: journal tail disabled: %v", err)
		return
	}
	go func() {
		if err := tailer.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("app: journal watch stopped: %v", err)
		}
	}()
}

func setupLogging(path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	log.SetOutput(file)
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
}
