package app

import (
	"context"
	"log"
	"time"

	"github.com/kmorand/killfeed/internal/event"
	"github.com/kmorand/killfeed/internal/feed"
	"github.com/kmorand/killfeed/internal/server"
)

const (
	defaultPollInterval = 2 * time.Second
	pollLimit           = 200
)

// Poller drives the live server broadcast: it polls the event cursor at a
// fixed cadence and feeds arrivals into the store. When the transport goes
// down it parks until Kick is called (by the reconnection controller or the
// user) rather than hammering a dead endpoint.
type Poller struct {
	store    *feed.Store
	client   server.API
	interval time.Duration
	retry    chan struct{}

	// OnUp fires on the first successful poll after being down, OnDown on
	// the first failure after being up.
	OnUp   func()
	OnDown func()
}

// NewPoller builds a Poller. A zero interval uses the default cadence.
func NewPoller(store *feed.Store, client server.API, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		store:    store,
		client:   client,
		interval: interval,
		retry:    make(chan struct{}, 1),
	}
}

// Kick requests an immediate poll attempt, waking the loop if it is parked
// after a failure. Safe to call from any goroutine.
func (p *Poller) Kick() {
	select {
	case p.retry <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. It returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var cursor uint64
	up := false

	for {
		batch, err := p.client.PollEvents(ctx, cursor, pollLimit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("poller: live poll failed: %v", err)
			up = false
			if p.OnDown != nil {
				p.OnDown()
			}
			// Parked: the reconnection controller owns the retry schedule.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.retry:
				continue
			}
		}

		if !up {
			up = true
			if p.OnUp != nil {
				p.OnUp()
			}
		}
		cursor = batch.Next
		for _, ev := range batch.Events {
			p.ingest(ctx, ev)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.retry:
		case <-ticker.C:
		}
	}
}

func (p *Poller) ingest(ctx context.Context, ev event.KillEvent) {
	p.store.Ingest(ctx, ev, feed.OriginServer)
}
