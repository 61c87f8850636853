// Package keeper runs the background loop that keeps backend clocks in sync,
// tracks which backends are alive, and drives data migration when the
// membership changes.
package keeper

import (
	"context"
	"log"
	"sync"
	"time"

	"tribbler/internal/cluster"
	"tribbler/internal/store"
)

// EventType classifies a membership transition.
type EventType string

const (
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"
)

// BackendEvent is one membership transition, consumed by the migration
// engine. Idx is the backend's configuration index.
type BackendEvent struct {
	Type EventType
	Idx  int
}

// Keeper probes every backend once per interval, broadcasts the maximum
// observed clock, and maintains the shared live-set. In probe-only mode it
// neither broadcasts nor emits events; front-end processes use that mode to
// track liveness while the real keeper runs elsewhere.
type Keeper struct {
	backs     []store.Storage
	live      *cluster.LiveSet
	interval  time.Duration
	probeOnly bool

	events chan BackendEvent
	up     []bool
	seeded bool
}

// New creates a keeper over the configured backends. live is shared with the
// routing layer and mutated only here.
func New(backs []store.Storage, live *cluster.LiveSet, probeOnly bool) *Keeper {
	return &Keeper{
		backs:     backs,
		live:      live,
		interval:  time.Second,
		probeOnly: probeOnly,
		events:    make(chan BackendEvent, 2*len(backs)+1),
	}
}

// Events delivers membership transitions in the order they were observed.
func (k *Keeper) Events() <-chan BackendEvent {
	return k.events
}

// Run ticks immediately and then once per interval until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		k.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (k *Keeper) tick(ctx context.Context) {
	clocks := make([]uint64, len(k.backs))
	ok := make([]bool, len(k.backs))

	var wg sync.WaitGroup
	for i := range k.backs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, k.interval)
			defer cancel()
			ts, err := k.backs[i].Clock(pctx, 0)
			if err != nil {
				probeFailuresTotal.Inc()
				return
			}
			clocks[i], ok[i] = ts, true
		}(i)
	}
	wg.Wait()

	var max uint64
	n := 0
	for i := range ok {
		if ok[i] {
			n++
			if clocks[i] > max {
				max = clocks[i]
			}
		}
	}
	backendsUp.Set(float64(n))
	maxClock.Set(float64(max))

	// Clock sync needs no majority; a backend that missed this round simply
	// rejoins at the next one.
	if !k.probeOnly && max > 0 {
		for i := range k.backs {
			if !ok[i] {
				continue
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				bctx, cancel := context.WithTimeout(ctx, k.interval)
				defer cancel()
				_, _ = k.backs[i].Clock(bctx, max)
			}(i)
		}
		wg.Wait()
	}

	if !k.seeded {
		k.seeded = true
		k.up = ok
		var liveIdx []int
		for i, u := range ok {
			if u {
				liveIdx = append(liveIdx, i)
			}
		}
		k.live.Replace(liveIdx)
		return
	}

	for i := range ok {
		if ok[i] == k.up[i] {
			continue
		}
		k.up[i] = ok[i]
		transitionsTotal.Inc()
		if ok[i] {
			k.live.Add(i)
			log.Printf("keeper: backend %d up", i)
			k.emit(ctx, BackendEvent{Type: EventJoin, Idx: i})
		} else {
			k.live.Remove(i)
			log.Printf("keeper: backend %d down", i)
			k.emit(ctx, BackendEvent{Type: EventLeave, Idx: i})
		}
	}
}

func (k *Keeper) emit(ctx context.Context, ev BackendEvent) {
	if k.probeOnly {
		return
	}
	select {
	case k.events <- ev:
	case <-ctx.Done():
	}
}
