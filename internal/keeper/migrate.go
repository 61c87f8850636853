package keeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"tribbler/internal/cluster"
	"tribbler/internal/replica"
	"tribbler/internal/store"
)

// Migrator re-homes bin data after membership changes so the "primary plus
// successor" placement invariant holds again. All copies are idempotent:
// scalar sets overwrite with equal values and list replays are deduplicated
// by the read-side ordering procedure.
type Migrator struct {
	backs []store.Storage
	live  *cluster.LiveSet
}

func NewMigrator(backs []store.Storage, live *cluster.LiveSet) *Migrator {
	return &Migrator{backs: backs, live: live}
}

// Run consumes membership events until ctx is cancelled. A failed run is
// logged and dropped; the data it missed is picked up by the copy triggered
// on the next transition, and reads mask the gap meanwhile.
func (m *Migrator) Run(ctx context.Context, events <-chan BackendEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			migrationsTotal.Inc()
			live := m.live.Snapshot()
			var err error
			switch ev.Type {
			case EventJoin:
				err = m.Join(ctx, live, ev.Idx)
			case EventLeave:
				err = m.Leave(ctx, live, ev.Idx)
			}
			if err != nil {
				migrationErrorsTotal.Inc()
				log.Printf("keeper: migration for %s of backend %d: %v", ev.Type, ev.Idx, err)
			}
		}
	}
}

// succAfter returns the smallest live member greater than x, wrapping.
func succAfter(live []int, x int) int {
	for _, idx := range live {
		if idx > x {
			return idx
		}
	}
	return live[0]
}

// predBefore returns the largest live member smaller than x, wrapping.
func predBefore(live []int, x int) int {
	for i := len(live) - 1; i >= 0; i-- {
		if live[i] < x {
			return live[i]
		}
	}
	return live[len(live)-1]
}

// inArc reports whether slot lies in the half-open ring arc (lo, hi].
// Equal endpoints denote the full ring.
func inArc(slot, lo, hi int) bool {
	switch {
	case lo < hi:
		return slot > lo && slot <= hi
	case lo > hi:
		return slot > lo || slot <= hi
	default:
		return true
	}
}

// Join restores placement after backend joined came up. live is the post-join
// live-set. The bins whose slot now lands on joined are copied over from its
// successor, which held them while joined was away.
func (m *Migrator) Join(ctx context.Context, live []int, joined int) error {
	if len(live) < 2 {
		return nil
	}
	succ := succAfter(live, joined)
	if len(live) == 2 {
		// With two members each is the other's backup; the newcomer needs
		// everything.
		return m.copyArc(ctx, succ, joined, func(int) bool { return true })
	}
	pred := predBefore(live, joined)
	return m.copyArc(ctx, succ, joined, func(slot int) bool {
		return inArc(slot, pred, joined)
	})
}

// Leave reconstitutes the replicas lost when backend left went down. live is
// the post-leave live-set. left's predecessor lost its backup, so its arc is
// re-copied to the successor; the arc left owned moves its backup copy one
// member further along.
func (m *Migrator) Leave(ctx context.Context, live []int, left int) error {
	if len(live) < 2 {
		return nil
	}
	pred := predBefore(live, left)
	succ := succAfter(live, left)
	prevPred := predBefore(live, pred)
	nextSucc := succAfter(live, succ)

	err := m.copyArc(ctx, pred, succ, func(slot int) bool {
		return inArc(slot, prevPred, pred)
	})
	err2 := m.copyArc(ctx, succ, nextSucc, func(slot int) bool {
		return inArc(slot, pred, left)
	})
	return errors.Join(err, err2)
}

// copyArc copies every bin on backend from whose slot satisfies want over to
// backend to. Per-bin failures are collected, not fatal.
func (m *Migrator) copyArc(ctx context.Context, from, to int, want func(slot int) bool) error {
	if from == to {
		return nil
	}
	bins, err := m.binsOn(ctx, m.backs[from])
	if err != nil {
		return fmt.Errorf("enumerate bins on backend %d: %w", from, err)
	}

	var failed []error
	for _, bin := range bins {
		if !want(cluster.Slot(bin, len(m.backs))) {
			continue
		}
		if err := copyBin(ctx, m.backs[from], m.backs[to], bin); err != nil {
			failed = append(failed, fmt.Errorf("copy bin %q %d->%d: %w", bin, from, to, err))
		}
	}
	return errors.Join(failed...)
}

// binsOn enumerates the bins resident on one backend by listing every scalar
// and list key and splitting off the bin part.
func (m *Migrator) binsOn(ctx context.Context, s store.Storage) ([]string, error) {
	keys, err := s.Keys(ctx, store.Pattern{})
	if err != nil {
		return nil, err
	}
	listKeys, err := s.ListKeys(ctx, store.Pattern{})
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	add := func(key string) {
		if i := strings.Index(key, "::"); i >= 0 {
			set[key[:i]] = true
		}
	}
	for _, k := range keys {
		add(k)
	}
	for _, k := range listKeys {
		k = strings.TrimPrefix(k, replica.PrefixTag)
		k = strings.TrimPrefix(k, replica.SuffixTag)
		add(k)
	}

	bins := make([]string, 0, len(set))
	for b := range set {
		bins = append(bins, b)
	}
	sort.Strings(bins)
	return bins, nil
}

// copyBin moves one bin's scalars and both typed lists from src to dst.
// List elements already present on dst are skipped so repeated copies do not
// pile up duplicates.
func copyBin(ctx context.Context, src, dst store.Storage, bin string) error {
	prefix := bin + "::"

	keys, err := src.Keys(ctx, store.Pattern{Prefix: prefix})
	if err != nil {
		return err
	}
	for _, key := range keys {
		value, err := src.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if _, err := dst.Set(ctx, store.KeyValue{Key: key, Value: value}); err != nil {
			return err
		}
	}

	for _, tag := range []string{replica.PrefixTag, replica.SuffixTag} {
		listKeys, err := src.ListKeys(ctx, store.Pattern{Prefix: tag + prefix})
		if err != nil {
			return err
		}
		for _, key := range listKeys {
			elems, err := src.ListGet(ctx, key)
			if err != nil {
				return err
			}
			existing, err := dst.ListGet(ctx, key)
			if err != nil {
				return err
			}
			have := make(map[string]bool, len(existing))
			for _, e := range existing {
				have[e] = true
			}
			for _, e := range elems {
				if have[e] {
					continue
				}
				if _, err := dst.ListAppend(ctx, store.KeyValue{Key: key, Value: e}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
