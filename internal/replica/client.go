package replica

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tribbler/internal/cluster"
	"tribbler/internal/store"
)

// ErrUnavailable is returned when neither replica of a bin can be reached.
// Single-replica failures are masked and never surface.
var ErrUnavailable = errors.New("no reachable replica")

// Client implements the store.Storage contract for one bin over its
// (primary, backup) pair. Keys passed in are already bin-prefixed; Client
// adds the PREFIX_/SUFFIX_ typing for lists and fans writes out to both
// replicas.
type Client struct {
	bin    string
	backs  []store.Storage
	router *cluster.Router
}

// New creates the replicated view for bin. backs must hold a stub for every
// configured backend, indexed consistently with the router's live-set.
func New(bin string, backs []store.Storage, router *cluster.Router) *Client {
	return &Client{bin: bin, backs: backs, router: router}
}

func (c *Client) route() (primary, backup int, err error) {
	return c.router.Route(c.bin)
}

// Get tries the primary first. A transport error falls through to the
// backup; a miss also consults the backup, because during migration the
// primary may not yet hold a key the backup already has.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	primary, backup, err := c.route()
	if err != nil {
		return "", err
	}

	value, err := c.backs[primary].Get(ctx, key)
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, store.ErrNotFound):
		if backup >= 0 {
			if v, berr := c.backs[backup].Get(ctx, key); berr == nil {
				return v, nil
			}
		}
		return "", store.ErrNotFound
	default:
		if backup >= 0 {
			v, berr := c.backs[backup].Get(ctx, key)
			if berr == nil || errors.Is(berr, store.ErrNotFound) {
				return v, berr
			}
		}
		return "", fmt.Errorf("bin %q get: %w", c.bin, ErrUnavailable)
	}
}

// Set writes to the primary and, best-effort, to the backup. The primary's
// outcome is returned; when the primary is down the backup's outcome stands.
func (c *Client) Set(ctx context.Context, kv store.KeyValue) (bool, error) {
	primary, backup, err := c.route()
	if err != nil {
		return false, err
	}

	ok, perr := c.backs[primary].Set(ctx, kv)
	if backup >= 0 {
		bok, berr := c.backs[backup].Set(ctx, kv)
		if perr != nil {
			if berr != nil {
				return false, fmt.Errorf("bin %q set: %w", c.bin, ErrUnavailable)
			}
			return bok, nil
		}
	} else if perr != nil {
		return false, fmt.Errorf("bin %q set: %w", c.bin, ErrUnavailable)
	}
	return ok, nil
}

// Keys asks both replicas and returns the longer answer: mid-migration one
// side may hold a superset of the other.
func (c *Client) Keys(ctx context.Context, p store.Pattern) ([]string, error) {
	primary, backup, err := c.route()
	if err != nil {
		return nil, err
	}

	keys, perr := c.backs[primary].Keys(ctx, p)
	if perr != nil {
		if backup >= 0 {
			if bkeys, berr := c.backs[backup].Keys(ctx, p); berr == nil {
				return bkeys, nil
			}
		}
		return nil, fmt.Errorf("bin %q keys: %w", c.bin, ErrUnavailable)
	}
	if backup >= 0 {
		if bkeys, berr := c.backs[backup].Keys(ctx, p); berr == nil && len(bkeys) > len(keys) {
			keys = bkeys
		}
	}
	return keys, nil
}

// Clock reads the primary's clock and relays atLeast to the backup so both
// clocks advance together.
func (c *Client) Clock(ctx context.Context, atLeast uint64) (uint64, error) {
	primary, backup, err := c.route()
	if err != nil {
		return 0, err
	}

	ts, perr := c.backs[primary].Clock(ctx, atLeast)
	if perr != nil {
		if backup >= 0 {
			if bts, berr := c.backs[backup].Clock(ctx, atLeast); berr == nil {
				return bts, nil
			}
		}
		return 0, fmt.Errorf("bin %q clock: %w", c.bin, ErrUnavailable)
	}
	if backup >= 0 {
		_, _ = c.backs[backup].Clock(ctx, atLeast)
	}
	return ts, nil
}

// canonical fetches and merges the typed list pair on one backend.
func (c *Client) canonical(ctx context.Context, s store.Storage, key string) ([]markedItem, error) {
	prefixRaw, err := s.ListGet(ctx, PrefixTag+key)
	if err != nil {
		return nil, err
	}
	suffixRaw, err := s.ListGet(ctx, SuffixTag+key)
	if err != nil {
		return nil, err
	}
	return mergeLists(prefixRaw, suffixRaw)
}

// ListGet merges the canonical list on both replicas, keeps the longer one
// (migration may still be copying) and runs it through the consistent
// ordering procedure.
func (c *Client) ListGet(ctx context.Context, key string) ([]string, error) {
	primary, backup, err := c.route()
	if err != nil {
		return nil, err
	}

	pItems, perr := c.canonical(ctx, c.backs[primary], key)
	var bItems []markedItem
	berr := error(ErrUnavailable)
	if backup >= 0 {
		bItems, berr = c.canonical(ctx, c.backs[backup], key)
	}

	switch {
	case perr == nil && berr == nil:
		if len(bItems) > len(pItems) {
			return consistentOrder(bItems), nil
		}
		return consistentOrder(pItems), nil
	case perr == nil:
		return consistentOrder(pItems), nil
	case berr == nil:
		return consistentOrder(bItems), nil
	default:
		return nil, fmt.Errorf("bin %q list get: %w", c.bin, ErrUnavailable)
	}
}

// ListAppend appends one element to the bin's suffix list.
//
// The acting primary is whichever replica holds the longer canonical list
// (its side is ahead while the hashed primary catches up via migration), or
// whichever one is reachable. The element is stamped with the acting
// primary's clock and id, appended there, then re-read to learn its landed
// position, and finally replicated to the other side with the position
// filled in.
func (c *Client) ListAppend(ctx context.Context, kv store.KeyValue) (bool, error) {
	primary, backup, err := c.route()
	if err != nil {
		return false, err
	}

	appender, replicator := primary, backup
	pItems, perr := c.canonical(ctx, c.backs[primary], kv.Key)
	if backup >= 0 {
		bItems, berr := c.canonical(ctx, c.backs[backup], kv.Key)
		switch {
		case perr == nil && berr == nil:
			if len(bItems) > len(pItems) {
				appender, replicator = backup, primary
			}
		case perr == nil:
			replicator = -1
		case berr == nil:
			appender, replicator = backup, -1
		default:
			return false, fmt.Errorf("bin %q list append: %w", c.bin, ErrUnavailable)
		}
	} else if perr != nil {
		return false, fmt.Errorf("bin %q list append: %w", c.bin, ErrUnavailable)
	}

	ts, err := c.backs[appender].Clock(ctx, 0)
	if err != nil {
		return false, fmt.Errorf("bin %q list append clock: %w", c.bin, err)
	}

	mv := MarkedValue{
		BackendType: TypePrimary,
		BackendID:   appender,
		Clock:       ts,
		Index:       0,
		Value:       kv.Value,
	}
	raw, err := encodeMarked(mv)
	if err != nil {
		return false, err
	}

	suffixKey := SuffixTag + kv.Key
	ok, err := c.backs[appender].ListAppend(ctx, store.KeyValue{Key: suffixKey, Value: raw})
	if err != nil {
		return false, fmt.Errorf("bin %q list append: %w", c.bin, err)
	}

	if replicator >= 0 {
		// Learn where the append landed so the replica copy carries the
		// authoritative position.
		items, err := c.canonical(ctx, c.backs[appender], kv.Key)
		if err == nil {
			for i, it := range items {
				if it.raw == raw {
					mv.Index = uint64(i)
					break
				}
			}
			if replRaw, err := encodeMarked(mv); err == nil {
				_, _ = c.backs[replicator].ListAppend(ctx, store.KeyValue{Key: suffixKey, Value: replRaw})
			}
		}
	}
	return ok, nil
}

// removeOn removes every canonical element whose payload equals kv.Value
// from one backend, targeting the exact stored wire form in both typed
// lists. The merged list is sorted and deduplicated first so one event is
// only counted once.
func (c *Client) removeOn(ctx context.Context, s store.Storage, kv store.KeyValue) (uint32, error) {
	items, err := c.canonical(ctx, s, kv.Key)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].mv.less(items[j].mv) })

	var removed uint32
	for i, it := range items {
		if i > 0 && it.mv.sameEvent(items[i-1].mv) {
			continue
		}
		if it.mv.Value != kv.Value {
			continue
		}
		_, _ = s.ListRemove(ctx, store.KeyValue{Key: PrefixTag + kv.Key, Value: it.raw})
		_, _ = s.ListRemove(ctx, store.KeyValue{Key: SuffixTag + kv.Key, Value: it.raw})
		removed++
	}
	return removed, nil
}

// ListRemove removes all matching elements on both replicas and reports the
// larger count, covering partial-migration states.
func (c *Client) ListRemove(ctx context.Context, kv store.KeyValue) (uint32, error) {
	primary, backup, err := c.route()
	if err != nil {
		return 0, err
	}

	removed, perr := c.removeOn(ctx, c.backs[primary], kv)
	if perr != nil {
		if backup >= 0 {
			if brem, berr := c.removeOn(ctx, c.backs[backup], kv); berr == nil {
				return brem, nil
			}
		}
		return 0, fmt.Errorf("bin %q list remove: %w", c.bin, ErrUnavailable)
	}
	if backup >= 0 {
		if brem, berr := c.removeOn(ctx, c.backs[backup], kv); berr == nil && brem > removed {
			removed = brem
		}
	}
	return removed, nil
}

// ListKeys unions the typed-list keys across both replicas and strips the
// type tags. Per-replica failures are tolerated as long as one side answers.
func (c *Client) ListKeys(ctx context.Context, p store.Pattern) ([]string, error) {
	primary, backup, err := c.route()
	if err != nil {
		return nil, err
	}

	patterns := []store.Pattern{
		{Prefix: PrefixTag + p.Prefix, Suffix: p.Suffix},
		{Prefix: SuffixTag + p.Prefix, Suffix: p.Suffix},
	}
	targets := []int{primary}
	if backup >= 0 {
		targets = append(targets, backup)
	}

	matched := make(map[string]bool)
	anyOK := false
	for _, idx := range targets {
		for _, tp := range patterns {
			keys, err := c.backs[idx].ListKeys(ctx, tp)
			if err != nil {
				continue
			}
			anyOK = true
			for _, k := range keys {
				matched[strings.TrimPrefix(strings.TrimPrefix(k, PrefixTag), SuffixTag)] = true
			}
		}
	}
	if !anyOK {
		return nil, fmt.Errorf("bin %q list keys: %w", c.bin, ErrUnavailable)
	}

	out := make([]string, 0, len(matched))
	for k := range matched {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
