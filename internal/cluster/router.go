package cluster

import (
	"errors"
	"hash/fnv"
	"sort"
)

// ErrNoBackends is returned when routing is attempted against an empty
// live-set.
var ErrNoBackends = errors.New("no live backends")

// Slot maps a bin name onto the fixed ring of configured backends.
// FNV-1a is stable across processes, so any client with the same live-set
// computes the same placement.
func Slot(name string, nbacks int) int {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int(h.Sum64() % uint64(nbacks))
}

// Owner returns the live backend responsible for slot: the first live index
// >= slot, wrapping to the smallest. This is what keeps membership changes
// local — a join or leave only remaps the arc next to the changed node.
func Owner(live []int, slot int) int {
	pos := sort.SearchInts(live, slot)
	if pos == len(live) {
		pos = 0
	}
	return live[pos]
}

// Router resolves a bin name to its (primary, backup) backend pair over the
// current live-set.
type Router struct {
	nbacks int
	live   *LiveSet
}

// NewRouter creates a router over nbacks configured backends.
func NewRouter(nbacks int, live *LiveSet) *Router {
	return &Router{nbacks: nbacks, live: live}
}

// Live exposes the router's live-set.
func (r *Router) Live() *LiveSet { return r.live }

// NumBackends returns the size of the configured backend ring.
func (r *Router) NumBackends() int { return r.nbacks }

// Route returns the primary and backup backend indices for bin. The backup
// is the primary's clockwise successor; backup is -1 when only one backend
// is alive.
func (r *Router) Route(bin string) (primary, backup int, err error) {
	live := r.live.Snapshot()
	if len(live) == 0 {
		return 0, -1, ErrNoBackends
	}

	slot := Slot(bin, r.nbacks)
	pos := sort.SearchInts(live, slot)
	if pos == len(live) {
		pos = 0
	}
	primary = live[pos]
	if len(live) == 1 {
		return primary, -1, nil
	}
	backup = live[(pos+1)%len(live)]
	return primary, backup, nil
}
