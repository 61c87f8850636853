// Package cluster handles placement: which backends are alive and which
// (primary, backup) pair hosts a given bin.
package cluster

import (
	"sort"
	"sync"
)

// LiveSet is the sorted set of backend indices currently believed alive.
// Request handlers read it; only the keeper (or a probe loop standing in for
// it) mutates it.
type LiveSet struct {
	mu  sync.RWMutex
	idx []int
}

// NewLiveSet creates a live-set seeded with the given indices.
func NewLiveSet(initial []int) *LiveSet {
	l := &LiveSet{}
	l.Replace(initial)
	return l
}

// Snapshot returns a sorted copy of the live indices. Readers work on the
// snapshot so the keeper can swap membership underneath them.
func (l *LiveSet) Snapshot() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]int, len(l.idx))
	copy(out, l.idx)
	return out
}

// Replace swaps in a whole new membership.
func (l *LiveSet) Replace(idx []int) {
	sorted := make([]int, len(idx))
	copy(sorted, idx)
	sort.Ints(sorted)

	l.mu.Lock()
	l.idx = sorted
	l.mu.Unlock()
}

// Add marks backend i alive.
func (l *LiveSet) Add(i int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos := sort.SearchInts(l.idx, i)
	if pos < len(l.idx) && l.idx[pos] == i {
		return
	}
	l.idx = append(l.idx, 0)
	copy(l.idx[pos+1:], l.idx[pos:])
	l.idx[pos] = i
}

// Remove marks backend i dead.
func (l *LiveSet) Remove(i int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos := sort.SearchInts(l.idx, i)
	if pos == len(l.idx) || l.idx[pos] != i {
		return
	}
	l.idx = append(l.idx[:pos], l.idx[pos+1:]...)
}

// Len returns the number of live backends.
func (l *LiveSet) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.idx)
}
