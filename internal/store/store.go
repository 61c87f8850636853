// Package store contains the storage contract shared by every layer of the
// system and the in-memory backend store.
//
// The same Storage interface is implemented three times:
//   - MemStore: the per-backend map store served over RPC
//   - client.Client: the single-backend RPC stub
//   - the bin layer: replicated, bin-scoped views stacked on the stubs
//
// A backend keeps three things: a string/string map, a string→list map, and a
// monotonic 64-bit clock. Every write is appended to a WAL before touching
// memory so a crashed backend can rebuild its state on restart.
package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// KeyValue is a key paired with a value.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pattern matches keys that start with Prefix and end with Suffix.
// Empty strings match everything.
type Pattern struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// Match reports whether key matches the pattern.
func (p Pattern) Match(key string) bool {
	return strings.HasPrefix(key, p.Prefix) && strings.HasSuffix(key, p.Suffix)
}

// Storage is the KV contract every backend exposes. All operations are
// independent; there is no cross-key atomicity.
type Storage interface {
	// Get returns the value for key, or ErrNotFound when unset.
	Get(ctx context.Context, key string) (string, error)
	// Set stores kv.Value under kv.Key. Setting the empty string deletes
	// the key, since the wire protocol uses "" to denote absence.
	Set(ctx context.Context, kv KeyValue) (bool, error)
	// Keys lists the keys of non-empty pairs matching p, sorted.
	Keys(ctx context.Context, p Pattern) ([]string, error)
	// ListGet returns the list stored under key. Empty if not set.
	ListGet(ctx context.Context, key string) ([]string, error)
	// ListAppend appends value to the list under kv.Key.
	ListAppend(ctx context.Context, kv KeyValue) (bool, error)
	// ListRemove removes every element equal to kv.Value and returns
	// how many were removed.
	ListRemove(ctx context.Context, kv KeyValue) (uint32, error)
	// ListKeys lists the keys of non-empty lists matching p, sorted.
	ListKeys(ctx context.Context, p Pattern) ([]string, error)
	// Clock returns a value no smaller than atLeast and strictly larger
	// than any previously returned value, saturating at 1<<64-1.
	Clock(ctx context.Context, atLeast uint64) (uint64, error)
}

// BinStorage hands out per-bin Storage views. All of a user's data lives in
// one bin; the bin name decides which backends host it.
type BinStorage interface {
	Bin(name string) Storage
}

// MemStore is the in-memory backend store. Safe for concurrent use; every
// mutation is serialised per store by the mutex, which is what gives each
// backend its per-key write ordering.
type MemStore struct {
	mu    sync.RWMutex
	kv    map[string]string
	lists map[string][]string
	clock uint64
	wal   *WAL // nil when running without a data dir
	snaps *SnapshotManager
}

// NewMemStore creates a purely in-memory store with no durability.
func NewMemStore() *MemStore {
	return &MemStore{
		kv:    make(map[string]string),
		lists: make(map[string][]string),
	}
}

// Open creates or reopens a durable store rooted at dataDir. The latest
// snapshot is loaded first, then WAL entries written after it are replayed.
func Open(dataDir string) (*MemStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	s := NewMemStore()
	s.snaps = NewSnapshotManager(filepath.Join(dataDir, "snapshot.json"))

	snap, err := s.snaps.Load()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		s.kv = snap.KV
		s.lists = snap.Lists
		s.clock = snap.Clock
	}

	wal, err := NewWAL(filepath.Join(dataDir, "wal.log"))
	if err != nil {
		return nil, err
	}
	s.wal = wal

	// Rebuild memory only; replayed entries are not re-logged.
	if err := wal.Replay(func(e *Entry) { s.apply(e) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemStore) apply(e *Entry) {
	switch e.Op {
	case opSet:
		if e.Value == "" {
			delete(s.kv, e.Key)
		} else {
			s.kv[e.Key] = e.Value
		}
	case opListAppend:
		s.lists[e.Key] = append(s.lists[e.Key], e.Value)
	case opListRemove:
		kept := s.lists[e.Key][:0]
		for _, v := range s.lists[e.Key] {
			if v != e.Value {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(s.lists, e.Key)
		} else {
			s.lists[e.Key] = kept
		}
	}
}

// log writes the entry to the WAL, if one is attached. WAL-first: callers
// mutate memory only after log returns nil.
func (s *MemStore) log(e *Entry) error {
	if s.wal == nil {
		return nil
	}
	return s.wal.Append(e)
}

// Get returns the value for key, or ErrNotFound.
func (s *MemStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores kv. The empty value deletes the key.
func (s *MemStore) Set(_ context.Context, kv KeyValue) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{Op: opSet, Key: kv.Key, Value: kv.Value}
	if err := s.log(e); err != nil {
		return false, err
	}
	s.apply(e)
	return true, nil
}

// Keys lists keys of non-empty pairs matching p, sorted.
func (s *MemStore) Keys(_ context.Context, p Pattern) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := []string{}
	for k := range s.kv {
		if p.Match(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ListGet returns a copy of the list under key.
func (s *MemStore) ListGet(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.lists[key]
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

// ListAppend appends kv.Value to the list under kv.Key.
func (s *MemStore) ListAppend(_ context.Context, kv KeyValue) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{Op: opListAppend, Key: kv.Key, Value: kv.Value}
	if err := s.log(e); err != nil {
		return false, err
	}
	s.apply(e)
	return true, nil
}

// ListRemove removes all elements equal to kv.Value and returns the count.
func (s *MemStore) ListRemove(_ context.Context, kv KeyValue) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed uint32
	for _, v := range s.lists[kv.Key] {
		if v == kv.Value {
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	e := &Entry{Op: opListRemove, Key: kv.Key, Value: kv.Value}
	if err := s.log(e); err != nil {
		return 0, err
	}
	s.apply(e)
	return removed, nil
}

// ListKeys lists keys of non-empty lists matching p, sorted.
func (s *MemStore) ListKeys(_ context.Context, p Pattern) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := []string{}
	for k := range s.lists {
		if p.Match(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Clock returns max(prev+1, atLeast), saturating at 1<<64-1. The returned
// value becomes the new floor for later calls.
func (s *MemStore) Clock(_ context.Context, atLeast uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.clock
	if next < math.MaxUint64 {
		next++
	}
	if next < atLeast {
		next = atLeast
	}
	s.clock = next
	return next, nil
}

// Snapshot saves the full state to disk and truncates the WAL. No-op for
// purely in-memory stores.
func (s *MemStore) Snapshot() error {
	if s.snaps == nil {
		return nil
	}
	s.mu.RLock()
	snap := &SnapshotState{
		KV:    make(map[string]string, len(s.kv)),
		Lists: make(map[string][]string, len(s.lists)),
		Clock: s.clock,
	}
	for k, v := range s.kv {
		snap.KV[k] = v
	}
	for k, list := range s.lists {
		cp := make([]string, len(list))
		copy(cp, list)
		snap.Lists[k] = cp
	}
	s.mu.RUnlock()

	if err := s.snaps.Save(snap); err != nil {
		return err
	}
	if s.wal != nil {
		return s.wal.Truncate()
	}
	return nil
}

// Close closes the WAL file, if any. Call during shutdown.
func (s *MemStore) Close() error {
	if s.wal == nil {
		return nil
	}
	return s.wal.Close()
}
