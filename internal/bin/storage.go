package bin

import (
	"tribbler/internal/cluster"
	"tribbler/internal/replica"
	"tribbler/internal/store"
)

// Storage hands out bin-scoped, replicated views over the backend fleet.
// It is the store.BinStorage the front-end consumes.
type Storage struct {
	backs  []store.Storage
	router *cluster.Router
}

// NewStorage builds the bin layer. backs holds one stub per configured
// backend, in configuration order; router decides which pair serves a bin.
func NewStorage(backs []store.Storage, router *cluster.Router) *Storage {
	return &Storage{backs: backs, router: router}
}

// Bin returns the storage view for one bin: replication below, key scoping
// above.
func (s *Storage) Bin(name string) store.Storage {
	rep := replica.New(name, s.backs, s.router)
	return &scoped{prefix: Escape(name) + "::", inner: rep}
}
