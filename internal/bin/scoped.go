package bin

import (
	"context"
	"strings"

	"tribbler/internal/store"
)

// scoped prefixes every key with "<escape(bin)>::" and leaves the rest of
// the storage contract to the layer below.
type scoped struct {
	prefix string
	inner  store.Storage
}

func (s *scoped) translate(key string) string {
	return s.prefix + Escape(key)
}

func (s *scoped) pattern(p store.Pattern) store.Pattern {
	return store.Pattern{
		Prefix: s.prefix + Escape(p.Prefix),
		Suffix: Escape(p.Suffix),
	}
}

// strip removes the bin scope from returned keys and undoes the escaping.
func (s *scoped) strip(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, Unescape(strings.TrimPrefix(k, s.prefix)))
	}
	return out
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.translate(key))
}

func (s *scoped) Set(ctx context.Context, kv store.KeyValue) (bool, error) {
	return s.inner.Set(ctx, store.KeyValue{Key: s.translate(kv.Key), Value: kv.Value})
}

func (s *scoped) Keys(ctx context.Context, p store.Pattern) ([]string, error) {
	keys, err := s.inner.Keys(ctx, s.pattern(p))
	if err != nil {
		return nil, err
	}
	return s.strip(keys), nil
}

func (s *scoped) ListGet(ctx context.Context, key string) ([]string, error) {
	return s.inner.ListGet(ctx, s.translate(key))
}

func (s *scoped) ListAppend(ctx context.Context, kv store.KeyValue) (bool, error) {
	return s.inner.ListAppend(ctx, store.KeyValue{Key: s.translate(kv.Key), Value: kv.Value})
}

func (s *scoped) ListRemove(ctx context.Context, kv store.KeyValue) (uint32, error) {
	return s.inner.ListRemove(ctx, store.KeyValue{Key: s.translate(kv.Key), Value: kv.Value})
}

func (s *scoped) ListKeys(ctx context.Context, p store.Pattern) ([]string, error) {
	keys, err := s.inner.ListKeys(ctx, s.pattern(p))
	if err != nil {
		return nil, err
	}
	return s.strip(keys), nil
}

func (s *scoped) Clock(ctx context.Context, atLeast uint64) (uint64, error) {
	return s.inner.Clock(ctx, atLeast)
}
