package keeper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribbler/internal/cluster"
	"tribbler/internal/store"
)

var errDown = errors.New("backend down")

// flaky wraps a MemStore and fails every call while down.
type flaky struct {
	mem  *store.MemStore
	down bool
}

func (f *flaky) Get(ctx context.Context, key string) (string, error) {
	if f.down {
		return "", errDown
	}
	return f.mem.Get(ctx, key)
}

func (f *flaky) Set(ctx context.Context, kv store.KeyValue) (bool, error) {
	if f.down {
		return false, errDown
	}
	return f.mem.Set(ctx, kv)
}

func (f *flaky) Keys(ctx context.Context, p store.Pattern) ([]string, error) {
	if f.down {
		return nil, errDown
	}
	return f.mem.Keys(ctx, p)
}

func (f *flaky) ListGet(ctx context.Context, key string) ([]string, error) {
	if f.down {
		return nil, errDown
	}
	return f.mem.ListGet(ctx, key)
}

func (f *flaky) ListAppend(ctx context.Context, kv store.KeyValue) (bool, error) {
	if f.down {
		return false, errDown
	}
	return f.mem.ListAppend(ctx, kv)
}

func (f *flaky) ListRemove(ctx context.Context, kv store.KeyValue) (uint32, error) {
	if f.down {
		return 0, errDown
	}
	return f.mem.ListRemove(ctx, kv)
}

func (f *flaky) ListKeys(ctx context.Context, p store.Pattern) ([]string, error) {
	if f.down {
		return nil, errDown
	}
	return f.mem.ListKeys(ctx, p)
}

func (f *flaky) Clock(ctx context.Context, atLeast uint64) (uint64, error) {
	if f.down {
		return 0, errDown
	}
	return f.mem.Clock(ctx, atLeast)
}

func newFleet(n int) ([]*flaky, []store.Storage) {
	flakies := make([]*flaky, n)
	backs := make([]store.Storage, n)
	for i := range flakies {
		flakies[i] = &flaky{mem: store.NewMemStore()}
		backs[i] = flakies[i]
	}
	return flakies, backs
}

func TestTickSeedsLiveSet(t *testing.T) {
	ctx := context.Background()
	flakies, backs := newFleet(3)
	flakies[1].down = true

	live := cluster.NewLiveSet(nil)
	k := New(backs, live, false)
	k.tick(ctx)

	assert.Equal(t, []int{0, 2}, live.Snapshot())
	// seeding emits no events
	select {
	case ev := <-k.Events():
		t.Fatalf("unexpected event %+v on first tick", ev)
	default:
	}
}

func TestTickDetectsTransitions(t *testing.T) {
	ctx := context.Background()
	flakies, backs := newFleet(3)

	live := cluster.NewLiveSet(nil)
	k := New(backs, live, false)
	k.tick(ctx)
	require.Equal(t, []int{0, 1, 2}, live.Snapshot())

	flakies[1].down = true
	k.tick(ctx)
	assert.Equal(t, []int{0, 2}, live.Snapshot())
	ev := <-k.Events()
	assert.Equal(t, BackendEvent{Type: EventLeave, Idx: 1}, ev)

	flakies[1].down = false
	k.tick(ctx)
	assert.Equal(t, []int{0, 1, 2}, live.Snapshot())
	ev = <-k.Events()
	assert.Equal(t, BackendEvent{Type: EventJoin, Idx: 1}, ev)

	// steady state emits nothing
	k.tick(ctx)
	select {
	case ev := <-k.Events():
		t.Fatalf("unexpected event %+v in steady state", ev)
	default:
	}
}

func TestTickSyncsClocks(t *testing.T) {
	ctx := context.Background()
	flakies, backs := newFleet(3)

	// one backend runs far ahead
	_, err := flakies[2].mem.Clock(ctx, 500)
	require.NoError(t, err)

	k := New(backs, cluster.NewLiveSet(nil), false)
	k.tick(ctx)

	for i, f := range flakies {
		c, err := f.mem.Clock(ctx, 0)
		require.NoError(t, err)
		assert.Greater(t, c, uint64(500), "backend %d missed the sync", i)
	}
}

func TestProbeOnlySkipsSyncAndEvents(t *testing.T) {
	ctx := context.Background()
	flakies, backs := newFleet(2)

	_, err := flakies[1].mem.Clock(ctx, 500)
	require.NoError(t, err)

	live := cluster.NewLiveSet(nil)
	k := New(backs, live, true)
	k.tick(ctx)
	require.Equal(t, []int{0, 1}, live.Snapshot())

	// backend 0's clock was not dragged forward
	c, err := flakies[0].mem.Clock(ctx, 0)
	require.NoError(t, err)
	assert.Less(t, c, uint64(100))

	flakies[1].down = true
	k.tick(ctx)
	assert.Equal(t, []int{0}, live.Snapshot())
	select {
	case ev := <-k.Events():
		t.Fatalf("probe-only keeper emitted %+v", ev)
	default:
	}
}
