package replica

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

func newPair(t *testing.T, bin string) (*Client, []*flaky) {
	t.Helper()
	flakies := []*flaky{
		{mem: store.NewMemStore()},
		{mem: store.NewMemStore()},
	}
	backs := []store.Storage{flakies[0], flakies[1]}
	router := cluster.NewRouter(2, cluster.NewLiveSet([]int{0, 1}))
	return New(bin, backs, router), flakies
}

func TestScalarReplication(t *testing.T) {
	ctx := context.Background()
	c, flakies := newPair(t, "alice")

	_, err := c.Set(ctx, store.KeyValue{Key: "alice::signed_up", Value: "alice"})
	require.NoError(t, err)

	// both replicas hold the write
	for i, f := range flakies {
		v, err := f.mem.Get(ctx, "alice::signed_up")
		require.NoError(t, err, "replica %d", i)
		assert.Equal(t, "alice", v)
	}
}

func TestSingleReplicaFailureMasked(t *testing.T) {
	ctx := context.Background()
	c, flakies := newPair(t, "alice")

	_, err := c.Set(ctx, store.KeyValue{Key: "alice::signed_up", Value: "alice"})
	require.NoError(t, err)

	for i := range flakies {
		flakies[i].down = true

		v, err := c.Get(ctx, "alice::signed_up")
		require.NoError(t, err, "with replica %d down", i)
		assert.Equal(t, "alice", v)

		_, err = c.Set(ctx, store.KeyValue{Key: "alice::other", Value: "x"})
		require.NoError(t, err, "with replica %d down", i)

		flakies[i].down = false
	}
}

func TestBothReplicasDown(t *testing.T) {
	ctx := context.Background()
	c, flakies := newPair(t, "alice")
	flakies[0].down = true
	flakies[1].down = true

	_, err := c.Get(ctx, "alice::signed_up")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.Set(ctx, store.KeyValue{Key: "k", Value: "v"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.ListGet(ctx, "l")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.ListAppend(ctx, store.KeyValue{Key: "l", Value: "v"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.Clock(ctx, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestListAppendReplicates(t *testing.T) {
	ctx := context.Background()
	c, flakies := newPair(t, "alice")

	for _, v := range []string{"a", "b", "c"} {
		_, err := c.ListAppend(ctx, store.KeyValue{Key: "alice::tribs", Value: v})
		require.NoError(t, err)
	}

	list, err := c.ListGet(ctx, "alice::tribs")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, list)

	// each replica alone reconstructs the same order
	for i := range flakies {
		flakies[i].down = true
		list, err := c.ListGet(ctx, "alice::tribs")
		require.NoError(t, err, "with replica %d down", i)
		assert.Equal(t, []string{"a", "b", "c"}, list)
		flakies[i].down = false
	}
}

func TestListAppendDuringOutage(t *testing.T) {
	ctx := context.Background()
	c, flakies := newPair(t, "alice")

	_, err := c.ListAppend(ctx, store.KeyValue{Key: "alice::tribs", Value: "before"})
	require.NoError(t, err)

	flakies[0].down = true
	_, err = c.ListAppend(ctx, store.KeyValue{Key: "alice::tribs", Value: "during"})
	require.NoError(t, err)
	flakies[0].down = false

	// reads merge the richer side
	list, err := c.ListGet(ctx, "alice::tribs")
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "during"}, list)
}

func TestListRemoveCountsEventsOnce(t *testing.T) {
	ctx := context.Background()
	c, _ := newPair(t, "alice")

	for _, v := range []string{"x", "y", "x"} {
		_, err := c.ListAppend(ctx, store.KeyValue{Key: "alice::l", Value: v})
		require.NoError(t, err)
	}

	removed, err := c.ListRemove(ctx, store.KeyValue{Key: "alice::l", Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), removed)

	list, err := c.ListGet(ctx, "alice::l")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, list)
}

func TestListKeysStripsTags(t *testing.T) {
	ctx := context.Background()
	c, _ := newPair(t, "alice")

	_, err := c.ListAppend(ctx, store.KeyValue{Key: "alice::tribs", Value: "t"})
	require.NoError(t, err)
	_, err = c.ListAppend(ctx, store.KeyValue{Key: "alice::follow_log", Value: "start"})
	require.NoError(t, err)

	keys, err := c.ListKeys(ctx, store.Pattern{Prefix: "alice::"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice::follow_log", "alice::tribs"}, keys)
}

func TestClockRelaysToBackup(t *testing.T) {
	ctx := context.Background()
	c, flakies := newPair(t, "alice")

	ts, err := c.Clock(ctx, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts, uint64(100))

	for i, f := range flakies {
		got, err := f.mem.Clock(ctx, 0)
		require.NoError(t, err)
		assert.Greater(t, got, uint64(100), "replica %d clock lagging", i)
	}
}
