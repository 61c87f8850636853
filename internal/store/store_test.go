package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Set(ctx, KeyValue{Key: "alice::signed_up", Value: "alice"})
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := s.Get(ctx, "alice::signed_up")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	// empty value deletes
	_, err = s.Set(ctx, KeyValue{Key: "alice::signed_up", Value: ""})
	require.NoError(t, err)
	_, err = s.Get(ctx, "alice::signed_up")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeysPattern(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for _, k := range []string{"alice::b", "alice::a", "bob::a"} {
		_, err := s.Set(ctx, KeyValue{Key: k, Value: "x"})
		require.NoError(t, err)
	}

	keys, err := s.Keys(ctx, Pattern{Prefix: "alice::"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice::a", "alice::b"}, keys)

	keys, err = s.Keys(ctx, Pattern{Suffix: "::a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice::a", "bob::a"}, keys)

	keys, err = s.Keys(ctx, Pattern{})
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestListOps(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for _, v := range []string{"x", "y", "x"} {
		_, err := s.ListAppend(ctx, KeyValue{Key: "l", Value: v})
		require.NoError(t, err)
	}

	list, err := s.ListGet(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "x"}, list)

	removed, err := s.ListRemove(ctx, KeyValue{Key: "l", Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), removed)

	list, err = s.ListGet(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, list)

	// removing the last element drops the list from ListKeys
	_, err = s.ListRemove(ctx, KeyValue{Key: "l", Value: "y"})
	require.NoError(t, err)
	keys, err := s.ListKeys(ctx, Pattern{})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestClockMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	c1, err := s.Clock(ctx, 0)
	require.NoError(t, err)
	c2, err := s.Clock(ctx, 0)
	require.NoError(t, err)
	assert.Greater(t, c2, c1)

	c3, err := s.Clock(ctx, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c3, uint64(100))

	c4, err := s.Clock(ctx, 0)
	require.NoError(t, err)
	assert.Greater(t, c4, c3)
}

func TestClockSaturates(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	c, err := s.Clock(ctx, 1<<64-1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<64-1), c)

	c, err = s.Clock(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<64-1), c)
}

func TestWALRecovery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Set(ctx, KeyValue{Key: "alice::signed_up", Value: "alice"})
	require.NoError(t, err)
	_, err = s.ListAppend(ctx, KeyValue{Key: "SUFFIX_alice::tribs", Value: "t1"})
	require.NoError(t, err)
	_, err = s.ListAppend(ctx, KeyValue{Key: "SUFFIX_alice::tribs", Value: "t2"})
	require.NoError(t, err)
	_, err = s.ListRemove(ctx, KeyValue{Key: "SUFFIX_alice::tribs", Value: "t1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get(ctx, "alice::signed_up")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)
	list, err := s2.ListGet(ctx, "SUFFIX_alice::tribs")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, list)
}

func TestSnapshotRecovery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Set(ctx, KeyValue{Key: "a", Value: "1"})
	require.NoError(t, err)
	_, err = s.Clock(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, s.Snapshot())

	// writes after the snapshot land in the fresh WAL
	_, err = s.Set(ctx, KeyValue{Key: "b", Value: "2"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	v, err = s2.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	// the clock floor survives the snapshot
	c, err := s2.Clock(ctx, 0)
	require.NoError(t, err)
	assert.Greater(t, c, uint64(42))
}
