package keeper

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribbler/internal/cluster"
	"tribbler/internal/replica"
	"tribbler/internal/store"
)

func TestInArc(t *testing.T) {
	// plain interval
	assert.False(t, inArc(1, 1, 3))
	assert.True(t, inArc(2, 1, 3))
	assert.True(t, inArc(3, 1, 3))
	assert.False(t, inArc(4, 1, 3))

	// wraparound
	assert.True(t, inArc(4, 3, 1))
	assert.True(t, inArc(0, 3, 1))
	assert.True(t, inArc(1, 3, 1))
	assert.False(t, inArc(2, 3, 1))
	assert.False(t, inArc(3, 3, 1))

	// equal endpoints cover the whole ring
	assert.True(t, inArc(0, 2, 2))
	assert.True(t, inArc(2, 2, 2))
}

// binWithSlot finds a bin name hashing to the wanted slot.
func binWithSlot(t *testing.T, nbacks, slot int) string {
	t.Helper()
	for i := 0; i < 100000; i++ {
		name := fmt.Sprintf("user%d", i)
		if cluster.Slot(name, nbacks) == slot {
			return name
		}
	}
	t.Fatalf("no bin name found for slot %d/%d", slot, nbacks)
	return ""
}

func memFleet(n int) ([]*store.MemStore, []store.Storage) {
	mems := make([]*store.MemStore, n)
	backs := make([]store.Storage, n)
	for i := range mems {
		mems[i] = store.NewMemStore()
		backs[i] = mems[i]
	}
	return mems, backs
}

func seedBin(t *testing.T, s *store.MemStore, bin string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Set(ctx, store.KeyValue{Key: bin + "::signed_up", Value: "x"})
	require.NoError(t, err)
	_, err = s.ListAppend(ctx, store.KeyValue{Key: replica.SuffixTag + bin + "::tribs", Value: "t1"})
	require.NoError(t, err)
	_, err = s.ListAppend(ctx, store.KeyValue{Key: replica.SuffixTag + bin + "::tribs", Value: "t2"})
	require.NoError(t, err)
}

func assertHasBin(t *testing.T, s *store.MemStore, bin string) {
	t.Helper()
	ctx := context.Background()
	v, err := s.Get(ctx, bin+"::signed_up")
	require.NoError(t, err, "bin %q scalar missing", bin)
	assert.Equal(t, "x", v)
	list, err := s.ListGet(ctx, replica.SuffixTag+bin+"::tribs")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, list)
}

func TestBinsOn(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	_, err := mem.Set(ctx, store.KeyValue{Key: "alice::k", Value: "v"})
	require.NoError(t, err)
	_, err = mem.ListAppend(ctx, store.KeyValue{Key: replica.SuffixTag + "bob::l", Value: "v"})
	require.NoError(t, err)
	_, err = mem.ListAppend(ctx, store.KeyValue{Key: replica.PrefixTag + "carol::l", Value: "v"})
	require.NoError(t, err)

	m := NewMigrator([]store.Storage{mem}, cluster.NewLiveSet([]int{0}))
	bins, err := m.binsOn(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, bins)
}

func TestJoinCopiesOwnedArc(t *testing.T) {
	ctx := context.Background()
	mems, backs := memFleet(3)

	// backend 0 was down; its arc (2, 0] lived on backend 1
	binMine := binWithSlot(t, 3, 0)
	binOther := binWithSlot(t, 3, 1)
	seedBin(t, mems[1], binMine)
	seedBin(t, mems[1], binOther)

	m := NewMigrator(backs, cluster.NewLiveSet([]int{0, 1, 2}))
	require.NoError(t, m.Join(ctx, []int{0, 1, 2}, 0))

	assertHasBin(t, mems[0], binMine)
	_, err := mems[0].Get(ctx, binOther+"::signed_up")
	assert.ErrorIs(t, err, store.ErrNotFound, "bin outside the arc must not move")
}

func TestJoinWithTwoLiveCopiesEverything(t *testing.T) {
	ctx := context.Background()
	mems, backs := memFleet(3)

	binA := binWithSlot(t, 3, 0)
	binB := binWithSlot(t, 3, 2)
	seedBin(t, mems[0], binA)
	seedBin(t, mems[0], binB)

	m := NewMigrator(backs, cluster.NewLiveSet([]int{0, 1}))
	require.NoError(t, m.Join(ctx, []int{0, 1}, 1))

	assertHasBin(t, mems[1], binA)
	assertHasBin(t, mems[1], binB)
}

func TestLeaveReconstitutesReplicas(t *testing.T) {
	ctx := context.Background()
	mems, backs := memFleet(3)

	// backend 1 crashed. Its predecessor 0 lost the backup of arc (2, 0],
	// and the arc (0, 1] that 1 owned survives only on its old backup 2.
	binPred := binWithSlot(t, 3, 0)
	binLost := binWithSlot(t, 3, 1)
	seedBin(t, mems[0], binPred)
	seedBin(t, mems[2], binLost)

	m := NewMigrator(backs, cluster.NewLiveSet([]int{0, 2}))
	require.NoError(t, m.Leave(ctx, []int{0, 2}, 1))

	assertHasBin(t, mems[2], binPred)
	assertHasBin(t, mems[0], binLost)
}

func TestCopyBinIdempotent(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemStore()
	dst := store.NewMemStore()
	seedBin(t, src, "alice")

	require.NoError(t, copyBin(ctx, src, dst, "alice"))
	require.NoError(t, copyBin(ctx, src, dst, "alice"))

	list, err := dst.ListGet(ctx, replica.SuffixTag+"alice::tribs")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, list, "repeated copies must not duplicate elements")
}
