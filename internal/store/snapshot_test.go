package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlcache/internal/gql"
)

func TestWriteSnapshot_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap, err := s.WriteSnapshot(ctx, "/home", testCache())
	require.NoError(t, err)

	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, "/home", snap.Label)
	assert.Equal(t, int64(1), snap.Seq)
	assert.Equal(t, testEpoch, snap.CreatedAt)
	assert.Equal(t, 2, snap.Entries)
	assert.Positive(t, snap.Bytes)

	got, err := s.ReadSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, testCache(), got)

	meta, err := s.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, meta)
}

func TestWriteSnapshot_EmptyCache(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap, err := s.WriteSnapshot(ctx, "/empty", nil)
	require.NoError(t, err)
	assert.Zero(t, snap.Entries)

	got, err := s.ReadSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, gql.Cache{}, got)
}

func TestLatestSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteSnapshot(ctx, "/home", gql.Cache{"old": {}})
	require.NoError(t, err)
	_, err = s.WriteSnapshot(ctx, "/about", gql.Cache{"about": {}})
	require.NoError(t, err)
	latest, err := s.WriteSnapshot(ctx, "/home", gql.Cache{"new": {}})
	require.NoError(t, err)

	snap, cache, err := s.LatestSnapshot(ctx, "/home")
	require.NoError(t, err)
	assert.Equal(t, latest.ID, snap.ID)
	assert.Equal(t, []string{"new"}, cache.Keys())

	_, _, err = s.LatestSnapshot(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSnapshots_WriteOrder(t *testing.T) {
	s := createTestStore(t, "zzz", "aaa", "mmm")
	ctx := context.Background()

	empty, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, label := range []string{"a", "b", "c"} {
		_, err := s.WriteSnapshot(ctx, label, gql.Cache{})
		require.NoError(t, err)
	}

	snaps, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	ids := []string{snaps[0].ID, snaps[1].ID, snaps[2].ID}
	assert.Equal(t, []string{"zzz", "aaa", "mmm"}, ids, "ordered by seq, not id")
}

func TestDeleteSnapshot_CascadesEntries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap, err := s.WriteSnapshot(ctx, "/home", testCache())
	require.NoError(t, err)

	require.NoError(t, s.DeleteSnapshot(ctx, snap.ID))

	var n int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM snapshot_entries WHERE snapshot_id = ?", snap.ID,
	).Scan(&n))
	assert.Zero(t, n)

	_, err = s.ReadSnapshot(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSnapshot(ctx, snap.ID), ErrNotFound)
}
