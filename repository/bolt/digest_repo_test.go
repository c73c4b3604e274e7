package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/notifyagg/domain"
)

func openStore(t *testing.T) *DigestStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "digests.db"), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleGroup(id, userID, category string, count int) domain.AggregationGroup {
	g := domain.AggregationGroup{ID: id, UserID: userID, Category: category, Count: count, GroupKey: userID + ":" + category}
	for i := 0; i < count; i++ {
		g.Notifications = append(g.Notifications, domain.NotificationEvent{ID: id + "-n", UserID: userID, Category: category})
	}
	return g
}

func TestDigestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Append(ctx, domain.FrequencyDaily, sampleGroup("g1", "u1", "social", 2)))
	require.NoError(t, store.Append(ctx, domain.FrequencyDaily, sampleGroup("g2", "u1", "social", 1)))
	require.NoError(t, store.Append(ctx, domain.FrequencyWeekly, sampleGroup("g3", "u1", "system", 5)))
	require.NoError(t, store.Append(ctx, domain.FrequencyDaily, sampleGroup("g4", "u10", "social", 1)))

	entry, err := store.Load(ctx, "u1", domain.FrequencyDaily)
	require.NoError(t, err)
	require.Len(t, entry.Categories["social"], 2)
	assert.Equal(t, "g1", entry.Categories["social"][0].ID, "insertion order is preserved")
	assert.Equal(t, 3, entry.TotalCount())

	users, err := store.Users(ctx, domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u10"}, users)

	pending, err := store.PendingCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 8, pending)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 4, size)
}

func TestDigestStore_RemoveOnlyNamedGroups(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.Append(ctx, domain.FrequencyDaily, sampleGroup("g1", "u1", "social", 1)))
	require.NoError(t, store.Append(ctx, domain.FrequencyDaily, sampleGroup("g2", "u1", "social", 1)))

	require.NoError(t, store.Remove(ctx, "u1", domain.FrequencyDaily, []string{"g1"}))

	entry, err := store.Load(ctx, "u1", domain.FrequencyDaily)
	require.NoError(t, err)
	require.Equal(t, 1, entry.GroupCount())
	assert.Equal(t, "g2", entry.Categories["social"][0].ID)
}

func TestDigestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "digests.db")

	store, err := Open(path, "digests", nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, domain.FrequencyWeekly, sampleGroup("g1", "u1", "social", 3)))
	require.NoError(t, store.Close())

	reopened, err := Open(path, "digests", nil)
	require.NoError(t, err)
	defer reopened.Close()

	entry, err := reopened.Load(ctx, "u1", domain.FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.TotalCount())
	assert.Len(t, entry.Categories["social"][0].Notifications, 3)
}

func TestDigestStore_UnreadableRecords(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	store, err := Open(filepath.Join(t.TempDir(), "digests.db"), "", zap.New(core))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(ctx, domain.FrequencyDaily, sampleGroup("g1", "u1", "social", 2)))
	corruptKey := append(prefix(domain.FrequencyDaily, "u1"), []byte("00000000000000000001_broken")...)
	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(store.bucket).Put(corruptKey, []byte("{not json"))
	}))

	entry, err := store.Load(ctx, "u1", domain.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.GroupCount())
	assert.Equal(t, 1, logs.FilterMessage("skipping unreadable digest record").Len())

	require.NoError(t, store.Remove(ctx, "u1", domain.FrequencyDaily, []string{"g1"}))
	assert.Equal(t, 1, logs.FilterMessage("purging unreadable digest record").Len())

	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDigestStore_RemoveAdjacentGroups(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	for _, id := range []string{"g1", "g2", "g3", "g4"} {
		require.NoError(t, store.Append(ctx, domain.FrequencyDaily, sampleGroup(id, "u1", "social", 1)))
	}

	require.NoError(t, store.Remove(ctx, "u1", domain.FrequencyDaily, []string{"g1", "g2", "g3"}))

	entry, err := store.Load(ctx, "u1", domain.FrequencyDaily)
	require.NoError(t, err)
	require.Equal(t, 1, entry.GroupCount())
	assert.Equal(t, "g4", entry.Categories["social"][0].ID)
}
