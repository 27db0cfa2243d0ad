package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestFileStoreSaveAndListUnreviewed(t *testing.T) {
	store := newTestStore(t)
	seed := &ThoughtSeed{ID: "s1", Seed: "investigate flaky test", Status: SeedUnreviewed, Created: time.Now()}
	require.NoError(t, store.Save(seed))

	listed, err := store.ListUnreviewed()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "s1", listed[0].ID)
}

func TestFileStoreArchiveRemovesFromUnreviewed(t *testing.T) {
	store := newTestStore(t)
	seed := &ThoughtSeed{ID: "s2", Seed: "seed", Status: SeedUnreviewed, Created: time.Now()}
	require.NoError(t, store.Save(seed))

	require.NoError(t, store.Archive("s2"))

	listed, err := store.ListUnreviewed()
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestFileStoreDeferThenPromoteDue(t *testing.T) {
	store := newTestStore(t)
	seed := &ThoughtSeed{ID: "s3", Seed: "seed", Status: SeedUnreviewed, Created: time.Now()}
	require.NoError(t, store.Save(seed))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Defer("s3", past))

	listed, err := store.ListUnreviewed()
	require.NoError(t, err)
	assert.Empty(t, listed, "deferred seed should not show up as unreviewed yet")

	promoted, err := store.PromoteDue(time.Now())
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, "s3", promoted[0].ID)

	listed, err = store.ListUnreviewed()
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestFileStoreDeferNotYetDueStaysPending(t *testing.T) {
	store := newTestStore(t)
	seed := &ThoughtSeed{ID: "s4", Seed: "seed", Status: SeedUnreviewed, Created: time.Now()}
	require.NoError(t, store.Save(seed))
	require.NoError(t, store.Defer("s4", time.Now().Add(time.Hour)))

	promoted, err := store.PromoteDue(time.Now())
	require.NoError(t, err)
	assert.Empty(t, promoted)
}
