package heartbeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBakeStateWritesFileAndTracksOldestUninterviewed(t *testing.T) {
	journal := NewJournal(nil, 10)
	mgr, err := NewTemporalStateManager(t.TempDir(), journal)
	require.NoError(t, err)

	path, err := mgr.BakeState(3)
	require.NoError(t, err)
	assert.FileExists(t, path)

	oldest := mgr.OldestUninterviewed()
	require.NotNil(t, oldest)
	assert.Equal(t, 3, oldest.TickCount)

	mgr.MarkInterviewed(oldest)
	assert.Nil(t, mgr.OldestUninterviewed())
}

func TestBakeStateOrdersMultipleStates(t *testing.T) {
	mgr, err := NewTemporalStateManager(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = mgr.BakeState(3)
	require.NoError(t, err)
	_, err = mgr.BakeState(6)
	require.NoError(t, err)

	oldest := mgr.OldestUninterviewed()
	require.NotNil(t, oldest)
	assert.Equal(t, 3, oldest.TickCount, "oldest un-interviewed state should be the earliest baked")
}
