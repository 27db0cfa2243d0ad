package heartbeat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalWriteEntryAppendsAndTrims(t *testing.T) {
	j := NewJournal(fakeLLM{reply: "Today felt productive."}, 2)

	entry := j.WriteEntry(context.Background(), 1)
	require.Equal(t, "Today felt productive.", entry)
	assert.Equal(t, 1, j.Len())

	j.WriteEntry(context.Background(), 2)
	j.WriteEntry(context.Background(), 3)
	assert.Equal(t, 2, j.Len(), "journal should trim to MaxEntries")

	recent := j.Recent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, 2, recent[0].TickCount)
	assert.Equal(t, 3, recent[1].TickCount)
}

func TestJournalWriteEntryNoLLMReturnsEmpty(t *testing.T) {
	j := NewJournal(nil, 0)
	entry := j.WriteEntry(context.Background(), 1)
	assert.Empty(t, entry)
	assert.Equal(t, 0, j.Len())
}
