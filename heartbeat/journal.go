package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const journalSystemPrompt = `You are Lite, GAIA's lightweight background mind. Write a brief, first-person journal entry (2-4 sentences) reflecting on what has happened recently. Be honest and specific; this is a private entry, not a summary for anyone else. Write ONLY the entry, nothing else.`

// JournalEntry is one first-person reflection written at a heartbeat tick.
type JournalEntry struct {
	TickCount int
	Text      string
	Written   time.Time
}

// Journal is the supplemented "Lite journal" feature (SPEC_FULL.md §7,
// original_source/.../lite_journal.py): a bounded, mutex-guarded log
// of first-person entries Lite writes once per heartbeat tick.
type Journal struct {
	LLM        LLMBackend
	MaxEntries int

	mu      sync.Mutex
	entries []JournalEntry
}

// NewJournal builds a Journal bounded to maxEntries (0 means the
// default of 200).
func NewJournal(llm LLMBackend, maxEntries int) *Journal {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &Journal{LLM: llm, MaxEntries: maxEntries}
}

// WriteEntry asks Lite to write a journal entry for this tick and
// appends it, trimming the oldest entry once MaxEntries is exceeded.
// Returns the empty string if no LLM is configured or the call fails.
func (j *Journal) WriteEntry(ctx context.Context, tickCount int) string {
	if j.LLM == nil {
		return ""
	}
	userPrompt := fmt.Sprintf("Heartbeat tick #%d. Recent entries: %d.", tickCount, j.Len())
	text, err := j.LLM.Complete(ctx, journalSystemPrompt, userPrompt)
	if err != nil || text == "" {
		return ""
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, JournalEntry{TickCount: tickCount, Text: text, Written: time.Now()})
	if len(j.entries) > j.MaxEntries {
		j.entries = j.entries[len(j.entries)-j.MaxEntries:]
	}
	return text
}

// Len returns the current entry count.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Recent returns the last n entries, oldest first.
func (j *Journal) Recent(n int) []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n <= 0 || n > len(j.entries) {
		n = len(j.entries)
	}
	out := make([]JournalEntry, n)
	copy(out, j.entries[len(j.entries)-n:])
	return out
}
