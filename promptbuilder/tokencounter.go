package promptbuilder

import "strings"

// WordCountEstimator is the default TokenCounter: a cheap heuristic
// (words * 1.3, rounded up) used in place of a real tokenizer. No
// tokenizer library appears anywhere in the example pack (see
// DESIGN.md), so this stays pluggable behind the TokenCounter
// interface rather than vendoring one.
type WordCountEstimator struct{}

func (WordCountEstimator) Count(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	tokens := (words*13 + 9) / 10
	return tokens
}
