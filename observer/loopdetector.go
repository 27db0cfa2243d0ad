package observer

import "strings"

// DefaultThinkRatioThreshold is the fraction of total output that may
// sit inside <think> tags before the circuit breaker trips.
const DefaultThinkRatioThreshold = 0.6

// DefaultThinkCharThreshold caps the absolute character count inside
// <think> tags regardless of ratio, catching a single runaway block
// early in a long stream before the ratio check would.
const DefaultThinkCharThreshold = 4000

// LoopDetector is fed the raw token stream (not the checkpoint
// buffer) and tracks how much of the output so far sits inside
// <think> tags. It is a separate concrete observer from the
// seven-check pipeline because it must see every token, not just
// checkpoint-boundary buffers.
type LoopDetector struct {
	ThinkRatioThreshold float64
	ThinkCharThreshold  int

	totalChars int
	thinkChars int
	inThink    bool
}

// NewLoopDetector builds a detector with spec-default thresholds.
func NewLoopDetector() *LoopDetector {
	return &LoopDetector{
		ThinkRatioThreshold: DefaultThinkRatioThreshold,
		ThinkCharThreshold:  DefaultThinkCharThreshold,
	}
}

// Feed processes one token and returns a BLOCK interrupt if the
// think-tag circuit breaker trips, or a zero Interrupt otherwise.
func (d *LoopDetector) Feed(token string) Interrupt {
	remaining := token
	for len(remaining) > 0 {
		if d.inThink {
			if idx := strings.Index(remaining, "</think"); idx >= 0 {
				d.thinkChars += idx
				d.totalChars += idx
				end := strings.Index(remaining[idx:], ">")
				if end < 0 {
					remaining = ""
					break
				}
				remaining = remaining[idx+end+1:]
				d.inThink = false
				continue
			}
			d.thinkChars += len(remaining)
			d.totalChars += len(remaining)
			remaining = ""
			break
		}

		if idx := strings.Index(remaining, "<think"); idx >= 0 {
			d.totalChars += idx
			end := strings.Index(remaining[idx:], ">")
			if end < 0 {
				remaining = ""
				break
			}
			remaining = remaining[idx+end+1:]
			d.inThink = true
			continue
		}

		d.totalChars += len(remaining)
		remaining = ""
	}

	if d.thinkChars >= d.ThinkCharThreshold {
		return Interrupt{Level: LevelBlock, Reason: "think-tag circuit breaker: character threshold exceeded"}
	}
	if d.totalChars > 0 {
		ratio := float64(d.thinkChars) / float64(d.totalChars)
		if ratio >= d.ThinkRatioThreshold {
			return Interrupt{Level: LevelBlock, Reason: "think-tag circuit breaker: ratio threshold exceeded"}
		}
	}
	return Interrupt{Level: LevelOK}
}
