package orchestrator

import (
	"context"
	"strings"

	"github.com/azraeltruthsay/gaia/observer"
	"github.com/azraeltruthsay/gaia/packet"
	"github.com/azraeltruthsay/gaia/promptbuilder"
)

// streamGuards are built fresh for each turn's stream so deployments
// without an observer model configured still get the loop detector
// and sentence-repetition guard (both are pure heuristics).
type streamGuards struct {
	obs          *observer.Observer
	loopDetector *observer.LoopDetector
	maxRepeat    int
}

// runStream is stage 8: stream from the inference collaborator,
// accumulating tokens, running the observer at sentence-boundary
// checkpoints, feeding the loop detector every token, and enforcing
// the sentence-repetition guard. Returns a non-nil Interrupt if the
// stream was aborted, or an error if the inference call itself failed.
func (o *Orchestrator) runStream(ctx context.Context, p *packet.CognitionPacket, messages []promptbuilder.Message, emit func(StreamEvent) error) (*observer.Interrupt, error) {
	if o.Inference == nil {
		return nil, nil
	}

	guards := streamGuards{
		loopDetector: observer.NewLoopDetector(),
		maxRepeat:    o.MaxSentenceRepeat,
	}
	if guards.maxRepeat <= 0 {
		guards.maxRepeat = DefaultMaxSentenceRepeat
	}
	if o.NewObserver != nil {
		guards.obs = o.NewObserver()
	}

	var buffer strings.Builder
	sentenceCounts := map[string]int{}
	var abortedWith *observer.Interrupt

	err := o.Inference.Stream(ctx, messages, func(token string) error {
		buffer.WriteString(token)
		p.Response.Candidate = buffer.String()

		if i := guards.loopDetector.Feed(token); i.Level == observer.LevelBlock {
			abortedWith = &i
			return errAborted
		}

		if isSentenceBoundary(token) {
			sentence := lastSentence(buffer.String())
			key := sentenceKey(sentence)
			if key != "" {
				sentenceCounts[key]++
				if sentenceCounts[key] > guards.maxRepeat {
					i := observer.Interrupt{Level: observer.LevelBlock, Reason: "sentence repetition guard: \"" + truncateForLog(key, 80) + "\" repeated"}
					abortedWith = &i
					return errAborted
				}
			}

			if guards.obs != nil {
				i := guards.obs.Observe(ctx, p, buffer.String())
				if i.Level == observer.LevelBlock || i.Level == observer.LevelFatal {
					abortedWith = &i
					return errAborted
				}
			}
		}

		return emit(StreamEvent{Kind: EventToken, Token: token, Packet: p})
	})

	if err != nil && err != errAborted {
		return nil, err
	}
	return abortedWith, nil
}

func isSentenceBoundary(token string) bool {
	return strings.ContainsAny(token, ".!?")
}

func lastSentence(buffer string) string {
	cut := strings.LastIndexAny(buffer, ".!?")
	if cut < 0 {
		return buffer
	}
	start := strings.LastIndexAny(buffer[:cut], ".!?")
	return buffer[start+1 : cut+1]
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
