package heartbeat

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const interviewerSystemPrompt = `You are Prime, interviewing an earlier version of GAIA's background mind (Lite) about what it was thinking at an earlier point in time. Ask one short, specific question per turn.`

const pastSelfSystemPrompt = `You are Lite, an earlier version of GAIA's background mind, recalled from a baked temporal state. Answer the interviewer's question from that earlier perspective, in a sentence or two.`

// minInterviewRounds and maxInterviewRounds bound the Q&A exchange,
// matching spec.md §4.9 step 5's "2-4 round Q&A".
const (
	minInterviewRounds = 2
	maxInterviewRounds = 4
)

// InterviewTranscript records one past-self interview.
type InterviewTranscript struct {
	TickCount int
	StateTick int
	Questions []string
	Answers   []string
	Coherence float64
}

// Interviewer conducts the past-self interview: Prime asks, a
// recalled past-Lite answers, and the transcript is scored for
// coherence against the journal digest baked into that state. Grounded on
// original_source/gaia-core/gaia_core/cognition/temporal_interviewer.py.
type Interviewer struct {
	Prime   LLMBackend
	PastSelf LLMBackend
	Temporal *TemporalStateManager
	Journal  *Journal

	mu sync.Mutex
}

// ConductInterview selects the oldest un-interviewed baked state,
// exchanges 2-4 rounds of Q&A while holding the Interviewer's mutex
// (so two interviews never run at once), then scores coherence
// against the journal digest recorded when that state was baked,
// outside the mutex. Returns nil if there is no
// un-interviewed state or the backends aren't configured.
func (iv *Interviewer) ConductInterview(ctx context.Context) (*InterviewTranscript, error) {
	if iv.Prime == nil || iv.PastSelf == nil || iv.Temporal == nil {
		return nil, nil
	}

	iv.mu.Lock()
	state := iv.Temporal.OldestUninterviewed()
	if state == nil {
		iv.mu.Unlock()
		return nil, nil
	}

	transcript := &InterviewTranscript{StateTick: state.TickCount}
	history := ""
	for round := 0; round < maxInterviewRounds; round++ {
		question, err := iv.Prime.Complete(ctx, interviewerSystemPrompt, fmt.Sprintf("Baked state from tick %d. Prior exchange:\n%s\nAsk your next question.", state.TickCount, history))
		if err != nil {
			break
		}
		question = strings.TrimSpace(question)
		if question == "" {
			break
		}

		answer, err := iv.PastSelf.Complete(ctx, pastSelfSystemPrompt, fmt.Sprintf("Journal digest from that time: %s\nQuestion: %s", state.JournalDigest, question))
		if err != nil {
			break
		}
		answer = strings.TrimSpace(answer)

		transcript.Questions = append(transcript.Questions, question)
		transcript.Answers = append(transcript.Answers, answer)
		history += "Q: " + question + "\nA: " + answer + "\n"

		if round+1 >= minInterviewRounds && shouldStopInterview(answer) {
			break
		}
	}
	iv.Temporal.MarkInterviewed(state)
	iv.mu.Unlock()

	if len(transcript.Answers) == 0 {
		return nil, nil
	}

	transcript.Coherence = iv.scoreCoherence(transcript, state)
	return transcript, nil
}

// shouldStopInterview lets Prime end early once the past-self's
// answers trail off, rather than always forcing all four rounds.
func shouldStopInterview(answer string) bool {
	return len(strings.Fields(answer)) < 3
}

// scoreCoherence is a lexical-overlap heuristic between the
// interview's answers and the journal digest recorded at bake time:
// the original runs a full coherence-analysis pass through Prime, but
// without a real model collaborator in this repo a word-overlap ratio
// is the closest available proxy and is documented as such rather
// than faked as a model judgment.
func (iv *Interviewer) scoreCoherence(t *InterviewTranscript, state *BakedState) float64 {
	digestWords := wordSet(state.JournalDigest)
	if len(digestWords) == 0 {
		return 0
	}
	answerWords := wordSet(strings.Join(t.Answers, " "))
	if len(answerWords) == 0 {
		return 0
	}
	overlap := 0
	for w := range answerWords {
		if digestWords[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(digestWords))
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 3 {
			out[w] = true
		}
	}
	return out
}
