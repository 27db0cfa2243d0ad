// Package orchestrator implements the Cognition Orchestrator: the
// per-turn pipeline that takes a user input and session context,
// enriches a CognitionPacket through probe/intent/persona/RAG/tool
// stages, builds a prompt, and streams a response back while running
// the loop detector over every chunk and the stream observer at
// sentence boundaries. Grounded on
// the nine-stage pipeline in spec.md §4.8.
package orchestrator

import (
	"context"
	"strings"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/intent"
	"github.com/azraeltruthsay/gaia/observer"
	"github.com/azraeltruthsay/gaia/packet"
	"github.com/azraeltruthsay/gaia/probe"
	"github.com/azraeltruthsay/gaia/promptbuilder"
)

// DefaultMaxSentenceRepeat is the sentence-repetition guard's default
// threshold: a finalized sentence appearing more than this many times
// aborts the stream.
const DefaultMaxSentenceRepeat = 2

// InferenceBackend is the narrow streaming contract the orchestrator
// needs from an inference collaborator, shaped after
// ai/providers/openai/client.go's callback-based StreamResponse.
// onToken is called once per generated chunk; a non-nil return from
// onToken aborts the stream early.
type InferenceBackend interface {
	Stream(ctx context.Context, messages []promptbuilder.Message, onToken func(token string) error) error
}

// PersonaResolver picks a persona for the turn from intent + probe context.
type PersonaResolver interface {
	Resolve(intentLabel, probeContext string) packet.Persona
}

// KnowledgeBaseResolver decides which knowledge base (if any) a turn
// implies, so RAG knows which vectorstore.Reader-backed collection to
// query.
type KnowledgeBaseResolver interface {
	ResolveKnowledgeBase(intentLabel, probeContext string) (name string, ok bool)
}

// DocumentReader is the narrow RAG read contract.
type DocumentReader interface {
	Query(ctx context.Context, text string, topK int) ([]promptbuilder.RetrievedDocument, error)
}

// ToolSelector chooses tools for tool_routing-intent turns.
type ToolSelector interface {
	SelectTools(ctx context.Context, p *packet.CognitionPacket) []packet.SelectedTool
}

// StreamEventKind discriminates the StreamEvent union.
type StreamEventKind string

const (
	EventToken       StreamEventKind = "token"
	EventInterruption StreamEventKind = "interruption"
	EventCompleted    StreamEventKind = "completed"
)

// StreamEvent is yielded to the orchestrator's caller during Run.
type StreamEvent struct {
	Kind        StreamEventKind
	Token       string
	Interruption *observer.Interrupt
	Packet      *packet.CognitionPacket
}

// Orchestrator wires every collaborator stage together. Any
// collaborator may be nil; stages that need a missing collaborator
// are skipped rather than erroring, matching spec.md's "best effort"
// framing for optional enrichment stages (persona/RAG/tools).
type Orchestrator struct {
	Probe        *probe.Prober
	Intent       *intent.Classifier
	Persona      PersonaResolver
	KnowledgeBase KnowledgeBaseResolver
	Documents    func(kbName string) DocumentReader
	Tools        ToolSelector
	Prompt       *promptbuilder.Builder
	Inference    InferenceBackend

	// NewObserver builds a fresh *observer.Observer for each turn
	// (observers carry per-stream rate-limit state). Nil disables the
	// seven-check pipeline while still running the loop detector and
	// sentence-repetition guard, both pure heuristics.
	NewObserver func() *observer.Observer

	MaxSentenceRepeat int
}

// New builds an Orchestrator with spec defaults.
func New() *Orchestrator {
	return &Orchestrator{MaxSentenceRepeat: DefaultMaxSentenceRepeat}
}

// Run executes the full nine-stage pipeline for one turn and streams
// events to emit. emit returning an error aborts the turn immediately
// (the caller hung up).
func (o *Orchestrator) Run(ctx context.Context, sessionID string, origin packet.Origin, prompt string, emit func(StreamEvent) error) (*packet.CognitionPacket, error) {
	p := packet.New(sessionID, origin, prompt)
	if err := p.ComputeHashes(); err != nil {
		return p, err
	}
	if err := p.Transition(packet.StateDispatched); err != nil {
		return p, err
	}

	probeContext := o.runProbe(ctx, p)
	plan := o.runIntent(ctx, p, probeContext)
	o.runPersonaSelection(p, plan.Intent, probeContext)
	o.runRAG(ctx, p, plan.Intent, probeContext)
	if plan.Intent == "tool_routing" {
		o.runToolRouting(ctx, p)
	}

	var messages []promptbuilder.Message
	if o.Prompt != nil {
		messages = o.Prompt.Build(p, "")
	}

	if err := p.Transition(packet.StateGenerating); err != nil {
		return p, err
	}

	interrupted, err := o.runStream(ctx, p, messages, emit)
	if err != nil {
		_ = p.Transition(packet.StateFailed)
		return p, err
	}

	if interrupted != nil {
		_ = p.Transition(packet.StateAborted)
		p.Status.NextSteps = append(p.Status.NextSteps, interrupted.Reason)
		p.Status.ObserverTrace = append(p.Status.ObserverTrace, string(interrupted.Level)+": "+interrupted.Reason)
		_ = emit(StreamEvent{Kind: EventInterruption, Interruption: interrupted, Packet: p})
		return p, nil
	}

	o.finalize(p)
	_ = emit(StreamEvent{Kind: EventCompleted, Packet: p})
	return p, nil
}

// runProbe is stage 2.
func (o *Orchestrator) runProbe(ctx context.Context, p *packet.CognitionPacket) string {
	if o.Probe == nil || probe.ShouldSkip(p.Content.OriginalPrompt) {
		return ""
	}
	result := o.Probe.Probe(ctx, p.Header.SessionID, p.Content.OriginalPrompt)
	if result == nil {
		return ""
	}

	summaries := groupByCollection(result)
	p.Content.DataFields = append(p.Content.DataFields, packet.DataField{
		Key: "probe_summary", Type: "probe_collections", Value: summaries,
	})
	for k, v := range result.Metrics(probe.SimilarityThreshold) {
		p.Content.DataFields = append(p.Content.DataFields, packet.DataField{Key: "probe_metric_" + k, Type: "metric", Value: v})
	}
	return result.PrimaryCollection
}

func groupByCollection(result *probe.Result) []promptbuilder.ProbeCollectionSummary {
	byCollection := map[string][]string{}
	var order []string
	for _, h := range result.Hits {
		if _, ok := byCollection[h.Collection]; !ok {
			order = append(order, h.Collection)
		}
		byCollection[h.Collection] = append(byCollection[h.Collection], h.Phrase)
	}
	out := make([]promptbuilder.ProbeCollectionSummary, 0, len(order))
	for _, c := range order {
		out = append(out, promptbuilder.ProbeCollectionSummary{
			Collection: c,
			Primary:    c == result.PrimaryCollection,
			Phrases:    byCollection[c],
		})
	}
	return out
}

// runIntent is stage 3.
func (o *Orchestrator) runIntent(ctx context.Context, p *packet.CognitionPacket, probeContext string) intent.Plan {
	if o.Intent == nil {
		return intent.Plan{Intent: "other"}
	}
	plan := o.Intent.Classify(ctx, p.Content.OriginalPrompt, probeContext)
	p.Intent.UserIntent = plan.Intent
	p.Intent.Confidence = 1.0
	if plan.ReadOnly {
		p.Content.DataFields = append(p.Content.DataFields, packet.DataField{
			Key: "read_only_intent", Type: "bool", Value: true,
		})
	}
	return plan
}

// runPersonaSelection is stage 4.
func (o *Orchestrator) runPersonaSelection(p *packet.CognitionPacket, intentLabel, probeContext string) {
	if o.Persona == nil {
		return
	}
	p.Header.Persona = o.Persona.Resolve(intentLabel, probeContext)
}

const ragDocumentBudgetFraction = 0.3
const ragTopK = 5

// runRAG is stage 5.
func (o *Orchestrator) runRAG(ctx context.Context, p *packet.CognitionPacket, intentLabel, probeContext string) {
	if o.KnowledgeBase == nil || o.Documents == nil {
		return
	}
	kbName, ok := o.KnowledgeBase.ResolveKnowledgeBase(intentLabel, probeContext)
	if !ok {
		return
	}
	p.Content.DataFields = append(p.Content.DataFields, packet.DataField{
		Key: "knowledge_base_name", Type: "string", Value: kbName,
	})

	reader := o.Documents(kbName)
	if reader == nil {
		return
	}
	docs, err := reader.Query(ctx, p.Content.OriginalPrompt, ragTopK)
	if err != nil || len(docs) == 0 {
		p.Content.DataFields = append(p.Content.DataFields, packet.DataField{
			Key: "rag_no_results", Type: "bool", Value: true,
		})
		return
	}

	budget := truncateDocsToBudget(docs, ragDocumentBudgetFraction)
	p.Content.DataFields = append(p.Content.DataFields, packet.DataField{
		Key: "retrieved_documents", Type: "documents", Value: budget,
	})
}

// truncateDocsToBudget keeps the highest-priority documents that fit
// a coarse character budget, a proxy for "budget fractions" until the
// real token counter is wired through RAG too.
func truncateDocsToBudget(docs []promptbuilder.RetrievedDocument, fraction float64) []promptbuilder.RetrievedDocument {
	const assumedCharBudget = 6000
	limit := int(float64(assumedCharBudget) * fraction)
	var out []promptbuilder.RetrievedDocument
	used := 0
	for _, d := range docs {
		cost := len(d.Excerpt)
		if used+cost > limit && len(out) > 0 {
			break
		}
		out = append(out, d)
		used += cost
	}
	return out
}

// runToolRouting is stage 6.
func (o *Orchestrator) runToolRouting(ctx context.Context, p *packet.CognitionPacket) {
	if o.Tools == nil {
		return
	}
	selected := o.Tools.SelectTools(ctx, p)
	p.ToolState.Selected = selected
}

// finalize is stage 9.
func (o *Orchestrator) finalize(p *packet.CognitionPacket) {
	if quality := observer.CheckResponseQuality(p.Response.Candidate); quality != nil {
		p.AppendReflection("post_stream_quality", quality.Reason)
	}
	p.Response.Confidence = 1.0
	_ = p.Transition(packet.StateFinalized)
}

// errAborted is a sentinel the stream loop uses internally to unwind
// out of the inference callback on an interrupt without treating it
// as an inference failure.
var errAborted = gaiaerr.ErrObserverBlocked

func sentenceKey(s string) string {
	return strings.TrimSpace(s)
}
