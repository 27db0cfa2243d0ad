// Package observer runs quality, alignment, and loop-detection checks
// over an in-progress generation stream, grounded in
// gaia_core/utils/stream_observer.py. Observer.Observe implements the
// seven in-order checks from spec.md §4.7; LoopDetector is the
// separate raw-token circuit breaker fed by the orchestrator on every
// token rather than at checkpoint granularity.
package observer

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/azraeltruthsay/gaia/packet"
)

// Level is an Interrupt's severity.
type Level string

const (
	LevelOK      Level = "OK"
	LevelInfo    Level = "INFO"
	LevelCaution Level = "CAUTION"
	LevelBlock   Level = "BLOCK"
	LevelFatal   Level = "FATAL"
)

// Interrupt is the Observer's verdict for one checkpoint.
type Interrupt struct {
	Level      Level
	Reason     string
	Suggestion string
}

// OK reports whether the interrupt requires no action from the caller.
func (i Interrupt) OK() bool {
	return i.Level == LevelOK || i.Level == LevelInfo
}

// Mode is a deployment-wide toggle, not a per-packet decision.
type Mode string

const (
	ModeBlock   Mode = "block"
	ModeExplain Mode = "explain"
	ModeWarn    Mode = "warn"
)

// LLMBackend is the narrow completion contract the observer needs for
// Check 6's structured JSON verdict request.
type LLMBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PathChecker reports whether a referenced path exists under a known
// root. Abstracted so tests don't touch the real filesystem layout.
type PathChecker interface {
	Exists(path string) (isFile, isDir bool, exists bool)
}

// Config carries the observer's tunable thresholds, all with spec
// defaults.
type Config struct {
	Mode               Mode
	MinInterval        time.Duration // rate limit between observations
	MaxCalls           int           // cap per stream
	GraceTokens        int           // Check 4 default 12
	KeywordRatioThresh float64       // Check 5 default 0.25
	UseLLM             bool
}

// DefaultConfig matches spec.md §4.7's stated defaults.
func DefaultConfig() Config {
	return Config{
		Mode:               ModeBlock,
		MinInterval:        500 * time.Millisecond,
		MaxCalls:           20,
		GraceTokens:        12,
		KeywordRatioThresh: 0.25,
		UseLLM:             false,
	}
}

// softTerms are framing concerns the LLM check downgrades to CAUTION
// instead of BLOCK.
var softTerms = []string{"project", "hypothetical", "framing", "boot", "process", "metaphor"}

// Observer runs the seven-check pipeline for one stream. It is not
// safe for concurrent use by multiple goroutines on the same stream,
// but each stream gets its own instance.
type Observer struct {
	cfg         Config
	llm         LLMBackend
	paths       PathChecker
	mu          sync.Mutex
	lastOutput  string
	lastResult  Interrupt
	lastCallAt  time.Time
	calls       int
	firstTokAt  time.Time
}

// New builds an Observer. llm and paths may be nil; Observe degrades
// to heuristic-only checks when llm is nil.
func New(cfg Config, llm LLMBackend, paths PathChecker) *Observer {
	return &Observer{cfg: cfg, llm: llm, paths: paths}
}

// Observe runs the checkpoint pipeline against the buffer accumulated
// so far for this turn.
func (o *Observer) Observe(ctx context.Context, p *packet.CognitionPacket, buffer string) Interrupt {
	if p == nil {
		return Interrupt{Level: LevelOK, Reason: "no packet provided"}
	}

	o.mu.Lock()
	if o.firstTokAt.IsZero() {
		o.firstTokAt = time.Now()
	}
	if buffer == o.lastOutput || (o.calls > 0 && time.Since(o.lastCallAt) < o.cfg.MinInterval) {
		cached := o.lastResult
		o.mu.Unlock()
		if cached.Level == "" {
			return Interrupt{Level: LevelOK, Reason: "rate-limited, no prior result"}
		}
		return cached
	}
	o.mu.Unlock()

	if i, hit := fastCheck(buffer); hit {
		return o.finish(p, buffer, applyMode(i, o.cfg.Mode))
	}

	if i, hit := readOnlyGuard(p, buffer); hit {
		return o.finish(p, buffer, i)
	}

	annotateCodePaths(p, buffer, o.paths)

	if i, skip := o.graceBuffer(buffer); skip {
		return o.finish(p, buffer, i)
	}

	if o.calls >= o.cfg.MaxCalls {
		return o.finish(p, buffer, Interrupt{Level: LevelOK, Reason: "observer call cap reached"})
	}

	if !o.cfg.UseLLM || o.llm == nil {
		if i, hit := identityKeywordOverlap(p, buffer, o.cfg.KeywordRatioThresh); hit {
			return o.finish(p, buffer, i)
		}
		return o.finish(p, buffer, Interrupt{Level: LevelOK, Reason: "LLM checks disabled"})
	}

	i := o.llmObservation(ctx, p, buffer)
	return o.finish(p, buffer, i)
}

func (o *Observer) finish(p *packet.CognitionPacket, buffer string, i Interrupt) Interrupt {
	o.mu.Lock()
	o.lastOutput = buffer
	o.lastResult = i
	o.lastCallAt = time.Now()
	o.calls++
	o.mu.Unlock()
	p.Status.ObserverTrace = append(p.Status.ObserverTrace, string(i.Level)+": "+i.Reason)
	return i
}

// applyMode downgrades BLOCK to CAUTION in warn mode, or leaves the
// level untouched otherwise (explain mode keeps BLOCK but the caller
// is expected to surface Suggestion).
func applyMode(i Interrupt, mode Mode) Interrupt {
	if i.Level == LevelBlock && mode == ModeWarn {
		i.Level = LevelCaution
	}
	return i
}

// fastCheck is Check 1: a substring scan for obvious error tokens.
var errorTokenPattern = regexp.MustCompile(`(?i)\b(error|exception)\b`)

func fastCheck(buffer string) (Interrupt, bool) {
	if errorTokenPattern.MatchString(buffer) {
		return Interrupt{Level: LevelBlock, Reason: "potential error detected in output"}, true
	}
	return Interrupt{}, false
}

// readOnlyGuard is Check 2.
func readOnlyGuard(p *packet.CognitionPacket, buffer string) (Interrupt, bool) {
	readOnly := false
	for _, f := range p.Content.DataFields {
		if f.Key == "read_only_intent" {
			if b, ok := f.Value.(bool); ok {
				readOnly = b
			}
		}
	}
	if readOnly && strings.Contains(buffer, "EXECUTE:") {
		return Interrupt{Level: LevelBlock, Reason: "EXECUTE not allowed for read-only intent"}, true
	}
	return Interrupt{}, false
}

// codePathPattern extracts path-like tokens for Check 3.
var codePathPattern = regexp.MustCompile(`[a-zA-Z0-9_.\-]+(?:/[a-zA-Z0-9_.\-]+)+`)

var ignoredPathWords = map[string]bool{
	"of": true, "to": true, "in": true, "for": true, "with": true, "and": true,
	"the": true, "key": true, "set": true, "use": true, "code": true, "file": true,
	"path": true, "from": true, "by": true, "is": true, "or": true, "app": true,
}

// annotateCodePaths is Check 3: no interrupt, just a reflection-log
// annotation recording whether referenced paths exist.
func annotateCodePaths(p *packet.CognitionPacket, buffer string, paths PathChecker) {
	if paths == nil {
		return
	}
	matches := codePathPattern.FindAllString(buffer, -1)
	if len(matches) == 0 {
		return
	}

	var notes []string
	for _, m := range matches {
		if ignoredPathWords[m] || len(m) <= 2 {
			continue
		}
		isFile, isDir, exists := paths.Exists(m)
		switch {
		case exists && isFile:
			notes = append(notes, "code path reference '"+m+"' exists as a file")
		case exists && isDir:
			notes = append(notes, "code path reference '"+m+"' exists as a directory")
		case exists:
			notes = append(notes, "code path reference '"+m+"' exists")
		default:
			notes = append(notes, "WARNING: code path reference '"+m+"' does not exist")
		}
	}
	if len(notes) > 0 {
		p.AppendReflection("observer_path_validation", strings.Join(notes, "\n"))
	}
}

// graceBuffer is Check 4: skip remaining checks until the output has
// accumulated enough words.
func (o *Observer) graceBuffer(buffer string) (Interrupt, bool) {
	words := len(strings.Fields(buffer))
	if words < o.cfg.GraceTokens {
		return Interrupt{Level: LevelOK, Reason: "grace buffer: waiting for more content"}, true
	}
	return Interrupt{}, false
}

var identityStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"is": true, "a": true, "as": true, "of": true, "to": true, "be": true, "in": true,
	"or": true, "by": true, "are": true,
}

// identityKeywordOverlap is Check 5, used only when LLM observation is
// disabled.
func identityKeywordOverlap(p *packet.CognitionPacket, buffer string, threshold float64) (Interrupt, bool) {
	identityText := identityTextFor(p)
	if identityText == "" {
		return Interrupt{}, false
	}

	var keywords []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(identityText)) {
		w = strings.Trim(w, ".,'\"()[]")
		if len(w) <= 4 || identityStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) >= 8 {
			break
		}
	}
	if len(keywords) == 0 {
		return Interrupt{}, false
	}

	lower := strings.ToLower(buffer)
	hits := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(keywords))
	if ratio < threshold {
		return Interrupt{
			Level:      LevelInfo,
			Reason:     "output appears misaligned with configured identity",
			Suggestion: "expected identity-aligned terms: " + strings.Join(keywords, ", "),
		}, true
	}
	return Interrupt{}, false
}

func identityTextFor(p *packet.CognitionPacket) string {
	parts := []string{p.Header.Persona.PersonaID, "role:" + string(p.Header.Persona.Role)}
	if p.Header.Persona.ToneHint != "" {
		parts = append(parts, "tone:"+p.Header.Persona.ToneHint)
	}
	return strings.Join(parts, " ")
}

// llmObservation is Check 6: call the observer model with a
// structured prompt, parse its JSON verdict defensively.
func (o *Observer) llmObservation(ctx context.Context, p *packet.CognitionPacket, buffer string) Interrupt {
	prompt := buildObserverPrompt(p, buffer)
	text, err := o.llm.Complete(ctx, prompt)
	if err != nil {
		return Interrupt{Level: LevelOK, Reason: "observer failed: " + err.Error()}
	}

	action, reason, valid := parseObserverVerdict(text)
	p.AppendReflection("observer", "observer LLM rationale: "+text)
	if !valid {
		return Interrupt{Level: LevelOK, Reason: "invalid observer output, continuing"}
	}
	if action != "INTERRUPT" {
		return Interrupt{Level: LevelOK, Reason: "no issues found"}
	}

	lowerReason := strings.ToLower(reason)
	for _, term := range softTerms {
		if strings.Contains(lowerReason, term) {
			p.AppendReflection("observer", "noted framing concern but allowed continuation: "+reason)
			return Interrupt{Level: LevelCaution, Reason: reason}
		}
	}

	blockLevel := LevelBlock
	if o.cfg.Mode == ModeWarn {
		blockLevel = LevelCaution
	}
	i := Interrupt{Level: blockLevel, Reason: reason}
	if o.cfg.Mode == ModeExplain {
		i.Suggestion = "observer detected an issue; snippet: " + trim(buffer, 400)
	}
	return i
}

func buildObserverPrompt(p *packet.CognitionPacket, buffer string) string {
	var b strings.Builder
	b.WriteString("Evaluate this response for contradiction or harm.\n\n")
	b.WriteString("IDENTITY:\n" + identityTextFor(p) + "\n\n")
	b.WriteString("USER INPUT:\n" + p.Content.OriginalPrompt + "\n\n")
	b.WriteString("OUTPUT TO REVIEW:\n" + trim(buffer, 1200) + "\n\n")
	b.WriteString(`Return ONLY a valid JSON object: {"action": "CONTINUE"|"INTERRUPT", "reason": "short reason"}.`)
	return b.String()
}

func trim(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
