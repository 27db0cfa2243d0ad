// Package probe implements the semantic probe: a pre-cognition vector
// lookup that runs before intent detection and persona selection. It
// extracts candidate phrases from user input with pure regex/set
// operations (no model calls), queries every configured knowledge-base
// collection through a VectorIndexer-shaped reader, and returns the
// hits that downstream stages (persona, intent, RAG, prompt building)
// use to ground the turn.
package probe

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// SimilarityThreshold is the default minimum cosine score a hit must
// clear to survive multi-collection probing.
const SimilarityThreshold = 0.40

// MaxPhrases bounds how many extracted phrases are probed per turn.
const MaxPhrases = 8

// MinWordsToProbe short-circuits the probe for very short input.
const MinWordsToProbe = 3

// CacheMaxAgeTurns is how many turns a cached phrase->hits entry survives.
const CacheMaxAgeTurns = 10

// Reader is the narrow read contract the probe needs from a knowledge
// base's vector substrate. The wiring layer adapts a
// *vectorstore.Reader onto this interface.
type Reader interface {
	Query(ctx context.Context, phrase string, topK int) ([]QueryResult, error)
}

// QueryResult is one scored hit returned by a Reader.
type QueryResult struct {
	Text           string
	Score          float64
	Filename       string
	ChunkIdx       int
	ConfidenceTier string
}

// Hit is one vector match surfaced by the probe.
type Hit struct {
	Phrase         string  `json:"phrase"`
	Collection     string  `json:"collection"`
	ChunkText      string  `json:"chunk_text"`
	Similarity     float64 `json:"similarity"`
	Filename       string  `json:"filename"`
	ChunkIdx       int     `json:"chunk_idx"`
	ConfidenceTier string  `json:"confidence_tier,omitempty"`
}

// Result aggregates every hit found across all probed collections for
// one turn, plus the bookkeeping needed to attach probe metrics to a
// CognitionPacket.
type Result struct {
	Hits                    []Hit    `json:"hits,omitempty"`
	PrimaryCollection       string   `json:"primary_collection,omitempty"`
	SupplementalCollections []string `json:"supplemental_collections,omitempty"`
	PhrasesTested           []string `json:"phrases_tested"`
	ProbeTimeMs             float64  `json:"probe_time_ms"`
	FromCache               int      `json:"from_cache"`
}

// HasHits reports whether the probe found anything at all.
func (r *Result) HasHits() bool { return len(r.Hits) > 0 }

// Metrics produces the compact summary spec.md §4.4 attaches to
// metrics.semantic_probe.
func (r *Result) Metrics(threshold float64) map[string]interface{} {
	if !r.HasHits() {
		return map[string]interface{}{
			"skipped":        len(r.PhrasesTested) == 0,
			"phrases_tested": len(r.PhrasesTested),
			"total_hits":     0,
			"probe_time_ms":  r.ProbeTimeMs,
			"from_cache":     r.FromCache,
		}
	}

	var sum, max, min float64
	min = r.Hits[0].Similarity
	collections := map[string]bool{}
	phrases := map[string]bool{}
	for _, h := range r.Hits {
		sum += h.Similarity
		if h.Similarity > max {
			max = h.Similarity
		}
		if h.Similarity < min {
			min = h.Similarity
		}
		collections[h.Collection] = true
		phrases[h.Phrase] = true
	}

	return map[string]interface{}{
		"skipped":                  false,
		"phrases_extracted":        len(r.PhrasesTested),
		"phrases_matched":          len(phrases),
		"total_hits":               len(r.Hits),
		"primary_collection":       r.PrimaryCollection,
		"supplemental_collections": r.SupplementalCollections,
		"collections_hit":          len(collections),
		"similarity_avg":           sum / float64(len(r.Hits)),
		"similarity_max":           max,
		"similarity_min":           min,
		"probe_time_ms":            r.ProbeTimeMs,
		"from_cache":               r.FromCache,
		"threshold":                threshold,
	}
}

// reflexCommands short-circuits the probe entirely; these never need
// grounding context.
var reflexCommands = map[string]bool{
	"exit": true, "quit": true, "bye": true, "help": true, "h": true,
	"status": true, "list_tools": true, "": true,
}

// Prober runs the probe against a fixed set of named knowledge bases.
type Prober struct {
	Collections map[string]Reader
	Threshold   float64
	TopK        int
	Log         gaialog.Logger

	caches map[string]*SessionCache
}

// NewProber builds a Prober over the given collections. Threshold and
// TopK default to spec values when zero.
func NewProber(collections map[string]Reader, log gaialog.Logger) *Prober {
	if log == nil {
		log = gaialog.NoOp()
	}
	return &Prober{
		Collections: collections,
		Threshold:   SimilarityThreshold,
		TopK:        3,
		Log:         log,
		caches:      make(map[string]*SessionCache),
	}
}

// sessionCache returns (creating if needed) the per-session cache.
func (p *Prober) sessionCache(sessionID string) *SessionCache {
	c, ok := p.caches[sessionID]
	if !ok {
		c = NewSessionCache(CacheMaxAgeTurns)
		p.caches[sessionID] = c
	}
	return c
}

// Probe runs the full pipeline: short-circuit check, phrase extraction,
// per-session cache lookup, multi-collection query, and primary/
// supplemental ranking.
func (p *Prober) Probe(ctx context.Context, sessionID, input string) *Result {
	start := time.Now()
	cache := p.sessionCache(sessionID)
	cache.AdvanceTurn()

	if ShouldSkip(input) {
		return &Result{
			PhrasesTested: nil,
			ProbeTimeMs:   float64(time.Since(start).Microseconds()) / 1000.0,
		}
	}

	phrases := ExtractCandidatePhrases(input)
	if len(phrases) == 0 {
		return &Result{
			PhrasesTested: phrases,
			ProbeTimeMs:   float64(time.Since(start).Microseconds()) / 1000.0,
		}
	}

	threshold := p.Threshold
	if threshold == 0 {
		threshold = SimilarityThreshold
	}
	topK := p.TopK
	if topK == 0 {
		topK = 3
	}

	var allHits []Hit
	fromCache := 0
	seen := map[[4]string]bool{}

	for _, phrase := range phrases {
		if cached, ok := cache.Get(phrase); ok {
			fromCache++
			allHits = appendDeduped(allHits, cached, seen)
			continue
		}
		var phraseHits []Hit
		for collection, reader := range p.Collections {
			results, err := reader.Query(ctx, phrase, topK)
			if err != nil {
				p.Log.Debug("probe: query failed", map[string]interface{}{
					"collection": collection, "phrase": phrase, "error": err.Error(),
				})
				continue
			}
			for _, r := range results {
				if r.Score < threshold {
					continue
				}
				phraseHits = append(phraseHits, Hit{
					Phrase:         phrase,
					Collection:     collection,
					ChunkText:      truncate(r.Text, 300),
					Similarity:     r.Score,
					Filename:       r.Filename,
					ChunkIdx:       r.ChunkIdx,
					ConfidenceTier: r.ConfidenceTier,
				})
			}
		}
		cache.Put(phrase, phraseHits)
		allHits = appendDeduped(allHits, phraseHits, seen)
	}

	primary, supplemental := rankCollections(allHits)

	return &Result{
		Hits:                    allHits,
		PrimaryCollection:       primary,
		SupplementalCollections: supplemental,
		PhrasesTested:           phrases,
		ProbeTimeMs:             float64(time.Since(start).Microseconds()) / 1000.0,
		FromCache:               fromCache,
	}
}

// appendDeduped appends hits not already present by
// (phrase, collection, filename, chunk_idx).
func appendDeduped(dst []Hit, src []Hit, seen map[[4]string]bool) []Hit {
	for _, h := range src {
		key := [4]string{h.Phrase, h.Collection, h.Filename, strconv.Itoa(h.ChunkIdx)}
		if seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, h)
	}
	return dst
}

// rankCollections sums similarity per collection and returns
// (primary, supplemental-ranked-descending); ties broken by hit count.
func rankCollections(hits []Hit) (string, []string) {
	if len(hits) == 0 {
		return "", nil
	}
	scores := map[string]float64{}
	counts := map[string]int{}
	for _, h := range hits {
		scores[h.Collection] += h.Similarity
		counts[h.Collection]++
	}
	ranked := make([]string, 0, len(scores))
	for c := range scores {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return counts[ranked[i]] > counts[ranked[j]]
	})
	return ranked[0], ranked[1:]
}

// ShouldSkip reports whether the probe should short-circuit for input:
// reflex commands, empty input, or fewer than MinWordsToProbe words.
func ShouldSkip(input string) bool {
	trimmed := strings.TrimSpace(input)
	if reflexCommands[strings.ToLower(trimmed)] {
		return true
	}
	if trimmed == "" {
		return true
	}
	return len(strings.Fields(trimmed)) < MinWordsToProbe
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
