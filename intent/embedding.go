package intent

import (
	"context"

	"github.com/azraeltruthsay/gaia/vectorstore"
)

// exemplarPhrases holds a few exemplar phrases per canonical intent.
// A real deployment would encode these once at startup via the configured
// EmbeddingBackend and cache the vectors; Classifier.classifyEmbedding
// does exactly that lazily on first use.
var exemplarPhrases = map[string][]string{
	"read_file":     {"read this file for me", "open the log file", "show me the contents of this file"},
	"write_file":    {"write this to a file", "save this as a file", "create a new file with this content"},
	"shell":         {"run this shell command", "execute this command for me"},
	"list_tools":    {"what tools do you have", "list your available tools"},
	"correction":    {"that's not right", "you're wrong about that", "you are mistaken"},
	"clarification": {"can you explain that", "what do you mean by that"},
	"brainstorming": {"let's brainstorm some ideas", "what if we tried something different"},
	"feedback":      {"i have some feedback for you", "you should improve this"},
	"chat":          {"hello there", "how are you doing today"},
	"other":         {"something unrelated to any known intent"},
}

// otherPenalty is subtracted from the "other" label's score so
// borderline cases favour a specific intent over the catch-all.
const otherPenalty = 0.08

type exemplarVectors map[string][][]float64

// classifyEmbedding is Tier 3a: encode text and compare against the
// pre-encoded exemplar bank, scoring each intent by the mean of its
// top-k exemplar similarities, with the "other" label penalized.
// Returns the best-scoring intent if it clears EmbeddingThreshold.
func (c *Classifier) classifyEmbedding(ctx context.Context, text string) (string, bool) {
	if c.exemplars == nil {
		c.exemplars = make(exemplarVectors)
	}

	textVec, err := c.Embedding.Embed(ctx, text)
	if err != nil {
		return "", false
	}

	bestLabel := ""
	bestScore := -1.0
	for label, phrases := range exemplarPhrases {
		vectors, ok := c.exemplars[label]
		if !ok {
			vectors = make([][]float64, 0, len(phrases))
			for _, p := range phrases {
				v, err := c.Embedding.Embed(ctx, p)
				if err != nil {
					continue
				}
				vectors = append(vectors, v)
			}
			c.exemplars[label] = vectors
		}
		if len(vectors) == 0 {
			continue
		}

		score := meanTopK(textVec, vectors, 3)
		if label == "other" {
			score -= otherPenalty
		}
		if score > bestScore {
			bestScore = score
			bestLabel = label
		}
	}

	if bestLabel == "" || bestScore < c.EmbeddingThreshold {
		return "", false
	}
	return bestLabel, true
}

// meanTopK returns the mean cosine similarity of vec against its top
// k nearest vectors in bank (or all of them if bank is shorter).
func meanTopK(vec []float64, bank [][]float64, k int) float64 {
	scores := make([]float64, 0, len(bank))
	for _, v := range bank {
		scores = append(scores, vectorstore.CosineSimilarity(vec, v))
	}
	if k > len(scores) {
		k = len(scores)
	}
	// simple selection of top-k without a full sort, fine for the
	// small per-intent exemplar counts here
	for i := 0; i < k; i++ {
		maxIdx := i
		for j := i + 1; j < len(scores); j++ {
			if scores[j] > scores[maxIdx] {
				maxIdx = j
			}
		}
		scores[i], scores[maxIdx] = scores[maxIdx], scores[i]
	}
	var sum float64
	for i := 0; i < k; i++ {
		sum += scores[i]
	}
	if k == 0 {
		return 0
	}
	return sum / float64(k)
}
