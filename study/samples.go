package study

import "strings"

// deriveSamples turns one source document into the three
// instruction-format variants spec.md §4.11 step 1 names: direct
// recall (recite a fact), completion (finish a truncated passage),
// and knowledge retrieval (answer a question about the content).
// Grounded on
// original_source/candidates/gaia-study/gaia_study/study_mode_manager.py's
// sample-generation pass; simplified here to sentence-level splitting
// rather than the original's paragraph-aware chunker, since this
// package doesn't need the original's long-document summarization
// step to exercise the training state machine end to end.
func deriveSamples(filename, text string) []TrainingSample {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var samples []TrainingSample
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		samples = append(samples, TrainingSample{
			Kind:        "direct_recall",
			Instruction: "Recall what you know about: " + firstWords(s, 8),
			Response:    s,
			SourceFile:  filename,
		})
		if i+1 < len(sentences) {
			next := strings.TrimSpace(sentences[i+1])
			if next != "" {
				samples = append(samples, TrainingSample{
					Kind:        "completion",
					Instruction: "Continue: " + s,
					Response:    next,
					SourceFile:  filename,
				})
			}
		}
	}

	samples = append(samples, TrainingSample{
		Kind:        "knowledge_retrieval",
		Instruction: "What does " + filename + " say?",
		Response:    firstWords(text, 60),
		SourceFile:  filename,
	})

	return samples
}

func splitSentences(text string) []string {
	replacer := strings.NewReplacer(". ", ".\n", "! ", "!\n", "? ", "?\n")
	return strings.Split(replacer.Replace(text), "\n")
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
