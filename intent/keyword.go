package intent

import "strings"

// fileOpKeywords, shellKeywords, etc. back KeywordClassify's
// priority-ordered cascade, grounded in the Python
// _keyword_intent_classify fallback path: file operations first
// (they gate tool routing), then shell, task completion, tool
// listing, correction, clarification, brainstorming, feedback, chat,
// and finally a generic "other" fallback.
var (
	fileReadKeywords  = []string{"read the file", "open the file", "show me the file", "cat ", "what's in the file", "contents of"}
	fileWriteKeywords = []string{"write to a file", "save to a file", "create a file", "write this to", "save this as"}
	shellKeywords     = []string{"run the command", "execute the command", "shell command", "terminal command"}
	taskDoneKeywords  = []string{"i'm done", "that's finished", "task complete", "all set now", "finished with that"}
	toolListKeywords  = []string{"what tools", "which tools", "available tools", "list your tools", "what can you do"}
	correctionWords   = []string{"that's wrong", "incorrect", "you're wrong", "that's not right", "mistaken"}
	clarifyWords      = []string{"what do you mean", "can you clarify", "i don't understand", "explain that"}
	brainstormWords   = []string{"brainstorm", "what if", "let's think about", "any ideas"}
	feedbackWords     = []string{"you should", "i think you", "feedback", "suggestion for you"}
	chatWords         = []string{"hello", "hi there", "how are you", "good morning", "good night"}
)

// KeywordClassify is Tier 3b: a priority-ordered keyword cascade used
// when neither an LLM backend nor an embedding backend is available
// (or both declined to produce a confident label). probeContext is
// the semantic probe's primary collection name, consulted only to
// disambiguate an otherwise-ambiguous file reference (a "file" hint
// nudges an unresolved read/write mention toward read_file).
func KeywordClassify(text, probeContext string) string {
	lowered := strings.ToLower(text)

	if containsAny(lowered, fileWriteKeywords) {
		return "write_file"
	}
	if containsAny(lowered, fileReadKeywords) {
		return "read_file"
	}
	if containsAny(lowered, shellKeywords) {
		return "shell"
	}
	if containsAny(lowered, taskDoneKeywords) {
		return "task_complete"
	}
	if containsAny(lowered, toolListKeywords) {
		return "list_tools"
	}
	if containsAny(lowered, correctionWords) {
		return "correction"
	}
	if containsAny(lowered, clarifyWords) {
		return "clarification"
	}
	if containsAny(lowered, brainstormWords) {
		return "brainstorming"
	}
	if containsAny(lowered, feedbackWords) {
		return "feedback"
	}
	if containsAny(lowered, chatWords) {
		return "chat"
	}

	if strings.Contains(lowered, "file") && probeContext == "file" {
		return "read_file"
	}

	return "other"
}
