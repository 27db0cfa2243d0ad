package probe

import (
	"regexp"
	"strings"
)

// commonWords mirrors the Python original's over-inclusive filter:
// skip these when deciding whether a word is "interesting" enough to
// probe. Deliberately small — false positives (probing a common word)
// are cheap; false negatives (missing a named entity) are not.
var commonWords = buildCommonWords()

func buildCommonWords() map[string]bool {
	words := strings.Fields(`
		the a an and or but in on at to for of with by from as is was are were be
		been being have has had do does did will would could should may might
		shall can need must it its i me my we us our you your he him his she her
		they them their this that these those what which who whom how when where
		why if then so not no yes all each every any some just about up out into
		over after before between under again there here once also very much more
		most only than too now get got go went come came make made take took know
		knew think thought say said tell told give gave see saw look find found
		want like new old good bad first last long great little own other right
		still try use even back way well because thing things many same different
		around help through while such let keep end set put kind off both down
		ask going show mean part place people really actually already though yet
		during hey hi hello gaia please thanks thank okay ok sure yeah yep nope
		what's happened anything system logs check update updated today yesterday
		tomorrow time work working start stop run running read write send change
		changed move moved talk talking context information question answer
		character sheet spell spells level prepared weather status error message
		problem issue build test deploy server file folder data config setting
		settings option options feature code function class method module package
		name number type list item value result
	`)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

var (
	reQuoted     = regexp.MustCompile(`["']([^"']{3,60})["']`)
	reCapSeq     = regexp.MustCompile(`\b([A-Z][A-Za-z.]+('\w+)?(\s+(of|the|and|in|on|at|de|von|van)\s+)?(\s+[A-Z][A-Za-z.]+('\w+)?)+)\b`)
	reDomainStat = regexp.MustCompile(`\b(AC|DC|HP|XP)\s*\d+\b`)
	reDomainDie  = regexp.MustCompile(`\b\d*d\d+([+-]\d+)?\b`)
	reTrailPunct = regexp.MustCompile(`[.,!?;:"']+$`)
)

// ExtractCandidatePhrases runs the five pure extraction strategies
// from spec.md §4.4 over text and returns a deduplicated,
// length-capped phrase list: quoted strings, capitalized multi-word
// sequences, non-sentence-initial capitalized words, domain notation
// (dice/armor-class tokens), and rare lowercase words.
func ExtractCandidatePhrases(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var phrases []string
	seen := map[string]bool{}
	add := func(p string) {
		p = strings.TrimSpace(p)
		if len(p) >= 3 && !seen[strings.ToLower(p)] {
			seen[strings.ToLower(p)] = true
			phrases = append(phrases, p)
		}
	}

	for _, m := range reQuoted.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range reCapSeq.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	words := strings.Fields(text)
	for i, word := range words {
		clean := reTrailPunct.ReplaceAllString(word, "")
		if len(clean) < 3 || !isUpperFirst(clean) {
			continue
		}
		if i == 0 {
			continue
		}
		prev := words[i-1]
		if prev != "" && isSentenceEnd(prev[len(prev)-1]) {
			continue
		}
		if commonWords[strings.ToLower(clean)] {
			continue
		}
		add(clean)
	}

	for _, m := range reDomainStat.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range reDomainDie.FindAllString(text, -1) {
		add(m)
	}

	for _, word := range words {
		clean := reTrailPunct.ReplaceAllString(word, "")
		lower := strings.ToLower(clean)
		if len(clean) >= 4 && !commonWords[lower] && !seen[lower] &&
			isAlpha(clean) && isLowerFirst(clean) {
			add(clean)
		}
	}

	// Drop single-word phrases that are substrings of an already
	// extracted multi-word phrase ("Tower" is redundant next to
	// "Tower Faction").
	multiWord := map[string]bool{}
	for _, p := range phrases {
		if strings.Contains(p, " ") {
			multiWord[strings.ToLower(p)] = true
		}
	}
	if len(multiWord) > 0 {
		filtered := phrases[:0]
		for _, p := range phrases {
			if strings.Contains(p, " ") {
				filtered = append(filtered, p)
				continue
			}
			redundant := false
			lp := strings.ToLower(p)
			for mw := range multiWord {
				if strings.Contains(mw, lp) {
					redundant = true
					break
				}
			}
			if !redundant {
				filtered = append(filtered, p)
			}
		}
		phrases = filtered
	}

	if len(phrases) > MaxPhrases {
		phrases = phrases[:MaxPhrases]
	}
	return phrases
}

func isUpperFirst(s string) bool { return s != "" && s[0] >= 'A' && s[0] <= 'Z' }
func isLowerFirst(s string) bool { return s != "" && s[0] >= 'a' && s[0] <= 'z' }
func isSentenceEnd(b byte) bool  { return b == '.' || b == '!' || b == '?' }
func isAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return s != ""
}
