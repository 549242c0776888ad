package tools

import (
	"strings"
	"unicode"
)

// Paraphraser rewrites text while keeping its meaning.
type Paraphraser interface {
	Paraphrase(text string) string
}

// SynonymParaphraser replaces words found in its table, preserving the
// capitalization of the first letter and surrounding punctuation. The
// output depends only on the input.
type SynonymParaphraser map[string]string

// DefaultSynonyms is the built-in table used by the plagiarism tool.
var DefaultSynonyms = SynonymParaphraser{
	"important":   "significant",
	"show":        "demonstrate",
	"shows":       "demonstrates",
	"use":         "employ",
	"uses":        "employs",
	"help":        "assist",
	"helps":       "assists",
	"big":         "large",
	"small":       "minor",
	"quick":       "rapid",
	"quickly":     "rapidly",
	"many":        "numerous",
	"good":        "favorable",
	"bad":         "poor",
	"start":       "begin",
	"starts":      "begins",
	"end":         "conclude",
	"make":        "create",
	"makes":       "creates",
	"get":         "obtain",
	"gets":        "obtains",
	"very":        "highly",
	"about":       "regarding",
	"because":     "since",
	"however":     "nevertheless",
	"also":        "additionally",
	"change":      "alter",
	"changes":     "alters",
	"need":        "require",
	"needs":       "requires",
	"result":      "outcome",
	"results":     "outcomes",
	"method":      "approach",
	"methods":     "approaches",
	"study":       "research",
	"students":    "learners",
	"teacher":     "instructor",
	"problem":     "issue",
	"problems":    "issues",
	"increase":    "raise",
	"decrease":    "reduce",
	"explain":     "clarify",
	"understand":  "comprehend",
	"difficult":   "challenging",
	"easy":        "simple",
	"enough":      "sufficient",
	"main":        "primary",
	"therefore":   "consequently",
	"find":        "discover",
	"finds":       "discovers",
	"improve":     "enhance",
	"improves":    "enhances",
	"provide":     "supply",
	"provides":    "supplies",
	"information": "details",
}

// Paraphrase implements [Paraphraser].
func (m SynonymParaphraser) Paraphrase(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		b.WriteString(m.replace(string(word)))
		word = word[:0]
	}
	for _, r := range text {
		if unicode.IsLetter(r) || r == '\'' {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return b.String()
}

func (m SynonymParaphraser) replace(w string) string {
	syn, ok := m[strings.ToLower(w)]
	if !ok {
		return w
	}
	first := []rune(w)[0]
	if unicode.IsUpper(first) {
		r := []rune(syn)
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	}
	return syn
}

// Similarity returns the Jaccard similarity of the word shingles of a and
// b, in [0, 1]. Texts shorter than a shingle are compared word by word.
func Similarity(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 0
	}
	n := 3
	if len(wa) < n || len(wb) < n {
		n = 1
	}
	sa, sb := shingles(wa, n), shingles(wb, n)
	inter := 0
	for s := range sa {
		if sb[s] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SharedPhrases returns the shingles of a that also occur in b, in the
// order they appear in a.
func SharedPhrases(a, b string) []string {
	wa, wb := words(a), words(b)
	const n = 3
	if len(wa) < n || len(wb) < n {
		return nil
	}
	sb := shingles(wb, n)
	seen := make(map[string]bool)
	var out []string
	for i := 0; i+n <= len(wa); i++ {
		s := strings.Join(wa[i:i+n], " ")
		if sb[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func shingles(ws []string, n int) map[string]bool {
	out := make(map[string]bool)
	for i := 0; i+n <= len(ws); i++ {
		out[strings.Join(ws[i:i+n], " ")] = true
	}
	return out
}
