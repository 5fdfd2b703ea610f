package voice

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	keywordConfidence = 0.6
	fuzzyConfidence   = 0.4
	fuzzyThreshold    = 0.6
	maxFuzzyMatches   = 3
)

// HelpHint is returned when a transcript gives no usable signal.
const HelpHint = `Try saying "Help" to hear what I can do.`

type keywordSet struct {
	name        string
	keywords    []string
	suggestions []string
}

var keywordSets = []keywordSet{
	{
		name:        "scheduling",
		keywords:    []string{"schedule", "meeting", "appointment", "event", "calendar", "book", "plan"},
		suggestions: []string{"Schedule meeting tomorrow at 3pm", "Add dentist appointment next friday at 10am"},
	},
	{
		name:        "query",
		keywords:    []string{"what", "when", "show", "list", "agenda", "free"},
		suggestions: []string{"What's on my schedule today?", "Show my calendar for next week"},
	},
	{
		name:        "note",
		keywords:    []string{"note", "write", "remember", "jot", "idea"},
		suggestions: []string{"Take a note: buy groceries", "Find notes about the project"},
	},
	{
		name:        "time-block",
		keywords:    []string{"block", "focus", "reserve", "deep work"},
		suggestions: []string{"Block time for deep work tomorrow", "Create a time block for writing at 9am"},
	},
}

// canonicalPhrases are the fuzzy-match targets.
var canonicalPhrases = []string{
	"schedule meeting tomorrow at 3pm",
	"what's on my schedule today",
	"take a note",
	"block time for deep work",
	"show my calendar",
	"go to calendar",
	"cancel",
	"help",
}

// FuzzyMatch is a canonical phrase and its similarity to the input.
type FuzzyMatch struct {
	Phrase     string  `json:"phrase"`
	Similarity float64 `json:"similarity"`
}

func (m *Matcher) correct(transcript string) Result {
	lower := strings.ToLower(strings.TrimSpace(transcript))

	var (
		corrections []string
		confidence  float64
	)
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			corrections = append(corrections, s)
		}
	}

	if lower != "" {
		for _, set := range keywordSets {
			if containsAny(lower, set.keywords) {
				confidence = keywordConfidence
				for _, s := range set.suggestions {
					add(s)
				}
			}
		}
	}

	fuzzy := m.FuzzyMatches(lower)
	if len(fuzzy) > 0 && confidence < fuzzyConfidence {
		confidence = fuzzyConfidence
	}
	for _, f := range fuzzy {
		add(f.Phrase)
	}

	res := Result{Confidence: confidence, Corrections: corrections}
	if len(corrections) == 0 {
		res.Suggestion = HelpHint
	} else {
		res.Suggestion = fmt.Sprintf("Did you mean %q?", corrections[0])
	}
	return res
}

// FuzzyMatches returns up to three canonical phrases with similarity of at
// least 0.6 to s, best first.
func (m *Matcher) FuzzyMatches(s string) []FuzzyMatch {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}

	var out []FuzzyMatch
	for _, p := range m.canonical {
		if sim := Similarity(s, p); sim >= fuzzyThreshold {
			out = append(out, FuzzyMatch{Phrase: p, Similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > maxFuzzyMatches {
		out = out[:maxFuzzyMatches]
	}
	return out
}

// Similarity is the Levenshtein distance normalized by the longer string:
// (maxLen - distance) / maxLen, measured in runes. Two empty strings are
// identical.
func Similarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-d) / float64(maxLen)
}
