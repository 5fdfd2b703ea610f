// Package voice classifies transcribed utterances into planner commands.
//
// Every pattern of every command is tried against the raw transcript and
// scored; the single best score wins if it clears the recognition threshold.
// Below the threshold the matcher proposes corrections from keyword sets and
// from fuzzy similarity against a fixed list of canonical phrases.
package voice

import (
	"strings"
)

// Scoring constants. These values define recognition behavior; changing any
// of them changes which utterances are accepted.
const (
	baseConfidence       = 0.8
	coverageWeight       = 0.2
	keywordBonus         = 0.1
	lowCoverageThreshold = 0.5
	lowCoveragePenalty   = 0.2
	recognizeThreshold   = 0.7
)

var commonKeywords = []string{"schedule", "add", "create", "what", "show", "tell"}

// Result is the outcome of matching one transcript.
type Result struct {
	Recognized bool     `json:"recognized"`
	Command    *Command `json:"command,omitempty"`
	// Groups are the pattern's non-empty submatches in order, excluding the
	// full match.
	Groups []string `json:"matched_groups,omitempty"`
	// Named holds non-empty named submatches (title, when, time, ...).
	Named       map[string]string `json:"named_groups,omitempty"`
	Confidence  float64           `json:"confidence"`
	Suggestion  string            `json:"suggestion,omitempty"`
	Corrections []string          `json:"corrections,omitempty"`
}

// Arg returns a named argument, or "".
func (r Result) Arg(name string) string {
	return r.Named[name]
}

// Matcher matches against a command table. Safe for concurrent use.
type Matcher struct {
	commands  []Command
	canonical []string
}

// NewMatcher returns a Matcher over commands, or the built-in table if none
// are given.
func NewMatcher(commands ...Command) *Matcher {
	if len(commands) == 0 {
		commands = commandTable
	}
	return &Matcher{commands: commands, canonical: canonicalPhrases}
}

var defaultMatcher = NewMatcher()

// Match classifies transcript with the built-in table.
func Match(transcript string) Result {
	return defaultMatcher.Match(transcript)
}

// Commands returns the matcher's table.
func (m *Matcher) Commands() []Command {
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

type candidate struct {
	cmd        *Command
	submatches []string
	names      []string
	confidence float64
}

// Match classifies transcript. It never fails; an unrecognized transcript
// yields suggestions instead.
func (m *Matcher) Match(transcript string) Result {
	var best *candidate

	if len(transcript) > 0 {
		for i := range m.commands {
			cmd := &m.commands[i]
			for _, p := range cmd.Patterns {
				sub := p.FindStringSubmatch(transcript)
				if sub == nil {
					continue
				}
				c := score(transcript, len(sub[0]))
				// Strictly greater: ties keep the earlier table entry.
				if best == nil || c > best.confidence {
					best = &candidate{cmd: cmd, submatches: sub, names: p.SubexpNames(), confidence: c}
				}
			}
		}
	}

	if best != nil && best.confidence > recognizeThreshold {
		return Result{
			Recognized: true,
			Command:    best.cmd,
			Groups:     nonEmpty(best.submatches[1:]),
			Named:      namedGroups(best.names, best.submatches),
			Confidence: best.confidence,
		}
	}

	return m.correct(transcript)
}

// score implements the confidence heuristic for a match of matchLen bytes.
func score(transcript string, matchLen int) float64 {
	coverage := float64(matchLen) / float64(len(transcript))
	if coverage > 1 {
		coverage = 1
	}

	c := baseConfidence + coverage*coverageWeight
	if containsAny(strings.ToLower(transcript), commonKeywords) {
		c += keywordBonus
	}
	if coverage < lowCoverageThreshold {
		c -= lowCoveragePenalty
	}
	return clamp01(c)
}

func namedGroups(names, sub []string) map[string]string {
	var out map[string]string
	for i, name := range names {
		if name == "" || i >= len(sub) || sub[i] == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		if _, seen := out[name]; !seen {
			out[name] = strings.TrimSpace(sub[i])
		}
	}
	return out
}

func nonEmpty(sub []string) []string {
	var out []string
	for _, s := range sub {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
