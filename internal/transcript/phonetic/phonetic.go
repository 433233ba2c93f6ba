// Package phonetic matches recognizer output against a glossary of known
// terms (names, places, product words) by pronunciation.
//
// A phrase is a candidate for a term when their Double Metaphone codes
// overlap; candidates are ranked by Jaro-Winkler similarity and must reach the
// phonetic threshold. Without a code overlap a term can still win on spelling
// alone, but only above the stricter fuzzy threshold. Scripts without a
// metaphone encoding, such as Devanagari, therefore match on spelling only.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultMinRunes          = 3
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum similarity for a term whose
// metaphone codes overlap the phrase. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum similarity for a term matched on
// spelling alone. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// WithMinRunes ignores phrases shorter than n runes. Default: 3.
func WithMinRunes(n int) Option {
	return func(m *Matcher) { m.minRunes = n }
}

type term struct {
	text   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Matcher holds a prepared glossary. It is read-only after [New] and safe
// for concurrent use.
type Matcher struct {
	terms    []term
	maxWords int

	phoneticThreshold float64
	fuzzyThreshold    float64
	minRunes          int
}

// New prepares glossary for matching. Blank and duplicate entries are
// ignored; the first spelling of a duplicate wins.
func New(glossary []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minRunes:          defaultMinRunes,
	}
	for _, o := range opts {
		o(m)
	}

	seen := make(map[string]struct{}, len(glossary))
	for _, g := range glossary {
		text := strings.Join(strings.Fields(g), " ")
		lower := strings.ToLower(text)
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}

		tokens := strings.Fields(lower)
		m.terms = append(m.terms, term{text: text, lower: lower, tokens: tokens, codes: codes(tokens)})
		m.maxWords = max(m.maxWords, len(tokens))
	}
	return m
}

// Len returns the number of distinct glossary terms.
func (m *Matcher) Len() int { return len(m.terms) }

// MaxWords returns the word count of the longest term, or 0 for an empty
// glossary.
func (m *Matcher) MaxWords() int { return m.maxWords }

// Match returns the glossary term that best matches phrase. When ok is false
// the returned term is phrase unchanged and the score is 0.
func (m *Matcher) Match(phrase string) (match string, score float64, ok bool) {
	lower := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
	if len(m.terms) == 0 || utf8.RuneCountInString(lower) < m.minRunes {
		return phrase, 0, false
	}
	tokens := strings.Fields(lower)
	in := codes(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range m.terms {
		s := similarity(tokens, t.tokens, lower, t.lower)
		if overlap(in, t.codes) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = t.text, s, true
			}
			continue
		}
		if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
			best, bestScore = t.text, s
		}
	}
	if best == "" {
		return phrase, 0, false
	}
	return best, bestScore, true
}

func codes(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens)*2)
	for _, tok := range tokens {
		primary, secondary := matchr.DoubleMetaphone(tok)
		if primary != "" {
			out[primary] = struct{}{}
		}
		if secondary != "" {
			out[secondary] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the better Jaro-Winkler score of the whole phrase and the
// phrase with spaces removed, so "banga luru" still lines up with "bengaluru".
func similarity(in, tm []string, inFull, tmFull string) float64 {
	score := matchr.JaroWinkler(inFull, tmFull, false)
	if len(in) > 1 || len(tm) > 1 {
		if s := matchr.JaroWinkler(strings.Join(in, ""), strings.Join(tm, ""), false); s > score {
			score = s
		}
	}
	return score
}
