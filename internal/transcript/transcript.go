// Package transcript corrects recognizer output against a glossary of known
// terms before it is translated.
//
// Recognizers routinely mangle proper nouns ("bangaluru" for "Bengaluru").
// A [Corrector] slides n-gram windows over a final transcript and replaces
// any window its [Matcher] resolves to a glossary term. Each substitution is
// itemised as a [Correction] so callers can log or audit it.
package transcript

// Correction is one substitution made by a [Corrector].
type Correction struct {
	// Original is the text as produced by the recognizer.
	Original string

	// Corrected is the glossary term that replaced it.
	Corrected string

	// Score is the matcher's similarity score in [0, 1].
	Score float64
}

// Result is the output of [Corrector.Correct].
type Result struct {
	// Text is the corrected transcript text.
	Text string

	// Corrections lists every substitution in text order. Empty when nothing
	// changed.
	Corrections []Correction
}

// Changed reports whether any substitution was applied.
func (r Result) Changed() bool { return len(r.Corrections) > 0 }

// Matcher resolves a phrase to a glossary term.
//
// Implementations must be safe for concurrent use.
type Matcher interface {
	// Match returns the best glossary term for phrase. When ok is false the
	// returned term is phrase unchanged.
	Match(phrase string) (term string, score float64, ok bool)

	// MaxWords is the word count of the longest glossary term.
	MaxWords() int
}
