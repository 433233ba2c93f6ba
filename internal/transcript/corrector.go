package transcript

import (
	"strings"

	"github.com/MrWong99/realtalk/pkg/provider/stt"
)

const defaultTrustedConfidence = 0.9

// Option configures a [Corrector].
type Option func(*Corrector)

// WithTrustedConfidence leaves a window untouched when every word in it was
// reported by the recognizer with at least this confidence. Transcripts
// without word details are always eligible. Default: 0.9.
func WithTrustedConfidence(c float64) Option {
	return func(k *Corrector) { k.trusted = c }
}

// Corrector applies glossary matching to transcripts. A nil matcher makes it
// a passthrough. Safe for concurrent use.
type Corrector struct {
	matcher Matcher
	trusted float64
}

// NewCorrector returns a Corrector backed by m.
func NewCorrector(m Matcher, opts ...Option) *Corrector {
	c := &Corrector{matcher: m, trusted: defaultTrustedConfidence}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns t.Text with glossary terms substituted.
//
// At each token the longest window (up to the longest glossary term) that
// matches wins, so multi-word terms take precedence over single words, unless
// a narrower window inside it scores higher. A window that already equals its
// term is consumed without a correction.
func (c *Corrector) Correct(t stt.Transcript) Result {
	tokens := strings.Fields(t.Text)
	res := Result{Text: strings.Join(tokens, " ")}
	if c == nil || c.matcher == nil || len(tokens) == 0 {
		return res
	}
	maxWords := c.matcher.MaxWords()
	if maxWords == 0 {
		return res
	}
	conf := c.confidences(t.Words)

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		n := c.matchAt(tokens, i, min(maxWords, len(tokens)-i), conf, &out, &res)
		if n == 0 {
			out = append(out, tokens[i])
			n = 1
		}
		i += n
	}
	res.Text = strings.Join(out, " ")
	return res
}

// matchAt tries windows of n..1 tokens starting at i and returns how many
// tokens it consumed, or 0.
func (c *Corrector) matchAt(tokens []string, i, n int, conf map[string]float64, out *[]string, res *Result) int {
	for ; n >= 1; n-- {
		window := tokens[i : i+n]
		if c.trustedWindow(window, conf) {
			continue
		}
		phrase := trimPunct(strings.Join(window, " "))
		term, score, ok := c.matcher.Match(phrase)
		if !ok || (n > 1 && c.narrowerWins(window, score)) {
			continue
		}
		words := strings.Fields(term)
		if len(words) == 0 {
			continue
		}
		last := window[n-1]
		words[len(words)-1] += last[len(strings.TrimRight(last, punct)):]
		*out = append(*out, words...)
		if term != phrase {
			res.Corrections = append(res.Corrections, Correction{Original: phrase, Corrected: term, Score: score})
		}
		return n
	}
	return 0
}

// narrowerWins reports whether dropping the first or last token of window
// yields a strictly better match, so "in bangaluru" does not swallow "in".
func (c *Corrector) narrowerWins(window []string, score float64) bool {
	for _, sub := range [][]string{window[1:], window[:len(window)-1]} {
		if _, s, ok := c.matcher.Match(trimPunct(strings.Join(sub, " "))); ok && s > score {
			return true
		}
	}
	return false
}

func (c *Corrector) trustedWindow(window []string, conf map[string]float64) bool {
	if len(conf) == 0 {
		return false
	}
	for _, w := range window {
		v, ok := conf[strings.ToLower(trimPunct(w))]
		if !ok || v < c.trusted {
			return false
		}
	}
	return true
}

// confidences indexes word confidence by lower-cased word, keeping the lowest
// score when a word repeats.
func (c *Corrector) confidences(words []stt.WordDetail) map[string]float64 {
	if len(words) == 0 {
		return nil
	}
	conf := make(map[string]float64, len(words))
	for _, w := range words {
		k := strings.ToLower(trimPunct(w.Word))
		if prev, ok := conf[k]; !ok || w.Confidence < prev {
			conf[k] = w.Confidence
		}
	}
	return conf
}

const punct = ".,!?;:\"'।"

func trimPunct(s string) string {
	return strings.Trim(s, punct)
}
