package stt

import "time"

// Transcript is a recognizer result. Both partial and final results use this
// type.
type Transcript struct {
	// Text is the recognized speech content.
	Text string

	// IsFinal distinguishes committed text from a provisional partial.
	IsFinal bool

	// Confidence is the overall confidence (0.0–1.0), or zero when the
	// backend does not report one.
	Confidence float64

	// Words holds per-word detail for backends that provide it.
	Words []WordDetail

	// Duration is the length of audio covered by the result.
	Duration time.Duration
}

// IsEmpty reports whether the transcript carries no text.
func (t Transcript) IsEmpty() bool { return t.Text == "" }

// WordDetail holds per-word metadata from backends that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a vocabulary hint with a backend-specific weight.
type KeywordBoost struct {
	Keyword string
	Boost   float64
}
