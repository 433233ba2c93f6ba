// Package types defines the shared types used across all RealTalk packages.
//
// These types are the common vocabulary between audio sources, detectors,
// recognizers, the translator and the application layer. Each package keeps its
// own domain types; only cross-cutting values live here to avoid import cycles.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy. Callers classify failures with [errors.Is].
var (
	// ErrDevice reports a missing or unusable input device. Fatal to calibration.
	ErrDevice = errors.New("audio device error")

	// ErrIO reports a transient read fault on an open audio stream.
	ErrIO = errors.New("audio read error")

	// ErrModel reports that a recognizer or translator backend is unavailable
	// or returned a failure.
	ErrModel = errors.New("model error")

	// ErrConfig reports invalid configuration such as an unknown language code.
	ErrConfig = errors.New("configuration error")
)

// Lang is a supported language code.
type Lang string

const (
	// Hindi is the "hi" language code.
	Hindi Lang = "hi"

	// English is the "en" language code.
	English Lang = "en"
)

// IsValid reports whether l is a supported language.
func (l Lang) IsValid() bool {
	return l == Hindi || l == English
}

// Name returns the human-readable language name.
func (l Lang) Name() string {
	switch l {
	case Hindi:
		return "Hindi"
	case English:
		return "English"
	default:
		return string(l)
	}
}

// Other returns the opposite language of the hi/en pair.
func (l Lang) Other() Lang {
	if l == Hindi {
		return English
	}
	return Hindi
}

// ParseLang parses a user-supplied language code. The numeric menu choices "1"
// and "2" are accepted as aliases for hi and en. An unknown value yields an
// error wrapping [ErrConfig].
func ParseLang(s string) (Lang, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hi", "1", "hindi":
		return Hindi, nil
	case "en", "2", "english":
		return English, nil
	default:
		return "", fmt.Errorf("invalid language %q (want hi or en): %w", s, ErrConfig)
	}
}

// TranscriptKind distinguishes provisional from committed recognizer output.
type TranscriptKind int

const (
	// Partial is provisional text superseded by the next partial or a final.
	Partial TranscriptKind = iota

	// Final is committed text ready for translation.
	Final
)

// String returns "partial" or "final".
func (k TranscriptKind) String() string {
	if k == Final {
		return "final"
	}
	return "partial"
}

// TranscriptEvent is emitted by the capture loop whenever the recognizer
// produces new text.
type TranscriptEvent struct {
	Kind TranscriptKind
	Text string

	// Lang is the language the recognizer was configured for.
	Lang Lang

	// At is the stream offset of the frame that produced the event.
	At time.Duration
}

// Translation is a final transcript together with its translation.
type Translation struct {
	SessionID string
	Source    Lang
	Target    Lang

	// Original is the recognized text after glossary correction.
	Original string

	// Text is the translated text or an error placeholder.
	Text string

	Truncated bool
	Degraded  bool
	At        time.Time
}
