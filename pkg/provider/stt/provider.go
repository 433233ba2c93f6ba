// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider opens a Recognizer for one audio stream. The recognizer is fed
// fixed-size frames of 16 kHz mono int16 PCM through Accept and answers each
// frame synchronously with the current partial text, or with a final
// transcript when its own endpointing decides an utterance is complete. How
// utterance boundaries are found is internal to each backend.
//
// Accept may block for as long as inference takes, so callers run recognizers
// on a stage separate from audio capture.
package stt

import (
	"context"
)

// StreamConfig carries the parameters used to open a recognizer.
type StreamConfig struct {
	// SampleRate is the rate of the PCM passed to Accept (e.g., 16000).
	SampleRate int

	// Language is a BCP-47 code (e.g., "hi", "en").
	Language string

	// Keywords is an optional vocabulary hint for backends that support
	// keyword boosting. Others ignore it.
	Keywords []KeywordBoost
}

// Recognizer is a live recognition session for one audio stream. A Recognizer
// is owned by a single goroutine.
type Recognizer interface {
	// Accept consumes one frame and reports the recognizer's output for this
	// frame boundary. A Transcript with IsFinal set commits an utterance; an
	// empty Text means there is nothing new to report.
	Accept(ctx context.Context, pcm []int16) (Transcript, error)

	// Flush forces any buffered speech to be finalised, for example at the
	// end of a finite input. The result is a final transcript, possibly empty.
	Flush(ctx context.Context) (Transcript, error)

	// Close releases the session. Calling Close more than once returns nil.
	Close() error
}

// Provider is the factory for recognizers. Implementations must be safe for
// concurrent use.
type Provider interface {
	// NewRecognizer opens a recognition session. Errors from this call mean
	// the backend is unavailable and should be treated as model errors.
	NewRecognizer(ctx context.Context, cfg StreamConfig) (Recognizer, error)
}
