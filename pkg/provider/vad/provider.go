// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector and surfaces it as a
// stateful, per-stream session. Each session owns its detection state (energy
// history, debounce counters) so independent streams never interfere.
//
// VAD is synchronous: ProcessFrame returns immediately with a detection
// result, which lets the capture stage run it inline between device reads.
//
// Engines must be safe for concurrent use across sessions. A SessionHandle is
// owned by a single goroutine.
package vad

import "github.com/MrWong99/realtalk/pkg/audio"

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the rate of the PCM frames passed to ProcessFrame.
	SampleRate int

	// FrameSize is the number of samples per frame.
	FrameSize int

	// AmbientLevel is the calibrated mean frame energy of the silent room.
	AmbientLevel float64

	// NoiseStd is the standard deviation of the calibration frame energies.
	NoiseStd float64

	// SpeechThreshold is the calibrated floor-guarded speech threshold. It
	// seeds the adaptive threshold before the first frame.
	SpeechThreshold float64
}

// SessionHandle represents an active VAD session for a single audio stream.
type SessionHandle interface {
	// ProcessFrame classifies one frame. Engines read whichever of the raw
	// samples or the pre-computed energy they need.
	ProcessFrame(frame audio.Frame) (VADEvent, error)

	// State returns a snapshot of the detector state after the last frame.
	State() State

	// Reset clears accumulated state without closing the session.
	Reset()

	// Close releases the session. Calling Close more than once returns nil.
	Close() error
}

// Engine is the factory for VAD sessions.
type Engine interface {
	// NewSession creates a session ready to accept frames. It returns an
	// error when cfg is unsupported by the engine.
	NewSession(cfg Config) (SessionHandle, error)
}
