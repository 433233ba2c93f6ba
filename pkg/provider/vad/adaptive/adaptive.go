// Package adaptive implements an energy-based [vad.Engine] whose decision
// threshold tracks the room's rolling noise floor.
//
// The detector keeps the last ten frame energies. While the stream is silent
// the threshold is re-tuned to the larger of the calibrated noise ceiling
// (ambient + 2·std) and 120% of the rolling average; during speech it is
// frozen so the speaker's own energy never raises the bar mid-utterance.
// Speech starts once more than two loud frames have been seen since the last
// utterance ended; quiet frames in between do not restart that count. It ends after a
// run of quiet frames longer than a dynamic limit that grows with the ratio
// of rolling energy to ambient level, clamped to [5, 15] frames.
package adaptive

import (
	"errors"
	"math"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
)

// Compile-time interface assertions.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)

const (
	defaultHistorySize   = 10
	defaultStartFrames   = 2
	defaultMinSilence    = 5
	defaultMaxSilence    = 15
	defaultRollingFactor = 1.2

	// ambientFloor replaces a zero ambient level in the silence-limit ratio.
	ambientFloor = 1.0
)

var errSessionClosed = errors.New("adaptive: session closed")

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithHistorySize sets the rolling energy history capacity. Default: 10.
func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historySize = n
		}
	}
}

// WithStartFrames sets how many loud frames must be exceeded before speech
// starts. Default: 2 (speech starts on the third loud frame).
func WithStartFrames(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.startFrames = n
		}
	}
}

// WithSilenceLimits sets the clamp range of the dynamic silence limit.
// Default: [5, 15].
func WithSilenceLimits(lo, hi int) Option {
	return func(e *Engine) {
		if lo > 0 && hi >= lo {
			e.minSilence, e.maxSilence = lo, hi
		}
	}
}

// Engine creates adaptive-threshold VAD sessions.
type Engine struct {
	historySize int
	startFrames int
	minSilence  int
	maxSilence  int
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		historySize: defaultHistorySize,
		startFrames: defaultStartFrames,
		minSilence:  defaultMinSilence,
		maxSilence:  defaultMaxSilence,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements [vad.Engine]. The history is pre-filled with the
// ambient level so the rolling average starts at the calibrated floor.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	s := &Session{
		cfg:     cfg,
		eng:     *e,
		history: NewHistory(e.historySize),
	}
	s.Reset()
	return s, nil
}

// Session is a single-stream adaptive detector. Not safe for concurrent use.
type Session struct {
	cfg     vad.Config
	eng     Engine
	history *History

	speaking      bool
	threshold     float64
	speechFrames  int
	silenceFrames int
	closed        bool
}

// ProcessFrame implements [vad.SessionHandle]. Only frame.Energy is consulted.
func (s *Session) ProcessFrame(frame audio.Frame) (vad.VADEvent, error) {
	if s.closed {
		return vad.VADEvent{}, errSessionClosed
	}
	energy := frame.Energy

	s.history.Push(energy)
	rolling := s.history.Mean()

	if !s.speaking {
		s.threshold = math.Max(s.cfg.AmbientLevel+2*s.cfg.NoiseStd, defaultRollingFactor*rolling)
	}

	ev := vad.VADEvent{Energy: energy, Threshold: s.threshold}
	wasSpeaking := s.speaking

	if energy > s.threshold {
		s.speechFrames++
		s.silenceFrames = 0
		if s.speechFrames > s.eng.startFrames && !s.speaking {
			s.speaking = true
		}
	} else {
		s.silenceFrames++
		limit := s.silenceLimit(rolling)
		ev.SilenceLimit = limit
		if s.silenceFrames > limit && s.speaking {
			s.speaking = false
			s.speechFrames = 0
		}
	}

	switch {
	case s.speaking && !wasSpeaking:
		ev.Type = vad.VADSpeechStart
	case !s.speaking && wasSpeaking:
		ev.Type = vad.VADSpeechEnd
	case s.speaking:
		ev.Type = vad.VADSpeechContinue
	default:
		ev.Type = vad.VADSilence
	}
	return ev, nil
}

// silenceLimit returns clamp(floor(rolling/ambient·10), min, max).
func (s *Session) silenceLimit(rolling float64) int {
	ambient := s.cfg.AmbientLevel
	if ambient <= 0 {
		ambient = ambientFloor
	}
	limit := int(math.Floor(rolling / ambient * 10))
	return min(max(limit, s.eng.minSilence), s.eng.maxSilence)
}

// State implements [vad.SessionHandle].
func (s *Session) State() vad.State {
	return vad.State{
		Speaking:          s.speaking,
		AdaptiveThreshold: s.threshold,
		SpeechFrames:      s.speechFrames,
		SilenceFrames:     s.silenceFrames,
	}
}

// History returns the session's rolling energy history, oldest first.
func (s *Session) History() []float64 {
	return s.history.Values()
}

// Reset implements [vad.SessionHandle]. It restores the freshly calibrated
// state: silent, threshold at the speech threshold, history seeded with the
// ambient level.
func (s *Session) Reset() {
	s.history.Clear()
	for range s.history.Cap() {
		s.history.Push(s.cfg.AmbientLevel)
	}
	s.speaking = false
	s.threshold = s.cfg.SpeechThreshold
	s.speechFrames = 0
	s.silenceFrames = 0
}

// Close implements [vad.SessionHandle].
func (s *Session) Close() error {
	s.closed = true
	return nil
}
