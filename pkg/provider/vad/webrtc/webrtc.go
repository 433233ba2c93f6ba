// Package webrtc implements [vad.Engine] with the WebRTC GMM voice detector.
//
// Each capture frame is split into 10 ms sub-frames which are classified
// independently; the share of voiced sub-frames becomes the frame's speech
// probability. Frame-level decisions then pass through the same debounce as
// the adaptive engine: more than two voiced frames start speech and a run of
// unvoiced frames longer than the silence limit ends it.
package webrtc

import (
	"errors"
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
)

// Compile-time interface assertions.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)

const (
	defaultMode         = 2
	defaultVoicedRatio  = 0.5
	defaultStartFrames  = 2
	defaultSilenceLimit = 5
)

var errSessionClosed = errors.New("webrtc: session closed")

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithMode sets the detector aggressiveness, 0 (least) to 3 (most).
// Default: 2.
func WithMode(mode int) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithVoicedRatio sets the share of voiced sub-frames at which a frame counts
// as speech. Default: 0.5.
func WithVoicedRatio(r float64) Option {
	return func(e *Engine) {
		if r > 0 && r <= 1 {
			e.voicedRatio = r
		}
	}
}

// WithSilenceLimit sets how many unvoiced frames end an utterance. Default: 5.
func WithSilenceLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.silenceLimit = n
		}
	}
}

// Engine creates WebRTC VAD sessions.
type Engine struct {
	mode         int
	voicedRatio  float64
	silenceLimit int
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		mode:         defaultMode,
		voicedRatio:  defaultVoicedRatio,
		silenceLimit: defaultSilenceLimit,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements [vad.Engine]. The detector only supports 8, 16, 32
// and 48 kHz.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if e.mode < 0 || e.mode > 3 {
		return nil, fmt.Errorf("webrtc: mode %d out of range [0, 3]", e.mode)
	}
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("webrtc: unsupported sample rate %d", cfg.SampleRate)
	}
	det, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc: create detector: %w", err)
	}
	if err := det.SetMode(e.mode); err != nil {
		return nil, fmt.Errorf("webrtc: set mode: %w", err)
	}
	return &Session{
		det:  det,
		eng:  *e,
		rate: cfg.SampleRate,
		sub:  cfg.SampleRate / 100,
	}, nil
}

// Session classifies frames for one stream. Not safe for concurrent use.
type Session struct {
	det  *webrtcvad.VAD
	eng  Engine
	rate int
	sub  int

	speaking      bool
	speechFrames  int
	silenceFrames int
	closed        bool
}

// ProcessFrame implements [vad.SessionHandle]. A trailing partial sub-frame
// is ignored.
func (s *Session) ProcessFrame(frame audio.Frame) (vad.VADEvent, error) {
	if s.closed {
		return vad.VADEvent{}, errSessionClosed
	}

	var voiced, total int
	for i := 0; i+s.sub <= len(frame.PCM); i += s.sub {
		active, err := s.det.Process(s.rate, audio.Int16ToBytes(frame.PCM[i:i+s.sub]))
		if err != nil {
			return vad.VADEvent{}, fmt.Errorf("webrtc: process: %w", err)
		}
		total++
		if active {
			voiced++
		}
	}

	ev := vad.VADEvent{Energy: frame.Energy, SilenceLimit: s.eng.silenceLimit}
	if total > 0 {
		ev.Probability = float64(voiced) / float64(total)
	}

	wasSpeaking := s.speaking
	if total > 0 && ev.Probability >= s.eng.voicedRatio {
		s.speechFrames++
		s.silenceFrames = 0
		if s.speechFrames > defaultStartFrames && !s.speaking {
			s.speaking = true
		}
	} else {
		s.silenceFrames++
		if s.silenceFrames > s.eng.silenceLimit && s.speaking {
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

// State implements [vad.SessionHandle]. AdaptiveThreshold is always zero.
func (s *Session) State() vad.State {
	return vad.State{
		Speaking:      s.speaking,
		SpeechFrames:  s.speechFrames,
		SilenceFrames: s.silenceFrames,
	}
}

// Reset implements [vad.SessionHandle].
func (s *Session) Reset() {
	s.speaking = false
	s.speechFrames = 0
	s.silenceFrames = 0
}

// Close implements [vad.SessionHandle].
func (s *Session) Close() error {
	s.closed = true
	return nil
}
