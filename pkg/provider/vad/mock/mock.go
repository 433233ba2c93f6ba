// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to script VADEvent responses and inspect submitted frames.
//
// Example:
//
//	sess := &mock.Session{
//	    Events: []vad.VADEvent{{Type: vad.VADSilence}, {Type: vad.VADSpeechStart}},
//	}
//	eng := &mock.Engine{Session: sess}
//	handle, _ := eng.NewSession(cfg)
package mock

import (
	"sync"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil, a new default Session is
	// returned.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every Config passed to NewSession in order.
	NewSessionCalls []vad.Config
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.SessionHandle.
type Session struct {
	mu sync.Mutex

	// Events are returned by successive ProcessFrame calls. Once exhausted,
	// EventResult is returned.
	Events []vad.VADEvent

	// EventResult is returned when Events is exhausted.
	EventResult vad.VADEvent

	// StateResult is returned by State.
	StateResult vad.State

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// Frames records a copy of every frame passed to ProcessFrame.
	Frames []audio.Frame

	ResetCallCount int
	CloseCallCount int
}

// ProcessFrame records the frame and returns the next scripted event.
func (s *Session) ProcessFrame(frame audio.Frame) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := frame
	cp.PCM = append([]int16(nil), frame.PCM...)
	s.Frames = append(s.Frames, cp)
	if s.ProcessFrameErr != nil {
		return vad.VADEvent{}, s.ProcessFrameErr
	}
	if len(s.Events) > 0 {
		ev := s.Events[0]
		s.Events = s.Events[1:]
		return ev, nil
	}
	return s.EventResult, nil
}

// State returns StateResult.
func (s *Session) State() vad.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StateResult
}

// Reset increments ResetCallCount.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close increments CloseCallCount and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// FrameCount returns the number of frames processed so far.
func (s *Session) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Frames)
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)
