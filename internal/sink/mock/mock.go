// Package mock provides a recording [sink.Sink] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/realtalk/internal/sink"
	"github.com/MrWong99/realtalk/pkg/types"
)

var _ sink.Sink = (*Sink)(nil)

// Sink records every delivery. Set the Err fields to make calls fail.
type Sink struct {
	mu sync.Mutex

	// SinkName is returned by Name. Defaults to "mock".
	SinkName string

	PartialErr error
	FinalErr   error
	CloseErr   error

	partials   []types.TranscriptEvent
	finals     []types.Translation
	closeCalls int
}

// Partial records ev.
func (s *Sink) Partial(_ context.Context, _ string, ev types.TranscriptEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partials = append(s.partials, ev)
	return s.PartialErr
}

// Final records tr.
func (s *Sink) Final(_ context.Context, tr types.Translation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, tr)
	return s.FinalErr
}

// Name returns SinkName or "mock".
func (s *Sink) Name() string {
	if s.SinkName == "" {
		return "mock"
	}
	return s.SinkName
}

// Close counts the call and returns CloseErr.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return s.CloseErr
}

// Partials returns a copy of the recorded partial events.
func (s *Sink) Partials() []types.TranscriptEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TranscriptEvent(nil), s.partials...)
}

// Finals returns a copy of the recorded translations.
func (s *Sink) Finals() []types.Translation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Translation(nil), s.finals...)
}

// CloseCalls returns how many times Close was called.
func (s *Sink) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
