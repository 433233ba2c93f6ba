// Package mock provides an in-memory implementation of [audio.Source] for use
// in unit tests.
//
// The mock is safe for concurrent use. It records every call so that tests
// can assert on call counts, and exposes fields that control return values.
//
// Typical usage:
//
//	src := &mock.Source{
//	    Frames: [][]int16{silence, silence, speech},
//	    ReadErrors: map[int]error{1: fmt.Errorf("overflow: %w", types.ErrIO)},
//	}
//	err := src.Open(ctx, audio.DefaultFormat())
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/realtalk/pkg/audio"
)

var _ audio.Source = (*Source)(nil)

// Source is a mock implementation of [audio.Source].
//
// Each call to Read consumes the next entry of Frames. When ReadErrors has an
// entry for the zero-based call index, that error is returned instead and no
// frame is consumed. Once Frames is exhausted Read returns io.EOF, or blocks
// until the context is cancelled when BlockAtEnd is set.
type Source struct {
	mu sync.Mutex

	// Frames are returned by successive Read calls.
	Frames [][]int16

	// ReadErrors maps a Read call index to the error it returns.
	ReadErrors map[int]error

	// OpenError is returned by Open.
	OpenError error

	// CloseError is returned by Close.
	CloseError error

	// BlockAtEnd makes Read block on ctx once Frames is exhausted.
	BlockAtEnd bool

	// OpenFormat records the format passed to the last Open.
	OpenFormat audio.Format

	CallCountOpen  int
	CallCountRead  int
	CallCountClose int

	next int
}

// Open implements [audio.Source].
func (s *Source) Open(_ context.Context, f audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountOpen++
	s.OpenFormat = f
	return s.OpenError
}

// Read implements [audio.Source].
func (s *Source) Read(ctx context.Context) ([]int16, error) {
	s.mu.Lock()
	idx := s.CallCountRead
	s.CallCountRead++
	if err, ok := s.ReadErrors[idx]; ok {
		s.mu.Unlock()
		return nil, err
	}
	if s.next < len(s.Frames) {
		frame := s.Frames[s.next]
		s.next++
		s.mu.Unlock()
		out := make([]int16, len(frame))
		copy(out, frame)
		return out, nil
	}
	block := s.BlockAtEnd
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, io.EOF
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

// Closed reports whether Close has been called at least once.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose > 0
}

// Constant returns n samples all equal to v.
func Constant(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}
