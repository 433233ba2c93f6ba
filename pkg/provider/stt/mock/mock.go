// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller opens recognizers with the expected
// StreamConfig. Use Recognizer to script Transcript values per frame and
// inspect which audio was delivered.
//
// Example:
//
//	rec := &mock.Recognizer{
//	    Results: []stt.Transcript{{Text: "hel"}, {Text: "hello", IsFinal: true}},
//	}
//	p := &mock.Provider{Recognizer: rec}
//	r, _ := p.NewRecognizer(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/realtalk/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Recognizer is returned by NewRecognizer. If nil, a new default
	// Recognizer is returned.
	Recognizer stt.Recognizer

	// NewRecognizerErr, if non-nil, is returned from NewRecognizer.
	NewRecognizerErr error

	// NewRecognizerCalls records every StreamConfig passed to NewRecognizer.
	NewRecognizerCalls []stt.StreamConfig
}

// NewRecognizer records the call and returns Recognizer, NewRecognizerErr.
func (p *Provider) NewRecognizer(_ context.Context, cfg stt.StreamConfig) (stt.Recognizer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.NewRecognizerCalls = append(p.NewRecognizerCalls, cfg)
	if p.NewRecognizerErr != nil {
		return nil, p.NewRecognizerErr
	}
	if p.Recognizer != nil {
		return p.Recognizer, nil
	}
	return &Recognizer{}, nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Recognizer is a mock implementation of stt.Recognizer.
//
// Each Accept call returns the next entry of Results (and the matching entry
// of Errors, when present). Once Results is exhausted Accept returns an empty
// Transcript.
type Recognizer struct {
	mu sync.Mutex

	// Results are returned by successive Accept calls.
	Results []stt.Transcript

	// Errors maps an Accept call index to the error it returns.
	Errors map[int]error

	// FlushResult and FlushErr are returned by Flush.
	FlushResult stt.Transcript
	FlushErr    error

	// CloseErr is returned by Close.
	CloseErr error

	// Frames records a copy of every frame passed to Accept.
	Frames [][]int16

	FlushCallCount int
	CloseCallCount int
}

// Accept records the frame and returns the next scripted result.
func (r *Recognizer) Accept(_ context.Context, pcm []int16) (stt.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.Frames)
	r.Frames = append(r.Frames, append([]int16(nil), pcm...))
	if err, ok := r.Errors[idx]; ok {
		return stt.Transcript{}, err
	}
	if idx < len(r.Results) {
		return r.Results[idx], nil
	}
	return stt.Transcript{}, nil
}

// Flush increments FlushCallCount and returns FlushResult, FlushErr.
func (r *Recognizer) Flush(context.Context) (stt.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FlushCallCount++
	return r.FlushResult, r.FlushErr
}

// Close increments CloseCallCount and returns CloseErr.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CloseCallCount++
	return r.CloseErr
}

// FrameCount returns the number of frames accepted so far.
func (r *Recognizer) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Frames)
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)
