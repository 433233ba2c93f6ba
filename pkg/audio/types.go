// Package audio defines the capture-side audio abstractions: the stream
// [Format], the [Source] interface implemented by microphone and file
// backends, and small PCM helpers shared by the pipeline stages.
//
// All PCM in this package is signed 16-bit, little-endian when serialised, and
// mono unless a Format says otherwise.
package audio

import (
	"context"
	"time"
)

// Default capture parameters. 4096 samples at 16 kHz is 256 ms per frame.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFrameSize  = 4096
)

// Format describes the shape of the frames a [Source] produces.
type Format struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count of the stream. The pipeline consumes mono.
	Channels int

	// FrameSize is the number of samples per channel returned by each Read.
	FrameSize int
}

// DefaultFormat returns the 16 kHz mono 4096-sample format used by the
// recognizers.
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		FrameSize:  DefaultFrameSize,
	}
}

// FrameDuration returns the real-time length of one frame.
func (f Format) FrameDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.FrameSize) * time.Second / time.Duration(f.SampleRate)
}

// Source is a blocking producer of fixed-size PCM frames.
//
// Open must be called before Read. Close releases the underlying device and
// is safe to call more than once. Implementations are not required to be safe
// for concurrent use; a Source is owned by a single capture goroutine.
type Source interface {
	// Open acquires the device or file. A missing input device yields an error
	// wrapping types.ErrDevice.
	Open(ctx context.Context, f Format) error

	// Read blocks until one frame of f.FrameSize mono samples is available.
	// Transient faults wrap types.ErrIO and may be retried by calling Read
	// again. io.EOF signals that a finite source is exhausted.
	Read(ctx context.Context) ([]int16, error)

	// Close stops the stream and releases all resources.
	Close() error
}

// Frame is one captured block of samples with its measured energy.
type Frame struct {
	PCM    []int16
	Energy float64

	// Timestamp is the stream offset of the first sample.
	Timestamp time.Duration
}
