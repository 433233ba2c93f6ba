// Package wavfile implements [audio.Source] by replaying a RIFF/WAVE file.
//
// The file is decoded with go-audio/wav, downmixed to mono, resampled to the
// requested rate and cut into fixed frames. Reads return io.EOF once the file
// is exhausted; the final short frame is zero-padded. With [WithRealtime] each
// Read is paced to the frame's wall-clock duration so that a recording
// behaves like a live microphone.
package wavfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

const decodeChunk = 4096

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithRealtime paces reads to the frame duration.
func WithRealtime() Option {
	return func(s *Source) {
		s.realtime = true
	}
}

// Source replays a WAV file as fixed-size frames.
type Source struct {
	path     string
	realtime bool

	mu       sync.Mutex
	file     *os.File
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	framer   *audio.Framer
	format   audio.Format
	srcRate  int
	srcChans int
	depth    int
	eof      bool
	next     time.Time
}

// New returns an unopened source for the file at path.
func New(path string, opts ...Option) *Source {
	s := &Source{path: path}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens and validates the file. A missing or unreadable file is reported
// as a device error since it plays the role of the input device.
func (s *Source) Open(_ context.Context, f audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return errors.New("wavfile: source already open")
	}
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("wavfile: open %s: %v: %w", s.path, err, types.ErrDevice)
	}
	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		file.Close()
		return fmt.Errorf("wavfile: %s is not a valid WAV file: %w", s.path, types.ErrDevice)
	}
	if err := dec.FwdToPCM(); err != nil {
		file.Close()
		return fmt.Errorf("wavfile: seek to PCM in %s: %v: %w", s.path, err, types.ErrDevice)
	}

	s.file = file
	s.dec = dec
	s.format = f
	s.srcRate = int(dec.SampleRate)
	s.srcChans = int(dec.NumChans)
	s.depth = int(dec.BitDepth)
	s.framer = audio.NewFramer(f.FrameSize)
	s.buf = &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: s.srcChans, SampleRate: s.srcRate},
		Data:   make([]int, decodeChunk*max(s.srcChans, 1)),
	}
	s.eof = false
	s.next = time.Time{}
	return nil
}

// Read returns the next frame or io.EOF when the file is exhausted.
func (s *Source) Read(ctx context.Context) ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dec == nil {
		return nil, fmt.Errorf("wavfile: read on closed source: %w", types.ErrIO)
	}

	frame, err := s.nextFrameLocked()
	if err != nil {
		return nil, err
	}
	if s.realtime {
		if err := s.paceLocked(ctx); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func (s *Source) nextFrameLocked() ([]int16, error) {
	for {
		if frame, ok := s.framer.Next(); ok {
			return frame, nil
		}
		if s.eof {
			if frame, ok := s.framer.Drain(); ok {
				return frame, nil
			}
			return nil, io.EOF
		}
		n, err := s.dec.PCMBuffer(s.buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("wavfile: decode: %v: %w", err, types.ErrIO)
		}
		if n == 0 || errors.Is(err, io.EOF) {
			s.eof = true
		}
		if n > 0 {
			s.framer.Write(s.convert(s.buf.Data[:n]))
		}
	}
}

// convert scales decoded integers to int16, downmixes and resamples.
func (s *Source) convert(data []int) []int16 {
	pcm := make([]int16, len(data))
	for i, v := range data {
		switch {
		case s.depth == 8:
			v = (v - 128) << 8
		case s.depth > 16:
			v >>= s.depth - 16
		}
		pcm[i] = int16(max(min(v, 32767), -32768))
	}
	pcm = audio.Downmix(pcm, s.srcChans)
	return audio.Resample(pcm, s.srcRate, s.format.SampleRate)
}

func (s *Source) paceLocked(ctx context.Context) error {
	now := time.Now()
	if s.next.IsZero() {
		s.next = now
	}
	s.next = s.next.Add(s.format.FrameDuration())
	wait := s.next.Sub(now)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close closes the underlying file. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.dec = nil
	if err != nil {
		return fmt.Errorf("wavfile: close: %w", err)
	}
	return nil
}
