// Package portaudio implements [audio.Source] on top of the PortAudio C
// library, reading blocking int16 frames from a microphone.
//
// The library is initialised in Open and terminated in Close, so each Source
// owns exactly one PortAudio session. Device selection is by exact name; an
// empty name or "default" selects the system default input device.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithDevice selects the input device by its PortAudio name.
func WithDevice(name string) Option {
	return func(s *Source) {
		s.device = name
	}
}

// Source captures frames from a PortAudio input device.
type Source struct {
	device string

	mu          sync.Mutex
	stream      *pa.Stream
	buf         []int16
	channels    int
	initialized bool
}

// New returns an unopened microphone source.
func New(opts ...Option) *Source {
	s := &Source{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open initialises PortAudio, resolves the input device and starts a blocking
// input stream in f.
func (s *Source) Open(_ context.Context, f audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return errors.New("portaudio: source already open")
	}
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %v: %w", err, types.ErrDevice)
	}
	s.initialized = true

	dev, err := s.resolveDevice()
	if err != nil {
		s.terminateLocked()
		return err
	}
	if dev.MaxInputChannels < f.Channels {
		s.terminateLocked()
		return fmt.Errorf("portaudio: device %q has %d input channels, need %d: %w",
			dev.Name, dev.MaxInputChannels, f.Channels, types.ErrDevice)
	}

	s.channels = f.Channels
	s.buf = make([]int16, f.FrameSize*f.Channels)
	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   dev,
			Channels: f.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(f.SampleRate),
		FramesPerBuffer: f.FrameSize,
	}
	stream, err := pa.OpenStream(params, s.buf)
	if err != nil {
		s.terminateLocked()
		return fmt.Errorf("portaudio: open stream on %q: %v: %w", dev.Name, err, types.ErrDevice)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		s.terminateLocked()
		return fmt.Errorf("portaudio: start stream: %v: %w", err, types.ErrDevice)
	}
	s.stream = stream

	slog.Info("using audio device",
		"device", dev.Name,
		"sample_rate", f.SampleRate,
		"frame_size", f.FrameSize,
	)
	return nil
}

// Read blocks for one frame. Input overflow is not treated as a fault: the
// buffer still holds the most recent samples and is returned as-is.
func (s *Source) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil, fmt.Errorf("portaudio: read on closed source: %w", types.ErrIO)
	}
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, pa.InputOverflowed) {
			return nil, fmt.Errorf("portaudio: read: %v: %w", err, types.ErrIO)
		}
		slog.Debug("portaudio: input overflowed")
	}

	frame := make([]int16, len(s.buf))
	copy(frame, s.buf)
	return audio.Downmix(frame, s.channels), nil
}

// Close stops and closes the stream and terminates PortAudio. Safe to call
// more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: stop stream: %w", err))
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: close stream: %w", err))
		}
		s.stream = nil
	}
	if err := s.terminateLocked(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Source) terminateLocked() error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

func (s *Source) resolveDevice() (*pa.DeviceInfo, error) {
	if s.device == "" || s.device == "default" {
		dev, err := pa.DefaultInputDevice()
		if err != nil || dev == nil {
			return nil, fmt.Errorf("portaudio: no default input device: %v: %w", err, types.ErrDevice)
		}
		return dev, nil
	}
	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %v: %w", err, types.ErrDevice)
	}
	for _, dev := range devices {
		if dev.Name == s.device && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("portaudio: input device %q not found: %w", s.device, types.ErrDevice)
}

// Device describes an available input device.
type Device struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// ListInputDevices returns every device with at least one input channel.
func ListInputDevices() ([]Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %v: %w", err, types.ErrDevice)
	}
	defer pa.Terminate()

	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %v: %w", err, types.ErrDevice)
	}
	var defName string
	if def, err := pa.DefaultInputDevice(); err == nil && def != nil {
		defName = def.Name
	}
	var out []Device
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		out = append(out, Device{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defName,
		})
	}
	return out, nil
}
