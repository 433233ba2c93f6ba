package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/types"
)

// DefaultCalibrationFrames is about two seconds of 4096-sample frames at 16 kHz.
const DefaultCalibrationFrames = 8

// Calibrator measures ambient noise from the first frames of a source.
type Calibrator struct {
	frames       int
	minThreshold float64
}

// CalibratorOption configures a [Calibrator].
type CalibratorOption func(*Calibrator)

// WithCalibrationFrames sets how many frames are sampled. Values below 1 are
// ignored.
func WithCalibrationFrames(n int) CalibratorOption {
	return func(c *Calibrator) {
		if n > 0 {
			c.frames = n
		}
	}
}

// WithMinThreshold overrides [MinSpeechThreshold].
func WithMinThreshold(v float64) CalibratorOption {
	return func(c *Calibrator) {
		if v > 0 {
			c.minThreshold = v
		}
	}
}

// NewCalibrator returns a Calibrator with the default window.
func NewCalibrator(opts ...CalibratorOption) *Calibrator {
	c := &Calibrator{frames: DefaultCalibrationFrames, minThreshold: MinSpeechThreshold}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Frames returns the number of frames the calibrator samples.
func (c *Calibrator) Frames() int { return c.frames }

// Calibrate reads the calibration window from an opened source, assuming the
// room is silent. Any read failure aborts calibration: errors already
// classified as [types.ErrDevice] are kept, everything else is reported as
// [types.ErrIO]. There is no retry.
func (c *Calibrator) Calibrate(ctx context.Context, src audio.Source) (NoiseProfile, error) {
	energies := make([]float64, 0, c.frames)
	var spectral []float64

	for i := 0; i < c.frames; i++ {
		if err := ctx.Err(); err != nil {
			return NoiseProfile{}, err
		}
		pcm, err := src.Read(ctx)
		if err != nil {
			return NoiseProfile{}, calibrationError(ctx, i, err)
		}
		energies = append(energies, audio.Energy(pcm))
		spectral = foldMagnitude(spectral, pcm)
	}

	p := ProfileFromEnergies(energies, c.minThreshold)
	p.Spectral = spectral

	slog.Info("noise calibration complete",
		"frames", c.frames,
		"ambient_level", round2(p.AmbientLevel),
		"noise_std", round2(p.NoiseStd),
		"speech_threshold", round2(p.SpeechThreshold),
		"vad_threshold", round2(p.VADThreshold),
	)
	return p, nil
}

func calibrationError(ctx context.Context, frame int, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, types.ErrDevice):
		return fmt.Errorf("voice: calibration frame %d: %w", frame, err)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("voice: calibration: source ended after %d frames: %w", frame, types.ErrIO)
	case errors.Is(err, types.ErrIO):
		return fmt.Errorf("voice: calibration frame %d: %w", frame, err)
	default:
		return fmt.Errorf("voice: calibration frame %d: %v: %w", frame, err, types.ErrIO)
	}
}

// foldMagnitude folds |pcm| into the running profile. The first frame seeds
// it; later frames average pairwise with it, aligned by sample index.
func foldMagnitude(profile []float64, pcm []int16) []float64 {
	if profile == nil {
		profile = make([]float64, len(pcm))
		for i, s := range pcm {
			profile[i] = math.Abs(float64(s))
		}
		return profile
	}
	n := min(len(profile), len(pcm))
	for i := 0; i < n; i++ {
		profile[i] = (profile[i] + math.Abs(float64(pcm[i]))) / 2
	}
	return profile
}

// ProfileFromEnergies derives the threshold fields of a [NoiseProfile] from
// calibration frame energies. The speech threshold never drops below floor.
func ProfileFromEnergies(energies []float64, floor float64) NoiseProfile {
	var mean, std float64
	if n := float64(len(energies)); n > 0 {
		for _, e := range energies {
			mean += e
		}
		mean /= n
		for _, e := range energies {
			std += (e - mean) * (e - mean)
		}
		std = math.Sqrt(std / n)
	}
	threshold := math.Max(mean+2*std, floor)
	return NoiseProfile{
		AmbientLevel:    mean,
		NoiseStd:        std,
		SpeechThreshold: threshold,
		VADThreshold:    0.7 * threshold,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
