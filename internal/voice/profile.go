// Package voice turns a raw audio source into transcript events.
//
// A [Session] owns one microphone (or replayed file) for its lifetime: it
// opens the source, measures the room with a [Calibrator], then hands the
// resulting [NoiseProfile] to a [CaptureLoop] that denoises frames with a
// [Preprocessor], tracks speech with a VAD session and feeds a streaming
// recognizer. The source is closed on every exit path.
package voice

import "github.com/MrWong99/realtalk/pkg/provider/vad"

// MinSpeechThreshold is the floor applied to the calibrated speech threshold,
// on the 16-bit PCM amplitude scale.
const MinSpeechThreshold = 300.0

// NoiseProfile is the ambient-noise snapshot measured during calibration. A
// profile is never mutated after calibration; refreshing means replacing it.
type NoiseProfile struct {
	// AmbientLevel is the mean frame energy of the calibration window.
	AmbientLevel float64

	// NoiseStd is the population standard deviation of those energies.
	NoiseStd float64

	// SpeechThreshold is max(AmbientLevel+2·NoiseStd, MinSpeechThreshold).
	SpeechThreshold float64

	// VADThreshold is 0.7·SpeechThreshold. It is reported but does not gate
	// detection.
	VADThreshold float64

	// Spectral is the per-sample-index mean magnitude used for noise
	// subtraction.
	Spectral []float64
}

// VADConfig seeds a VAD session from the profile.
func (p NoiseProfile) VADConfig(sampleRate, frameSize int) vad.Config {
	return vad.Config{
		SampleRate:      sampleRate,
		FrameSize:       frameSize,
		AmbientLevel:    p.AmbientLevel,
		NoiseStd:        p.NoiseStd,
		SpeechThreshold: p.SpeechThreshold,
	}
}
