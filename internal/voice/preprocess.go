package voice

import "math"

// Preprocessor defaults.
const (
	DefaultCutoff      = 0.05 // fraction of Nyquist
	DefaultSubtraction = 0.5
	DefaultMaxGain     = 3.0
)

const int16Ceiling = 32767

// Preprocessor denoises and normalizes frames before recognition. It holds
// only immutable filter coefficients, so Process is a pure function of its
// arguments and a single Preprocessor may be shared.
type Preprocessor struct {
	b, a        [4]float64
	subtraction float64
	maxGain     float64
}

// PreprocessorOption configures a [Preprocessor].
type PreprocessorOption func(*Preprocessor)

// WithSubtraction sets the factor applied to the noise profile before it is
// subtracted.
func WithSubtraction(f float64) PreprocessorOption {
	return func(p *Preprocessor) { p.subtraction = f }
}

// WithMaxGain caps the normalization gain.
func WithMaxGain(g float64) PreprocessorOption {
	return func(p *Preprocessor) {
		if g > 0 {
			p.maxGain = g
		}
	}
}

// NewPreprocessor builds a Preprocessor with a 3rd-order Butterworth low-pass
// at cutoff (fraction of Nyquist, 0 < cutoff < 1).
func NewPreprocessor(cutoff float64, opts ...PreprocessorOption) *Preprocessor {
	if cutoff <= 0 || cutoff >= 1 {
		cutoff = DefaultCutoff
	}
	p := &Preprocessor{subtraction: DefaultSubtraction, maxGain: DefaultMaxGain}
	p.b, p.a = butterworth3(cutoff)
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process returns a new frame: low-pass filtered, noise-subtracted (clamped
// at zero), normalized toward the int16 ceiling with gain at most maxGain,
// and re-quantized by truncation with clipping at ±32767. A frame whose
// processed peak is zero is returned without gain. pcm and profile are not
// modified.
func (p *Preprocessor) Process(pcm []int16, profile NoiseProfile) []int16 {
	y := p.filter(pcm)

	var peak float64
	for i := range y {
		var noise float64
		if i < len(profile.Spectral) {
			noise = profile.Spectral[i]
		}
		y[i] = math.Max(y[i]-p.subtraction*noise, 0)
		peak = math.Max(peak, math.Abs(y[i]))
	}

	gain := 1.0
	if peak > 0 {
		gain = math.Min(int16Ceiling/peak, p.maxGain)
	}

	out := make([]int16, len(y))
	for i, v := range y {
		out[i] = quantize(v * gain)
	}
	return out
}

// filter runs the IIR in transposed direct form II from a zero state.
func (p *Preprocessor) filter(pcm []int16) []float64 {
	out := make([]float64, len(pcm))
	var z1, z2, z3 float64
	for i, s := range pcm {
		x := float64(s)
		y := p.b[0]*x + z1
		z1 = p.b[1]*x - p.a[1]*y + z2
		z2 = p.b[2]*x - p.a[2]*y + z3
		z3 = p.b[3]*x - p.a[3]*y
		out[i] = y
	}
	return out
}

func quantize(v float64) int16 {
	v = math.Trunc(v)
	switch {
	case v > int16Ceiling:
		return int16Ceiling
	case v < -int16Ceiling:
		return -int16Ceiling
	default:
		return int16(v)
	}
}

// butterworth3 designs a 3rd-order Butterworth low-pass with the bilinear
// transform and frequency prewarping. The cascade is a first-order section
// times a second-order section with Q = 1.
func butterworth3(cutoff float64) (b, a [4]float64) {
	k := math.Tan(math.Pi * cutoff / 2)

	// first-order section
	b1 := [2]float64{k / (1 + k), k / (1 + k)}
	a1 := [2]float64{1, (k - 1) / (k + 1)}

	// second-order section
	n := 1 / (1 + k + k*k)
	b2 := [3]float64{k * k * n, 2 * k * k * n, k * k * n}
	a2 := [3]float64{1, 2 * (k*k - 1) * n, (1 - k + k*k) * n}

	for i := range b1 {
		for j := range b2 {
			b[i+j] += b1[i] * b2[j]
			a[i+j] += a1[i] * a2[j]
		}
	}
	return b, a
}
