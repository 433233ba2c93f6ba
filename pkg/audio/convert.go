package audio

import (
	"encoding/binary"
	"math"
)

// Energy returns the mean absolute amplitude of pcm. An empty frame has zero
// energy.
func Energy(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(pcm))
}

// Int16ToBytes serialises samples as little-endian PCM.
func Int16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes little-endian PCM. A trailing odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Int16ToFloat32 maps samples to [-1.0, 1.0).
func Int16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Downmix averages interleaved multi-channel samples into mono. Mono input is
// returned unchanged.
func Downmix(interleaved []int16, channels int) []int16 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]int16, frames)
	for i := range frames {
		var sum int32
		for c := range channels {
			sum += int32(interleaved[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. Equal or invalid rates return the input unchanged.
func Resample(pcm []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) == 0 {
		return pcm
	}
	n := int(int64(len(pcm)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := pcm[idx]
		s1 := s0
		if idx+1 < len(pcm) {
			s1 = pcm[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

// Framer accumulates an arbitrary-length sample stream and cuts it into
// fixed-size frames. Not safe for concurrent use.
type Framer struct {
	size int
	buf  []int16
}

// NewFramer returns a Framer producing frames of size samples.
func NewFramer(size int) *Framer {
	return &Framer{size: size, buf: make([]int16, 0, size*2)}
}

// Write appends samples to the internal buffer.
func (f *Framer) Write(samples []int16) {
	f.buf = append(f.buf, samples...)
}

// Next returns the next complete frame, if any.
func (f *Framer) Next() ([]int16, bool) {
	if len(f.buf) < f.size {
		return nil, false
	}
	frame := make([]int16, f.size)
	copy(frame, f.buf[:f.size])
	f.buf = append(f.buf[:0], f.buf[f.size:]...)
	return frame, true
}

// Drain returns the buffered remainder zero-padded to a full frame, or false
// when nothing is buffered.
func (f *Framer) Drain() ([]int16, bool) {
	if len(f.buf) == 0 {
		return nil, false
	}
	frame := make([]int16, f.size)
	copy(frame, f.buf)
	f.buf = f.buf[:0]
	return frame, true
}

// Buffered returns the number of samples waiting for a full frame.
func (f *Framer) Buffered() int { return len(f.buf) }
