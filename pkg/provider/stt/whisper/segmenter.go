package whisper

import "math"

// segmenter cuts a continuous frame stream into utterances using RMS energy.
// Leading silence is discarded; once speech has been buffered, a run of quiet
// audio at least silenceMs long, or a buffer longer than maxMs, completes the
// utterance.
type segmenter struct {
	threshold  float64
	silenceMs  int
	maxMs      int
	sampleRate int

	buf       []int16
	hadSpeech bool
	quietMs   int
}

func newSegmenter(s settings, sampleRate int) *segmenter {
	return &segmenter{
		threshold:  s.energyThreshold,
		silenceMs:  s.silenceThresholdMs,
		maxMs:      s.maxBufferDurationMs,
		sampleRate: sampleRate,
	}
}

// push adds a frame and returns the completed utterance, if any.
func (g *segmenter) push(pcm []int16) ([]int16, bool) {
	frameMs := len(pcm) * 1000 / g.sampleRate

	if rms(pcm) < g.threshold {
		if !g.hadSpeech {
			return nil, false
		}
		g.quietMs += frameMs
		g.buf = append(g.buf, pcm...)
		if g.quietMs >= g.silenceMs {
			return g.take(), true
		}
		return nil, false
	}

	g.hadSpeech = true
	g.quietMs = 0
	g.buf = append(g.buf, pcm...)
	if g.maxMs > 0 && g.bufferedMs() >= g.maxMs {
		return g.take(), true
	}
	return nil, false
}

// speaking reports whether speech is currently buffered.
func (g *segmenter) speaking() bool { return g.hadSpeech }

// pending returns the buffered audio without consuming it.
func (g *segmenter) pending() []int16 { return g.buf }

// take returns and clears the buffered utterance. Buffers without speech
// yield nil.
func (g *segmenter) take() []int16 {
	utt := g.buf
	had := g.hadSpeech
	g.buf = nil
	g.hadSpeech = false
	g.quietMs = 0
	if !had {
		return nil
	}
	return utt
}

func (g *segmenter) bufferedMs() int {
	return len(g.buf) * 1000 / g.sampleRate
}

// rms returns the root-mean-square amplitude of pcm.
func rms(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
