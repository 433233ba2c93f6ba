package whisper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/types"
)

const (
	// defaultEnergyThreshold is the RMS level (16-bit PCM units) below which
	// audio counts as silence.
	defaultEnergyThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000
)

var errClosed = errors.New("whisper: recognizer is closed")

// Option is a functional option shared by [Provider] and [NativeProvider].
type Option func(*settings)

type settings struct {
	model               string
	language            string
	sampleRate          int
	energyThreshold     float64
	silenceThresholdMs  int
	maxBufferDurationMs int
	partialIntervalMs   int
}

func defaultSettings() settings {
	return settings{
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		energyThreshold:     defaultEnergyThreshold,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
}

// WithModel sets the model name forwarded to the whisper server. When empty
// the server uses whichever model it was started with. Ignored by the native
// provider, which loads its model from a file.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithLanguage sets the default language code. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *settings) { s.language = lang }
}

// WithSampleRate sets the default sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(s *settings) { s.sampleRate = rate }
}

// WithEnergyThreshold sets the RMS level below which audio counts as silence.
// Defaults to 300.
func WithEnergyThreshold(rms float64) Option {
	return func(s *settings) { s.energyThreshold = rms }
}

// WithSilenceThresholdMs sets the trailing silence that completes an
// utterance. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(s *settings) { s.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs forces an utterance to complete once this much
// audio is buffered. Defaults to 10 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(s *settings) { s.maxBufferDurationMs = ms }
}

// WithPartialIntervalMs enables interim results: while speech is buffered,
// the pending audio is transcribed every ms of new input and reported as a
// partial. Zero (the default) disables partials.
func WithPartialIntervalMs(ms int) Option {
	return func(s *settings) { s.partialIntervalMs = ms }
}

// transcribeFunc runs batch inference on one mono utterance.
type transcribeFunc func(ctx context.Context, pcm []int16, lang string) (string, error)

// recognizer adapts a batch transcriber to the frame-by-frame
// [stt.Recognizer] contract.
type recognizer struct {
	seg        *segmenter
	lang       string
	sampleRate int
	transcribe transcribeFunc

	partialEvery int // samples between partials, 0 = off
	sincePartial int
	closed       bool
}

var _ stt.Recognizer = (*recognizer)(nil)

func newRecognizer(s settings, cfg stt.StreamConfig, fn transcribeFunc) *recognizer {
	lang := cfg.Language
	if lang == "" {
		lang = s.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = s.sampleRate
	}
	return &recognizer{
		seg:          newSegmenter(s, sr),
		lang:         lang,
		sampleRate:   sr,
		transcribe:   fn,
		partialEvery: s.partialIntervalMs * sr / 1000,
	}
}

// Accept implements [stt.Recognizer].
func (r *recognizer) Accept(ctx context.Context, pcm []int16) (stt.Transcript, error) {
	if r.closed {
		return stt.Transcript{}, errClosed
	}
	if utt, ok := r.seg.push(pcm); ok {
		return r.finalize(ctx, utt)
	}
	if r.partialEvery <= 0 || !r.seg.speaking() {
		return stt.Transcript{}, nil
	}
	r.sincePartial += len(pcm)
	if r.sincePartial < r.partialEvery {
		return stt.Transcript{}, nil
	}
	r.sincePartial = 0
	text, err := r.transcribe(ctx, r.seg.pending(), r.lang)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: partial: %w: %w", types.ErrModel, err)
	}
	return stt.Transcript{Text: text, Duration: r.duration(len(r.seg.pending()))}, nil
}

// Flush implements [stt.Recognizer].
func (r *recognizer) Flush(ctx context.Context) (stt.Transcript, error) {
	if r.closed {
		return stt.Transcript{}, errClosed
	}
	return r.finalize(ctx, r.seg.take())
}

func (r *recognizer) finalize(ctx context.Context, utt []int16) (stt.Transcript, error) {
	r.sincePartial = 0
	if len(utt) == 0 {
		return stt.Transcript{IsFinal: true}, nil
	}
	text, err := r.transcribe(ctx, utt, r.lang)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: final: %w: %w", types.ErrModel, err)
	}
	return stt.Transcript{Text: text, IsFinal: true, Duration: r.duration(len(utt))}, nil
}

func (r *recognizer) duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(r.sampleRate)
}

// Close implements [stt.Recognizer]. Buffered audio is discarded; call Flush
// first to keep it.
func (r *recognizer) Close() error {
	r.closed = true
	return nil
}
