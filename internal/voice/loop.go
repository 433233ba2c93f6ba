package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
	"github.com/MrWong99/realtalk/pkg/types"
)

// DefaultQueueDepth is the capacity of the frame queue between the capture
// and recognize stages.
const DefaultQueueDepth = 8

// CaptureLoop drives an opened source through preprocessing, VAD and
// recognition. It runs two stages connected by a bounded queue: capture reads
// and analyses frames, recognize feeds the recognizer and emits transcript
// events. A full queue blocks capture; frames are never dropped.
//
// The loop does not own the source, detector or recognizer; [Session] opens
// and closes them.
type CaptureLoop struct {
	src     audio.Source
	profile NoiseProfile
	pre     *Preprocessor
	det     vad.SessionHandle
	rec     stt.Recognizer

	format  audio.Format
	lang    types.Lang
	depth   int
	metrics *observe.Metrics
}

// LoopOption configures a [CaptureLoop].
type LoopOption func(*CaptureLoop)

// WithQueueDepth sets the frame queue capacity.
func WithQueueDepth(n int) LoopOption {
	return func(l *CaptureLoop) {
		if n > 0 {
			l.depth = n
		}
	}
}

// WithFormat sets the stream format used to timestamp frames.
func WithFormat(f audio.Format) LoopOption {
	return func(l *CaptureLoop) { l.format = f }
}

// WithLanguage tags emitted events with the recognizer language.
func WithLanguage(lang types.Lang) LoopOption {
	return func(l *CaptureLoop) { l.lang = lang }
}

// WithMetrics records loop metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) LoopOption {
	return func(l *CaptureLoop) { l.metrics = m }
}

// WithPreprocessor replaces the default preprocessor.
func WithPreprocessor(p *Preprocessor) LoopOption {
	return func(l *CaptureLoop) { l.pre = p }
}

// NewCaptureLoop wires a loop over the given collaborators.
func NewCaptureLoop(src audio.Source, profile NoiseProfile, det vad.SessionHandle, rec stt.Recognizer, opts ...LoopOption) *CaptureLoop {
	l := &CaptureLoop{
		src:     src,
		profile: profile,
		det:     det,
		rec:     rec,
		format:  audio.DefaultFormat(),
		depth:   DefaultQueueDepth,
	}
	for _, o := range opts {
		o(l)
	}
	if l.pre == nil {
		l.pre = NewPreprocessor(DefaultCutoff)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	return l
}

type frameItem struct {
	pcm []int16
	at  time.Duration
}

// Run processes frames until ctx is cancelled, the source reports io.EOF, or
// a fatal error occurs. Transient read errors ([types.ErrIO]) are logged and
// the frame skipped. At end of stream the recognizer is flushed so pending
// speech still produces a final. Run closes out before returning and returns
// nil on cancellation or end of stream.
func (l *CaptureLoop) Run(ctx context.Context, out chan<- types.TranscriptEvent) error {
	defer close(out)

	frames := make(chan frameItem, l.depth)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		return l.capture(gctx, frames)
	})
	g.Go(func() error {
		return l.recognize(gctx, frames, out)
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (l *CaptureLoop) capture(ctx context.Context, frames chan<- frameItem) error {
	frameDur := l.format.FrameDuration()
	var offset time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pcm, err := l.src.Read(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			slog.Info("audio stream ended", "duration", offset)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, types.ErrIO):
			l.metrics.ReadErrors.Add(ctx, 1)
			slog.Warn("skipping audio frame", "err", err)
			continue
		default:
			return fmt.Errorf("voice: read frame: %w", err)
		}

		at := offset
		offset += frameDur
		l.metrics.FramesCaptured.Add(ctx, 1)

		energy := audio.Energy(pcm)
		clean := l.pre.Process(pcm, l.profile)

		ev, err := l.det.ProcessFrame(audio.Frame{PCM: pcm, Energy: energy, Timestamp: at})
		if err != nil {
			return fmt.Errorf("voice: vad: %w", err)
		}
		l.reportVAD(ctx, ev, at)

		select {
		case frames <- frameItem{pcm: clean, at: at}:
			l.metrics.QueueAdd(ctx, "frames", 1)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *CaptureLoop) reportVAD(ctx context.Context, ev vad.VADEvent, at time.Duration) {
	switch ev.Type {
	case vad.VADSpeechStart:
		l.metrics.RecordVADTransition(ctx, "start")
		slog.Info("speech started", "at", at, "energy", round2(ev.Energy), "threshold", round2(ev.Threshold))
	case vad.VADSpeechEnd:
		l.metrics.RecordVADTransition(ctx, "end")
		slog.Info("pause detected", "at", at, "silence_limit", ev.SilenceLimit)
	}
}

func (l *CaptureLoop) recognize(ctx context.Context, frames <-chan frameItem, out chan<- types.TranscriptEvent) error {
	var (
		last string
		at   time.Duration
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return l.flush(ctx, at, out)
			}
			l.metrics.QueueAdd(ctx, "frames", -1)
			at = f.at

			start := time.Now()
			tr, err := l.rec.Accept(ctx, f.pcm)
			l.metrics.RecognizerDuration.Record(ctx, time.Since(start).Seconds())
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				l.metrics.RecognizerErrors.Add(ctx, 1)
				slog.Warn("recognizer failed on frame", "at", f.at, "err", err)
				continue
			}
			if err := l.handle(ctx, tr, f.at, &last, out); err != nil {
				return err
			}
		}
	}
}

// handle applies the partial/final rules to one recognizer result. A
// non-empty final is emitted and clears the last partial. A non-empty partial
// is emitted only when it differs from the last one.
func (l *CaptureLoop) handle(ctx context.Context, tr stt.Transcript, at time.Duration, last *string, out chan<- types.TranscriptEvent) error {
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return nil
	}
	if tr.IsFinal {
		*last = ""
		return l.emit(ctx, out, types.TranscriptEvent{Kind: types.Final, Text: text, Lang: l.lang, At: at})
	}
	if text == *last {
		return nil
	}
	*last = text
	return l.emit(ctx, out, types.TranscriptEvent{Kind: types.Partial, Text: text, Lang: l.lang, At: at})
}

func (l *CaptureLoop) flush(ctx context.Context, at time.Duration, out chan<- types.TranscriptEvent) error {
	tr, err := l.rec.Flush(ctx)
	if err != nil {
		slog.Warn("recognizer flush failed", "err", err)
		return nil
	}
	tr.IsFinal = true
	var last string
	return l.handle(ctx, tr, at, &last, out)
}

func (l *CaptureLoop) emit(ctx context.Context, out chan<- types.TranscriptEvent, ev types.TranscriptEvent) error {
	l.metrics.RecordTranscript(ctx, ev.Kind.String())
	if ev.Kind == types.Partial {
		slog.Debug("partial transcript", "text", ev.Text)
	}
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
