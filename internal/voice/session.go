package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
	"github.com/MrWong99/realtalk/pkg/types"
)

// SessionConfig bundles the collaborators of a [Session].
type SessionConfig struct {
	Source     audio.Source
	Format     audio.Format
	Lang       types.Lang
	Calibrator *Calibrator
	VAD        vad.Engine
	STT        stt.Provider
	Keywords   []stt.KeywordBoost
	QueueDepth int
	Metrics    *observe.Metrics

	// OnCalibrated, when set, is called once with the measured profile before
	// streaming starts.
	OnCalibrated func(NoiseProfile)
}

// Session is one capture session: open, calibrate, stream, release.
type Session struct {
	cfg SessionConfig
}

// NewSession validates cfg and fills defaults.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Source == nil || cfg.VAD == nil || cfg.STT == nil {
		return nil, fmt.Errorf("voice: source, vad and stt are required: %w", types.ErrConfig)
	}
	if !cfg.Lang.IsValid() {
		return nil, fmt.Errorf("voice: language %q: %w", cfg.Lang, types.ErrConfig)
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.DefaultFormat()
	}
	if cfg.Calibrator == nil {
		cfg.Calibrator = NewCalibrator()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Session{cfg: cfg}, nil
}

// Run opens the source, calibrates, and streams transcript events into out
// until ctx is cancelled or the source ends. out is closed when Run returns.
// The source, detector and recognizer are released on every exit path.
func (s *Session) Run(ctx context.Context, out chan<- types.TranscriptEvent) error {
	c := s.cfg
	started := false
	defer func() {
		if !started {
			close(out)
		}
	}()

	if err := c.Source.Open(ctx, c.Format); err != nil {
		return fmt.Errorf("voice: open audio source: %w", err)
	}
	defer func() {
		if cerr := c.Source.Close(); cerr != nil {
			slog.Warn("closing audio source", "err", cerr)
		}
	}()

	slog.Info("calibrating, please stay quiet", "frames", c.Calibrator.Frames())
	profile, err := c.Calibrator.Calibrate(ctx, c.Source)
	if err != nil {
		return err
	}
	c.Metrics.RecordCalibration(ctx, profile.AmbientLevel, profile.SpeechThreshold)
	if c.OnCalibrated != nil {
		c.OnCalibrated(profile)
	}

	det, err := c.VAD.NewSession(profile.VADConfig(c.Format.SampleRate, c.Format.FrameSize))
	if err != nil {
		return fmt.Errorf("voice: start vad: %w", err)
	}
	defer det.Close()

	rec, err := c.STT.NewRecognizer(ctx, stt.StreamConfig{
		SampleRate: c.Format.SampleRate,
		Language:   string(c.Lang),
		Keywords:   c.Keywords,
	})
	if err != nil {
		if !errors.Is(err, types.ErrModel) {
			err = fmt.Errorf("%v: %w", err, types.ErrModel)
		}
		return fmt.Errorf("voice: start recognizer: %w", err)
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			slog.Warn("closing recognizer", "err", cerr)
		}
	}()

	slog.Info("listening", "language", c.Lang.Name())
	loop := NewCaptureLoop(c.Source, profile, det, rec,
		WithFormat(c.Format),
		WithLanguage(c.Lang),
		WithQueueDepth(c.QueueDepth),
		WithMetrics(c.Metrics),
	)
	started = true
	return loop.Run(ctx, out)
}
