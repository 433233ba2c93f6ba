// Package app wires the RealTalk subsystems into a running translator.
//
// New builds the capture session, the glossary corrector, the translator and
// the configured sinks. Run streams microphone audio until the context is
// cancelled or a finite source ends. Shutdown releases everything in reverse
// order.
//
// For testing, inject doubles through the Providers struct and the functional
// options. When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/MrWong99/realtalk/internal/bus"
	"github.com/MrWong99/realtalk/internal/config"
	"github.com/MrWong99/realtalk/internal/health"
	"github.com/MrWong99/realtalk/internal/journal"
	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/internal/sink"
	"github.com/MrWong99/realtalk/internal/sink/discord"
	"github.com/MrWong99/realtalk/internal/transcript"
	"github.com/MrWong99/realtalk/internal/transcript/phonetic"
	"github.com/MrWong99/realtalk/internal/translate"
	"github.com/MrWong99/realtalk/internal/voice"
	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/llm"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
	"github.com/MrWong99/realtalk/pkg/types"
)

// glossaryBoost is the keyword weight sent to recognizers for glossary terms.
const glossaryBoost = 2.0

// Providers holds one value per backend slot. Populated by main.go via the
// config registry.
type Providers struct {
	Source audio.Source
	VAD    vad.Engine
	STT    stt.Provider
	LLM    llm.Provider
}

// App owns all subsystem lifetimes and runs the capture → translate pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	sessionID string
	src, tgt  types.Lang

	corrector  atomic.Pointer[transcript.Corrector]
	translator *translate.Translator
	sinks      sink.Fanout
	gate       *health.Gate
	metrics    *observe.Metrics
	display    io.Writer
	displayMu  sync.Mutex
	checkers   []health.Checker

	// sinksInjected is set when WithSinks replaced the configured sinks.
	sinksInjected bool

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSinks replaces the sinks New would build from the journal, bus and
// discord config sections.
func WithSinks(s ...sink.Sink) Option {
	return func(a *App) {
		a.sinks = append(sink.Fanout(nil), s...)
		a.sinksInjected = true
	}
}

// WithDisplay sets where translated lines are printed. Default: os.Stdout.
func WithDisplay(w io.Writer) Option {
	return func(a *App) { a.display = w }
}

// WithMetrics sets the metrics instruments. Default: the global meter.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGate sets the readiness gate opened once calibration completes.
func WithGate(g *health.Gate) Option {
	return func(a *App) { a.gate = g }
}

// WithSessionID fixes the session identifier. Default: a random UUID.
func WithSessionID(id string) Option {
	return func(a *App) { a.sessionID = id }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New validates the language pair, builds the corrector and the translator,
// and connects the configured sinks. Any sink that fails to connect aborts
// New and releases what was already opened.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	src, err := types.ParseLang(cfg.Language.Source)
	if err != nil {
		return nil, fmt.Errorf("app: language.source: %w", err)
	}
	tgt := src.Other()
	if cfg.Language.Target != "" {
		if tgt, err = types.ParseLang(cfg.Language.Target); err != nil {
			return nil, fmt.Errorf("app: language.target: %w", err)
		}
	}
	if providers == nil || providers.Source == nil || providers.VAD == nil || providers.STT == nil || providers.LLM == nil {
		return nil, fmt.Errorf("app: source, vad, stt and llm providers are required: %w", types.ErrConfig)
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		src:       src,
		tgt:       tgt,
		display:   os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gate == nil {
		a.gate = &health.Gate{}
	}
	a.checkers = append(a.checkers, a.gate.Checker("calibration"))

	a.corrector.Store(newCorrector(cfg.Language.Glossary))

	tr, err := translate.New(providers.LLM,
		translate.WithMaxChars(cfg.Translation.MaxChars),
		translate.WithCacheSize(cfg.Translation.CacheSize),
		translate.WithTemperature(cfg.Translation.Temperature),
		translate.WithTimeout(cfg.Translation.Timeout),
		translate.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.translator = tr

	if !a.sinksInjected {
		if err := a.initSinks(ctx); err != nil {
			a.closeSinks()
			return nil, err
		}
	}
	a.closers = append(a.closers, a.sinks.Close)
	// Backends holding native resources, such as a loaded whisper model.
	for _, p := range []any{providers.STT, providers.LLM} {
		if c, ok := p.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
	}
	return a, nil
}

// initSinks connects every sink with a config section.
func (a *App) initSinks(ctx context.Context) error {
	if dsn := a.cfg.Journal.PostgresDSN; dsn != "" {
		j, err := journal.Open(ctx, dsn)
		if err != nil {
			return fmt.Errorf("app: journal: %w", err)
		}
		a.sinks = append(a.sinks, j)
		a.checkers = append(a.checkers, health.Checker{Name: j.Name(), Check: j.Ping})
		slog.Info("journal connected")
	}

	if a.cfg.Bus.Enabled() {
		p, err := bus.Connect(ctx, bus.Config{
			URL:          a.cfg.Bus.NATSURL,
			Subject:      a.cfg.Bus.Subject,
			Token:        a.cfg.Bus.Token,
			Embedded:     a.cfg.Bus.Embedded,
			EmbeddedPort: a.cfg.Bus.EmbeddedPort,
		})
		if err != nil {
			return fmt.Errorf("app: bus: %w", err)
		}
		a.sinks = append(a.sinks, p)
		a.checkers = append(a.checkers, health.Checker{Name: p.Name(), Check: p.Check})
		slog.Info("bus connected", "url", p.ClientURL())
	}

	if a.cfg.Discord.Enabled() {
		d, err := discord.New(discord.Config{
			Token:     a.cfg.Discord.Token,
			ChannelID: a.cfg.Discord.ChannelID,
		})
		if err != nil {
			return fmt.Errorf("app: discord: %w", err)
		}
		a.sinks = append(a.sinks, d)
		slog.Info("discord sink enabled", "channel_id", a.cfg.Discord.ChannelID)
	}
	return nil
}

func newCorrector(glossary []string) *transcript.Corrector {
	if len(glossary) == 0 {
		return nil
	}
	return transcript.NewCorrector(phonetic.New(glossary))
}

// SessionID returns the identifier attached to every delivered translation.
func (a *App) SessionID() string { return a.sessionID }

// Checkers returns the readiness checks for the admin server.
func (a *App) Checkers() []health.Checker {
	return append([]health.Checker(nil), a.checkers...)
}

// ApplyConfig applies the hot-reloadable parts of a config change. Sections
// that need a restart are logged.
func (a *App) ApplyConfig(d config.ConfigDiff, next *config.Config) {
	if d.GlossaryChanged {
		a.corrector.Store(newCorrector(next.Language.Glossary))
		slog.Info("glossary reloaded", "terms", len(next.Language.Glossary))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run calibrates the source and streams until ctx is cancelled or the source
// is exhausted. Calibration and device failures are returned; everything
// after calibration is recovered per frame or per final.
func (a *App) Run(ctx context.Context) error {
	sess, err := voice.NewSession(voice.SessionConfig{
		Source: a.providers.Source,
		Format: audio.Format{
			SampleRate: a.cfg.Audio.SampleRate,
			Channels:   a.cfg.Audio.Channels,
			FrameSize:  a.cfg.Audio.FrameSize,
		},
		Lang: a.src,
		Calibrator: voice.NewCalibrator(
			voice.WithCalibrationFrames(a.cfg.Audio.CalibrationFrames),
			voice.WithMinThreshold(a.cfg.VAD.MinThreshold),
		),
		VAD:        a.providers.VAD,
		STT:        a.providers.STT,
		Keywords:   keywords(a.cfg.Language.Glossary),
		QueueDepth: a.cfg.Pipeline.QueueDepth,
		Metrics:    a.metrics,
		OnCalibrated: func(p voice.NoiseProfile) {
			slog.Info("calibration complete",
				"ambient", p.AmbientLevel,
				"variability", p.NoiseStd,
				"threshold", p.SpeechThreshold,
			)
			a.gate.Open()
		},
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	defer a.gate.Close()

	slog.Info("session starting",
		"session_id", a.sessionID,
		"source", a.src.Name(),
		"target", a.tgt.Name(),
		"auto_detect", a.cfg.Language.AutoDetect,
	)
	return a.pipeline(ctx, sess)
}

func keywords(glossary []string) []stt.KeywordBoost {
	if len(glossary) == 0 {
		return nil
	}
	out := make([]stt.KeywordBoost, 0, len(glossary))
	for _, g := range glossary {
		out = append(out, stt.KeywordBoost{Keyword: g, Boost: glossaryBoost})
	}
	return out
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown closes sinks in order. It respects the context deadline: if ctx
// expires before all closers finish, the remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = err
				return
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeSinks() {
	for _, c := range a.sinks {
		if err := c.Close(); err != nil {
			slog.Warn("closing sink after failed start", "sink", c.Name(), "err", err)
		}
	}
}
