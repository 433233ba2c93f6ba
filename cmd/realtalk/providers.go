package main

import (
	"fmt"
	"log/slog"
	"os"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/realtalk/internal/app"
	"github.com/MrWong99/realtalk/internal/config"
	"github.com/MrWong99/realtalk/internal/resilience"
	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/audio/portaudio"
	"github.com/MrWong99/realtalk/pkg/audio/wavfile"
	"github.com/MrWong99/realtalk/pkg/provider/llm"
	"github.com/MrWong99/realtalk/pkg/provider/llm/anyllm"
	"github.com/MrWong99/realtalk/pkg/provider/llm/openai"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/provider/stt/deepgram"
	"github.com/MrWong99/realtalk/pkg/provider/stt/whisper"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
	"github.com/MrWong99/realtalk/pkg/provider/vad/adaptive"
	"github.com/MrWong99/realtalk/pkg/provider/vad/webrtc"
)

// registerBuiltins wires every built-in factory into reg.
func registerBuiltins(reg *config.Registry) {
	// ── Audio ─────────────────────────────────────────────────────────────────
	reg.RegisterSource(config.SourcePortAudio, func(c config.AudioConfig) (audio.Source, error) {
		var opts []portaudio.Option
		if c.Device != "" {
			opts = append(opts, portaudio.WithDevice(c.Device))
		}
		return portaudio.New(opts...), nil
	})
	reg.RegisterSource(config.SourceWAV, func(c config.AudioConfig) (audio.Source, error) {
		var opts []wavfile.Option
		if c.Realtime {
			opts = append(opts, wavfile.WithRealtime())
		}
		return wavfile.New(c.Path, opts...), nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────
	reg.RegisterVAD(config.VADAdaptive, func(config.VADConfig) (vad.Engine, error) {
		return adaptive.New(), nil
	})
	reg.RegisterVAD(config.VADWebRTC, func(c config.VADConfig) (vad.Engine, error) {
		return webrtc.New(webrtc.WithMode(c.WebRTCMode)), nil
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		if org := optString(e.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		key := e.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return openai.New(key, e.Model, opts...)
	})
	// Every other backend goes through any-llm with an optional key and URL.
	for _, name := range []string{"anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		reg.RegisterLLM(name, func(e config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(name, e.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(e.BaseURL))
		}
		if ms := optInt(e.Options, "endpointing_ms"); ms > 0 {
			opts = append(opts, deepgram.WithEndpointing(ms))
		}
		return deepgram.New(e.APIKey, opts...)
	})
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		opts = append(opts, whisperTuning(e.Options)...)
		return whisper.New(e.BaseURL, opts...)
	})
	reg.RegisterSTT("whisper-native", func(e config.ProviderEntry) (stt.Provider, error) {
		path := e.Model
		if path == "" {
			path = optString(e.Options, "model_path")
		}
		return whisper.NewNative(path, whisperTuning(e.Options)...)
	})
}

// whisperTuning maps the optional endpointing knobs shared by both whisper
// backends.
func whisperTuning(opts map[string]any) []whisper.Option {
	var out []whisper.Option
	if ms := optInt(opts, "silence_ms"); ms > 0 {
		out = append(out, whisper.WithSilenceThresholdMs(ms))
	}
	if ms := optInt(opts, "max_buffer_ms"); ms > 0 {
		out = append(out, whisper.WithMaxBufferDurationMs(ms))
	}
	if ms := optInt(opts, "partial_interval_ms"); ms > 0 {
		out = append(out, whisper.WithPartialIntervalMs(ms))
	}
	return out
}

// buildProviders instantiates the configured backends. Fallback entries are
// chained behind the primary with a circuit breaker each.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	var err error

	if ps.Source, err = reg.CreateSource(cfg.Audio); err != nil {
		return nil, fmt.Errorf("create audio source %q: %w", cfg.Audio.Source, err)
	}
	if ps.VAD, err = reg.CreateVAD(cfg.VAD); err != nil {
		return nil, fmt.Errorf("create vad engine %q: %w", cfg.VAD.Engine, err)
	}

	primarySTT, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = primarySTT
	if len(cfg.Providers.STTFallback) > 0 {
		chain := resilience.NewSTTFallback(cfg.Providers.STT.Name, primarySTT, resilience.BreakerConfig{Name: "stt"})
		for _, e := range cfg.Providers.STTFallback {
			p, err := reg.CreateSTT(e)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", e.Name, err)
			}
			chain.Add(e.Name, p)
		}
		ps.STT = chain
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name, "fallbacks", len(cfg.Providers.STTFallback))

	primaryLLM, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = primaryLLM
	if len(cfg.Providers.LLMFallback) > 0 {
		chain := resilience.NewLLMFallback(primaryLLM, resilience.BreakerConfig{Name: "llm"})
		for _, e := range cfg.Providers.LLMFallback {
			p, err := reg.CreateLLM(e)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", e.Name, err)
			}
			chain.Add(p)
		}
		ps.LLM = chain
	}
	slog.Info("provider created", "kind", "llm", "name", ps.LLM.Name(), "model", cfg.Providers.LLM.Model)

	return ps, nil
}

// optString extracts a string from a provider Options map. Returns "" if the
// key is absent or not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer from a provider Options map. YAML decodes
// integers as int.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
