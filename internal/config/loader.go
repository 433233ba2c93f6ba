package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/realtalk/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind. [Validate]
// warns about names outside this list; they may still be registered by a
// custom build.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram", "whisper", "whisper-native"},
}

// Defaults.
const (
	DefaultSampleRate        = 16000
	DefaultChannels          = 1
	DefaultFrameSize         = 4096
	DefaultCalibrationFrames = 8
	DefaultMinThreshold      = 300.0
	DefaultQueueDepth        = 8
	DefaultMaxChars          = 500
	DefaultCacheSize         = 256
	DefaultTemperature       = 0.2
	DefaultTimeout           = 30 * time.Second
	DefaultLogMaxSizeMB      = 50
	DefaultWebRTCMode        = 2
)

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %v: %w", path, err, types.ErrConfig)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates. Unknown
// keys are rejected. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %v: %w", err, types.ErrConfig)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *Config) {
	setDefault(&cfg.Server.LogLevel, LogInfo)
	setDefault(&cfg.Server.LogMaxSizeMB, DefaultLogMaxSizeMB)

	setDefault(&cfg.Audio.Source, SourcePortAudio)
	setDefault(&cfg.Audio.SampleRate, DefaultSampleRate)
	setDefault(&cfg.Audio.Channels, DefaultChannels)
	setDefault(&cfg.Audio.FrameSize, DefaultFrameSize)
	setDefault(&cfg.Audio.CalibrationFrames, DefaultCalibrationFrames)

	setDefault(&cfg.VAD.Engine, VADAdaptive)
	setDefault(&cfg.VAD.MinThreshold, DefaultMinThreshold)
	setDefault(&cfg.VAD.WebRTCMode, DefaultWebRTCMode)

	setDefault(&cfg.Language.Source, string(types.Hindi))
	setDefault(&cfg.Pipeline.QueueDepth, DefaultQueueDepth)

	setDefault(&cfg.Translation.MaxChars, DefaultMaxChars)
	setDefault(&cfg.Translation.CacheSize, DefaultCacheSize)
	setDefault(&cfg.Translation.Temperature, DefaultTemperature)
	setDefault(&cfg.Translation.Timeout, DefaultTimeout)
}

func setDefault[T comparable](field *T, v T) {
	var zero T
	if *field == zero {
		*field = v
	}
}

// Validate checks cfg for coherence. All failures are joined into one error
// wrapping [types.ErrConfig].
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	switch cfg.Audio.Source {
	case SourcePortAudio:
	case SourceWAV:
		if cfg.Audio.Path == "" {
			errs = append(errs, errors.New("audio.path is required when audio.source is wav"))
		}
	default:
		errs = append(errs, fmt.Errorf("audio.source %q is invalid; valid values: portaudio, wav", cfg.Audio.Source))
	}
	if cfg.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is below 8000", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [1, 2]", cfg.Audio.Channels))
	}
	if cfg.Audio.FrameSize < 160 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d is below 160", cfg.Audio.FrameSize))
	}
	if cfg.Audio.CalibrationFrames < 1 {
		errs = append(errs, fmt.Errorf("audio.calibration_frames %d must be positive", cfg.Audio.CalibrationFrames))
	}

	switch cfg.VAD.Engine {
	case VADAdaptive:
	case VADWebRTC:
		if cfg.VAD.WebRTCMode < 0 || cfg.VAD.WebRTCMode > 3 {
			errs = append(errs, fmt.Errorf("vad.webrtc_mode %d is out of range [0, 3]", cfg.VAD.WebRTCMode))
		}
	default:
		errs = append(errs, fmt.Errorf("vad.engine %q is invalid; valid values: adaptive, webrtc", cfg.VAD.Engine))
	}
	if cfg.VAD.MinThreshold < 0 {
		errs = append(errs, fmt.Errorf("vad.min_threshold %.1f must not be negative", cfg.VAD.MinThreshold))
	}

	if _, err := types.ParseLang(cfg.Language.Source); err != nil {
		errs = append(errs, fmt.Errorf("language.source: %v", err))
	}
	if cfg.Language.Target != "" {
		if _, err := types.ParseLang(cfg.Language.Target); err != nil {
			errs = append(errs, fmt.Errorf("language.target: %v", err))
		}
	}

	if cfg.Pipeline.QueueDepth < 1 {
		errs = append(errs, fmt.Errorf("pipeline.queue_depth %d must be positive", cfg.Pipeline.QueueDepth))
	}
	if cfg.Translation.MaxChars < 1 {
		errs = append(errs, fmt.Errorf("translation.max_chars %d must be positive", cfg.Translation.MaxChars))
	}
	if cfg.Translation.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("translation.cache_size %d must not be negative", cfg.Translation.CacheSize))
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, e := range cfg.Providers.STTFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallback[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}
	for i, e := range cfg.Providers.LLMFallback {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallback[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}

	if cfg.Discord.Token != "" && cfg.Discord.ChannelID == "" {
		errs = append(errs, errors.New("discord.channel_id is required when discord.token is set"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", types.ErrConfig, errors.Join(errs...))
}

// validateProviderName logs a warning if name is not a known provider.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a custom provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
