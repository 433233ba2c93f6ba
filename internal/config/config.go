// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for RealTalk.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Audio source kinds.
const (
	SourcePortAudio = "portaudio"
	SourceWAV       = "wav"
)

// VAD engine kinds.
const (
	VADAdaptive = "adaptive"
	VADWebRTC   = "webrtc"
)

// Config is the root configuration structure. Load it with [Load] or
// [LoadFromReader]; both apply defaults and validate.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	VAD         VADConfig         `yaml:"vad"`
	Language    LanguageConfig    `yaml:"language"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Translation TranslationConfig `yaml:"translation"`
	Journal     JournalConfig     `yaml:"journal"`
	Bus         BusConfig         `yaml:"bus"`
	Discord     DiscordConfig     `yaml:"discord"`
}

// ServerConfig holds logging and admin endpoint settings.
type ServerConfig struct {
	// ListenAddr serves /healthz, /readyz and /metrics. Empty disables the
	// admin server.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// LogFile additionally writes logs to a size-rotated file.
	LogFile string `yaml:"log_file"`

	// LogMaxSizeMB is the rotation size of LogFile. Default: 50.
	LogMaxSizeMB int `yaml:"log_max_size_mb"`
}

// AudioConfig selects and shapes the capture source.
type AudioConfig struct {
	// Source is "portaudio" (microphone) or "wav" (file replay).
	Source string `yaml:"source"`

	// Device is the input device name as printed by -list-devices. Empty
	// uses the system default input.
	Device string `yaml:"device"`

	// Path is the WAV file replayed when Source is "wav".
	Path string `yaml:"path"`

	// Realtime paces WAV replay at the stream rate.
	Realtime bool `yaml:"realtime"`

	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	FrameSize  int `yaml:"frame_size"`

	// CalibrationFrames is the number of silent frames measured at startup.
	CalibrationFrames int `yaml:"calibration_frames"`
}

// VADConfig selects the voice activity detector.
type VADConfig struct {
	// Engine is "adaptive" or "webrtc".
	Engine string `yaml:"engine"`

	// MinThreshold is the lower bound of the calibrated speech threshold.
	MinThreshold float64 `yaml:"min_threshold"`

	// WebRTCMode is the aggressiveness 0..3 of the webrtc engine.
	WebRTCMode int `yaml:"webrtc_mode"`
}

// LanguageConfig sets the translation direction.
type LanguageConfig struct {
	// Source is the spoken language, "hi" or "en". The -lang flag overrides it.
	Source string `yaml:"source"`

	// Target defaults to the other language of the pair.
	Target string `yaml:"target"`

	// AutoDetect picks the direction per final from the script of the text.
	AutoDetect bool `yaml:"auto_detect"`

	// Glossary lists names and terms the recognizer should get right. They
	// are sent as recognizer keywords and used to correct finals.
	Glossary []string `yaml:"glossary"`
}

// PipelineConfig sizes the queues between stages.
type PipelineConfig struct {
	QueueDepth int `yaml:"queue_depth"`
}

// ProvidersConfig declares the recognizer and translator backends. Each
// entry is resolved through the [Registry] by name. Fallback entries are
// tried in order when the primary's circuit breaker is open.
type ProvidersConfig struct {
	STT         ProviderEntry   `yaml:"stt"`
	STTFallback []ProviderEntry `yaml:"stt_fallback"`
	LLM         ProviderEntry   `yaml:"llm"`
	LLMFallback []ProviderEntry `yaml:"llm_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "openai", "whisper").
	Name string `yaml:"name"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// TranslationConfig tunes the translator.
type TranslationConfig struct {
	MaxChars    int           `yaml:"max_chars"`
	CacheSize   int           `yaml:"cache_size"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// JournalConfig enables the PostgreSQL journal of finals.
type JournalConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BusConfig enables publishing on NATS.
type BusConfig struct {
	NATSURL      string `yaml:"nats_url"`
	Subject      string `yaml:"subject"`
	Token        string `yaml:"token"`
	Embedded     bool   `yaml:"embedded"`
	EmbeddedPort int    `yaml:"embedded_port"`
}

// Enabled reports whether a bus connection is configured.
func (b BusConfig) Enabled() bool { return b.NATSURL != "" || b.Embedded }

// DiscordConfig enables posting translations to a Discord channel.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether the Discord sink is configured.
func (d DiscordConfig) Enabled() bool { return d.Token != "" }
