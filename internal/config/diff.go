package config

import "slices"

// ConfigDiff describes what changed between two configs. Only fields that can
// be applied without restarting the capture session are tracked; everything
// else requires a restart and is reported through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	GlossaryChanged bool

	// RestartRequired lists changed sections that only take effect on the
	// next start.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.GlossaryChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Language.Glossary, new.Language.Glossary) {
		d.GlossaryChanged = true
	}

	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.VAD != new.VAD {
		d.RestartRequired = append(d.RestartRequired, "vad")
	}
	if old.Language.Source != new.Language.Source ||
		old.Language.Target != new.Language.Target ||
		old.Language.AutoDetect != new.Language.AutoDetect {
		d.RestartRequired = append(d.RestartRequired, "language")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Translation != new.Translation {
		d.RestartRequired = append(d.RestartRequired, "translation")
	}
	if old.Journal != new.Journal || old.Bus != new.Bus || old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "sinks")
	}
	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.STT, b.STT) && entryEqual(a.LLM, b.LLM) &&
		slices.EqualFunc(a.STTFallback, b.STTFallback, entryEqual) &&
		slices.EqualFunc(a.LLMFallback, b.LLMFallback, entryEqual)
}

// entryEqual ignores Options, which are compared by the provider itself.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
