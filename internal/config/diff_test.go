package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/realtalk/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	a := mustLoad(t, sampleYAML)
	b := mustLoad(t, sampleYAML)
	if d := config.Diff(a, b); !d.Empty() {
		t.Errorf("Diff = %+v, want empty", d)
	}
}

func TestDiff_HotFields(t *testing.T) {
	t.Parallel()
	a := mustLoad(t, sampleYAML)
	b := mustLoad(t, sampleYAML)
	b.Server.LogLevel = config.LogWarn
	b.Language.Glossary = append(b.Language.Glossary, "Koramangala")

	d := config.Diff(a, b)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogWarn {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.GlossaryChanged {
		t.Error("glossary change not detected")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	a := mustLoad(t, sampleYAML)
	b := mustLoad(t, sampleYAML)
	b.Audio.FrameSize = 4096
	b.Providers.LLM.Model = "gpt-4o"
	b.Discord.Token = "t"

	d := config.Diff(a, b)
	want := []string{"audio", "providers", "sinks"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.LogLevelChanged {
		t.Error("log level should be unchanged")
	}
}
