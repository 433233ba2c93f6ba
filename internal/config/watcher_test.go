package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/realtalk/internal/config"
)

const watcherUpdatedYAML = minimalYAML + `
server:
  log_level: debug
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// bumpMtime moves the file's mtime forward so coarse filesystem clocks do
// not hide a rewrite.
func bumpMtime(t *testing.T, path string, by time.Duration) {
	t.Helper()
	ts := time.Now().Add(by)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "realtalk.yaml")
	writeFile(t, path, minimalYAML)

	w, err := config.NewWatcher(path, nil, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if cfg := w.Current(); cfg == nil || cfg.Server.LogLevel != config.LogInfo {
		t.Fatalf("Current = %+v", cfg)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "realtalk.yaml")
	writeFile(t, path, minimalYAML)

	var (
		mu       sync.Mutex
		old, cur *config.Config
	)
	called := make(chan struct{}, 1)
	w, err := config.NewWatcher(path, func(o, n *config.Config) {
		mu.Lock()
		old, cur = o, n
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, watcherUpdatedYAML)
	bumpMtime(t, path, time.Second)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if old.Server.LogLevel != config.LogInfo || cur.Server.LogLevel != config.LogDebug {
		t.Errorf("callback got %q -> %q", old.Server.LogLevel, cur.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current log level = %q", w.Current().Server.LogLevel)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "realtalk.yaml")
	writeFile(t, path, minimalYAML)

	called := make(chan struct{}, 1)
	w, err := config.NewWatcher(path, func(_, _ *config.Config) { called <- struct{}{} },
		config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, watcherInvalidYAML)
	bumpMtime(t, path, time.Second)

	select {
	case <-called:
		t.Fatal("callback invoked for invalid config")
	case <-time.After(200 * time.Millisecond):
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current log level = %q, want info", w.Current().Server.LogLevel)
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "realtalk.yaml")
	writeFile(t, path, minimalYAML)

	called := make(chan struct{}, 1)
	w, err := config.NewWatcher(path, func(_, _ *config.Config) { called <- struct{}{} },
		config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	bumpMtime(t, path, time.Second)

	select {
	case <-called:
		t.Fatal("callback invoked for unchanged content")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "realtalk.yaml")
	writeFile(t, path, minimalYAML)
	w, err := config.NewWatcher(path, nil, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
