// Command realtalk listens to a microphone, transcribes Hindi or English
// speech and prints each finished sentence with its translation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/realtalk/internal/app"
	"github.com/MrWong99/realtalk/internal/config"
	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/pkg/audio/portaudio"
	"github.com/MrWong99/realtalk/pkg/types"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "realtalk.yaml", "path to the YAML configuration file")
	langFlag := flag.String("lang", "", "spoken language: hi or en (overrides language.source)")
	listDevices := flag.Bool("list-devices", false, "print available input devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices(os.Stdout)
	}

	// ── Configuration ─────────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "realtalk: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "realtalk: %v\n", err)
		}
		return 1
	}
	if *langFlag != "" {
		lang, err := types.ParseLang(*langFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "realtalk: -lang: %v\n", err)
			return 1
		}
		cfg.Language.Source = string(lang)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logOut, closeLog := logWriter(cfg.Server)
	defer closeLog()
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))

	slog.Info("realtalk starting",
		"version", version,
		"config", *configPath,
		"language", cfg.Language.Source,
		"audio", cfg.Audio.Source,
		"vad", cfg.VAD.Engine,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		d := config.Diff(old, next)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.ApplyConfig(d, next)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Admin server ──────────────────────────────────────────────────────────
	var admin *http.Server
	if cfg.Server.ListenAddr != "" {
		admin = app.NewAdminServer(cfg.Server.ListenAddr, application.Checkers(), tel.Handler, metrics)
		go func() {
			slog.Info("admin server listening", "addr", cfg.Server.ListenAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("admin server failed", "err", err)
			}
		}()
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			slog.Warn("admin server shutdown", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// printDevices lists the input devices PortAudio can open.
func printDevices(w io.Writer) int {
	devices, err := portaudio.ListInputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "realtalk: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no input devices found")
		return 1
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s (%d ch, %.0f Hz)\n", mark, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// logWriter returns stderr, teed into a rotating file when log_file is set.
func logWriter(cfg config.ServerConfig) (io.Writer, func()) {
	if cfg.LogFile == "" {
		return os.Stderr, func() {}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: 3,
		Compress:   true,
	}
	return io.MultiWriter(os.Stderr, lj), func() { _ = lj.Close() }
}
