// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider with in-process whisper.cpp. The
// model is loaded once and shared by all recognizers; each recognizer creates
// its own inference context.
type NativeProvider struct {
	model    whisperlib.Model
	settings settings
}

// NewNative loads the whisper.cpp model at modelPath. The caller must Close
// the provider when done.
func NewNative(modelPath string, opts ...Option) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{model: model, settings: defaultSettings()}
	for _, o := range opts {
		o(&p.settings)
	}
	return p, nil
}

// Close releases the model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// NewRecognizer implements stt.Provider.
func (p *NativeProvider) NewRecognizer(ctx context.Context, cfg stt.StreamConfig) (stt.Recognizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	rec := newRecognizer(p.settings, cfg, func(_ context.Context, pcm []int16, lang string) (string, error) {
		return inferNative(wctx, pcm, lang)
	})
	if err := wctx.SetLanguage(rec.lang); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", rec.lang, "err", err)
	}
	return rec, nil
}

// inferNative runs one utterance through the context and joins its segments.
func inferNative(wctx whisperlib.Context, pcm []int16, lang string) (string, error) {
	if wctx.Language() != lang {
		if err := wctx.SetLanguage(lang); err != nil {
			slog.Warn("whisper: failed to set language", "language", lang, "err", err)
		}
	}
	if err := wctx.Process(audio.Int16ToFloat32(pcm), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}
	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
