package voice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/realtalk/pkg/audio"
	audiomock "github.com/MrWong99/realtalk/pkg/audio/mock"
	sttmock "github.com/MrWong99/realtalk/pkg/provider/stt/mock"
	"github.com/MrWong99/realtalk/pkg/provider/vad/adaptive"
	vadmock "github.com/MrWong99/realtalk/pkg/provider/vad/mock"
	"github.com/MrWong99/realtalk/pkg/types"
)

var smallFormat = audio.Format{SampleRate: 16000, Channels: 1, FrameSize: testFrame}

func drain(out <-chan types.TranscriptEvent) []types.TranscriptEvent {
	var evs []types.TranscriptEvent
	for ev := range out {
		evs = append(evs, ev)
	}
	return evs
}

func TestSession_CalibratesThenDetectsUtterance(t *testing.T) {
	t.Parallel()

	frames := constantFrames(DefaultCalibrationFrames, testFrame, 80, 120)
	frames = append(frames, constantFrames(3, testFrame, 310, 320, 330)...)
	frames = append(frames, constantFrames(16, testFrame, 50)...)

	m, reader := testMetrics(t)
	src := &audiomock.Source{Frames: frames}
	rec := &sttmock.Recognizer{}
	stt := &sttmock.Provider{Recognizer: rec}

	var profile NoiseProfile
	s, err := NewSession(SessionConfig{
		Source:       src,
		Format:       smallFormat,
		Lang:         types.Hindi,
		VAD:          adaptive.New(),
		STT:          stt,
		Metrics:      m,
		OnCalibrated: func(p NoiseProfile) { profile = p },
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	out := make(chan types.TranscriptEvent, 16)
	if err := s.Run(context.Background(), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	drain(out)

	if profile.AmbientLevel != 100 || profile.NoiseStd != 20 || profile.SpeechThreshold != 300 {
		t.Errorf("profile = %+v, want ambient 100 std 20 threshold 300", profile)
	}
	if src.OpenFormat != smallFormat {
		t.Errorf("opened with %+v", src.OpenFormat)
	}
	if len(stt.NewRecognizerCalls) != 1 || stt.NewRecognizerCalls[0].Language != "hi" {
		t.Errorf("recognizer calls = %+v", stt.NewRecognizerCalls)
	}
	if got := rec.FrameCount(); got != 19 {
		t.Errorf("recognizer got %d frames, want 19 post-calibration frames", got)
	}
	if got := counter(t, reader, "realtalk.vad.transitions", "direction", "start"); got != 1 {
		t.Errorf("speech starts = %d, want 1", got)
	}
	if got := counter(t, reader, "realtalk.vad.transitions", "direction", "end"); got != 1 {
		t.Errorf("speech ends = %d, want 1", got)
	}
	if !src.Closed() || rec.CloseCallCount != 1 {
		t.Errorf("source closed %v, recognizer closes %d", src.Closed(), rec.CloseCallCount)
	}
}

func TestSession_FailureReleasesResources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		src         *audiomock.Source
		sttErr      error
		wantErr     error
		wantClosed  bool
		wantVADDone bool
	}{
		{
			name:    "missing device",
			src:     &audiomock.Source{OpenError: fmt.Errorf("no default input: %w", types.ErrDevice)},
			wantErr: types.ErrDevice,
		},
		{
			name: "read fault during calibration",
			src: &audiomock.Source{
				Frames:     constantFrames(8, testFrame, 100),
				ReadErrors: map[int]error{2: fmt.Errorf("overflow: %w", types.ErrIO)},
			},
			wantErr:    types.ErrIO,
			wantClosed: true,
		},
		{
			name:        "recognizer unavailable",
			src:         &audiomock.Source{Frames: constantFrames(8, testFrame, 100)},
			sttErr:      errors.New("model file missing"),
			wantErr:     types.ErrModel,
			wantClosed:  true,
			wantVADDone: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, _ := testMetrics(t)
			det := &vadmock.Session{}
			s, err := NewSession(SessionConfig{
				Source:  tt.src,
				Format:  smallFormat,
				Lang:    types.English,
				VAD:     &vadmock.Engine{Session: det},
				STT:     &sttmock.Provider{NewRecognizerErr: tt.sttErr},
				Metrics: m,
			})
			if err != nil {
				t.Fatalf("NewSession: %v", err)
			}

			out := make(chan types.TranscriptEvent)
			err = s.Run(context.Background(), out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run error = %v, want %v", err, tt.wantErr)
			}
			if _, open := <-out; open {
				t.Error("output channel left open")
			}
			if tt.src.Closed() != tt.wantClosed {
				t.Errorf("source closed = %v, want %v", tt.src.Closed(), tt.wantClosed)
			}
			if (det.CloseCallCount == 1) != tt.wantVADDone {
				t.Errorf("vad closes = %d", det.CloseCallCount)
			}
		})
	}
}

func TestNewSession_Validation(t *testing.T) {
	t.Parallel()

	valid := SessionConfig{
		Source: &audiomock.Source{},
		Lang:   types.Hindi,
		VAD:    adaptive.New(),
		STT:    &sttmock.Provider{},
	}

	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"unknown language", func(c *SessionConfig) { c.Lang = "fr" }},
		{"empty language", func(c *SessionConfig) { c.Lang = "" }},
		{"no source", func(c *SessionConfig) { c.Source = nil }},
		{"no vad", func(c *SessionConfig) { c.VAD = nil }},
		{"no stt", func(c *SessionConfig) { c.STT = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewSession(cfg); !errors.Is(err, types.ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}

	s, err := NewSession(valid)
	if err != nil {
		t.Fatalf("NewSession(valid): %v", err)
	}
	if s.cfg.Format != audio.DefaultFormat() || s.cfg.Calibrator == nil {
		t.Errorf("defaults not applied: %+v", s.cfg)
	}
}
