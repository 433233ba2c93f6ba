package webrtc_test

import (
	"testing"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/vad"
	"github.com/MrWong99/realtalk/pkg/provider/vad/webrtc"
)

func TestNewSession_RejectsUnsupportedRate(t *testing.T) {
	t.Parallel()

	if _, err := webrtc.New().NewSession(vad.Config{SampleRate: 22050}); err == nil {
		t.Fatal("expected error for 22050 Hz")
	}
}

func TestNewSession_RejectsBadMode(t *testing.T) {
	t.Parallel()

	if _, err := webrtc.New(webrtc.WithMode(7)).NewSession(vad.Config{SampleRate: 16000}); err == nil {
		t.Fatal("expected error for mode 7")
	}
}

func TestSession_SilenceStaysSilent(t *testing.T) {
	t.Parallel()

	h, err := webrtc.New().NewSession(vad.Config{SampleRate: 16000, FrameSize: 4096})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer h.Close()

	for i := range 5 {
		ev, err := h.ProcessFrame(audio.Frame{PCM: make([]int16, 4096)})
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if ev.Type != vad.VADSilence {
			t.Errorf("frame %d: got %v, want silence", i, ev.Type)
		}
		if ev.Probability != 0 {
			t.Errorf("frame %d: probability %v, want 0", i, ev.Probability)
		}
	}
	if h.State().Speaking {
		t.Error("State().Speaking = true on digital silence")
	}
}

func TestSession_ClosedRejectsFrames(t *testing.T) {
	t.Parallel()

	h, err := webrtc.New().NewSession(vad.Config{SampleRate: 16000})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := h.ProcessFrame(audio.Frame{PCM: make([]int16, 160)}); err == nil {
		t.Error("ProcessFrame after Close should fail")
	}
}
