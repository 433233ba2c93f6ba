package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/provider/stt/whisper"
	"github.com/MrWong99/realtalk/pkg/types"
)

const frameSize = 4096 // 256 ms at 16 kHz

// newMockServer responds to POST /inference with responseText and counts
// requests. It records the language form field of the last request.
func newMockServer(t *testing.T, responseText string, calls *atomic.Int32, lang *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 24); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		if lang != nil {
			lang.Store(r.FormValue("language"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " " + responseText + " "})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// speech returns a 440 Hz sine frame with RMS well above 300.
func speech() []int16 {
	out := make([]int16, frameSize)
	for i := range out {
		out[i] = int16(10_000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func silence() []int16 { return make([]int16, frameSize) }

func newRecognizer(t *testing.T, url string, opts ...whisper.Option) stt.Recognizer {
	t.Helper()
	p, err := whisper.New(url, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec, err := p.NewRecognizer(context.Background(), stt.StreamConfig{SampleRate: 16000, Language: "hi"})
	if err != nil {
		t.Fatalf("NewRecognizer: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func accept(t *testing.T, rec stt.Recognizer, frame []int16) stt.Transcript {
	t.Helper()
	tr, err := rec.Accept(context.Background(), frame)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return tr
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNewRecognizer_CancelledContext_ReturnsError(t *testing.T) {
	t.Parallel()
	p, err := whisper.New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.NewRecognizer(ctx, stt.StreamConfig{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSilenceAloneDoesNotTriggerInference(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "hello", &calls, nil)
	rec := newRecognizer(t, srv.URL)

	for range 10 {
		if tr := accept(t, rec, silence()); !tr.IsEmpty() || tr.IsFinal {
			t.Fatalf("silence produced %+v", tr)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times on silence", calls.Load())
	}
}

func TestSpeechFollowedBySilenceProducesFinal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var lang atomic.Value
	srv := newMockServer(t, "namaste", &calls, &lang)
	rec := newRecognizer(t, srv.URL, whisper.WithSilenceThresholdMs(500))

	accept(t, rec, speech())
	accept(t, rec, speech())
	if tr := accept(t, rec, silence()); tr.IsFinal {
		t.Fatal("final after 256 ms of silence, want 500 ms")
	}
	tr := accept(t, rec, silence())
	if !tr.IsFinal {
		t.Fatal("expected final after 512 ms of silence")
	}
	if tr.Text != "namaste" {
		t.Errorf("Text = %q, want %q", tr.Text, "namaste")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
	if got, _ := lang.Load().(string); got != "hi" {
		t.Errorf("language field = %q, want hi", got)
	}
}

func TestMaxBufferForcesFinal(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, "long", nil, nil)
	rec := newRecognizer(t, srv.URL, whisper.WithMaxBufferDurationMs(700))

	accept(t, rec, speech())
	accept(t, rec, speech())
	if tr := accept(t, rec, speech()); !tr.IsFinal || tr.Text != "long" {
		t.Fatalf("third speech frame: got %+v, want forced final", tr)
	}
}

func TestPartialInterval(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "par", &calls, nil)
	rec := newRecognizer(t, srv.URL, whisper.WithPartialIntervalMs(500))

	if tr := accept(t, rec, speech()); !tr.IsEmpty() {
		t.Fatalf("first frame: got %+v, want nothing yet", tr)
	}
	tr := accept(t, rec, speech())
	if tr.IsFinal || tr.Text != "par" {
		t.Fatalf("second frame: got %+v, want partial %q", tr, "par")
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestFlushFinalisesPendingSpeech(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, "tail", nil, nil)
	rec := newRecognizer(t, srv.URL)

	accept(t, rec, speech())
	tr, err := rec.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !tr.IsFinal || tr.Text != "tail" {
		t.Errorf("Flush = %+v, want final %q", tr, "tail")
	}

	tr, err = rec.Flush(context.Background())
	if err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if !tr.IsEmpty() {
		t.Errorf("second Flush = %+v, want empty", tr)
	}
}

func TestServerErrorIsModelError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	rec := newRecognizer(t, srv.URL)

	accept(t, rec, speech())
	_, err := rec.Flush(context.Background())
	if !errors.Is(err, types.ErrModel) {
		t.Fatalf("Flush error = %v, want ErrModel", err)
	}
}

func TestAcceptAfterClose(t *testing.T) {
	t.Parallel()

	rec := newRecognizer(t, "http://localhost:1")
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := rec.Accept(context.Background(), silence()); err == nil {
		t.Error("Accept after Close should fail")
	}
}
