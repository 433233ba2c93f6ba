// Package deepgram provides a Deepgram-backed recognizer using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
//
// Audio is written to the socket synchronously from Accept while a reader
// goroutine collects results. Deepgram marks segments final with is_final
// and closes an utterance with speech_final; finished utterances are queued
// and handed out by subsequent Accept calls, one per call.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/realtalk/pkg/audio"
	"github.com/MrWong99/realtalk/pkg/provider/stt"
	"github.com/MrWong99/realtalk/pkg/types"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-2"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultEndpointMs = 300

	// flushWait bounds how long Flush waits for Deepgram to finalise.
	flushWait = 3 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g., "nova-2", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language code (e.g., "hi", "en-IN").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the provider-level default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithEndpointing sets the trailing-silence duration in milliseconds after
// which Deepgram closes an utterance. Default: 300.
func WithEndpointing(ms int) Option {
	return func(p *Provider) {
		p.endpointMs = ms
	}
}

// WithEndpoint overrides the streaming endpoint URL. Used for self-hosted
// deployments and tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	sampleRate int
	endpointMs int
}

// New creates a Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   deepgramEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		endpointMs: defaultEndpointMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// NewRecognizer dials Deepgram and starts the result reader.
func (p *Provider) NewRecognizer(ctx context.Context, cfg stt.StreamConfig) (stt.Recognizer, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w: %w", types.ErrModel, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	r := &recognizer{
		conn:    conn,
		cancel:  cancel,
		done:    make(chan struct{}),
		updated: make(chan struct{}, 1),
	}
	go r.readLoop(readCtx)
	return r, nil
}

// buildURL constructs the streaming endpoint URL for cfg.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(p.endpointMs))
	q.Set("sample_rate", strconv.Itoa(sr))

	for _, kw := range cfg.Keywords {
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- recognizer ----

// deepgramResponse is the JSON structure of a Results event.
type deepgramResponse struct {
	Type        string  `json:"type"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Duration    float64 `json:"duration"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// recognizer is a live Deepgram session. Accept and Flush run on the owner
// goroutine; readLoop updates the shared result state under mu.
type recognizer struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	// updated is signalled whenever readLoop changes the state below.
	updated chan struct{}

	mu        sync.Mutex
	segments  []stt.Transcript // is_final segments of the open utterance
	interim   string
	ready     []stt.Transcript // completed utterances not yet handed out
	readErr   error
	lastShown string

	closeOnce sync.Once
}

var _ stt.Recognizer = (*recognizer)(nil)

// Accept sends one frame and reports any completed utterance or a changed
// interim hypothesis.
func (r *recognizer) Accept(ctx context.Context, pcm []int16) (stt.Transcript, error) {
	if err := r.conn.Write(ctx, websocket.MessageBinary, audio.Int16ToBytes(pcm)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: write audio: %w: %w", types.ErrModel, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ready) > 0 {
		t := r.ready[0]
		r.ready = r.ready[1:]
		r.lastShown = ""
		return t, nil
	}
	if r.readErr != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: read: %w: %w", types.ErrModel, r.readErr)
	}
	if text := r.pendingTextLocked(); text != r.lastShown {
		r.lastShown = text
		return stt.Transcript{Text: text}, nil
	}
	return stt.Transcript{}, nil
}

// Flush asks Deepgram to finalise buffered audio and waits briefly for the
// resulting utterance.
func (r *recognizer) Flush(ctx context.Context) (stt.Transcript, error) {
	if err := r.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: finalize: %w: %w", types.ErrModel, err)
	}

	timer := time.NewTimer(flushWait)
	defer timer.Stop()
	for {
		r.mu.Lock()
		if len(r.ready) > 0 {
			t := r.ready[0]
			r.ready = r.ready[1:]
			r.mu.Unlock()
			return t, nil
		}
		r.mu.Unlock()

		select {
		case <-r.updated:
		case <-r.done:
			return r.takePending(), nil
		case <-timer.C:
			return r.takePending(), nil
		case <-ctx.Done():
			return r.takePending(), nil
		}
	}
}

// takePending commits whatever text is buffered as a final.
func (r *recognizer) takePending() stt.Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.commitLocked()
	t.IsFinal = true
	return t
}

// Close sends CloseStream and tears down the socket.
func (r *recognizer) Close() error {
	r.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = r.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		cancel()
		r.cancel()
		r.conn.Close(websocket.StatusNormalClosure, "session closed")
		<-r.done
	})
	return nil
}

func (r *recognizer) readLoop(ctx context.Context) {
	defer close(r.done)
	for {
		_, msg, err := r.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				slog.Warn("deepgram: read loop ended", "err", err)
				r.mu.Lock()
				r.readErr = err
				r.mu.Unlock()
			}
			return
		}

		resp, t, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}

		r.mu.Lock()
		if t.IsFinal {
			if t.Text != "" {
				r.segments = append(r.segments, t)
			}
			r.interim = ""
			if resp.SpeechFinal {
				if u := r.commitLocked(); u.Text != "" {
					u.IsFinal = true
					r.ready = append(r.ready, u)
				}
			}
		} else {
			r.interim = t.Text
		}
		r.mu.Unlock()

		select {
		case r.updated <- struct{}{}:
		default:
		}
	}
}

// pendingTextLocked joins the finalised segments and the interim hypothesis.
func (r *recognizer) pendingTextLocked() string {
	parts := make([]string, 0, len(r.segments)+1)
	for _, s := range r.segments {
		parts = append(parts, s.Text)
	}
	if r.interim != "" {
		parts = append(parts, r.interim)
	}
	return strings.Join(parts, " ")
}

// commitLocked merges buffered segments into one transcript and clears them.
func (r *recognizer) commitLocked() stt.Transcript {
	var out stt.Transcript
	var conf float64
	for _, s := range r.segments {
		out.Words = append(out.Words, s.Words...)
		out.Duration += s.Duration
		conf += s.Confidence
	}
	out.Text = r.pendingTextLocked()
	if n := len(r.segments); n > 0 {
		out.Confidence = conf / float64(n)
	}
	r.segments = nil
	r.interim = ""
	return out
}

// parseDeepgramResponse parses a raw message into a Transcript. ok is false
// for messages that should be ignored.
func parseDeepgramResponse(data []byte) (deepgramResponse, stt.Transcript, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, stt.Transcript{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return resp, stt.Transcript{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	return resp, stt.Transcript{
		Text:       strings.TrimSpace(alt.Transcript),
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
		Words:      words,
		Duration:   time.Duration(resp.Duration * float64(time.Second)),
	}, true
}
