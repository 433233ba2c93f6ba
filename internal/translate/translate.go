// Package translate turns final transcripts into the other language of the
// Hindi/English pair through an [llm.Provider].
//
// [Translator.Translate] never fails outright: a backend error becomes a
// visible "[translation error: ...]" placeholder with Degraded set, so the
// display and sinks always have a line to show. Inputs longer than the
// character limit are cut before submission and flagged as Truncated.
// Repeated phrases are answered from an LRU cache.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/realtalk/internal/observe"
	"github.com/MrWong99/realtalk/pkg/provider/llm"
	"github.com/MrWong99/realtalk/pkg/types"
)

const (
	// DefaultMaxChars is the input limit in characters (runes).
	DefaultMaxChars = 500

	// DefaultCacheSize is the number of translations kept in memory.
	DefaultCacheSize = 256

	defaultTemperature = 0.2
	defaultTimeout     = 30 * time.Second
)

// Result is the outcome of one translation.
type Result struct {
	// Text is the translation, the input itself for a same-language request,
	// or an error placeholder.
	Text string

	// Truncated is set when the input exceeded the character limit.
	Truncated bool

	// Degraded is set when Text is an error placeholder.
	Degraded bool

	// Cached is set when the result was served from the cache.
	Cached bool

	// Err is the failure behind a degraded result.
	Err error
}

// Placeholder formats the text shown in place of a failed translation.
func Placeholder(reason error) string {
	return fmt.Sprintf("[translation error: %v]", reason)
}

type cacheKey struct {
	src, tgt types.Lang
	text     string
}

// Option configures a [Translator].
type Option func(*Translator)

// WithMaxChars sets the input limit. Values below 1 are ignored.
func WithMaxChars(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.maxChars = n
		}
	}
}

// WithCacheSize sets the cache capacity. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(t *Translator) { t.cacheSize = n }
}

// WithTemperature sets the sampling temperature sent to the backend.
func WithTemperature(v float64) Option {
	return func(t *Translator) { t.temperature = v }
}

// WithTimeout bounds each backend call. Zero leaves only the caller's
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(t *Translator) { t.timeout = d }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Translator) { t.metrics = m }
}

// Translator is safe for concurrent use.
type Translator struct {
	llm         llm.Provider
	maxChars    int
	cacheSize   int
	temperature float64
	timeout     time.Duration
	metrics     *observe.Metrics
	cache       *lru.Cache[cacheKey, string]
}

// New returns a Translator backed by p.
func New(p llm.Provider, opts ...Option) (*Translator, error) {
	if p == nil {
		return nil, fmt.Errorf("translate: llm provider is required: %w", types.ErrConfig)
	}
	t := &Translator{
		llm:         p,
		maxChars:    DefaultMaxChars,
		cacheSize:   DefaultCacheSize,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	if t.cacheSize > 0 {
		c, err := lru.New[cacheKey, string](t.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("translate: cache: %v: %w", err, types.ErrConfig)
		}
		t.cache = c
	}
	return t, nil
}

// Translate renders text from src into tgt. Same-language requests return
// the input unchanged without calling the backend.
func (t *Translator) Translate(ctx context.Context, text string, src, tgt types.Lang) Result {
	text = strings.TrimSpace(text)
	if text == "" || src == tgt {
		return Result{Text: text}
	}
	if !src.IsValid() || !tgt.IsValid() {
		err := fmt.Errorf("translate: unsupported pair %q to %q: %w", src, tgt, types.ErrConfig)
		return Result{Text: Placeholder(err), Degraded: true, Err: err}
	}

	var res Result
	if n := utf8.RuneCountInString(text); n > t.maxChars {
		text = string([]rune(text)[:t.maxChars])
		res.Truncated = true
		t.metrics.TranslationTruncations.Add(ctx, 1)
		slog.Warn("translation input truncated", "chars", n, "limit", t.maxChars)
	}

	key := cacheKey{src: src, tgt: tgt, text: text}
	if t.cache != nil {
		if v, ok := t.cache.Get(key); ok {
			t.metrics.TranslationCacheHits.Add(ctx, 1)
			res.Text, res.Cached = v, true
			return res
		}
	}

	ctx, span := observe.StartSpan(ctx, "translate")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", string(src)),
		attribute.String("target", string(tgt)),
		attribute.String("backend", t.llm.Name()),
		attribute.Bool("truncated", res.Truncated),
	)

	start := time.Now()
	out, err := t.complete(ctx, text, src, tgt)
	t.metrics.RecordTranslation(ctx, string(src), string(tgt), time.Since(start).Seconds(), err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Warn("translation failed", "source", src, "target", tgt, "err", err)
		res.Text, res.Degraded, res.Err = Placeholder(err), true, err
		return res
	}

	if t.cache != nil {
		t.cache.Add(key, out)
	}
	res.Text = out
	return res
}

func (t *Translator) complete(ctx context.Context, text string, src, tgt types.Lang) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	resp, err := t.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt(src, tgt),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature:  t.temperature,
		MaxTokens: 4 * t.maxChars,
	})
	if err != nil {
		if errors.Is(err, types.ErrModel) {
			return "", err
		}
		return "", fmt.Errorf("%v: %w", err, types.ErrModel)
	}
	var out string
	if resp != nil {
		out = cleanOutput(resp.Content)
	}
	if out == "" {
		return "", fmt.Errorf("empty response from %s: %w", t.llm.Name(), types.ErrModel)
	}
	return out, nil
}

// CacheLen returns the number of cached translations.
func (t *Translator) CacheLen() int {
	if t.cache == nil {
		return 0
	}
	return t.cache.Len()
}
