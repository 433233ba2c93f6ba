// Package observe provides the observability primitives shared by RealTalk:
// OpenTelemetry metrics, tracing helpers, trace-aware logging and HTTP
// middleware.
//
// Metrics go through the OpenTelemetry Metrics API. [InitProvider] installs a
// Prometheus exporter so they can be scraped from /metrics. Tests should build
// their own [Metrics] with [NewMetrics] over a ManualReader instead of using
// [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/realtalk"

// Metrics holds every instrument RealTalk records. The OTel types handle their
// own synchronisation.
type Metrics struct {
	// --- Capture ---

	// FramesCaptured counts frames read from the audio source.
	FramesCaptured metric.Int64Counter

	// ReadErrors counts transient read failures that were skipped.
	ReadErrors metric.Int64Counter

	// VADTransitions counts speech start/end transitions. Attribute
	// "direction" is "start" or "end".
	VADTransitions metric.Int64Counter

	// AmbientLevel is the most recent calibrated ambient energy.
	AmbientLevel metric.Float64Gauge

	// SpeechThreshold is the most recent calibrated speech threshold.
	SpeechThreshold metric.Float64Gauge

	// QueueDepth is the number of items waiting between pipeline stages.
	// Attribute "queue" names the queue.
	QueueDepth metric.Int64UpDownCounter

	// --- Recognition ---

	// RecognizerDuration tracks per-frame recognizer latency.
	RecognizerDuration metric.Float64Histogram

	// Transcripts counts emitted transcript events. Attribute "kind" is
	// "partial" or "final".
	Transcripts metric.Int64Counter

	// RecognizerErrors counts frames the recognizer failed on.
	RecognizerErrors metric.Int64Counter

	// --- Translation ---

	// TranslationDuration tracks translation latency. Attributes "source" and
	// "target" carry the language pair.
	TranslationDuration metric.Float64Histogram

	// TranslationErrors counts translations replaced by a placeholder.
	TranslationErrors metric.Int64Counter

	// TranslationTruncations counts inputs shortened before translation.
	TranslationTruncations metric.Int64Counter

	// TranslationCacheHits counts translations served from the cache.
	TranslationCacheHits metric.Int64Counter

	// --- HTTP ---

	// HTTPRequestDuration tracks admin HTTP request time. Attributes
	// "method" and "path".
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.FramesCaptured, "realtalk.audio.frames", "Frames read from the audio source."},
		{&met.ReadErrors, "realtalk.audio.read_errors", "Transient audio read failures skipped by the capture loop."},
		{&met.VADTransitions, "realtalk.vad.transitions", "Speech start and end transitions by direction."},
		{&met.Transcripts, "realtalk.stt.transcripts", "Transcript events emitted by kind."},
		{&met.RecognizerErrors, "realtalk.stt.errors", "Frames the recognizer failed to process."},
		{&met.TranslationErrors, "realtalk.translation.errors", "Translations replaced with an error placeholder."},
		{&met.TranslationTruncations, "realtalk.translation.truncations", "Translation inputs truncated to the character limit."},
		{&met.TranslationCacheHits, "realtalk.translation.cache_hits", "Translations served from the in-memory cache."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.RecognizerDuration, err = m.Float64Histogram("realtalk.stt.duration",
		metric.WithDescription("Latency of a recognizer Accept call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("realtalk.translation.duration",
		metric.WithDescription("Latency of translating one final transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("realtalk.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.AmbientLevel, err = m.Float64Gauge("realtalk.calibration.ambient_level",
		metric.WithDescription("Mean frame energy measured during calibration."),
	); err != nil {
		return nil, err
	}
	if met.SpeechThreshold, err = m.Float64Gauge("realtalk.calibration.speech_threshold",
		metric.WithDescription("Speech threshold derived from calibration."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("realtalk.pipeline.queue_depth",
		metric.WithDescription("Items waiting between pipeline stages by queue."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on
// [otel.GetMeterProvider]. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordVADTransition counts a speech start ("start") or end ("end").
func (m *Metrics) RecordVADTransition(ctx context.Context, direction string) {
	m.VADTransitions.Add(ctx, 1, metric.WithAttributes(Attr("direction", direction)))
}

// RecordTranscript counts a transcript event of the given kind.
func (m *Metrics) RecordTranscript(ctx context.Context, kind string) {
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}

// RecordCalibration stores the calibration result in the gauges.
func (m *Metrics) RecordCalibration(ctx context.Context, ambient, threshold float64) {
	m.AmbientLevel.Record(ctx, ambient)
	m.SpeechThreshold.Record(ctx, threshold)
}

// RecordTranslation records latency for one translation and, when failed, an
// error for the backend.
func (m *Metrics) RecordTranslation(ctx context.Context, source, target string, seconds float64, failed bool) {
	pair := metric.WithAttributes(Attr("source", source), Attr("target", target))
	m.TranslationDuration.Record(ctx, seconds, pair)
	if failed {
		m.TranslationErrors.Add(ctx, 1, pair)
	}
}

// QueueAdd adjusts the depth of the named queue by delta.
func (m *Metrics) QueueAdd(ctx context.Context, queue string, delta int64) {
	m.QueueDepth.Add(ctx, delta, metric.WithAttributes(Attr("queue", queue)))
}
