package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func useGlobalTracer(t *testing.T, tp *sdktrace.TracerProvider) {
	t.Helper()
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}

	tp, _ := newTestTracerProvider(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "x")
	defer span.End()
	if got := TraceID(ctx); len(got) != 32 {
		t.Errorf("TraceID length = %d, want 32", len(got))
	}
}

func TestStartSpan(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	useGlobalTracer(t, tp)

	_, span := StartSpan(context.Background(), "translate")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "translate" {
		t.Fatalf("spans = %+v, want one named translate", spans)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected trace_id without span: %s", buf.String())
	}

	buf.Reset()
	tp, _ := newTestTracerProvider(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "x")
	defer span.End()
	Logger(ctx).Info("traced")
	if !strings.Contains(buf.String(), "trace_id=") || !strings.Contains(buf.String(), "span_id=") {
		t.Errorf("log missing trace attributes: %s", buf.String())
	}
}
