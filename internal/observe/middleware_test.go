package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMiddleware(t *testing.T) {
	m, reader := newTestMetrics(t)
	tp, exp := newTestTracerProvider(t)
	useGlobalTracer(t, tp)

	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if seen != want {
		t.Errorf("handler trace ID = %q, want %q", seen, want)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != want {
		t.Errorf("X-Trace-ID = %q, want %q", got, want)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "GET /readyz" {
		t.Fatalf("spans = %v", spans)
	}
	var status int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("span status attribute = %d, want 503", status)
	}

	met := findMetric(collect(t, reader), "realtalk.http.request.duration")
	if met == nil {
		t.Fatal("duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected histogram %+v", met.Data)
	}
}
