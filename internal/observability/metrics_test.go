package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterGaugeBasics(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("test_total", "help")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Errorf("expected 3, got %v", c.Value())
	}

	g := r.NewGauge("test_gauge", "help")
	g.Set(5)
	g.Dec()
	if g.Value() != 4 {
		t.Errorf("expected 4, got %v", g.Value())
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("test_seconds", "help", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100)

	if h.count != 3 {
		t.Errorf("expected count 3, got %d", h.count)
	}
	if h.counts[0] != 1 || h.counts[1] != 2 || h.counts[2] != 2 {
		t.Errorf("unexpected bucket counts: %v", h.counts)
	}
}

func TestWritePrometheus_Format(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("b_total", "second").Add(2)
	r.NewCounter("a_total", "first").Inc()
	r.NewHistogram("lat_seconds", "latency", []float64{1}).Observe(0.5)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	for _, want := range []string{
		"# TYPE a_total counter",
		"a_total 1",
		"b_total 2",
		`lat_seconds_bucket{le="1"} 1`,
		`lat_seconds_bucket{le="+Inf"} 1`,
		"lat_seconds_sum 0.5",
		"lat_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
	// Counters render sorted by name.
	if strings.Index(body, "a_total") > strings.Index(body, "b_total") {
		t.Error("metrics must be sorted by name")
	}
}

func TestPipelineMetrics_RecordQuery(t *testing.T) {
	m := NewPipelineMetrics()
	m.RecordQuery(10*time.Millisecond, nil)
	m.RecordQuery(10*time.Millisecond, errors.New("boom"))

	if m.QueriesTotal.Value() != 2 {
		t.Errorf("expected 2 queries, got %v", m.QueriesTotal.Value())
	}
	if m.QueryErrorsTotal.Value() != 1 {
		t.Errorf("expected 1 error, got %v", m.QueryErrorsTotal.Value())
	}
}

func TestPipelineMetrics_RecordIngest(t *testing.T) {
	m := NewPipelineMetrics()
	m.RecordIngest(time.Millisecond, 7, nil)
	if m.IngestedChunksTotal.Value() != 7 {
		t.Errorf("expected 7 chunks, got %v", m.IngestedChunksTotal.Value())
	}
	if m.IngestErrorsTotal.Value() != 0 {
		t.Errorf("expected no errors, got %v", m.IngestErrorsTotal.Value())
	}
}
