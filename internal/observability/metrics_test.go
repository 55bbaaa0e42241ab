package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	return string(body)
}

func TestMetricsExposeObservations(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTP("/ocr-translate", http.MethodPost, http.StatusOK, 20*time.Millisecond)
	m.ObserveUpstream("generate_content", http.StatusOK, time.Second)
	m.IncPipelineFailure("provider", "translation")
	m.IncPipelineFailure("decode", "")
	m.IncTranslationSkipped()

	body := scrape(t, m)
	for _, want := range []string{
		`ocrtranslate_http_requests_total{method="POST",route="/ocr-translate",status="200"} 1`,
		`ocrtranslate_upstream_requests_total{endpoint="generate_content",status="200"} 1`,
		`ocrtranslate_pipeline_failures_total{kind="provider",stage="translation"} 1`,
		`ocrtranslate_pipeline_failures_total{kind="decode",stage="unknown"} 1`,
		`ocrtranslate_translation_skipped_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in scrape output", want)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("/", http.MethodGet, http.StatusOK, time.Millisecond)
	m.ObserveUpstream("x", 0, time.Millisecond)
	m.IncPipelineFailure("provider", "extraction")
	m.IncTranslationSkipped()
}
