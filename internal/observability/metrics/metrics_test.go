package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorRendersRequestsAndLatency(t *testing.T) {
	c := newCollector()
	c.observe("/api/v1/sessions", "POST", 202, 30*time.Millisecond)
	c.observe("/api/v1/sessions", "POST", 500, 2*time.Second)

	out := c.render()
	for _, want := range []string{
		`zkpong_http_requests_total{handler="/api/v1/sessions",method="POST",code="202"} 1`,
		`zkpong_http_requests_total{handler="/api/v1/sessions",method="POST",code="500"} 1`,
		`zkpong_http_request_errors_total{handler="/api/v1/sessions",method="POST"} 1`,
		`zkpong_http_request_duration_seconds_bucket{handler="/api/v1/sessions",method="POST",le="0.05"} 1`,
		`zkpong_http_request_duration_seconds_bucket{handler="/api/v1/sessions",method="POST",le="2.5"} 2`,
		`zkpong_http_request_duration_seconds_count{handler="/api/v1/sessions",method="POST"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestProofMetricsRender(t *testing.T) {
	p := newProofMetrics()
	p.observe(ResultVerified, 3*time.Second)
	p.observe(ResultFailed, 400*time.Second)

	out := p.render()
	for _, want := range []string{
		`zkpong_proofs_total{result="failed"} 1`,
		`zkpong_proofs_total{result="verified"} 1`,
		`zkpong_prove_duration_seconds_bucket{le="5"} 1`,
		`zkpong_prove_duration_seconds_bucket{le="+Inf"} 2`,
		`zkpong_prove_duration_seconds_count 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	ObserveHTTPRequest("/healthz", "GET", 200, time.Millisecond)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %s", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "zkpong_proofs_total") || !strings.Contains(string(body), `handler="/healthz"`) {
		t.Fatalf("unexpected body:\n%s", body)
	}
}
