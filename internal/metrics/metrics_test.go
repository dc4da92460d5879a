package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	HTTPRequestsTotal.Store(0)
	HTTPRequestsTotal.Add(5)
	CacheHitsTotal.Store(8)
	CacheMissesTotal.Store(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "http_requests_total 5") {
		t.Errorf("missing http_requests_total: %s", body)
	}
	if !strings.Contains(body, "cache_hit_ratio 0.8000") {
		t.Errorf("expected cache_hit_ratio 0.8000, got: %s", body)
	}
	ct := rec.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}
