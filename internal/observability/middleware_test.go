package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestAccessLogTagsRequestsAndRecordsMetrics(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(AccessLog("edgelink-mw", zerolog.New(&buf)))
	r.GET("/status", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("edgelink-mw", "GET", "/status", "418"))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("caller request id must be echoed, got %q", rec.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) || !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("unexpected access log %s", buf.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("expected generated uuid, got %q", rec.Header().Get(RequestIDHeader))
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues("edgelink-mw", "GET", "/status", "418"))
	if after-before != 2 {
		t.Fatalf("expected +2 requests, got %v", after-before)
	}
}
