package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type pingableClient struct {
	err error
}

func (p *pingableClient) Ping(context.Context) error { return p.err }

func TestHealthChecker_Basic(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: "healthy"} })
	status := hc.CheckHealth()
	if status.Status != "healthy" {
		t.Fatalf("expected healthy")
	}
}

func TestHealthChecker_DegradedDoesNotFail(t *testing.T) {
	hc := NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	hc.AddCheck("cache", PingHealthCheck("redis", &pingableClient{err: errors.New("refused")}, true))

	status := hc.CheckHealth()
	if status.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", status.Status)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", hc.Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded, got %d", w.Code)
	}
}

func TestPingHealthCheck(t *testing.T) {
	if res := PingHealthCheck("kafka", &pingableClient{}, false)(); res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", res.Status)
	}
	res := PingHealthCheck("kafka", &pingableClient{err: errors.New("no brokers")}, false)()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %q", res.Status)
	}
	if !strings.Contains(res.Message, "no brokers") {
		t.Errorf("unexpected message: %q", res.Message)
	}
	if res := PingHealthCheck("telegram", nil, false)(); res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for nil client, got %q", res.Status)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"API_HASH": "", "API_ID": ""})()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy")
	}
	if res.Message != "Missing required configuration: [API_HASH API_ID]" {
		t.Errorf("unexpected message: %q", res.Message)
	}
}

func TestMetricsCollectorsAreIsolated(t *testing.T) {
	a := NewMetricsCollector("svc-a", "v1", "abc")
	b := NewMetricsCollector("svc-a", "v1", "abc")
	a.NewCounter("events_total", "events", []string{"outcome"}).WithLabelValues("x").Inc()
	b.NewCounter("events_total", "events", []string{"outcome"})

	families, err := a.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "svc_a_events_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected sanitized counter name in registry")
	}
}
