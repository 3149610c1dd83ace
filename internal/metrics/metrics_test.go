package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haskel/agupredict/internal/invoker"
	"github.com/haskel/agupredict/internal/monitor"
)

func TestObserveInvocation(t *testing.T) {
	m := New()

	m.ObserveInvocation(invoker.Outcome{Operation: "train", Duration: time.Second})
	m.ObserveInvocation(invoker.Outcome{Operation: "train", Kind: invoker.KindTimeout, Duration: 2 * time.Second})
	m.ObserveInvocation(invoker.Outcome{
		Operation: "predict",
		Duration:  time.Second,
		Usage:     monitor.ProcessUsage{PeakRSSBytes: 4096, Samples: 3},
	})

	if got := testutil.ToFloat64(m.invocations.WithLabelValues("train", "success")); got != 1 {
		t.Errorf("expected 1 successful train, got %f", got)
	}
	if got := testutil.ToFloat64(m.invocations.WithLabelValues("train", "timeout")); got != 1 {
		t.Errorf("expected 1 timed out train, got %f", got)
	}
	if got := testutil.ToFloat64(m.peakRSS.WithLabelValues("predict")); got != 4096 {
		t.Errorf("expected peak rss 4096, got %f", got)
	}
}

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodPost, "POST /api/train/{agu}", http.StatusOK, 10*time.Millisecond)
	m.ObserveRequest(http.MethodPost, "POST /api/train/{agu}", http.StatusBadRequest, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "POST /api/train/{agu}", "400")); got != 1 {
		t.Errorf("expected one 400, got %f", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveInvocation(invoker.Outcome{Operation: "predict", Duration: time.Second})

	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "agupredict_script_invocations_total") {
		t.Error("expected invocation counter in exposition")
	}
}
