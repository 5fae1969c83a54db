package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDeployment(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordDeployment("ARCHIVE", true, 3*time.Second)
	m.RecordDeployment("ARCHIVE", false, time.Second)
	m.RecordDeployment("BINARY", true, time.Second)
	m.RecordArtifacts("ARCHIVE", 2)

	if got := testutil.ToFloat64(m.deployments.WithLabelValues("ARCHIVE", "success")); got != 1 {
		t.Fatalf("expected 1 successful archive deployment, got %v", got)
	}
	if got := testutil.ToFloat64(m.deployments.WithLabelValues("ARCHIVE", "failure")); got != 1 {
		t.Fatalf("expected 1 failed archive deployment, got %v", got)
	}
	if got := testutil.ToFloat64(m.artifactsResolved.WithLabelValues("ARCHIVE")); got != 2 {
		t.Fatalf("expected 2 artifacts, got %v", got)
	}
	if n := testutil.CollectAndCount(m.deployDuration); n != 2 {
		t.Fatalf("expected 2 duration series, got %d", n)
	}
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)

	a.RecordRequest("GET", "/health", 200, time.Millisecond)
	b.RecordRequest("GET", "/health", 200, time.Millisecond)

	if got := testutil.ToFloat64(a.requestTotal.WithLabelValues("GET", "/health", "200")); got != 2 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordDeployment("ARCHIVE", true, time.Second)
	m.RecordArtifacts("ARCHIVE", 1)
	m.RecordRequest("GET", "/", 200, time.Second)
}
