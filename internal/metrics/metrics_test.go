package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func resetRegistry() {
	initialized = false
	Registry = prometheus.NewRegistry()
}

func TestInit(t *testing.T) {
	resetRegistry()

	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	if !initialized {
		t.Error("Expected initialized to be true after Init()")
	}
}

func TestInit_MultipleCallsAreIdempotent(t *testing.T) {
	resetRegistry()

	if err := Init(); err != nil {
		t.Fatalf("First Init() failed: %v", err)
	}
	if err := Init(); err != nil {
		t.Errorf("Second Init() returned error: %v", err)
	}
}

func TestMustInit(t *testing.T) {
	resetRegistry()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustInit() panicked: %v", r)
		}
	}()

	MustInit()
}

func TestSetMode(t *testing.T) {
	all := []string{"killed", "stopped", "maintenance", "normal"}

	SetMode("maintenance", all)
	if got := testutil.ToFloat64(ModeCurrent.WithLabelValues("maintenance")); got != 1 {
		t.Errorf("expected maintenance gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(ModeCurrent.WithLabelValues("normal")); got != 0 {
		t.Errorf("expected normal gauge 0, got %v", got)
	}

	SetMode("normal", all)
	if got := testutil.ToFloat64(ModeCurrent.WithLabelValues("maintenance")); got != 0 {
		t.Errorf("expected maintenance gauge reset to 0, got %v", got)
	}
}

func TestModeMetrics_Registration(t *testing.T) {
	resetRegistry()

	if err := registerModeMetrics(); err != nil {
		t.Fatalf("registerModeMetrics() failed: %v", err)
	}

	NodeActive.Set(1)
	metrics, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(metrics) == 0 {
		t.Error("Expected mode metrics to be registered")
	}
}
