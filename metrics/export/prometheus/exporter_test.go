package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sessionguard "github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/kvstore"
)

type fakeSource struct {
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
	store    kvstore.StatsSnapshot
}

func (f fakeSource) MetricsSnapshot() sessionguard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }
func (f fakeSource) StoreStats() kvstore.StatsSnapshot             { return f.store }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters:   map[sessionguard.MetricID]uint64{},
			Histograms: map[sessionguard.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersHistogramAndStoreStats(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess: 7,
				sessionguard.MetricLoginLocked:  1,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
		store:   kvstore.StatsSnapshot{Commands: 11, Pipelines: 3, PipelinedCommands: 9},
	})

	out := exp.Render()
	for _, want := range []string{
		"sessionguard_login_success_total 7",
		"sessionguard_login_locked_total 1",
		"sessionguard_validate_latency_seconds_bucket{le=\"0.005\"} 1",
		"sessionguard_validate_latency_seconds_bucket{le=\"+Inf\"} 36",
		"sessionguard_audit_dropped_total 2",
		"sessionguard_kv_commands_total 11",
		"sessionguard_kv_pipelines_total 3",
		"sessionguard_kv_pipelined_commands_total 9",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters:   map[sessionguard.MetricID]uint64{sessionguard.MetricLoginSuccess: 1},
			Histograms: map[sessionguard.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
