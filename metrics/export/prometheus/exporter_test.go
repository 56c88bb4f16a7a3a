package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authpipe"
	"github.com/MrEthical07/authpipe/authtest"
)

type fakeSource struct {
	snapshot authpipe.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authpipe.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: authpipe.MetricsSnapshot{
			Counters:   map[authpipe.MetricID]uint64{},
			Histograms: map[authpipe.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: authpipe.MetricsSnapshot{
			Counters: map[authpipe.MetricID]uint64{
				authpipe.MetricRefreshSuccess: 7,
			},
			Histograms: map[authpipe.MetricID][]uint64{
				authpipe.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			Sums: map[authpipe.MetricID]time.Duration{
				authpipe.MetricRequestLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"authpipe_refresh_success_total 7",
		"authpipe_session_ended_total 0",
		`authpipe_request_duration_seconds_bucket{le="0.005"} 1`,
		`authpipe_request_duration_seconds_bucket{le="+Inf"} 36`,
		"authpipe_request_duration_seconds_sum 1.5",
		"authpipe_request_duration_seconds_count 36",
		"authpipe_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderOmitsDisabledHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: authpipe.MetricsSnapshot{
			Counters:   map[authpipe.MetricID]uint64{authpipe.MetricLogout: 1},
			Histograms: map[authpipe.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "authpipe_request_duration_seconds") {
		t.Fatalf("histogram rendered without latency tracking:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: authpipe.MetricsSnapshot{
			Counters:   map[authpipe.MetricID]uint64{authpipe.MetricLoginSuccess: 1},
			Histograms: map[authpipe.MetricID][]uint64{},
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

func TestExporterReadsLiveClient(t *testing.T) {
	srv := authtest.NewServer(authtest.WithUser("alice", "secret"))
	defer srv.Close()

	client, err := authpipe.New().
		WithBaseURL(srv.URL).
		WithHTTPClient(srv.Client()).
		WithLatencyHistograms(true).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if _, err := client.Login(ctx, "alice", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	var res authtest.Resource
	if err := client.GetJSON(ctx, authtest.ResourcePath, &res); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	out := NewExporter(client).Render()
	for _, want := range []string{
		"authpipe_login_success_total 1",
		"authpipe_requests_total 1",
		"authpipe_request_duration_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: authpipe.MetricsSnapshot{
			Counters: map[authpipe.MetricID]uint64{
				authpipe.MetricRequestTotal:        1000,
				authpipe.MetricRequestUnauthorized: 40,
				authpipe.MetricRefreshLeader:       12,
				authpipe.MetricRefreshJoined:       28,
				authpipe.MetricRefreshSuccess:      11,
				authpipe.MetricSessionEnded:        1,
			},
			Histograms: map[authpipe.MetricID][]uint64{
				authpipe.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
