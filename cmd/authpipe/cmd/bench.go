package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authpipe"
	"github.com/MrEthical07/authpipe/authtest"
	"github.com/alicebob/miniredis/v2"
	"github.com/pterm/pterm"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	benchWaves        int
	benchCallers      int
	benchBackend      string
	benchRefreshDelay time.Duration
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure refresh coalescing against an in-process server",
	Long: `Starts a local test server, logs in, then runs waves of concurrent requests.
Before each wave the server invalidates every access token, so each wave
must refresh once. The report shows refresh calls against waves and the
request latency percentiles.

The redis backend uses --redis-addr when set and an in-process miniredis
otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchWaves <= 0 || benchCallers <= 0 {
			return fmt.Errorf("waves and callers must be > 0")
		}
		return runBench(cmd.Context())
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchWaves, "waves", 20, "number of expiry waves")
	benchCmd.Flags().IntVar(&benchCallers, "callers", 64, "concurrent requests per wave")
	benchCmd.Flags().StringVar(&benchBackend, "backend", "memory", "credential store: memory or redis")
	benchCmd.Flags().DurationVar(&benchRefreshDelay, "refresh-delay", 20*time.Millisecond, "server-side refresh latency")
}

func runBench(ctx context.Context) error {
	srv := authtest.NewServer(authtest.WithUser("bench", "bench"))
	defer srv.Close()
	srv.SetRefreshDelay(benchRefreshDelay)

	cfg := authpipe.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Device = "authpipe-bench"
	cfg.Refresh.RateLimit = 0
	cfg.Refresh.MaxConsecutiveFailures = 0
	cfg.Metrics.EnableLatencyHistograms = true

	b := authpipe.New().WithConfig(cfg).WithHTTPClient(srv.Client())
	switch benchBackend {
	case "memory":
	case "redis":
		rdb, cleanup, err := benchRedis()
		if err != nil {
			return err
		}
		defer cleanup()
		b = b.WithRedis(rdb)
	default:
		return fmt.Errorf("unknown bench backend %q", benchBackend)
	}

	client, err := b.Build(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Login(ctx, "bench", "bench"); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var (
		failures atomic.Int64
		mu       sync.Mutex
		samples  = make([]time.Duration, 0, benchWaves*benchCallers)
	)

	start := time.Now()
	for wave := 0; wave < benchWaves; wave++ {
		srv.ExpireAccess()

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < benchCallers; i++ {
			g.Go(func() error {
				began := time.Now()
				resp, err := client.Get(gctx, authtest.ResourcePath)
				if err != nil {
					failures.Add(1)
					return nil
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				mu.Lock()
				samples = append(samples, time.Since(began))
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	stats := computeStats(time.Since(start), samples, failures.Load())

	snap := client.MetricsSnapshot()
	pterm.DefaultSection.Println("Refresh coalescing")
	data := pterm.TableData{
		{"METRIC", "VALUE"},
		{"Backend", benchBackend},
		{"Waves", fmt.Sprint(benchWaves)},
		{"Callers per wave", fmt.Sprint(benchCallers)},
		{"Refresh calls", fmt.Sprint(srv.RefreshCalls())},
		{"Refresh joined", fmt.Sprint(snap.Counters[authpipe.MetricRefreshJoined])},
		{"Requests retried", fmt.Sprint(snap.Counters[authpipe.MetricRequestRetried])},
		{"Failures", fmt.Sprint(stats.failures)},
		{"Total", stats.total.Round(time.Millisecond).String()},
		{"Requests/s", fmt.Sprintf("%.0f", stats.opsPerS)},
		{"p50", stats.p50.String()},
		{"p95", stats.p95.String()},
		{"p99", stats.p99.String()},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	if srv.RefreshCalls() > benchWaves {
		pterm.Warning.Printf("%d refresh calls for %d waves\n", srv.RefreshCalls(), benchWaves)
	}
	return nil
}

func benchRedis() (redis.UniversalClient, func(), error) {
	if redisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{redisAddr}})
		pterm.Info.Printf("using redis at %s\n", redisAddr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	pterm.Info.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
