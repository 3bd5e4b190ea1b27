package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/logging"
)

type loadtestOptions struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
	rotate      bool
}

// sessionState is the client side of one seeded session. Refresh replaces
// the fingerprint, so a worker holds mu for the whole call.
type sessionState struct {
	mu          sync.Mutex
	access      string
	refresh     string
	fingerprint string
}

func newLoadtestCmd() *cobra.Command {
	var o loadtestOptions
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure login, verification and refresh throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.sessions <= 0 || o.concurrency <= 0 || o.ops <= 0 {
				return fmt.Errorf("sessions, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.sessions, "sessions", 10000, "number of sessions to seed")
	f.IntVar(&o.concurrency, "concurrency", 256, "number of concurrent workers")
	f.IntVar(&o.ops, "ops", 100000, "operations per phase (verify + refresh)")
	f.StringVar(&o.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	f.StringVar(&o.prefix, "prefix", "lt", "key prefix")
	f.BoolVar(&o.rotate, "rotate", false, "rotate refresh tokens on refresh")
	return cmd
}

func loadtestEngine(client redis.UniversalClient, o loadtestOptions) (*goSession.Engine, error) {
	access, err := internal.RandomHex(32)
	if err != nil {
		return nil, err
	}
	refresh, err := internal.RandomHex(32)
	if err != nil {
		return nil, err
	}

	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(access)
	cfg.JWT.RefreshSecret = []byte(refresh)
	cfg.Store.Prefix = o.prefix
	cfg.Security.RotateRefreshToken = o.rotate
	cfg.RateLimit.Enabled = false
	cfg.Audit.Enabled = false

	return goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logging.Discard()).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
}

func runLoadtest(ctx context.Context, out io.Writer, o loadtestOptions) error {
	addr := o.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	engine, err := loadtestEngine(client, o)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	states := make([]sessionState, o.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", o.sessions)
	loginStats := runPhase(o.sessions, o.concurrency, func(i, _ int, _ *rand.Rand) error {
		res, err := engine.Login(ctx, goSession.LoginRequest{
			UserID:    fmt.Sprintf("u-%d", i),
			Email:     fmt.Sprintf("u-%d@loadtest.local", i),
			IP:        "127.0.0.1",
			UserAgent: "gosession-loadtest",
		})
		if err != nil {
			return err
		}
		s := &states[i]
		s.access, s.refresh, s.fingerprint = res.AccessToken, res.RefreshToken, res.Fingerprint
		return nil
	})

	verifyStats := runPhase(o.ops, o.concurrency, func(_, _ int, r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		access, fp := s.access, s.fingerprint
		s.mu.Unlock()
		_, err := engine.VerifyAccess(ctx, access, fp)
		return err
	})

	refreshStats := runPhase(o.ops, o.concurrency, func(_, _ int, r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := engine.Refresh(ctx, s.refresh, s.fingerprint)
		if err != nil {
			return err
		}
		s.access, s.fingerprint = res.AccessToken, res.Fingerprint
		if res.RefreshToken != "" {
			s.refresh = res.RefreshToken
		}
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "login", loginStats)
	printStats(out, "verify", verifyStats)
	printStats(out, "refresh", refreshStats)
	return nil
}

// runPhase runs fn ops times across concurrency workers and records the
// latency of every call.
func runPhase(ops, concurrency int, fn func(i, worker int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(i, worker, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
