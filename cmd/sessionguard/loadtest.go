package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/sessionguard/internal"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type loadTestOptions struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
	ttl         time.Duration
	throttle    time.Duration
}

func newLoadTestCommand() *cobra.Command {
	opts := &loadTestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure session create, get and refresh latency against Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("sessions, concurrency, and ops must be > 0")
			}
			if opts.redisAddr == "" {
				opts.redisAddr = os.Getenv("REDIS_ADDR")
			}
			return runLoadTest(cmd.Context(), cmd.OutOrStdout(), *opts)
		},
	}
	cmd.Flags().IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 50000, "operations per phase (get + refresh)")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "session TTL")
	cmd.Flags().DurationVar(&opts.throttle, "throttle", 30*time.Second, "session refresh throttle")
	return cmd
}

type seededSession struct {
	userID    string
	sessionID string
}

func runLoadTest(ctx context.Context, out io.Writer, opts loadTestOptions) error {
	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if opts.redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		client = kvstore.NewClient(kvstore.ClientOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	} else {
		client = kvstore.NewClient(kvstore.ClientOptions{Addrs: []string{opts.redisAddr}})
		cleanup = func() { _ = client.Close() }
		fmt.Fprintf(out, "using redis at %s\n", opts.redisAddr)
	}
	defer cleanup()

	kv := kvstore.New(client, kvstore.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	store := session.NewStore(kv, session.Config{TTL: opts.ttl, RefreshThrottle: opts.throttle})

	states := make([]seededSession, opts.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", opts.sessions)
	createStats, err := runPhase(ctx, opts.sessions, opts.concurrency, func(i int, _ *rand.Rand) error {
		sid, err := internal.NewSessionIDString()
		if err != nil {
			return err
		}
		states[i] = seededSession{userID: uuid.NewString(), sessionID: sid}
		_, err = store.Create(ctx, states[i].userID, sid, session.Fields{Email: "load@example.com", Name: "load"})
		return err
	})
	if err != nil {
		return err
	}

	getStats, err := runPhase(ctx, opts.ops, opts.concurrency, func(_ int, r *rand.Rand) error {
		s := states[r.Intn(len(states))]
		if store.Get(ctx, s.sessionID) == nil {
			return errMiss
		}
		return nil
	})
	if err != nil {
		return err
	}

	refreshStats, err := runPhase(ctx, opts.ops, opts.concurrency, func(_ int, r *rand.Rand) error {
		s := states[r.Intn(len(states))]
		if !store.Refresh(ctx, s.sessionID, false) {
			return errMiss
		}
		return nil
	})
	if err != nil {
		return err
	}

	kvStats := kv.Stats()
	fmt.Fprintln(out, "---- results ----")
	printStats(out, "create", createStats)
	printStats(out, "get", getStats)
	printStats(out, "refresh", refreshStats)
	fmt.Fprintf(out, "store: commands=%d pipelines=%d pipelined=%d\n", kvStats.Commands, kvStats.Pipelines, kvStats.PipelinedCommands)
	return nil
}

var errMiss = errors.New("operation failed")

// runPhase spreads ops calls of fn over concurrency workers. fn errors count
// as failures; only context cancellation aborts the phase.
func runPhase(ctx context.Context, ops, concurrency int, fn func(i int, r *rand.Rand) error) (phaseStats, error) {
	var (
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*7919))
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return nil
				}
				t0 := time.Now()
				err := fn(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), latencies, failures), nil
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
		return phaseStats{total: total}
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

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
