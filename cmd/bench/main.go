// Command bench runs a synthetic loading workload against the cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/loadcache/cache"
	pmet "github.com/IvanBrykalov/loadcache/metrics/prom"
	"github.com/IvanBrykalov/loadcache/policy"
	"github.com/IvanBrykalov/loadcache/policy/lru"
	"github.com/IvanBrykalov/loadcache/policy/twoq"
)

func main() {
	// ---- Flags ----
	var (
		maxSize = flag.Int("max", 100_000, "maximum entries (0 = unbounded)")
		conc    = flag.Int("concurrency", 0, "concurrency level / shards (0=auto)")
		pol     = flag.String("policy", "lru", "eviction policy: lru | fifo | 2q")
		expire  = flag.Duration("expire", 30*time.Second, "expire after write (0 = never)")
		refresh = flag.Duration("refresh", 10*time.Second, "refresh after write (0 = never)")
		latency = flag.Duration("latency", time.Millisecond, "simulated loader latency")
		errPct  = flag.Int("errors", 0, "loader failure percentage [0..100]")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		writePct = flag.Int("writes", 5, "explicit Put percentage [0..100]")

		keys  = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	// ---- pprof + metrics (both on DefaultServeMux) ----
	metrics := pmet.New(nil, "loadcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	for _, addr := range []string{*pprofAddr, *metricsAddr} {
		if addr == "" {
			continue
		}
		go func() {
			logger.Info("serving http", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				logger.Error("http server stopped", slog.String("addr", addr), slog.String("error", err.Error()))
			}
		}()
	}

	// ---- Build cache ----
	var evictPolicy policy.Policy[string, string]
	switch *pol {
	case "lru":
		evictPolicy = lru.New[string, string]()
	case "fifo":
		evictPolicy = lru.NewWithOrder[string, string](lru.CreationOrder)
	case "2q":
		evictPolicy = twoq.New[string, string](0.25, 0.5)
	default:
		logger.Error("unknown policy", slog.String("policy", *pol))
		os.Exit(2)
	}

	loadLatency := *latency
	failPct := *errPct
	var loaderSeq atomic.Int64
	c, err := cache.New(cache.Options[string, string]{
		ConcurrencyLevel:  *conc,
		MaximumSize:       *maxSize,
		ExpireAfterWrite:  *expire,
		RefreshAfterWrite: *refresh,
		RecordStats:       true,
		Policy:            evictPolicy,
		Metrics:           metrics,
		Logger:            logger,
		Loader: func(ctx context.Context, k string) (string, error) {
			n := loaderSeq.Add(1)
			select {
			case <-time.After(loadLatency):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			if failPct > 0 && int(n%100) < failPct {
				return "", fmt.Errorf("synthetic failure #%d", n)
			}
			return "v:" + k, nil
		},
	})
	if err != nil {
		logger.Error("invalid cache options", slog.String("error", err.Error()))
		os.Exit(2)
	}
	defer func() { _ = c.Close() }()

	// ---- Snapshot flags for goroutines ----
	writePctVal := *writePct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var total, loadErrs atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workersN; w++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(w)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			for gctx.Err() == nil {
				k := "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
				total.Add(1)
				if int(localR.Int31n(100)) < writePctVal {
					c.Put(k, "p"+strconv.Itoa(localR.Int()))
					continue
				}
				if _, err := c.Get(gctx, k); err != nil && gctx.Err() == nil {
					loadErrs.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	ops := total.Load()
	logger.Info("bench finished",
		slog.String("policy", *pol),
		slog.Int("max", *maxSize),
		slog.Int("workers", workersN),
		slog.Int("keys", *keys),
		slog.Duration("elapsed", elapsed),
		slog.Int64("seed", seedBase),
		slog.Uint64("ops", ops),
		slog.Float64("ops_per_sec", float64(ops)/elapsed.Seconds()),
		slog.Float64("hit_rate", st.HitRate()),
		slog.Uint64("loads", st.LoadCount()),
		slog.Uint64("load_errors", loadErrs.Load()),
		slog.Duration("avg_load_penalty", st.AverageLoadPenalty()),
		slog.Uint64("evictions", st.EvictionCount),
		slog.Int("len", c.Len()),
	)
}
