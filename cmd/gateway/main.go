package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"quota-gateway/middleware/ratelimit"
	"quota-gateway/middleware/ratelimit/domain"
	"quota-gateway/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	table := ratelimit.DefaultPolicyTable()
	if cfg.policyFile != "" {
		table, err = ratelimit.LoadPolicyFile(cfg.policyFile)
		if err != nil {
			log.Fatalf("policy file error: %v", err)
		}
	}
	if cfg.defaultPerMinute >= 0 {
		table.Default.PerMinute = cfg.defaultPerMinute
	}
	if cfg.defaultPerHour >= 0 {
		table.Default.PerHour = cfg.defaultPerHour
	}
	if err := table.Validate(); err != nil {
		log.Fatalf("policy table error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store domain.CounterStore
	var rdb *redis.Client
	switch cfg.quotaStore {
	case "redis":
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
			// uma reconexão rápida por chamada, sem loop de retry que
			// segure a requisição
			MaxRetries:   1,
			DialTimeout:  cfg.quotaTimeout,
			ReadTimeout:  cfg.quotaTimeout,
			WriteTimeout: cfg.quotaTimeout,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			// em fail-closed não faz sentido subir sem store: toda
			// requisição seria 503. Em fail-open o gateway sobe degradado.
			if cfg.failMode == ratelimit.FailClosed {
				log.Fatalf("redis ping error: %v", err)
			}
			log.Printf("redis ping error: %v — starting degraded (fail-open)", err)
		}

		store = infra.NewRedisStore(rdb, infra.WithOpTimeout(cfg.quotaTimeout))
	case "memory":
		mem := infra.NewMemoryStore()
		mem.StartJanitor(ctx)
		store = mem
	}

	var stats []domain.StatsStore
	if cfg.statsEnabled {
		statsRdb := rdb
		if statsRdb == nil {
			log.Fatalf("STATS_ENABLED requires QUOTA_STORE=redis")
		}
		stats = append(stats, infra.NewRedisStatsStore(
			statsRdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackIdentities(cfg.statsTrackIdentities),
		))
	}
	if cfg.metricsEnabled {
		stats = append(stats, infra.NewPromStats(nil))
	}

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.quotaEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Store:              store,
			Table:              table,
			Stats:              ratelimit.CombineStats(stats...),
			IdentityHeader:     cfg.identityHeader,
			TrustXForwardedFor: cfg.trustXFF,
			Namespace:          cfg.namespace,
			FailMode:           cfg.failMode,
			SkipPaths:          cfg.skipPaths,
		})(h)
	}

	root := http.NewServeMux()
	if cfg.metricsEnabled {
		// servido localmente, não proxied; também está nos skip paths
		root.Handle("/metrics", promhttp.Handler())
	}
	root.Handle("/", h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("quota: enabled=%v store=%s failMode=%s namespace=%q defaults=%d/min %d/h policyFile=%q",
		cfg.quotaEnabled, cfg.quotaStore, cfg.failMode, cfg.namespace, table.Default.PerMinute, table.Default.PerHour, cfg.policyFile)
	log.Printf("quota-stats: enabled=%v bucket=%q ttl=%s trackIdentities=%v metrics=%v",
		cfg.statsEnabled, cfg.statsBucket, cfg.statsTTL, cfg.statsTrackIdentities, cfg.metricsEnabled)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr  string
	upstreamURL string

	quotaEnabled     bool
	quotaStore       string
	namespace        string
	failMode         ratelimit.FailMode
	quotaTimeout     time.Duration
	policyFile       string
	defaultPerMinute int
	defaultPerHour   int
	skipPaths        []string
	identityHeader   string
	trustXFF         bool

	redisAddr     string
	redisPassword string
	redisDB       int

	statsEnabled         bool
	statsPrefix          string
	statsTTL             time.Duration
	statsBucket          string
	statsTrackIdentities bool
	metricsEnabled       bool

	concurrencyMax     int
	concurrencyTimeout time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.quotaEnabled = getenvBoolDefault("QUOTA_ENABLED", true)
	cfg.quotaStore = strings.ToLower(getenvDefault("QUOTA_STORE", "redis"))
	cfg.namespace = getenvDefault("QUOTA_NAMESPACE", "ratelimit")
	cfg.quotaTimeout = getenvDurationDefault("QUOTA_TIMEOUT", 150*time.Millisecond)
	cfg.policyFile = os.Getenv("QUOTA_POLICY_FILE")
	cfg.defaultPerMinute = getenvIntDefault("QUOTA_DEFAULT_PER_MINUTE", -1)
	cfg.defaultPerHour = getenvIntDefault("QUOTA_DEFAULT_PER_HOUR", -1)
	cfg.identityHeader = os.Getenv("QUOTA_IDENTITY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)

	if v, ok := os.LookupEnv("QUOTA_SKIP_PATHS"); ok {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.skipPaths = append(cfg.skipPaths, p)
			}
		}
		if cfg.skipPaths == nil {
			cfg.skipPaths = []string{}
		}
	}

	mode, ok := ratelimit.ParseFailMode(getenvDefault("QUOTA_FAIL_MODE", "open"))
	if !ok {
		return config{}, errors.New("QUOTA_FAIL_MODE must be \"open\" or \"closed\"")
	}
	cfg.failMode = mode

	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "ratelimit:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackIdentities = getenvBoolDefault("STATS_TRACK_IDENTITIES", false)
	cfg.metricsEnabled = getenvBoolDefault("METRICS_ENABLED", true)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.quotaStore != "redis" && cfg.quotaStore != "memory" {
		return config{}, errors.New("QUOTA_STORE must be \"redis\" or \"memory\"")
	}
	if cfg.quotaTimeout <= 0 {
		return config{}, errors.New("QUOTA_TIMEOUT must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
