package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"ixurl.local/gee"
	"ixurl.local/gee/middleware"
	"ixurl.local/internal/app/imgix"
	imgixcache "ixurl.local/internal/app/imgix/cache"
	"ixurl.local/internal/app/imgix/httpapi"
	"ixurl.local/internal/app/imgix/repo"
	"ixurl.local/internal/app/imgix/stats"
	"ixurl.local/internal/platform/auth"
	platformcache "ixurl.local/internal/platform/cache"
	"ixurl.local/internal/platform/config"
	"ixurl.local/internal/platform/db"
	"ixurl.local/internal/platform/httpmiddleware"
	"ixurl.local/internal/platform/httpserver"
	"ixurl.local/internal/platform/metrics"
	"ixurl.local/internal/platform/migrate"
	"ixurl.local/internal/platform/ratelimit"
	"ixurl.local/internal/platform/trace"
	"ixurl.local/migrations"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg, os.Stdout))

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", cfg.ServiceName)
}

func run(cfg config.Config) error {
	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	dbCtx, cancel := context.WithTimeout(stopCtx, 3*time.Second)
	defer cancel()
	dbPool, err := db.New(dbCtx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	if err := dbPool.Ping(dbCtx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	slog.Info("database connected")

	if cfg.MigrateOnStart {
		res, err := migrate.Up(stopCtx, dbPool, migrate.Options{Dir: cfg.MigrationsDir, FS: migrations.FS})
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		slog.Info("migrations applied", "source", res.Source, "applied", len(res.AppliedFiles), "skipped", len(res.SkippedFiles))
	}

	// Redis backs the L2 cache and the default rate limiter. It is optional
	// only when the limiter runs in process.
	redisClient, err := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		if cfg.RateLimitBackend == "redis" {
			return err
		}
		slog.Warn("redis unavailable, running without L2 cache", "addr", cfg.RedisAddr, "err", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var limiter ratelimit.Allower
	var localLimiter *ratelimit.LocalLimiter
	switch {
	case !cfg.RateLimitEnabled:
		slog.Warn("rate limit disabled by config", "RATELIMIT_ENABLED", false)
	case cfg.RateLimitBackend == "local" || redisClient == nil:
		localLimiter = ratelimit.NewLocalLimiter()
		limiter = localLimiter
	default:
		limiter = ratelimit.NewLimiter(redisClient)
	}

	localCache, err := imgixcache.NewLocalCache(100_000)
	if err != nil {
		return err
	}
	sourceCache := imgixcache.NewSourceCache(redisClient, localCache)
	defer sourceCache.Close()
	bloomFilter := imgixcache.NewBloomFilter(100_000, 0.01)

	sourcesRepo := repo.NewSourcesRepo(dbPool, sourceCache, bloomFilter)
	operatorsRepo := repo.NewOperatorsRepo(dbPool)

	warmCtx, cancelWarm := context.WithTimeout(stopCtx, 10*time.Second)
	n, err := sourcesRepo.WarmBloom(warmCtx)
	cancelWarm()
	if err != nil {
		return fmt.Errorf("warm bloom: %w", err)
	}
	slog.Info("bloom filter warmed", "sources", n)

	if err := bootstrapAdmin(stopCtx, cfg, operatorsRepo); err != nil {
		return err
	}

	defaultBuilder, err := newDefaultBuilder(cfg, slog.Default())
	if err != nil {
		return err
	}

	// JWT
	ts, err := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return err
	}

	metrics.Init()

	if cfg.TracingEnabled {
		shutdown := trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Error("trace shutdown failed", "err", err)
			}
		}()
	} else {
		slog.Warn("tracing disabled by config", "TRACING_ENABLED", false)
	}

	g, ctx := errgroup.WithContext(stopCtx)

	// Stats pipeline: channel by default, Kafka when enabled.
	writer := stats.NewPgWriter(dbPool)
	var collector stats.Collector
	var consumerDone chan error
	if cfg.KafkaEnabled {
		slog.Info("collecting url events through kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		collector = stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
		consumer := stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, writer)
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(ctx) })
	} else {
		slog.Info("collecting url events in process", "buffer", cfg.StatsBuffer)
		cc := stats.NewChannelCollector(cfg.StatsBuffer)
		collector = cc
		consumer := stats.NewConsumer(writer, cc)
		// Runs until the collector is closed after the servers stop.
		consumerDone = make(chan error, 1)
		go func() { consumerDone <- consumer.Run(context.Background()) }()
	}

	if localLimiter != nil {
		g.Go(func() error { return localLimiter.Run(ctx, time.Minute, 10*time.Minute) })
	}

	r := gee.Default()
	r.Use(middleware.ReqID(), middleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName())

	httpapi.RegisterAPIRoutes(r.Group("/api/v1"), httpapi.Deps{
		Sources:   sourcesRepo,
		Operators: operatorsRepo,
		Registry:  imgix.NewRegistry(slog.Default()),
		Default:   defaultBuilder,
		Collector: collector,
		Tokens:    ts,
		Limiter:   limiter,
		Logger:    slog.Default(),
	})

	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)
	adminSrv := httpserver.NewAdmin(cfg, adminMux(cfg, dbPool, redisClient))

	g.Go(func() error { return httpserver.Serve(ctx, publicSrv, cfg.ShutdownTimeout) })
	g.Go(func() error { return httpserver.Serve(ctx, adminSrv, cfg.ShutdownTimeout) })

	err = g.Wait()
	collector.Close()
	if consumerDone != nil {
		<-consumerDone
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// newDefaultBuilder returns nil when IMGIX_DOMAINS is empty.
func newDefaultBuilder(cfg config.Config, logger *slog.Logger) (*imgix.Builder, error) {
	if len(cfg.ImgixDomains) == 0 {
		slog.Info("default imgix builder disabled, IMGIX_DOMAINS is empty")
		return nil, nil
	}
	strategy, ok := imgix.ParseShardStrategy(cfg.ImgixShardStrategy)
	if !ok {
		return nil, fmt.Errorf("IMGIX_SHARD_STRATEGY %q: %w", cfg.ImgixShardStrategy, imgix.ErrInvalidStrategy)
	}
	opts := []imgix.Option{
		imgix.WithHTTPS(cfg.ImgixUseHTTPS),
		imgix.WithSignKey(cfg.ImgixSignKey),
		imgix.WithShardStrategy(strategy),
		imgix.WithLibraryParam(cfg.ImgixIncludeLibraryParam),
		imgix.WithLogger(logger),
	}
	switch cfg.ImgixSignMode {
	case "":
	case "query":
		opts = append(opts, imgix.WithSignMode(imgix.SignModeQuery))
	case "path":
		opts = append(opts, imgix.WithSignMode(imgix.SignModePath))
	default:
		slog.Warn("unknown IMGIX_SIGN_MODE ignored", "value", cfg.ImgixSignMode)
	}

	domains := make([]string, 0, len(cfg.ImgixDomains))
	for _, d := range cfg.ImgixDomains {
		nd, err := imgix.NormalizeDomain(d)
		if err != nil {
			return nil, fmt.Errorf("IMGIX_DOMAINS: %w", err)
		}
		domains = append(domains, nd)
	}
	b, err := imgix.NewBuilder(domains, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("default imgix builder enabled",
		"domains", domains, "strategy", strategy.String(), "signed", b.Signed())
	return b, nil
}

func bootstrapAdmin(ctx context.Context, cfg config.Config, operators *repo.OperatorsRepo) error {
	if cfg.BootstrapAdminUser == "" {
		return nil
	}
	if cfg.BootstrapAdminPasswordHash == "" {
		return errors.New("BOOTSTRAP_ADMIN_USER set without BOOTSTRAP_ADMIN_PASSWORD_HASH")
	}
	created, err := operators.EnsureWithHash(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPasswordHash, repo.RoleAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		slog.Info("bootstrap admin created", "username", cfg.BootstrapAdminUser)
	}
	return nil
}

// adminMux serves local only endpoints. redisClient may be nil.
func adminMux(cfg config.Config, dbPool *pgxpool.Pool, redisClient *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("db not ready"))
			return
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("redis not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name":  cfg.ServiceName,
			"version":       version,
			"commit":        commit,
			"build_time":    buildTime,
			"go_version":    runtime.Version(),
			"imgix_library": "go-" + imgix.Version,
		})
	})

	if cfg.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}
