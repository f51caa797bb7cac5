package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"caption-worker-service/internal/captioner"
	"caption-worker-service/internal/entity"
	"caption-worker-service/internal/reporter"
	"caption-worker-service/internal/repository/postgresql"
	"caption-worker-service/internal/repository/redisstore"
	"caption-worker-service/internal/service"
	httptransport "caption-worker-service/internal/transport/http"
	"caption-worker-service/internal/worker"
)

// jobStore is the full store surface: the control API uses the left half,
// the worker the right. Both drivers implement all of it.
type jobStore interface {
	Enqueue(ctx context.Context, job entity.Job) (int64, error)
	Remove(ctx context.Context, externalRefID string) (bool, error)
	Count(ctx context.Context) (int, error)
	ClaimOldest(ctx context.Context) (*entity.Job, error)
}

// @title          Caption Worker Service API
// @version        1.0
// @description    Control API for the asynchronous image captioning job queue.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using environment variables")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appURL := mustEnv("APP_URL")
	httpAddr := envOr("HTTP_ADDR", ":8000")
	storeDriver := envOr("STORE_DRIVER", "postgres")
	pollInterval := envDurOr("POLL_INTERVAL", 5*time.Second)
	extractTimeout := envDurOr("EXTRACT_TIMEOUT", 5*time.Minute)

	var store jobStore
	switch storeDriver {
	case "postgres":
		dsn := mustEnv("POSTGRES_DSN")
		if err := postgresql.Migrate(dsn); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		pool, err := postgresql.NewPool(ctx, dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pool.Close()
		store = postgresql.NewJobRepository(pool)

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: mustEnv("REDIS_ADDR")})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer func() { _ = rdb.Close() }()
		store = redisstore.NewJobStore(rdb, envOr("REDIS_KEY_PREFIX", "caption:jobs"))

	default:
		log.Fatal().Str("store_driver", storeDriver).Msg("unknown STORE_DRIVER, want postgres or redis")
	}

	sender := reporter.NewSender(normalizeBaseURL(appURL))

	registry := captioner.NewRegistry()
	registry.Register("test", captioner.NewStub(envDurOr("TEST_BACKEND_LATENCY", time.Second)))
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		gemini, err := captioner.NewGemini(ctx, apiKey, envOr("GEMINI_MODEL", "gemini-2.0-flash"))
		if err != nil {
			log.Fatal().Err(err).Msg("gemini backend init failed")
		}
		registry.Register("gemini", gemini)
	}
	log.Info().Strs("backends", registry.Names()).Str("store_driver", storeDriver).Msg("config loaded")

	w := worker.New(store, registry, sender,
		worker.WithPollInterval(pollInterval),
		worker.WithExtractTimeout(extractTimeout),
	)
	go w.Run(ctx)

	svc := service.NewJobService(store, sender)
	srv := &http.Server{
		Addr:    httpAddr,
		Handler: httptransport.Routes(httptransport.NewHandler(svc)),
	}

	go func() {
		log.Info().Str("addr", httpAddr).Msg("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	log.Info().Msg("service stopped")
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatal().Str("key", key).Msg("missing env")
	}
	return v
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envDurOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func normalizeBaseURL(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
