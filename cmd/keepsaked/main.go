package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/keepsakehq/keepsake/internal/config"
	kvRedis "github.com/keepsakehq/keepsake/internal/kv/redis"
	logpkg "github.com/keepsakehq/keepsake/internal/logger"
	"github.com/keepsakehq/keepsake/internal/metrics"
	chiTransport "github.com/keepsakehq/keepsake/internal/transport/chi"
	"github.com/keepsakehq/keepsake/internal/transport/journalapi"
	"github.com/keepsakehq/keepsake/internal/transport/objectstore"
	openaiAI "github.com/keepsakehq/keepsake/internal/transport/openai"
	entryuc "github.com/keepsakehq/keepsake/internal/usecase/entry"
	healthuc "github.com/keepsakehq/keepsake/internal/usecase/health"
	historyuc "github.com/keepsakehq/keepsake/internal/usecase/history"
	searchuc "github.com/keepsakehq/keepsake/internal/usecase/search"
	uploaduc "github.com/keepsakehq/keepsake/internal/usecase/upload"
	"github.com/keepsakehq/keepsake/internal/version"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting keepsake gateway",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
	)

	store, err := kvRedis.NewStore(kvRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create history store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("History store not ready", zap.Error(err))
	}
	logger.Info("Connected to history store")

	// Register domain metrics explicitly (no init())
	metrics.RegisterDomainMetrics()

	// Outbound clients
	storage := objectstore.NewClient(cfg.ObjectStore.BaseURL, logger).
		WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.ObjectStore.TimeoutSec) * time.Second})
	backend := journalapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, logger).
		WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Backend.TimeoutSec) * time.Second})
	ai := openaiAI.NewClient(&openaiAI.Config{
		APIKey:          cfg.AI.APIKey,
		BaseURL:         cfg.AI.BaseURL,
		TranscribeModel: cfg.AI.TranscribeModel,
		SummaryModel:    cfg.AI.SummaryModel,
		Logger:          logger,
	})

	// Use case services
	uploadSvc := uploaduc.New(storage, storage, backend).
		WithLimits(cfg.Upload.MaxFiles, int64(cfg.Upload.MaxFileSizeMB)<<20).
		WithAcceptedTypes(cfg.Upload.AcceptedTypes)

	histSvc := historyuc.New(store).
		WithSize(cfg.Search.HistorySize).
		WithTTL(time.Duration(cfg.Search.HistoryTTLDays) * 24 * time.Hour)

	searchSvc := searchuc.New(backend, backend).
		WithHistory(chiTransport.NewHistoryRecorder(histSvc))

	voiceSvc := entryuc.New(ai, ai, storage, backend)

	healthSvc := healthuc.New(store, backend)

	server := chiTransport.NewServer(uploadSvc, searchSvc, histSvc, voiceSvc, healthSvc, logger).
		WithDefaultLimit(cfg.Search.DefaultLimit)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.UserMiddleware)
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
