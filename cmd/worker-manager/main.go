// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"book-availability/internal/api"
	"book-availability/internal/cache"
	"book-availability/internal/common/camunda"
	"book-availability/internal/common/config"
	"book-availability/internal/common/database"
	bookhttp "book-availability/internal/common/http"
	"book-availability/internal/common/logger"
	"book-availability/internal/common/observability"
	"book-availability/internal/ratelimit"
	"book-availability/pkg/registry"

	// Scraping workers
	el "book-availability/internal/workers/scraping/education-lib"
	su "book-availability/internal/workers/scraping/songpa-unified"

	// Search workers
	ah "book-availability/internal/workers/search/aggregate-holdings"
	sb "book-availability/internal/workers/search/search-books"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting book availability service...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Branch registry ---
	reg := registry.Default()
	if cfg.Registry.Path != "" {
		reg, err = registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("branch registry failed to load", zap.String("path", cfg.Registry.Path), zap.Error(err))
		}
	}
	zapLog.Info("Branch registry loaded", zap.Int("branches", reg.Len()))

	// --- Redis with retry. The service still starts when Redis stays down:
	// the cache misses and the rate limiter fails open. ---
	redis := database.NewRedis(cfg.Database.Redis)
	defer redis.Close()
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 5, time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Error("redis unavailable, continuing degraded", zap.Error(err))
	} else {
		zapLog.Info("Redis connected successfully")
	}

	// --- Core components ---
	fetcher := bookhttp.NewFetcher(bookhttp.FetcherConfig{
		Timeout:     config.GetDuration(cfg.Fetch.Timeout),
		MaxAttempts: cfg.Fetch.MaxAttempts,
		BackoffUnit: config.GetDuration(cfg.Fetch.BackoffUnit),
		UserAgent:   cfg.Fetch.UserAgent,
	}, log)

	resultCache := cache.New(redis.Client, cache.TTLs{
		Search:    config.GetSeconds(cfg.Cache.SearchTTL),
		Libraries: config.GetSeconds(cfg.Cache.LibraryTTL),
		Book:      config.GetSeconds(cfg.Cache.BookTTL),
	}, log)

	limiter := ratelimit.NewLimiter(redis.Client, ratelimit.Config{
		Limit:  cfg.RateLimit.Limit,
		Window: config.GetDuration(cfg.RateLimit.Window),
		Prefix: cfg.RateLimit.Prefix,
	}, log)

	songpa := su.NewHandler(su.LoadConfig(cfg), fetcher, reg, log)
	education := el.NewHandler(el.LoadConfig(cfg), fetcher, reg, log)

	var primary, secondary ah.Source = songpa, education
	if !cfg.Sources.SongpaUnified.Enabled {
		zapLog.Warn("songpa unified catalog disabled")
		primary = ah.Disabled(su.Source)
	}
	if !cfg.Sources.Education.Enabled {
		zapLog.Warn("education catalog disabled")
		secondary = ah.Disabled(el.Source)
	}

	aggregator := ah.NewHandler(ah.LoadConfig(cfg), primary, secondary, log)
	search := sb.NewHandler(sb.LoadConfig(cfg), limiter, resultCache, aggregator, obs, log)

	// --- Zeebe job workers (optional) ---
	var (
		zeebeClient zbc.Client
		jobWorkers  []worker.JobWorker
	)
	if cfg.Camunda.Enabled {
		var permanent error
		err = retryWithBackoff(func() error {
			client, err := camunda.NewClient(camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			if err != nil && !camunda.IsTransient(err) {
				permanent = err
				return nil
			}
			zeebeClient = client
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if permanent != nil {
			err = permanent
		}
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		for taskType, handle := range map[string]worker.JobHandler{
			su.TaskType: songpa.Handle,
			el.TaskType: education.Handle,
			ah.TaskType: aggregator.Handle,
			sb.TaskType: search.Handle,
		} {
			if jw := camunda.StartWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handle, log); jw != nil {
				jobWorkers = append(jobWorkers, jw)
			}
		}
		zapLog.Info("Job workers registered", zap.Int("count", len(jobWorkers)))
	} else {
		zapLog.Info("Camunda disabled, serving the HTTP API only")
	}

	// --- HTTP: API, health and metrics ---
	mux := http.NewServeMux()
	api.NewServer(search, resultCache, reg, redis, cfg.App.Version, log).Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if zeebeClient != nil {
			if err := camunda.HealthCheck(r.Context(), zeebeClient, 2*time.Second); err != nil {
				status, code = "not ready", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"redis":  redis.Status(r.Context()),
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      config.GetDuration(cfg.Server.RequestTimeout) + 5*time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range jobWorkers {
		jw.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Book availability service stopped gracefully")
}
