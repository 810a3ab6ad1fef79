// Package main запускает прошивку киоска голосования.
// Процесс реализует:
// - синхронизацию конфигурации устройства и активного опроса с сервером
// - захват оценки с кнопок и поведенческие метрики голоса
// - хранение конфигурации в SQLite, журнал голосов в Redis
// - локальный API статуса и экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vote-kiosk/internal/analytics"
	"vote-kiosk/internal/cache"
	"vote-kiosk/internal/config"
	"vote-kiosk/internal/device"
	"vote-kiosk/internal/handlers"
	"vote-kiosk/internal/metrics"
	"vote-kiosk/internal/remote"
	"vote-kiosk/internal/scheduler"
	"vote-kiosk/internal/session"
	"vote-kiosk/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stdout).With("device_id", cfg.DeviceID)
	slog.SetDefault(logger)

	logger.Info("starting vote kiosk", "go_version", runtime.Version(), "server", cfg.ServerBaseURL)

	if err := run(cfg, logger); err != nil {
		logger.Error("kiosk stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("kiosk stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configStore, err := store.Open(cfg.DBPath, cfg.DeviceID)
	if err != nil {
		return err
	}
	defer configStore.Close()

	redisCache := connectRedis(ctx, cfg, logger)
	if redisCache != nil {
		defer redisCache.Close()
	}

	feedback := device.MultiFeedback{device.LogFeedback{Logger: logger}}
	if cfg.MQTTBroker != "" {
		mqttFeedback, err := device.DialMQTT(cfg.MQTTBroker, cfg.MQTTTopic, cfg.DeviceID, logger)
		if err != nil {
			logger.Warn("MQTT feedback unavailable", "broker", cfg.MQTTBroker, "error", err)
		} else {
			defer mqttFeedback.Close()
			feedback = append(feedback, mqttFeedback)
		}
	}

	var input device.Input = device.NoInput{}
	if cfg.Input == "stdin" {
		lineInput := device.NewLineInput(cfg.ButtonHold, logger)
		go lineInput.Listen(os.Stdin)
		input = lineInput
		logger.Info("reading button presses from stdin", "usage", "type a rating 1-5 and press enter")
	}

	clock := device.NewSystemClock()
	client := remote.NewClient(cfg.ServerBaseURL, cfg.HTTPTimeout, logger)
	prober, err := remote.NewProber(cfg.ServerBaseURL, clock, logger)
	if err != nil {
		return err
	}

	tracker := analytics.NewLatencyTracker()
	recorders := []session.Recorder{tracker, metrics.Recorder{}}
	var journal handlers.VoteJournal
	if redisCache != nil {
		recorders = append(recorders, redisCache)
		journal = redisCache
	}

	capture := session.New(session.Deps{
		Clock:     clock,
		Input:     input,
		Display:   device.LogDisplay{Logger: logger},
		Feedback:  feedback,
		Submitter: client,
		Logger:    logger,
	}, recorders...)

	sched := scheduler.New(scheduler.Deps{
		DeviceID: cfg.DeviceID,
		Clock:    clock,
		Link:     prober,
		Remote:   client,
		Store:    configStore,
		Capturer: capture,
		Logger:   logger,
	}, cfg.Intervals)

	server := newStatusServer(cfg, handlers.NewHandler(cfg.DeviceID, sched, tracker, journal, logger), logger)
	go func() {
		logger.Info("status API listening", "addr", cfg.StatusAddr,
			"endpoints", []string{"/health", "/status", "/stats", "/votes/latest", "/analyze", "/prometheus", "/debug/pprof/"})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status API error", "error", err)
		}
	}()

	runErr := sched.Run(ctx)

	logger.Info("shutting down status API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status API shutdown error", "error", err)
	}
	return runErr
}

// connectRedis пробует подключиться к Redis с повторами. Без Redis киоск
// работает, но без журнала голосов
func connectRedis(ctx context.Context, cfg config.Config, logger *slog.Logger) *cache.RedisCache {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, vote journal disabled")
		return nil
	}

	var lastErr error
	for i := 0; i < 5; i++ {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DeviceID, logger)
		if err == nil {
			logger.Info("connected to Redis", "addr", cfg.RedisAddr)
			return redisCache
		}
		lastErr = err
		logger.Warn("Redis connection attempt failed", "attempt", i+1, "error", err)
		if i < 4 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(i+1) * time.Second):
			}
		}
	}
	logger.Warn("running without vote journal", "error", lastErr)
	return nil
}

func newStatusServer(cfg config.Config, h *handlers.Handler, logger *slog.Logger) *http.Server {
	router := mux.NewRouter()
	h.Register(router)

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	router.Use(loggingMiddleware(logger))

	return &http.Server{
		Addr:         cfg.StatusAddr,
		Handler:      gorillahandlers.RecoveryHandler(gorillahandlers.PrintRecoveryStack(true))(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
