// Package handlers содержит HTTP обработчики локального API статуса киоска
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"vote-kiosk/internal/analytics"
	"vote-kiosk/internal/cache"
	"vote-kiosk/internal/metrics"
	"vote-kiosk/internal/models"
	"vote-kiosk/internal/scheduler"
)

const (
	defaultLatestCount = 50
	journalTimeout     = 2 * time.Second
)

// StateProvider источник состояния главного цикла
type StateProvider interface {
	Snapshot() scheduler.Snapshot
}

// VoteJournal журнал голосов устройства
type VoteJournal interface {
	GetLatestVotes(ctx context.Context, count int64) ([]cache.JournalEntry, error)
	Stats(ctx context.Context, deviceID string) (models.StatsResponse, error)
	Ping(ctx context.Context) error
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	deviceID  string
	state     StateProvider
	tracker   *analytics.LatencyTracker
	journal   VoteJournal
	logger    *slog.Logger
	startTime time.Time
}

// NewHandler создает новый обработчик. journal может быть nil, если Redis
// не настроен
func NewHandler(deviceID string, state StateProvider, tracker *analytics.LatencyTracker, journal VoteJournal, logger *slog.Logger) *Handler {
	return &Handler{
		deviceID:  deviceID,
		state:     state,
		tracker:   tracker,
		journal:   journal,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Register регистрирует маршруты API на роутере
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", h.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/votes/latest", h.LatestVotesHandler).Methods(http.MethodGet)
	router.HandleFunc("/analyze", h.AnalyzeHandler).Methods(http.MethodGet)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), journalTimeout)
		defer cancel()
		redisStatus = "connected"
		if err := h.journal.Ping(ctx); err != nil {
			redisStatus = "disconnected"
		}
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatusHandler обрабатывает GET /status - конфигурация, опрос и связь
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/status", r.Method))
	defer timer.ObserveDuration()

	metrics.RequestsTotal.WithLabelValues("/status", r.Method, "200").Inc()
	h.respondJSON(w, h.state.Snapshot(), http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - счетчики голосов. Без Redis
// отдает счетчики текущего запуска
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/stats", r.Method))
	defer timer.ObserveDuration()

	if h.journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), journalTimeout)
		defer cancel()
		stats, err := h.journal.Stats(ctx, h.deviceID)
		if err == nil {
			metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
			h.respondJSON(w, stats, http.StatusOK)
			return
		}
		h.logger.Warn("journal stats unavailable, falling back to in-memory counters", "error", err)
	}

	ts := h.tracker.Stats()
	response := models.StatsResponse{
		DeviceID:           h.deviceID,
		TotalVotes:         ts.Total(),
		ApprovedVotes:      ts.ByStatus[models.StatusApproved],
		SuspiciousVotes:    ts.ByStatus[models.StatusSuspicious],
		RejectedVotes:      ts.ByStatus[models.StatusRejected],
		Timeouts:           ts.Timeouts,
		SubmissionFailures: ts.SubmissionFailures,
		ApprovalRate:       ts.ApprovalRate(),
	}

	metrics.RequestsTotal.WithLabelValues("/stats", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// LatestVotesHandler возвращает последние голоса из журнала
func (h *Handler) LatestVotesHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/votes/latest", r.Method))
	defer timer.ObserveDuration()

	count := int64(defaultLatestCount)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= cache.JournalLength {
			count = c
		}
	}

	if h.journal == nil {
		metrics.RequestsTotal.WithLabelValues("/votes/latest", r.Method, "503").Inc()
		h.respondError(w, "Vote journal not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), journalTimeout)
	defer cancel()
	entries, err := h.journal.GetLatestVotes(ctx, count)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("/votes/latest", r.Method, "500").Inc()
		h.respondError(w, "Failed to get votes: "+err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.RequestsTotal.WithLabelValues("/votes/latest", r.Method, "200").Inc()
	h.respondJSON(w, entries, http.StatusOK)
}

// AnalyzeHandler обрабатывает GET /analyze - скользящая статистика задержек
// и действующие пороги классификатора
func (h *Handler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues("/analyze", r.Method))
	defer timer.ObserveDuration()

	ts := h.tracker.Stats()
	th := h.state.Snapshot().Config.Thresholds()

	response := map[string]interface{}{
		"timestamp": time.Now(),
		"latency_ms": map[string]interface{}{
			"rolling_avg": ts.RollingAvgLatencyMs,
			"std_dev":     ts.StdDevLatencyMs,
			"samples":     ts.WindowCount,
			"window_size": analytics.WindowSize,
		},
		"thresholds": map[string]float64{
			"anomaly":        th.Anomaly,
			"reject_anomaly": analytics.RejectFactor * th.Anomaly,
			"min_confidence": analytics.MinConfidence,
			"confidence":     th.Confidence,
		},
		"approval_rate": ts.ApprovalRate(),
	}

	metrics.RequestsTotal.WithLabelValues("/analyze", r.Method, "200").Inc()
	h.respondJSON(w, response, http.StatusOK)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("response write failed", "error", err)
	}
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, map[string]string{"error": message}, status)
}
