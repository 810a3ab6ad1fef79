// Package metrics реализует экспорт метрик киоска в Prometheus
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vote-kiosk/internal/models"
	"vote-kiosk/internal/remote"
)

// Prometheus метрики
var (
	// VotesCaptured захваченные голоса по статусу валидации
	VotesCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_votes_captured_total",
			Help: "Total number of captured votes by validation status",
		},
		[]string{"status"},
	)

	// VoteSubmissions результаты отправки голосов
	VoteSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_vote_submissions_total",
			Help: "Vote submissions by outcome category",
		},
		[]string{"result"},
	)

	// CaptureTimeouts сеансы без ввода
	CaptureTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_capture_timeouts_total",
			Help: "Total number of capture sessions that ended without input",
		},
	)

	// SyncOperations синхронизации с сервером
	SyncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_sync_operations_total",
			Help: "Remote sync operations by kind and outcome category",
		},
		[]string{"kind", "result"},
	)

	// ResponseLatency задержка ответа пользователя
	ResponseLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_response_latency_seconds",
			Help:    "Time between poll display and rating button press",
			Buckets: []float64{1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
		},
	)

	// LastConfidence уверенность последнего голоса
	LastConfidence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_last_confidence",
			Help: "Confidence of the most recent vote",
		},
	)

	// LastAnomalyScore z-score последнего голоса
	LastAnomalyScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_last_anomaly_score",
			Help: "Anomaly score of the most recent vote",
		},
	)

	// LastEntropy энтропия последнего голоса
	LastEntropy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_last_entropy",
			Help: "Entropy of the most recent vote",
		},
	)

	// PollActive 1, если есть активный опрос
	PollActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_poll_active",
			Help: "Whether an active poll is currently offered",
		},
	)

	// RequestsTotal запросы к локальному API статуса
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_http_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов к API статуса
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiosk_http_request_duration_seconds",
			Help:    "Status API request latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"endpoint", "method"},
	)

	// Connected 1, если сервер доступен
	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_server_connected",
			Help: "Whether the last connectivity check succeeded",
		},
	)
)

// Recorder обновляет метрики по исходам сеансов голосования
type Recorder struct{}

// VoteCaptured учитывает захваченный голос и результат его отправки
func (Recorder) VoteCaptured(_ context.Context, rec models.VoteRecord, submitErr error) {
	m := rec.Metrics
	VotesCaptured.WithLabelValues(m.ValidationStatus.String()).Inc()
	VoteSubmissions.WithLabelValues(remote.StatusOf(submitErr).String()).Inc()
	ResponseLatency.Observe(float64(m.ResponseLatencyMs) / 1000.0)
	LastConfidence.Set(m.Confidence)
	LastAnomalyScore.Set(m.AnomalyScore)
	LastEntropy.Set(m.Entropy)
}

// CaptureTimedOut учитывает сеанс без ввода
func (Recorder) CaptureTimedOut(context.Context, models.ActivePoll) {
	CaptureTimeouts.Inc()
}

// ObserveSync учитывает синхронизацию вида kind ("config", "poll")
func ObserveSync(kind string, err error) {
	SyncOperations.WithLabelValues(kind, remote.StatusOf(err).String()).Inc()
}

// SetPollActive отражает наличие активного опроса
func SetPollActive(active bool) {
	PollActive.Set(boolToFloat(active))
}

// SetConnected отражает результат проверки связи
func SetConnected(ok bool) {
	Connected.Set(boolToFloat(ok))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
