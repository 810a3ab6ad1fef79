package analytics

import (
	"context"
	"sync"

	"vote-kiosk/internal/models"
)

// TrackerStats снимок статистики сеансов голосования
type TrackerStats struct {
	RollingAvgLatencyMs float64                           `json:"rolling_avg_latency_ms"`
	StdDevLatencyMs     float64                           `json:"std_dev_latency_ms"`
	WindowCount         int                               `json:"window_count"`
	ByStatus            map[models.ValidationStatus]int64 `json:"-"`
	Timeouts            int64                             `json:"timeouts"`
	SubmissionFailures  int64                             `json:"submission_failures"`
}

// Total общее количество захваченных голосов
func (s TrackerStats) Total() int64 {
	var total int64
	for _, n := range s.ByStatus {
		total += n
	}
	return total
}

// ApprovalRate доля одобренных голосов
func (s TrackerStats) ApprovalRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.ByStatus[models.StatusApproved]) / float64(total)
}

// LatencyTracker копит статистику захваченных голосов для локального API.
// Пишет только цикл устройства, читает HTTP сервер статуса
type LatencyTracker struct {
	mu       sync.RWMutex
	window   *SlidingWindow
	byStatus map[models.ValidationStatus]int64
	timeouts int64
	failures int64
}

// NewLatencyTracker создает трекер со скользящим окном WindowSize
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		window:   NewSlidingWindow(WindowSize),
		byStatus: make(map[models.ValidationStatus]int64),
	}
}

// ObserveVote учитывает захваченный голос
func (t *LatencyTracker) ObserveVote(m models.VoteMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window.Add(float64(m.ResponseLatencyMs))
	t.byStatus[m.ValidationStatus]++
}

// ObserveTimeout учитывает сеанс без ввода
func (t *LatencyTracker) ObserveTimeout() {
	t.mu.Lock()
	t.timeouts++
	t.mu.Unlock()
}

// ObserveSubmissionFailure учитывает голос, который не удалось доставить
func (t *LatencyTracker) ObserveSubmissionFailure() {
	t.mu.Lock()
	t.failures++
	t.mu.Unlock()
}

// Stats возвращает копию текущей статистики
func (t *LatencyTracker) Stats() TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byStatus := make(map[models.ValidationStatus]int64, len(t.byStatus))
	for k, v := range t.byStatus {
		byStatus[k] = v
	}
	return TrackerStats{
		RollingAvgLatencyMs: t.window.Mean(),
		StdDevLatencyMs:     t.window.StdDev(),
		WindowCount:         t.window.Count(),
		ByStatus:            byStatus,
		Timeouts:            t.timeouts,
		SubmissionFailures:  t.failures,
	}
}

// VoteCaptured учитывает голос как наблюдатель сеанса
func (t *LatencyTracker) VoteCaptured(_ context.Context, rec models.VoteRecord, submitErr error) {
	t.ObserveVote(rec.Metrics)
	if submitErr != nil {
		t.ObserveSubmissionFailure()
	}
}

// CaptureTimedOut учитывает таймаут как наблюдатель сеанса
func (t *LatencyTracker) CaptureTimedOut(context.Context, models.ActivePoll) {
	t.ObserveTimeout()
}
