// Package analytics реализует метрики голоса по задержке ответа
// (уверенность, z-score аномалии, энтропия) и классификатор достоверности
package analytics

import (
	"math"

	"vote-kiosk/internal/models"
)

const (
	// ConfidenceSteepness крутизна логистической кривой уверенности
	ConfidenceSteepness = 0.1
	// ConfidenceMidpointSec задержка в секундах, при которой уверенность 0.5
	ConfidenceMidpointSec = 15.0
	// ExpectedLatencyMs ожидаемое время ответа человека
	ExpectedLatencyMs = 15000.0
	// LatencyStdDevMs стандартное отклонение времени ответа
	LatencyStdDevMs = 5000.0
	// EntropyWindowMs задержка, которая нормируется в p = 1
	EntropyWindowMs = 30000.0
)

// Confidence логистическая функция от времени ответа в секундах.
// Быстрые нажатия дают значения около 0, обдуманные ответы около 1
func Confidence(latencyMs int64) float64 {
	t := float64(latencyMs) / 1000.0
	return 1.0 / (1.0 + math.Exp(-ConfidenceSteepness*(t-ConfidenceMidpointSec)))
}

// AnomalyScore модуль z-score задержки относительно ожидаемого времени ответа
func AnomalyScore(latencyMs int64) float64 {
	return math.Abs(float64(latencyMs)-ExpectedLatencyMs) / LatencyStdDevMs
}

// Entropy двоичная энтропия Шеннона нормированной задержки.
// На границах p <= 0 и p >= 1 равна 0
func Entropy(latencyMs int64) float64 {
	p := math.Min(float64(latencyMs)/EntropyWindowMs, 1.0)
	if p <= 0 || p >= 1 {
		return 0
	}
	return -(p*math.Log2(p) + (1-p)*math.Log2(1-p))
}

// ComputeMetrics вычисляет все метрики голоса и его статус
func ComputeMetrics(latencyMs int64, th models.Thresholds) models.VoteMetrics {
	if latencyMs < 0 {
		latencyMs = 0
	}
	m := models.VoteMetrics{
		ResponseLatencyMs: latencyMs,
		Confidence:        Confidence(latencyMs),
		AnomalyScore:      AnomalyScore(latencyMs),
		Entropy:           Entropy(latencyMs),
	}
	m.ValidationStatus = Classify(m.Confidence, m.AnomalyScore, th)
	return m
}
