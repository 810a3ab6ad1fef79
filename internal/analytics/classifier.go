package analytics

import "vote-kiosk/internal/models"

const (
	// MinConfidence ниже этой уверенности голос считается подозрительным.
	// Порог фиксирован и не зависит от confidenceThreshold устройства
	MinConfidence = 0.3
	// RejectFactor во сколько раз z-score должен превысить порог для отклонения
	RejectFactor = 2.0
)

// Classify определяет статус голоса. Проверки идут строго по приоритету:
// экстремальный выброс отклоняется сразу, затем низкая уверенность или
// превышение порога аномалии дают SUSPICIOUS, иначе APPROVED
func Classify(confidence, anomalyScore float64, th models.Thresholds) models.ValidationStatus {
	if anomalyScore > RejectFactor*th.Anomaly {
		return models.StatusRejected
	}
	if confidence < MinConfidence || anomalyScore > th.Anomaly {
		return models.StatusSuspicious
	}
	return models.StatusApproved
}
