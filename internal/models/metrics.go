// Package models содержит структуры данных киоска: конфигурацию устройства,
// активный опрос, метрики голоса и запись голоса для отправки
package models

import (
	"encoding/json"
	"fmt"
)

// ValidationStatus итоговая эвристическая оценка достоверности голоса
type ValidationStatus int

const (
	StatusApproved ValidationStatus = iota + 1
	StatusSuspicious
	StatusRejected
)

// AllStatuses перечисляет все статусы в порядке возрастания строгости
var AllStatuses = []ValidationStatus{StatusApproved, StatusSuspicious, StatusRejected}

// String возвращает представление статуса, которое ожидает сервер
func (s ValidationStatus) String() string {
	switch s {
	case StatusApproved:
		return "APPROVED"
	case StatusSuspicious:
		return "SUSPICIOUS"
	case StatusRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("ValidationStatus(%d)", int(s))
	}
}

// ParseValidationStatus разбирает строковое представление статуса
func ParseValidationStatus(s string) (ValidationStatus, error) {
	for _, st := range AllStatuses {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown validation status %q", s)
}

// MarshalJSON кодирует статус строкой
func (s ValidationStatus) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusApproved, StatusSuspicious, StatusRejected:
		return json.Marshal(s.String())
	default:
		return nil, fmt.Errorf("cannot marshal invalid validation status %d", int(s))
	}
}

// UnmarshalJSON декодирует статус из строки
func (s *ValidationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := ParseValidationStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// VoteMetrics метрики одного голоса, вычисляемые по задержке ответа.
// Живут только до передачи в отправку, не сохраняются
type VoteMetrics struct {
	ResponseLatencyMs int64            `json:"votingTimeMs"`
	Confidence        float64          `json:"confidence"`
	AnomalyScore      float64          `json:"anomalyScore"`
	Entropy           float64          `json:"entropy"`
	ValidationStatus  ValidationStatus `json:"validationStatus"`
}

// VoteRecord неизменяемая запись голоса для отправки на сервер
type VoteRecord struct {
	DeviceID string      `json:"iotDeviceId"`
	PollID   string      `json:"pollId"`
	Rating   int         `json:"rating"`
	Metrics  VoteMetrics `json:"-"`
}

// votePayload плоское представление голоса в формате POST /iot/votes
type votePayload struct {
	DeviceID string `json:"iotDeviceId"`
	PollID   string `json:"pollId"`
	Rating   int    `json:"rating"`
	VoteMetrics
}

// MarshalJSON раскладывает метрики на верхний уровень, как ожидает сервер
func (r VoteRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(votePayload{
		DeviceID:    r.DeviceID,
		PollID:      r.PollID,
		Rating:      r.Rating,
		VoteMetrics: r.Metrics,
	})
}

// UnmarshalJSON обратное преобразование, нужно журналу голосов
func (r *VoteRecord) UnmarshalJSON(data []byte) error {
	var p votePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = VoteRecord{
		DeviceID: p.DeviceID,
		PollID:   p.PollID,
		Rating:   p.Rating,
		Metrics:  p.VoteMetrics,
	}
	return nil
}
