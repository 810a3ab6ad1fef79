package models

// DefaultMaxRatingScale шкала оценок, если сервер ее не прислал
const DefaultMaxRatingScale = 5

// ActivePoll опрос, который сейчас показывается пользователю.
// Пустой ID означает отсутствие опроса
type ActivePoll struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Question       string `json:"question"`
	MaxRatingScale int    `json:"maxRatingScale"`
	IsActive       bool   `json:"isActive"`
}

// ValidRating проверяет, что оценка входит в шкалу опроса
func (p ActivePoll) ValidRating(rating int) bool {
	scale := p.MaxRatingScale
	if scale <= 0 {
		scale = DefaultMaxRatingScale
	}
	return rating >= 1 && rating <= scale
}

// Thresholds пороги классификатора из DeviceConfig
type Thresholds struct {
	Confidence float64 `json:"confidence"`
	Anomaly    float64 `json:"anomaly"`
}

// Thresholds возвращает текущие пороги классификатора
func (c DeviceConfig) Thresholds() Thresholds {
	return Thresholds{
		Confidence: c.ConfidenceThreshold,
		Anomaly:    c.AnomalyThreshold,
	}
}
