// Package device содержит интерфейсы к окружению киоска (часы, кнопки,
// светодиоды, экран) и их реализации для запуска вне железа
package device

import (
	"time"

	"vote-kiosk/internal/models"
)

// ButtonCount количество физических кнопок оценки
const ButtonCount = 5

// Clock монотонные часы устройства
type Clock interface {
	// Now время, прошедшее с момента старта
	Now() time.Duration
	Sleep(d time.Duration)
}

// Input источник нажатий кнопок оценки, слоты 1..ButtonCount
type Input interface {
	IsRatingPressed(slot int) bool
}

// Feedback сигналы пользователю. Ничего не возвращают и не влияют на логику
type Feedback interface {
	Success()
	Error()
}

// Display показывает опрос пользователю перед началом отсчета
type Display interface {
	Show(poll models.ActivePoll)
}

// SystemClock часы на основе монотонного времени процесса
type SystemClock struct {
	start time.Time
}

// NewSystemClock создает часы с нулем в момент вызова
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

func (c *SystemClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// MultiFeedback рассылает сигнал всем приемникам по порядку
type MultiFeedback []Feedback

func (m MultiFeedback) Success() {
	for _, f := range m {
		f.Success()
	}
}

func (m MultiFeedback) Error() {
	for _, f := range m {
		f.Error()
	}
}

// NoInput источник без кнопок: каждый сеанс заканчивается по таймауту
type NoInput struct{}

func (NoInput) IsRatingPressed(int) bool { return false }
