// Package session реализует один цикл голосования: показ опроса, ожидание
// нажатия с таймаутом, расчет метрик по задержке и отправку голоса
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"vote-kiosk/internal/analytics"
	"vote-kiosk/internal/device"
	"vote-kiosk/internal/models"
)

// DefaultSampleInterval период опроса кнопок, он же защита от дребезга
const DefaultSampleInterval = 50 * time.Millisecond

// ErrNoActivePoll сеанс запущен без активного опроса
var ErrNoActivePoll = errors.New("no active poll")

// State состояние сеанса голосования
type State int32

const (
	StateIdle State = iota
	StateAwaitingInput
	StateVoteCaptured
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingInput:
		return "AWAITING_INPUT"
	case StateVoteCaptured:
		return "VOTE_CAPTURED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Submitter доставляет голос на сервер
type Submitter interface {
	SubmitVote(ctx context.Context, rec models.VoteRecord) error
}

// Recorder наблюдатель за исходами сеансов: журнал, метрики, статистика.
// submitErr != nil означает, что голос захвачен, но не доставлен
type Recorder interface {
	VoteCaptured(ctx context.Context, rec models.VoteRecord, submitErr error)
	CaptureTimedOut(ctx context.Context, poll models.ActivePoll)
}

// Outcome результат одного сеанса
type Outcome struct {
	State     State
	Record    *models.VoteRecord
	SubmitErr error
}

// Deps внешние зависимости сеанса
type Deps struct {
	Clock     device.Clock
	Input     device.Input
	Display   device.Display
	Feedback  device.Feedback
	Submitter Submitter
	Logger    *slog.Logger
}

// Session конечный автомат захвата голоса. Не рассчитан на параллельные
// вызовы Capture: устройство принимает один голос за раз
type Session struct {
	deps           Deps
	recorders      []Recorder
	state          atomic.Int32
	SampleInterval time.Duration
}

// New создает сеанс в состоянии IDLE
func New(deps Deps, recorders ...Recorder) *Session {
	return &Session{
		deps:           deps,
		recorders:      recorders,
		SampleInterval: DefaultSampleInterval,
	}
}

// State текущее состояние автомата
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Capture проводит один цикл голосования по опросу poll с порогами и
// таймаутом из cfg. Таймаут не ошибка: возвращается TIMED_OUT без записи.
// Ошибка отправки не прерывает цикл и возвращается в Outcome.SubmitErr
func (s *Session) Capture(ctx context.Context, cfg models.DeviceConfig, poll models.ActivePoll) (Outcome, error) {
	if !poll.IsActive {
		s.setState(StateIdle)
		return Outcome{State: StateIdle}, ErrNoActivePoll
	}

	if s.deps.Display != nil {
		s.deps.Display.Show(poll)
	}

	rating, latency, err := s.awaitRating(ctx, cfg.DisplayTimeout(), ratingSlots(poll))
	if err != nil {
		s.setState(StateIdle)
		return Outcome{State: StateIdle}, err
	}

	if rating == 0 {
		s.setState(StateTimedOut)
		s.deps.Logger.Info("capture timed out", "poll_id", poll.ID, "timeout_ms", cfg.DisplayTimeoutMs)
		for _, r := range s.recorders {
			r.CaptureTimedOut(ctx, poll)
		}
		return Outcome{State: StateTimedOut}, nil
	}

	s.setState(StateVoteCaptured)
	rec := models.VoteRecord{
		DeviceID: cfg.DeviceID,
		PollID:   poll.ID,
		Rating:   rating,
		Metrics:  analytics.ComputeMetrics(latency.Milliseconds(), cfg.Thresholds()),
	}
	s.deps.Logger.Info("vote captured",
		"poll_id", rec.PollID,
		"rating", rec.Rating,
		"latency_ms", rec.Metrics.ResponseLatencyMs,
		"confidence", rec.Metrics.Confidence,
		"anomaly_score", rec.Metrics.AnomalyScore,
		"entropy", rec.Metrics.Entropy,
		"status", rec.Metrics.ValidationStatus.String(),
	)

	submitErr := s.deps.Submitter.SubmitVote(ctx, rec)
	if submitErr != nil {
		s.deps.Logger.Error("vote submission failed, vote dropped",
			"poll_id", rec.PollID, "rating", rec.Rating, "error", submitErr)
		s.signal(false)
	} else {
		s.deps.Logger.Info("vote submitted", "poll_id", rec.PollID)
		s.signal(true)
	}

	for _, r := range s.recorders {
		r.VoteCaptured(ctx, rec, submitErr)
	}
	return Outcome{State: StateVoteCaptured, Record: &rec, SubmitErr: submitErr}, nil
}

// awaitRating опрашивает кнопки с периодом SampleInterval до первого
// нажатия или истечения timeout. Возвращает 0, если ввода не было
func (s *Session) awaitRating(ctx context.Context, timeout time.Duration, slots int) (int, time.Duration, error) {
	s.setState(StateAwaitingInput)
	interval := s.SampleInterval
	if interval <= 0 {
		interval = DefaultSampleInterval
	}

	start := s.deps.Clock.Now()
	for s.deps.Clock.Now()-start < timeout {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		// первое найденное нажатие выигрывает, остальные игнорируются
		for slot := 1; slot <= slots; slot++ {
			if s.deps.Input.IsRatingPressed(slot) {
				return slot, s.deps.Clock.Now() - start, nil
			}
		}
		s.deps.Clock.Sleep(interval)
	}
	return 0, s.deps.Clock.Now() - start, nil
}

func (s *Session) signal(ok bool) {
	if s.deps.Feedback == nil {
		return
	}
	if ok {
		s.deps.Feedback.Success()
	} else {
		s.deps.Feedback.Error()
	}
}

// ratingSlots количество опрашиваемых кнопок для шкалы опроса
func ratingSlots(poll models.ActivePoll) int {
	scale := poll.MaxRatingScale
	if scale <= 0 {
		scale = models.DefaultMaxRatingScale
	}
	return min(scale, device.ButtonCount)
}
