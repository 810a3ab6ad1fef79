// Package scheduler ведет главный цикл киоска: проверка связи, синхронизация
// конфигурации и активного опроса по независимым таймерам и запуск сеансов
// голосования. Цикл однопоточный, все шаги итерации строго последовательны
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vote-kiosk/internal/device"
	"vote-kiosk/internal/metrics"
	"vote-kiosk/internal/models"
	"vote-kiosk/internal/remote"
	"vote-kiosk/internal/session"
)

const (
	DefaultSyncInterval      = 60 * time.Second
	DefaultPollFetchInterval = 30 * time.Second
	// DefaultIdleWait пауза, пока администратор не активирует опрос
	DefaultIdleWait = 5 * time.Second
	// DefaultPostVoteDelay пауза после сеанса перед повторным запросом опроса
	DefaultPostVoteDelay = 2 * time.Second
)

// ConfigStore энергонезависимое хранилище конфигурации
type ConfigStore interface {
	Load(ctx context.Context) (models.DeviceConfig, error)
	Save(ctx context.Context, cfg models.DeviceConfig) error
}

// Remote источник конфигурации и активного опроса
type Remote interface {
	FetchConfig(ctx context.Context, deviceID string) (models.PartialConfig, error)
	FetchActivePoll(ctx context.Context) (*models.ActivePoll, error)
}

// Connectivity проверка связи с ограниченным числом попыток
type Connectivity interface {
	Connected(ctx context.Context) bool
}

// Capturer проводит один сеанс голосования
type Capturer interface {
	Capture(ctx context.Context, cfg models.DeviceConfig, poll models.ActivePoll) (session.Outcome, error)
}

// Intervals периоды таймеров и пауз цикла
type Intervals struct {
	Sync          time.Duration
	PollFetch     time.Duration
	IdleWait      time.Duration
	PostVoteDelay time.Duration
}

// DefaultIntervals значения прошивки
func DefaultIntervals() Intervals {
	return Intervals{
		Sync:          DefaultSyncInterval,
		PollFetch:     DefaultPollFetchInterval,
		IdleWait:      DefaultIdleWait,
		PostVoteDelay: DefaultPostVoteDelay,
	}
}

// Deps зависимости планировщика
type Deps struct {
	DeviceID string
	Clock    device.Clock
	Link     Connectivity
	Remote   Remote
	Store    ConfigStore
	Capturer Capturer
	Logger   *slog.Logger
}

// Snapshot состояние планировщика для локального API
type Snapshot struct {
	Config      models.DeviceConfig `json:"config"`
	Poll        models.ActivePoll   `json:"poll"`
	Connected   bool                `json:"connected"`
	LastOutcome string              `json:"last_outcome,omitempty"`
	Iterations  int64               `json:"iterations"`
}

// Scheduler владеет DeviceConfig и ActivePoll. Они меняются только между
// сеансами голосования; сеанс получает их копии
type Scheduler struct {
	deps      Deps
	intervals Intervals

	// lastSync и lastPollFetch трогает только цикл
	lastSync      time.Duration
	lastPollFetch time.Duration

	mu          sync.RWMutex
	cfg         models.DeviceConfig
	poll        models.ActivePoll
	connected   bool
	lastOutcome string
	iterations  int64
}

// New создает планировщик с конфигурацией по умолчанию до Bootstrap
func New(deps Deps, intervals Intervals) *Scheduler {
	return &Scheduler{
		deps:      deps,
		intervals: intervals,
		cfg:       models.DefaultDeviceConfig(deps.DeviceID),
	}
}

// Snapshot возвращает копию текущего состояния
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Config:      s.cfg,
		Poll:        s.poll,
		Connected:   s.connected,
		LastOutcome: s.lastOutcome,
		Iterations:  s.iterations,
	}
}

// Config текущая конфигурация устройства
func (s *Scheduler) Config() models.DeviceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Poll текущий опрос
func (s *Scheduler) Poll() models.ActivePoll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poll
}

// Bootstrap загружает сохраненную конфигурацию, подключается и сразу
// синхронизирует конфигурацию и опрос
func (s *Scheduler) Bootstrap(ctx context.Context) {
	cfg, err := s.deps.Store.Load(ctx)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		s.deps.Logger.Error("stored config unusable, using defaults", "error", err)
		cfg = models.DefaultDeviceConfig(s.deps.DeviceID)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.deps.Logger.Info("device config loaded",
		"device_id", cfg.DeviceID,
		"poll_interval_ms", cfg.PollIntervalMs,
		"display_timeout_ms", cfg.DisplayTimeoutMs,
		"confidence_threshold", cfg.ConfidenceThreshold,
		"anomaly_threshold", cfg.AnomalyThreshold,
		"enabled", cfg.IsEnabled,
	)

	connected := s.checkConnectivity(ctx)
	s.syncConfig(ctx, connected)
	s.fetchPoll(ctx, connected)

	now := s.deps.Clock.Now()
	s.lastSync = now
	s.lastPollFetch = now
	s.deps.Logger.Info("kiosk ready")
}

// Run выполняет Bootstrap и крутит цикл до отмены ctx
func (s *Scheduler) Run(ctx context.Context) error {
	s.Bootstrap(ctx)
	for ctx.Err() == nil {
		s.Tick(ctx)
	}
	return nil
}

// Tick одна итерация главного цикла
func (s *Scheduler) Tick(ctx context.Context) {
	connected := s.checkConnectivity(ctx)

	now := s.deps.Clock.Now()
	if now-s.lastSync >= s.intervals.Sync {
		s.syncConfig(ctx, connected)
		s.lastSync = now
	}
	if now-s.lastPollFetch >= s.intervals.PollFetch {
		s.fetchPoll(ctx, connected)
		s.lastPollFetch = now
	}

	s.mu.Lock()
	s.iterations++
	cfg, poll := s.cfg, s.poll
	s.mu.Unlock()

	switch {
	case !poll.IsActive:
		s.deps.Logger.Debug("waiting for an active poll")
		s.deps.Clock.Sleep(s.intervals.IdleWait)
	case !cfg.IsEnabled:
		s.deps.Logger.Debug("kiosk disabled by server config")
		s.deps.Clock.Sleep(s.intervals.IdleWait)
	default:
		s.dispatch(ctx, cfg, poll, connected)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, cfg models.DeviceConfig, poll models.ActivePoll, connected bool) {
	out, err := s.deps.Capturer.Capture(ctx, cfg, poll)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.deps.Logger.Warn("capture session failed", "poll_id", poll.ID, "error", err)
	}

	s.mu.Lock()
	s.lastOutcome = out.State.String()
	s.mu.Unlock()

	s.deps.Clock.Sleep(s.intervals.PostVoteDelay)
	s.fetchPoll(ctx, connected)
}

func (s *Scheduler) checkConnectivity(ctx context.Context) bool {
	ok := s.deps.Link.Connected(ctx)
	metrics.SetConnected(ok)
	s.mu.Lock()
	s.connected = ok
	s.mu.Unlock()
	return ok
}

var errOffline = &remote.Error{Op: "connectivity", Status: remote.StatusUnreachable, Err: errors.New("no network path to server")}

// syncConfig сливает конфигурацию сервера с локальной. При любой ошибке
// локальная конфигурация остается прежней
func (s *Scheduler) syncConfig(ctx context.Context, connected bool) {
	if !connected {
		metrics.ObserveSync("config", errOffline)
		s.deps.Logger.Warn("config sync skipped", "reason", "offline")
		return
	}

	current := s.Config()
	partial, err := s.deps.Remote.FetchConfig(ctx, current.DeviceID)
	metrics.ObserveSync("config", err)
	if err != nil {
		s.deps.Logger.Warn("config sync failed, keeping current config",
			"category", remote.StatusOf(err).String(), "error", err)
		return
	}

	merged, rejected := current.Merge(partial)
	if len(rejected) > 0 {
		s.deps.Logger.Warn("ignored invalid config fields from server", "fields", rejected)
	}

	s.mu.Lock()
	s.cfg = merged
	s.mu.Unlock()

	if err := s.deps.Store.Save(ctx, merged); err != nil {
		s.deps.Logger.Error("failed to persist synced config", "error", err)
	}
	s.deps.Logger.Info("config synced",
		"display_timeout_ms", merged.DisplayTimeoutMs,
		"anomaly_threshold", merged.AnomalyThreshold,
		"enabled", merged.IsEnabled,
	)
}

// fetchPoll заменяет активный опрос целиком. Пустой список делает опрос
// неактивным, ошибка оставляет прежний
func (s *Scheduler) fetchPoll(ctx context.Context, connected bool) {
	if !connected {
		metrics.ObserveSync("poll", errOffline)
		s.deps.Logger.Warn("poll fetch skipped", "reason", "offline")
		return
	}

	poll, err := s.deps.Remote.FetchActivePoll(ctx)
	metrics.ObserveSync("poll", err)
	if err != nil {
		s.deps.Logger.Warn("poll fetch failed, keeping current poll",
			"category", remote.StatusOf(err).String(), "error", err)
		return
	}

	s.mu.Lock()
	if poll == nil {
		s.poll.IsActive = false
	} else {
		s.poll = *poll
	}
	current := s.poll
	s.mu.Unlock()

	metrics.SetPollActive(current.IsActive)
	if poll == nil {
		s.deps.Logger.Info("no active polls")
		return
	}
	s.deps.Logger.Info("poll fetched",
		"poll_id", current.ID,
		"title", current.Title,
		"scale", current.MaxRatingScale,
		"active", current.IsActive,
	)
}
