package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vote-kiosk/internal/models"
	"vote-kiosk/internal/remote"
	"vote-kiosk/internal/session"
)

const deviceID = "aec29976-de35-472c-9d4d-5264c71e42be"

type fakeClock struct {
	now    time.Duration
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Duration { return c.now }
func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now += d
}

type fakeLink struct{ up bool }

func (l *fakeLink) Connected(context.Context) bool { return l.up }

type fakeRemote struct {
	config      models.PartialConfig
	configErr   error
	poll        *models.ActivePoll
	pollErr     error
	configCalls int
	pollCalls   int
}

func (r *fakeRemote) FetchConfig(_ context.Context, id string) (models.PartialConfig, error) {
	r.configCalls++
	return r.config, r.configErr
}

func (r *fakeRemote) FetchActivePoll(context.Context) (*models.ActivePoll, error) {
	r.pollCalls++
	if r.poll == nil {
		return nil, r.pollErr
	}
	p := *r.poll
	return &p, r.pollErr
}

type memoryStore struct {
	cfg     *models.DeviceConfig
	loadErr error
	saveErr error
	saves   int
}

func (m *memoryStore) Load(context.Context) (models.DeviceConfig, error) {
	if m.loadErr != nil {
		return models.DeviceConfig{}, m.loadErr
	}
	if m.cfg == nil {
		return models.DefaultDeviceConfig(deviceID), nil
	}
	return *m.cfg, nil
}

func (m *memoryStore) Save(_ context.Context, cfg models.DeviceConfig) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = &cfg
	return nil
}

type capture struct {
	cfg  models.DeviceConfig
	poll models.ActivePoll
}

type fakeCapturer struct {
	clock    *fakeClock
	duration time.Duration
	calls    []capture
	state    session.State
	err      error
}

func (c *fakeCapturer) Capture(_ context.Context, cfg models.DeviceConfig, poll models.ActivePoll) (session.Outcome, error) {
	c.calls = append(c.calls, capture{cfg, poll})
	c.clock.now += c.duration
	return session.Outcome{State: c.state}, c.err
}

type harness struct {
	clock    *fakeClock
	link     *fakeLink
	remote   *fakeRemote
	store    *memoryStore
	capturer *fakeCapturer
	sched    *Scheduler
}

func ptr[T any](v T) *T { return &v }

var canteenPoll = models.ActivePoll{
	ID:             "poll-1",
	Title:          "Canteen",
	Question:       "How was lunch?",
	MaxRatingScale: 5,
	IsActive:       true,
}

func newHarness() *harness {
	clock := &fakeClock{}
	h := &harness{
		clock:    clock,
		link:     &fakeLink{up: true},
		remote:   &fakeRemote{},
		store:    &memoryStore{},
		capturer: &fakeCapturer{clock: clock, state: session.StateVoteCaptured},
	}
	h.sched = New(Deps{
		DeviceID: deviceID,
		Clock:    h.clock,
		Link:     h.link,
		Remote:   h.remote,
		Store:    h.store,
		Capturer: h.capturer,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, DefaultIntervals())
	return h
}

func TestBootstrap_LoadsSyncsAndFetches(t *testing.T) {
	h := newHarness()
	stored := models.DefaultDeviceConfig(deviceID)
	stored.DisplayTimeoutMs = 90000
	h.store.cfg = &stored
	h.remote.config = models.PartialConfig{AnomalyThreshold: ptr(3.0)}
	h.remote.poll = &canteenPoll

	h.sched.Bootstrap(context.Background())

	cfg := h.sched.Config()
	assert.Equal(t, int64(90000), cfg.DisplayTimeoutMs)
	assert.Equal(t, 3.0, cfg.AnomalyThreshold)
	assert.Equal(t, canteenPoll, h.sched.Poll())
	assert.Equal(t, 1, h.store.saves)
	assert.Equal(t, 3.0, h.store.cfg.AnomalyThreshold)
}

func TestBootstrap_LoadFailureFallsBackToDefaults(t *testing.T) {
	h := newHarness()
	h.store.loadErr = errors.New("disk corrupted")
	h.link.up = false

	h.sched.Bootstrap(context.Background())

	assert.Equal(t, models.DefaultDeviceConfig(deviceID), h.sched.Config())
	assert.Zero(t, h.remote.configCalls)
	assert.Zero(t, h.remote.pollCalls)
	assert.False(t, h.sched.Snapshot().Connected)
}

func TestBootstrap_InvalidStoredConfigReplaced(t *testing.T) {
	h := newHarness()
	bad := models.DefaultDeviceConfig(deviceID)
	bad.PollIntervalMs = 0
	h.store.cfg = &bad
	h.link.up = false

	h.sched.Bootstrap(context.Background())
	assert.Equal(t, DefaultPollFetchInterval.Milliseconds(), h.sched.Config().PollIntervalMs)
}

func TestSyncConfig_MergeKeepsMissingFields(t *testing.T) {
	h := newHarness()
	h.sched.Bootstrap(context.Background())
	before := h.sched.Config()

	h.remote.config = models.PartialConfig{DisplayTimeoutMs: ptr(int64(45000))}
	h.sched.syncConfig(context.Background(), true)

	after := h.sched.Config()
	assert.Equal(t, int64(45000), after.DisplayTimeoutMs)
	assert.Equal(t, before.PollIntervalMs, after.PollIntervalMs)
	assert.Equal(t, before.ConfidenceThreshold, after.ConfidenceThreshold)
	assert.Equal(t, before.AnomalyThreshold, after.AnomalyThreshold)
	assert.Equal(t, before.IsEnabled, after.IsEnabled)
	assert.Equal(t, after, *h.store.cfg)
}

func TestSyncConfig_AllFieldsOverwritten(t *testing.T) {
	h := newHarness()
	h.remote.config = models.PartialConfig{
		PollIntervalMs:      ptr(int64(10000)),
		DisplayTimeoutMs:    ptr(int64(20000)),
		ConfidenceThreshold: ptr(0.9),
		AnomalyThreshold:    ptr(1.0),
		IsEnabled:           ptr(false),
	}
	h.sched.Bootstrap(context.Background())

	assert.Equal(t, models.DeviceConfig{
		DeviceID:            deviceID,
		PollIntervalMs:      10000,
		DisplayTimeoutMs:    20000,
		ConfidenceThreshold: 0.9,
		AnomalyThreshold:    1.0,
		IsEnabled:           false,
	}, h.sched.Config())
}

func TestSyncConfig_FailureRetainsConfig(t *testing.T) {
	for _, status := range []remote.Status{remote.StatusServerError, remote.StatusMalformedResponse, remote.StatusUnreachable} {
		t.Run(status.String(), func(t *testing.T) {
			h := newHarness()
			h.sched.Bootstrap(context.Background())
			before := h.sched.Config()
			saves := h.store.saves

			h.remote.config = models.PartialConfig{AnomalyThreshold: ptr(9.0)}
			h.remote.configErr = &remote.Error{Op: "fetch config", Status: status}
			h.sched.syncConfig(context.Background(), true)

			assert.Equal(t, before, h.sched.Config())
			assert.Equal(t, saves, h.store.saves)
		})
	}
}

func TestSyncConfig_OfflineSkipsRemote(t *testing.T) {
	h := newHarness()
	h.sched.syncConfig(context.Background(), false)
	assert.Zero(t, h.remote.configCalls)
}

func TestSyncConfig_SaveFailureStillApplies(t *testing.T) {
	h := newHarness()
	h.store.saveErr = errors.New("read-only fs")
	h.remote.config = models.PartialConfig{AnomalyThreshold: ptr(1.5)}

	h.sched.syncConfig(context.Background(), true)
	assert.Equal(t, 1.5, h.sched.Config().AnomalyThreshold)
}

func TestSyncConfig_InvalidFieldsIgnored(t *testing.T) {
	h := newHarness()
	h.remote.config = models.PartialConfig{
		DisplayTimeoutMs: ptr(int64(-1)),
		AnomalyThreshold: ptr(-2.0),
		IsEnabled:        ptr(false),
	}
	h.sched.syncConfig(context.Background(), true)

	cfg := h.sched.Config()
	assert.Equal(t, models.DefaultDisplayTimeoutMs, cfg.DisplayTimeoutMs)
	assert.Equal(t, models.DefaultAnomalyThreshold, cfg.AnomalyThreshold)
	assert.False(t, cfg.IsEnabled)
}

func TestFetchPoll_EmptyListDeactivates(t *testing.T) {
	h := newHarness()
	h.remote.poll = &canteenPoll
	h.sched.fetchPoll(context.Background(), true)
	require.True(t, h.sched.Poll().IsActive)

	h.remote.poll = nil
	h.sched.fetchPoll(context.Background(), true)
	assert.False(t, h.sched.Poll().IsActive)
}

func TestFetchPoll_FailureRetainsPoll(t *testing.T) {
	h := newHarness()
	h.remote.poll = &canteenPoll
	h.sched.fetchPoll(context.Background(), true)

	h.remote.poll = nil
	h.remote.pollErr = &remote.Error{Op: "fetch poll", Status: remote.StatusMalformedResponse}
	h.sched.fetchPoll(context.Background(), true)
	assert.Equal(t, canteenPoll, h.sched.Poll())
}

func TestFetchPoll_ReplacedWholesale(t *testing.T) {
	h := newHarness()
	h.remote.poll = &canteenPoll
	h.sched.fetchPoll(context.Background(), true)

	next := models.ActivePoll{ID: "poll-2", Title: "Library", MaxRatingScale: 3, IsActive: true}
	h.remote.poll = &next
	h.sched.fetchPoll(context.Background(), true)
	assert.Equal(t, next, h.sched.Poll())
}

func TestTick_IdleWithoutActivePoll(t *testing.T) {
	h := newHarness()
	h.sched.Bootstrap(context.Background())

	h.sched.Tick(context.Background())

	assert.Empty(t, h.capturer.calls)
	assert.Equal(t, []time.Duration{DefaultIdleWait}, h.clock.sleeps)
}

func TestTick_DispatchesCaptureAndRefetches(t *testing.T) {
	h := newHarness()
	h.remote.poll = &canteenPoll
	h.sched.Bootstrap(context.Background())
	pollCalls := h.remote.pollCalls

	h.sched.Tick(context.Background())

	require.Len(t, h.capturer.calls, 1)
	assert.Equal(t, canteenPoll, h.capturer.calls[0].poll)
	assert.Equal(t, h.sched.Config(), h.capturer.calls[0].cfg)
	assert.Equal(t, []time.Duration{DefaultPostVoteDelay}, h.clock.sleeps)
	assert.Equal(t, pollCalls+1, h.remote.pollCalls)
	assert.Equal(t, "VOTE_CAPTURED", h.sched.Snapshot().LastOutcome)
}

func TestTick_DisabledKioskDoesNotCapture(t *testing.T) {
	h := newHarness()
	h.remote.poll = &canteenPoll
	h.remote.config = models.PartialConfig{IsEnabled: ptr(false)}
	h.sched.Bootstrap(context.Background())

	h.sched.Tick(context.Background())
	assert.Empty(t, h.capturer.calls)
	assert.Equal(t, []time.Duration{DefaultIdleWait}, h.clock.sleeps)
}

func TestTick_TimersFireIndependently(t *testing.T) {
	h := newHarness()
	h.sched.Bootstrap(context.Background())
	require.Equal(t, 1, h.remote.configCalls)
	require.Equal(t, 1, h.remote.pollCalls)

	// итерации на 0..30 с: истек только таймер опроса
	for i := 0; i < 7; i++ {
		h.sched.Tick(context.Background())
	}
	assert.Equal(t, 1, h.remote.configCalls)
	assert.Equal(t, 2, h.remote.pollCalls)

	// итерации на 35..60 с: на 60 с истекают оба
	for i := 0; i < 6; i++ {
		h.sched.Tick(context.Background())
	}
	assert.Equal(t, 2, h.remote.configCalls)
	assert.Equal(t, 3, h.remote.pollCalls)
	assert.Equal(t, int64(13), h.sched.Snapshot().Iterations)
}

func TestTick_OfflineStillAdvancesTimers(t *testing.T) {
	h := newHarness()
	h.sched.Bootstrap(context.Background())
	h.link.up = false
	h.clock.now += DefaultSyncInterval

	h.sched.Tick(context.Background())
	assert.Equal(t, 1, h.remote.configCalls)

	h.link.up = true
	h.sched.Tick(context.Background())
	// последний запуск был на предыдущей итерации, интервал не истек
	assert.Equal(t, 1, h.remote.configCalls)
}

func TestTick_CaptureErrorIsNotFatal(t *testing.T) {
	h := newHarness()
	h.remote.poll = &canteenPoll
	h.capturer.err = errors.New("display broken")
	h.sched.Bootstrap(context.Background())

	assert.NotPanics(t, func() { h.sched.Tick(context.Background()) })
	assert.Len(t, h.capturer.calls, 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness()
	h.remote.poll = &canteenPoll
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h.sched.deps.Capturer = capturerFunc(func(ctx context.Context, cfg models.DeviceConfig, poll models.ActivePoll) (session.Outcome, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return session.Outcome{State: session.StateTimedOut}, nil
	})

	done := make(chan error, 1)
	go func() { done <- h.sched.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 3, calls)
}

type capturerFunc func(ctx context.Context, cfg models.DeviceConfig, poll models.ActivePoll) (session.Outcome, error)

func (f capturerFunc) Capture(ctx context.Context, cfg models.DeviceConfig, poll models.ActivePoll) (session.Outcome, error) {
	return f(ctx, cfg, poll)
}
