// Package cache ведет журнал голосов и счетчики исходов сеансов в Redis.
// Журнал нужен только для наблюдения: голоса из него не переотправляются
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"vote-kiosk/internal/models"
)

const (
	// LatestVotesKey список последних голосов
	LatestVotesKey = "votes:latest"
	// TotalVotesKey счетчик захваченных голосов
	TotalVotesKey = "votes:total"
	// StatusKeyPrefix префикс счетчиков по статусу валидации
	StatusKeyPrefix = "votes:status:"
	// SubmitFailedKey счетчик голосов, не доставленных на сервер
	SubmitFailedKey = "votes:submit_failed"
	// TimeoutsKey счетчик сеансов без ввода
	TimeoutsKey = "sessions:timeout"
	// JournalLength сколько последних голосов хранится в журнале
	JournalLength = 1000

	opTimeout = 3 * time.Second
)

// JournalEntry запись журнала голосов
type JournalEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Vote      models.VoteRecord `json:"vote"`
	Submitted bool              `json:"submitted"`
	Error     string            `json:"error,omitempty"`
}

// RedisCache журнал голосов устройства в Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisCache создает подключение к Redis и проверяет его
func NewRedisCache(ctx context.Context, addr, password string, db int, deviceID string, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: "kiosk:" + deviceID + ":",
		logger: logger,
	}, nil
}

func (r *RedisCache) key(k string) string {
	return r.prefix + k
}

// RecordVote добавляет голос в журнал и обновляет счетчики
func (r *RedisCache) RecordVote(ctx context.Context, rec models.VoteRecord, submitErr error) error {
	entry := JournalEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Vote:      rec,
		Submitted: submitErr == nil,
	}
	if submitErr != nil {
		entry.Error = submitErr.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key(LatestVotesKey), data)
	pipe.LTrim(ctx, r.key(LatestVotesKey), 0, JournalLength-1)
	pipe.Incr(ctx, r.key(TotalVotesKey))
	pipe.Incr(ctx, r.key(StatusKeyPrefix+rec.Metrics.ValidationStatus.String()))
	if submitErr != nil {
		pipe.Incr(ctx, r.key(SubmitFailedKey))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to journal vote: %w", err)
	}
	return nil
}

// RecordTimeout учитывает сеанс, закончившийся без ввода
func (r *RedisCache) RecordTimeout(ctx context.Context) error {
	return r.client.Incr(ctx, r.key(TimeoutsKey)).Err()
}

// GetLatestVotes возвращает последние count записей журнала, новые первыми
func (r *RedisCache) GetLatestVotes(ctx context.Context, count int64) ([]JournalEntry, error) {
	data, err := r.client.LRange(ctx, r.key(LatestVotesKey), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest votes: %w", err)
	}

	entries := make([]JournalEntry, 0, len(data))
	for _, d := range data {
		var e JournalEntry
		if err := json.Unmarshal([]byte(d), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetCounter возвращает значение счетчика, 0 если его нет
func (r *RedisCache) GetCounter(ctx context.Context, name string) (int64, error) {
	val, err := r.client.Get(ctx, r.key(name)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Stats собирает статистику устройства из счетчиков
func (r *RedisCache) Stats(ctx context.Context, deviceID string) (models.StatsResponse, error) {
	stats := models.StatsResponse{DeviceID: deviceID}
	counters := []struct {
		name string
		dst  *int64
	}{
		{TotalVotesKey, &stats.TotalVotes},
		{StatusKeyPrefix + models.StatusApproved.String(), &stats.ApprovedVotes},
		{StatusKeyPrefix + models.StatusSuspicious.String(), &stats.SuspiciousVotes},
		{StatusKeyPrefix + models.StatusRejected.String(), &stats.RejectedVotes},
		{TimeoutsKey, &stats.Timeouts},
		{SubmitFailedKey, &stats.SubmissionFailures},
	}
	for _, c := range counters {
		v, err := r.GetCounter(ctx, c.name)
		if err != nil {
			return stats, fmt.Errorf("failed to read counter %s: %w", c.name, err)
		}
		*c.dst = v
	}
	if stats.TotalVotes > 0 {
		stats.ApprovalRate = float64(stats.ApprovedVotes) / float64(stats.TotalVotes)
	}
	return stats, nil
}

// VoteCaptured пишет голос в журнал. Ошибки Redis только логируются
func (r *RedisCache) VoteCaptured(ctx context.Context, rec models.VoteRecord, submitErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()
	if err := r.RecordVote(ctx, rec, submitErr); err != nil {
		r.logger.Warn("vote journal write failed", "error", err)
	}
}

// CaptureTimedOut учитывает таймаут сеанса
func (r *RedisCache) CaptureTimedOut(ctx context.Context, _ models.ActivePoll) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()
	if err := r.RecordTimeout(ctx); err != nil {
		r.logger.Warn("timeout counter write failed", "error", err)
	}
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Flush удаляет ключи устройства (только для тестов)
func (r *RedisCache) Flush(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, r.prefix+"*").Result()
	if err != nil || len(keys) == 0 {
		return err
	}
	return r.client.Del(ctx, keys...).Err()
}
