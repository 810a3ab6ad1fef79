package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vote-kiosk/internal/models"
)

// newTestCache подключается к Redis из REDIS_ADDR, без него тесты пропускаются
func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, uuid.NewString(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Flush(ctx)
		c.Close()
	})
	return c
}

func vote(status models.ValidationStatus, rating int) models.VoteRecord {
	return models.VoteRecord{
		DeviceID: "dev-1",
		PollID:   "poll-1",
		Rating:   rating,
		Metrics:  models.VoteMetrics{ResponseLatencyMs: 12000, ValidationStatus: status},
	}
}

func TestRecordVote_JournalAndCounters(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.RecordVote(ctx, vote(models.StatusApproved, 5), nil))
	require.NoError(t, c.RecordVote(ctx, vote(models.StatusSuspicious, 2), errors.New("HTTP 500")))
	require.NoError(t, c.RecordTimeout(ctx))

	entries, err := c.GetLatestVotes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Vote.Rating)
	assert.False(t, entries[0].Submitted)
	assert.Equal(t, "HTTP 500", entries[0].Error)
	assert.True(t, entries[1].Submitted)
	assert.Equal(t, models.StatusApproved, entries[1].Vote.Metrics.ValidationStatus)

	stats, err := c.Stats(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalVotes)
	assert.Equal(t, int64(1), stats.ApprovedVotes)
	assert.Equal(t, int64(1), stats.SuspiciousVotes)
	assert.Equal(t, int64(1), stats.Timeouts)
	assert.Equal(t, int64(1), stats.SubmissionFailures)
	assert.InDelta(t, 0.5, stats.ApprovalRate, 1e-9)
}

func TestGetCounter_Missing(t *testing.T) {
	c := newTestCache(t)
	v, err := c.GetCounter(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Zero(t, v)
}
