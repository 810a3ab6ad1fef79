package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"vote-kiosk/internal/models"
	"vote-kiosk/internal/remote"
)

func TestRecorder_VoteCaptured(t *testing.T) {
	approved := testutil.ToFloat64(VotesCaptured.WithLabelValues("APPROVED"))
	failed := testutil.ToFloat64(VoteSubmissions.WithLabelValues("server_error"))

	rec := models.VoteRecord{Metrics: models.VoteMetrics{
		ResponseLatencyMs: 12000,
		Confidence:        0.42,
		AnomalyScore:      0.6,
		Entropy:           0.97,
		ValidationStatus:  models.StatusApproved,
	}}
	Recorder{}.VoteCaptured(context.Background(), rec,
		&remote.Error{Op: "submit vote", Status: remote.StatusServerError, Code: 500})

	assert.Equal(t, approved+1, testutil.ToFloat64(VotesCaptured.WithLabelValues("APPROVED")))
	assert.Equal(t, failed+1, testutil.ToFloat64(VoteSubmissions.WithLabelValues("server_error")))
	assert.Equal(t, 0.6, testutil.ToFloat64(LastAnomalyScore))
	assert.Equal(t, 0.42, testutil.ToFloat64(LastConfidence))
}

func TestRecorder_CaptureTimedOut(t *testing.T) {
	before := testutil.ToFloat64(CaptureTimeouts)
	Recorder{}.CaptureTimedOut(context.Background(), models.ActivePoll{})
	assert.Equal(t, before+1, testutil.ToFloat64(CaptureTimeouts))
}

func TestObserveSync(t *testing.T) {
	before := testutil.ToFloat64(SyncOperations.WithLabelValues("config", "unreachable"))
	ObserveSync("config", errors.New("dial tcp: refused"))
	assert.Equal(t, before+1, testutil.ToFloat64(SyncOperations.WithLabelValues("config", "unreachable")))

	ok := testutil.ToFloat64(SyncOperations.WithLabelValues("poll", "success"))
	ObserveSync("poll", nil)
	assert.Equal(t, ok+1, testutil.ToFloat64(SyncOperations.WithLabelValues("poll", "success")))
}

func TestGauges(t *testing.T) {
	SetPollActive(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(PollActive))
	SetPollActive(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(PollActive))
	SetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(Connected))
}
