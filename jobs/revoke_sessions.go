package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/faisal-mohamed/rfp/internal/jobs"
)

// SessionStore removes the sessions bound to an account.
type SessionStore interface {
	RevokeAccount(ctx context.Context, accountID string) (int, error)
}

// RevokeSessionsJob processes TaskRevokeSessions tasks.
type RevokeSessionsJob struct {
	Sessions SessionStore
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewRevokeSessionsJob constructs the job handler.
func NewRevokeSessionsJob(sessions SessionStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *RevokeSessionsJob {
	return &RevokeSessionsJob{Sessions: sessions, Logger: logger, Metrics: metrics}
}

// Handle executes the revocation.
func (j *RevokeSessionsJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Sessions == nil {
		return errors.New("revoke sessions: dependencies not configured")
	}
	var payload RevokeSessionsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.AccountID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskRevokeSessions)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.log().With(slog.String("account_id", payload.AccountID), slog.String("reason", payload.Reason))
	removed, err := j.Sessions.RevokeAccount(ctx, payload.AccountID)
	if err != nil {
		resultErr = err
		logger.Error("revoke sessions", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddRevokedSessions(removed)
	logger.Info("revoked sessions", slog.Int("sessions", removed))
	return resultErr
}

func (j *RevokeSessionsJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RevokeSessionsJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRevokeSessions))
	}
	return slog.Default().With(slog.String("job", TaskRevokeSessions))
}
