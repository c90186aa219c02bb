package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/faisal-mohamed/rfp/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRevokeSessions removes every live session of one account.
	TaskRevokeSessions = "accounts:revoke_sessions"
)

// revokeUniqueness suppresses duplicate revocations for the same account and reason.
const revokeUniqueness = time.Minute

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RevokeSessionsPayload names the account whose sessions must go.
type RevokeSessionsPayload struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
}

// NewRevokeSessionsTask constructs an Asynq task.
func NewRevokeSessionsTask(payload RevokeSessionsPayload) (*asynq.Task, error) {
	if payload.AccountID == "" {
		return nil, errors.New("revoke sessions: account id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRevokeSessions, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Unique(revokeUniqueness),
	), nil
}
