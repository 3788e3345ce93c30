package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypeLoginSweep expires abandoned login attempts and disconnects
	// their network clients.
	TaskTypeLoginSweep = "login:sweep"
	// TaskTypeSessionAudit refreshes the active session count.
	TaskTypeSessionAudit = "session:audit"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

type LoginSweepPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

func NewLoginSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(LoginSweepPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeLoginSweep, payload, asynq.Queue(QueueDefault)), nil
}

func NewSessionAuditTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionAudit, nil, asynq.Queue(QueueLow))
}
