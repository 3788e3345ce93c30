package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager enqueues background tasks onto the shared redis-backed queues.
type Manager struct {
	client *asynq.Client
	log    *slog.Logger
}

func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{client: asynq.NewClient(redisOpt), log: log}
}

func (m *Manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, err
	}

	m.log.Debug("task enqueued",
		slog.String("type", task.Type()),
		slog.String("queue", info.Queue),
		slog.String("id", info.ID))
	return info, nil
}

func (m *Manager) Close() error {
	return m.client.Close()
}
