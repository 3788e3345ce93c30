package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Worker consumes maintenance tasks from the redis-backed queues.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, concurrency int, log *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 10
	}
	if log == nil {
		log = slog.Default()
	}

	w := &Worker{
		server: asynq.NewServer(redisOpt, asynq.Config{
			Queues:      queues,
			Concurrency: concurrency,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("task failed",
					slog.String("type", task.Type()),
					slog.Any("error", err))
			}),
		}),
		mux: asynq.NewServeMux(),
		log: log,
	}
	return w
}

func (w *Worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks processing tasks until Shutdown is called.
func (w *Worker) Run() error {
	w.log.Info("jobs worker started")
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.log.Info("jobs worker stopping")
	w.server.Shutdown()
}
