package jobs

import (
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Cron specs for the maintenance tasks; empty config values fall back to
// these.
const (
	defaultSweepCron = "*/5 * * * *"
	defaultAuditCron = "*/30 * * * *"
)

// Scheduler periodically enqueues the login sweep and session audit tasks.
type Scheduler struct {
	inner *asynq.Scheduler
	log   *slog.Logger

	sweepCron   string
	auditCron   string
	sweepMaxAge time.Duration
}

func NewScheduler(redisOpt asynq.RedisConnOpt, sweepCron, auditCron string, sweepMaxAge time.Duration, log *slog.Logger) *Scheduler {
	if sweepCron == "" {
		sweepCron = defaultSweepCron
	}
	if auditCron == "" {
		auditCron = defaultAuditCron
	}
	if log == nil {
		log = slog.Default()
	}

	return &Scheduler{
		inner:       asynq.NewScheduler(redisOpt, nil),
		log:         log,
		sweepCron:   sweepCron,
		auditCron:   auditCron,
		sweepMaxAge: sweepMaxAge,
	}
}

func (s *Scheduler) RegisterTasks() error {
	sweep, err := NewLoginSweepTask(s.sweepMaxAge)
	if err != nil {
		return err
	}

	for _, entry := range []struct {
		cron string
		task *asynq.Task
	}{
		{s.sweepCron, sweep},
		{s.auditCron, NewSessionAuditTask()},
	} {
		if _, err := s.inner.Register(entry.cron, entry.task); err != nil {
			return err
		}
	}

	s.log.Info("maintenance tasks scheduled",
		slog.String("sweep_cron", s.sweepCron),
		slog.String("audit_cron", s.auditCron))
	return nil
}

// Run starts the scheduler loop in the background.
func (s *Scheduler) Run() {
	go func() {
		if err := s.inner.Run(); err != nil {
			s.log.Error("scheduler stopped", slog.Any("error", err))
		}
	}()
}

func (s *Scheduler) Shutdown() {
	s.inner.Shutdown()
}
