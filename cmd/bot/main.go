package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaygate/relay-bot/internal/apperr"
	"github.com/relaygate/relay-bot/internal/bot"
	"github.com/relaygate/relay-bot/internal/continuation"
	"github.com/relaygate/relay-bot/internal/database"
	"github.com/relaygate/relay-bot/internal/health"
	"github.com/relaygate/relay-bot/internal/i18n"
	"github.com/relaygate/relay-bot/internal/idempotency"
	"github.com/relaygate/relay-bot/internal/jobs"
	jobhandlers "github.com/relaygate/relay-bot/internal/jobs/handlers"
	"github.com/relaygate/relay-bot/internal/kvstore"
	"github.com/relaygate/relay-bot/internal/lifecycle"
	"github.com/relaygate/relay-bot/internal/login"
	"github.com/relaygate/relay-bot/internal/middleware"
	"github.com/relaygate/relay-bot/internal/network"
	"github.com/relaygate/relay-bot/internal/ratelimit"
	"github.com/relaygate/relay-bot/internal/repository"
	"github.com/relaygate/relay-bot/internal/session"
	"github.com/relaygate/relay-bot/internal/user"
	"github.com/relaygate/relay-bot/internal/usercache"
	"github.com/relaygate/relay-bot/pkg/config"
	"github.com/relaygate/relay-bot/pkg/graceful"
	"github.com/relaygate/relay-bot/pkg/logger"
	pkgredis "github.com/relaygate/relay-bot/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(*cfg)
	log.Info("starting relay bot gateway",
		slog.String("env", cfg.AppEnv),
		slog.String("bot_mode", cfg.Bot.Mode),
		slog.String("ops_port", cfg.Server.Port),
	)

	config.Watch(v, log, func(fresh *config.Config) {
		// only a restart picks up transport changes; log so operators know
		log.Info("configuration reloaded", slog.String("env", fresh.AppEnv))
	})

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.AppEnv}); err != nil {
			log.Error("failed to initialize sentry", slog.Any("error", err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}

	catalog, err := i18n.LoadFromDir(cfg.I18n.Dir, cfg.I18n.DefaultLang)
	if err != nil {
		log.Error("failed to load message catalogs", slog.Any("error", err))
		os.Exit(1)
	}

	dialer, err := network.NewDialer(network.Credentials{
		APIID:   cfg.Network.APIID,
		APIHash: cfg.Network.APIHash,
	})
	if err != nil {
		log.Error("failed to build network dialer", slog.Any("error", err))
		os.Exit(1)
	}
	guarded := network.NewGuardedDialer(dialer, cfg.Network.CallTimeout)

	userRepo := repository.NewUserRepository(db, log)
	sessionRepo := repository.NewSessionRepository(db, log)

	users := user.NewService(userRepo, usercache.NewCache(redisClient.Client), log)
	machine := login.NewMachine(guarded, sessionRepo, log, cfg.Login.MaxAttempts)
	accounts := session.NewManager(guarded, sessionRepo, log)
	pending := continuation.NewRedisTable(redisClient.Client, log, cfg.Login.AttemptTTL)
	notes := kvstore.NewRedisStore(redisClient.Client, log)
	dedupe := idempotency.NewManager(idempotency.NewRedisStore(redisClient.Client, log), log)
	errHandler := apperr.NewHandler(log, cfg.Sentry.Enabled)

	rules := ratelimit.NewRules(cfg.RateLimit)
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Backend == "redis" {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, log)
	} else {
		memLimiter := ratelimit.NewMemoryLimiter(log)
		limiter = memLimiter
		go ratelimit.NewCleaner(memLimiter, log, time.Hour, 10*time.Minute).Run(ctx)
	}

	b, err := bot.New(*cfg, log, bot.Deps{
		Users:       users,
		Notes:       notes,
		Login:       machine,
		Accounts:    accounts,
		Pending:     pending,
		Idempotency: dedupe,
		Limiter:     limiter,
		Rules:       rules,
		ErrHandler:  errHandler,
		I18n:        catalog,
	})
	if err != nil {
		log.Error("failed to build bot", slog.Any("error", err))
		os.Exit(1)
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("bot", func(ctx context.Context) error {
		b.Stop()
		return nil
	})
	shutdown.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})
	shutdown.Register("database", func(ctx context.Context) error {
		return db.Close()
	})

	if cfg.Jobs.Enabled {
		startJobs(ctx, cfg, log, machine, accounts, shutdown)
	}

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.PingDB(db))
	checker.AddCheck("redis", health.PingRedis(redisClient.Client))
	checker.AddCheck("bot", health.BotReady(b.Telebot()))

	opsServer := graceful.NewServer(log, &http.Server{
		Addr:    cfg.Server.Port,
		Handler: opsHandler(log, checker),
	}, cfg.Server.ShutdownTimeout)

	go func() {
		if err := opsServer.ListenAndServe(ctx); err != nil {
			log.Error("ops server stopped", slog.Any("error", err))
		}
	}()

	go b.Start()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}
}

// startJobs wires the asynq worker and scheduler for the maintenance tasks
// and enqueues an immediate session audit so the gauge is fresh after boot.
func startJobs(ctx context.Context, cfg *config.Config, log *slog.Logger, machine *login.Machine, accounts *session.Manager, shutdown *lifecycle.Shutdown) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, map[string]int{
		jobs.QueueDefault: 3,
		jobs.QueueLow:     1,
	}, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeLoginSweep, jobhandlers.NewLoginSweepHandler(machine, log))
	worker.RegisterHandler(jobs.TaskTypeSessionAudit, jobhandlers.NewSessionAuditHandler(accounts, log))

	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker failed", slog.Any("error", err))
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.SweepCron, cfg.Jobs.AuditCron, cfg.Login.AttemptTTL, log)
	if err := scheduler.RegisterTasks(); err != nil {
		log.Error("failed to register scheduled tasks", slog.Any("error", err))
	} else {
		scheduler.Run()
	}

	manager := jobs.NewManager(redisOpt, log)
	if _, err := manager.Enqueue(ctx, jobs.NewSessionAuditTask()); err != nil {
		log.Error("failed to enqueue initial session audit", slog.Any("error", err))
	}

	shutdown.Register("jobs-worker", func(ctx context.Context) error {
		worker.Shutdown()
		return nil
	})
	shutdown.Register("jobs-scheduler", func(ctx context.Context) error {
		scheduler.Shutdown()
		return nil
	})
	shutdown.Register("jobs-client", func(ctx context.Context) error {
		return manager.Close()
	})
}

// opsHandler serves the operational endpoints: health, readiness and metrics.
func opsHandler(log *slog.Logger, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, result := range results {
			if result != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(results); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("failed to encode readiness response", slog.Any("error", err))
		}
	})

	return logger.Middleware(middleware.HTTPLogging(log)(mux))
}
