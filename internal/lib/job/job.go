// Package job runs background work on asynq, a Redis-backed task queue.
//
// Services enqueue tasks (emails, SMS) through the asynq client; the
// worker server processes them with retries, and a scheduler enqueues
// the hourly subscription expiry sweep.
package job

import (
	"context"

	"github.com/coachpanel/backend/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Enqueuer is what services need to schedule work. *asynq.Client
// satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExpirySchedule is the cron spec for TaskExpireSubscriptions.
const ExpirySchedule = "@every 1h"

type JobService struct {
	Client *asynq.Client

	server    *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zerolog.Logger
	deps      Dependencies
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// NewJobService creates the client, worker server and scheduler. Nothing
// runs until Start.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	opt := redisOpt(cfg)

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
			QueueLow:      1,
		},
		Logger:   newAsynqLogger(logger),
		LogLevel: asynq.WarnLevel,
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Logger:   newAsynqLogger(logger),
		LogLevel: asynq.WarnLevel,
	})

	return &JobService{
		Client:    asynq.NewClient(opt),
		server:    server,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start registers handlers, starts the workers and the scheduler.
// InitHandlers must have been called first.
func (j *JobService) Start() error {
	if _, err := j.scheduler.Register(ExpirySchedule, NewExpireSubscriptionsTask()); err != nil {
		return err
	}

	j.logger.Info().Msg("Starting background job server")

	if err := j.server.Start(j.Mux()); err != nil {
		return err
	}

	if err := j.scheduler.Start(); err != nil {
		j.server.Shutdown()
		return err
	}

	return nil
}

// Stop waits for running tasks and releases Redis connections.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	j.scheduler.Shutdown()
	j.server.Shutdown()
	_ = j.Client.Close()
}
