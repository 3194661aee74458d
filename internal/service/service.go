// Package service contains the business logic.
//
// It sits between the handler and repository layers. It receives
// validated data from the handler, performs business operations and
// calls repository methods to interact with the data.
package service

import (
	"context"

	"github.com/coachpanel/backend/internal/lib/job"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// enqueueTask builds and enqueues a best-effort notification task.
func enqueueTask(ctx context.Context, jobs job.Enqueuer, logger *zerolog.Logger, what string, build func() (*asynq.Task, error)) {
	task, err := build()
	if err == nil {
		_, err = jobs.EnqueueContext(ctx, task)
	}
	if err != nil {
		logger.Error().Err(err).Str("task", what).Msg("failed to enqueue task")
	}
}
