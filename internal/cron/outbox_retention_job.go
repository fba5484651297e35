package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

const (
	outboxRetentionDays    = 30
	outboxDLQRetentionDays = 90
)

type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Repository   outboxRetentionRepo
	DLQ          outboxDLQRetentionRepo
	Retention    int
	DLQRetention int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type outboxDLQRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes published outbox rows and aged dead letters.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	dlqRetention := params.DLQRetention
	if dlqRetention <= 0 {
		dlqRetention = outboxDLQRetentionDays
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		repo:         params.Repository,
		dlq:          params.DLQ,
		retention:    retention,
		dlqRetention: dlqRetention,
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	repo         outboxRetentionRepo
	dlq          outboxDLQRetentionRepo
	retention    int
	dlqRetention int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox_retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	var errs []error

	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("outbox retention: %w", err))
	}

	var dlqDeleted int64
	if j.dlq != nil {
		dlqCutoff := j.now().UTC().Add(-time.Duration(j.dlqRetention) * 24 * time.Hour)
		dlqDeleted, err = j.dlq.DeleteFailedBefore(ctx, dlqCutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("outbox dlq retention: %w", err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":             cutoff,
		"retention_days":     j.retention,
		"rows_deleted":       deleted,
		"dlq_retention_days": j.dlqRetention,
		"dlq_rows_deleted":   dlqDeleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return multierr.Combine(errs...)
}
