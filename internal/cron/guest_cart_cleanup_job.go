package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

const defaultGuestCartTTL = 30 * 24 * time.Hour

type GuestCartCleanupJobParams struct {
	Logger     *logger.Logger
	Repository guestCartRepo
	TTL        time.Duration
}

type guestCartRepo interface {
	DeleteGuestCartsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewGuestCartCleanupJob removes guest carts nobody has touched within the TTL.
// User carts are never removed.
func NewGuestCartCleanupJob(params GuestCartCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultGuestCartTTL
	}
	return &guestCartCleanupJob{
		logg: params.Logger,
		repo: params.Repository,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

type guestCartCleanupJob struct {
	logg *logger.Logger
	repo guestCartRepo
	ttl  time.Duration
	now  func() time.Time
}

func (j *guestCartCleanupJob) Name() string { return "guest_cart_cleanup" }

func (j *guestCartCleanupJob) Run(ctx context.Context) error {
	// cart timestamps are written with local time.Now
	cutoff := j.now().Add(-j.ttl)
	deleted, err := j.repo.DeleteGuestCartsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("guest cart cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"ttl_hours":    int(j.ttl.Hours()),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "guest cart cleanup complete")
	return nil
}
