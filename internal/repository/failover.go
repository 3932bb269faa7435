package repository

import (
	"context"
	"sync/atomic"
	"time"

	"finsync/internal/domain"
	"finsync/internal/events"
	"finsync/internal/scheduler"

	"github.com/rs/zerolog"
)

// FailoverStatusRepository writes through the primary repository and falls
// back to a secondary one when the primary errors. The primary is retried
// after a one minute cooldown.
type FailoverStatusRepository struct {
	primary   domain.StatusRepository
	fallback  domain.StatusRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStatusRepository(primary, fallback domain.StatusRepository, logger *zerolog.Logger) *FailoverStatusRepository {
	return &FailoverStatusRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStatusRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary status repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverStatusRepository) SaveStatus(ctx context.Context, status scheduler.Status) error {
	if !r.isDown.Load() {
		err := r.primary.SaveStatus(ctx, status)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SaveStatus(ctx, status)
}

func (r *FailoverStatusRepository) LoadStatus(ctx context.Context) (*scheduler.Status, error) {
	if !r.isDown.Load() {
		status, err := r.primary.LoadStatus(ctx)
		if err == nil {
			return status, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		status, err := r.primary.LoadStatus(ctx)
		if err == nil {
			r.isDown.Store(false)
			return status, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.LoadStatus(ctx)
}

func (r *FailoverStatusRepository) PushReport(ctx context.Context, report events.SyncReportPayload) error {
	if !r.isDown.Load() {
		err := r.primary.PushReport(ctx, report)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.PushReport(ctx, report)
}

func (r *FailoverStatusRepository) RecentReports(ctx context.Context, limit int) ([]events.SyncReportPayload, error) {
	if !r.isDown.Load() {
		reports, err := r.primary.RecentReports(ctx, limit)
		if err == nil {
			return reports, nil
		}
		r.markDown(err)
	}

	return r.fallback.RecentReports(ctx, limit)
}
