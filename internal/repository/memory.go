package repository

import (
	"context"
	"sync"

	"finsync/internal/events"
	"finsync/internal/scheduler"
)

// MemoryStatusRepository keeps status and reports in process memory. Used as
// the failover target when redis is unavailable and in tests.
type MemoryStatusRepository struct {
	mu         sync.RWMutex
	status     *scheduler.Status
	reports    []events.SyncReportPayload
	maxReports int
}

// NewMemoryStatusRepository builds a repository holding at most maxReports
// recent reports.
func NewMemoryStatusRepository(maxReports int) *MemoryStatusRepository {
	if maxReports <= 0 {
		maxReports = 100
	}
	return &MemoryStatusRepository{maxReports: maxReports}
}

func (r *MemoryStatusRepository) SaveStatus(ctx context.Context, status scheduler.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = &status
	return nil
}

func (r *MemoryStatusRepository) LoadStatus(ctx context.Context) (*scheduler.Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status == nil {
		return nil, nil
	}
	copied := *r.status
	return &copied, nil
}

func (r *MemoryStatusRepository) PushReport(ctx context.Context, report events.SyncReportPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append([]events.SyncReportPayload{report}, r.reports...)
	if len(r.reports) > r.maxReports {
		r.reports = r.reports[:r.maxReports]
	}
	return nil
}

func (r *MemoryStatusRepository) RecentReports(ctx context.Context, limit int) ([]events.SyncReportPayload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.reports) {
		limit = len(r.reports)
	}
	out := make([]events.SyncReportPayload, limit)
	copy(out, r.reports[:limit])
	return out, nil
}
