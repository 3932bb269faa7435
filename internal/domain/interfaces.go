package domain

import (
	"context"

	"finsync/internal/events"
	"finsync/internal/scheduler"
)

// StatusRepository stores scheduler status snapshots and recent sync reports
// for downstream display. Implementations must tolerate concurrent use.
type StatusRepository interface {
	SaveStatus(ctx context.Context, status scheduler.Status) error
	LoadStatus(ctx context.Context) (*scheduler.Status, error)
	PushReport(ctx context.Context, report events.SyncReportPayload) error
	RecentReports(ctx context.Context, limit int) ([]events.SyncReportPayload, error)
}

// EventPublisher publishes domain events as JSON payloads.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SyncController is the scheduler surface the API layer needs.
type SyncController interface {
	Status() scheduler.Status
	PauseAll()
	ResumeAll()
}
