package store

import (
	"context"
	"fmt"
	"time"

	"finsync/internal/events"
)

// JournalEntry is one recorded sync run outcome.
type JournalEntry struct {
	ID          int64     `json:"id"`
	TaskID      string    `json:"task_id"`
	Category    string    `json:"category"`
	Success     bool      `json:"success"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
	DataUpdated bool      `json:"data_updated"`
	RetryCount  int       `json:"retry_count"`
	RanAt       time.Time `json:"ran_at"`
}

// AuditEntry is one recorded conflict resolution.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Entity     string    `json:"entity"`
	Type       string    `json:"type"`
	Resolution string    `json:"resolution"`
	LocalID    string    `json:"local_id"`
	RemoteID   string    `json:"remote_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// RecordRun appends a sync run outcome to the journal.
func (s *Store) RecordRun(ctx context.Context, report events.SyncReportPayload) error {
	query := `INSERT INTO sync_journal (task_id, category, success, message, error, data_updated, retry_count, ran_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		report.TaskID,
		report.Category,
		report.Success,
		report.Message,
		report.Error,
		report.DataUpdated,
		report.RetryCount,
		report.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest journal entries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := `SELECT id, task_id, category, success, message, error, data_updated, retry_count, ran_at
              FROM sync_journal ORDER BY ran_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Category, &e.Success, &e.Message,
			&e.Error, &e.DataUpdated, &e.RetryCount, &e.RanAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordConflict appends a resolved conflict to the audit trail.
func (s *Store) RecordConflict(ctx context.Context, c events.ConflictPayload) error {
	query := `INSERT INTO conflict_audit (entity, conflict_type, resolution, local_id, remote_id, detected_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, c.Entity, c.Type, c.Resolution, c.LocalID, c.RemoteID, c.At)
	if err != nil {
		return fmt.Errorf("failed to record conflict: %w", err)
	}
	return nil
}

// ManualReviewConflicts returns audit entries that still need a human
// decision, oldest first.
func (s *Store) ManualReviewConflicts(ctx context.Context) ([]AuditEntry, error) {
	return s.conflictsByResolution(ctx, "manual_review")
}

func (s *Store) conflictsByResolution(ctx context.Context, resolution string) ([]AuditEntry, error) {
	query := `SELECT id, entity, conflict_type, resolution, local_id, remote_id, detected_at
              FROM conflict_audit WHERE resolution = ? ORDER BY detected_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, resolution)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Entity, &e.Type, &e.Resolution, &e.LocalID, &e.RemoteID, &e.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
