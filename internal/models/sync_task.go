package models

import (
	"context"
	"time"
)

// TaskCategory identifies the class of data a sync task refreshes.
type TaskCategory string

const (
	CategoryBalances       TaskCategory = "balances"
	CategoryTransactions   TaskCategory = "transactions"
	CategoryCategorization TaskCategory = "categorization"
	CategoryInsights       TaskCategory = "insights"
	CategoryGoals          TaskCategory = "goals"
	CategoryNotifications  TaskCategory = "notifications"
)

// AllCategories lists every known task category in registration order.
func AllCategories() []TaskCategory {
	return []TaskCategory{
		CategoryBalances,
		CategoryTransactions,
		CategoryCategorization,
		CategoryInsights,
		CategoryGoals,
		CategoryNotifications,
	}
}

// ValidCategory reports whether c is a known task category.
func ValidCategory(c TaskCategory) bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Priority orders tasks and decides what happens when retries run out.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SyncResult is the outcome of a single executor invocation.
type SyncResult struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message,omitempty"`
	NextSyncHint *time.Time `json:"next_sync_hint,omitempty"`
	DataUpdated  bool       `json:"data_updated"`
}

// Executor performs one synchronization pass for a task. Executors must be
// idempotent: an abandoned execution may be retried without cleanup.
type Executor func(ctx context.Context) (SyncResult, error)

// SyncTask is the declarative descriptor of a periodic synchronization job.
// Immutable once registered; re-register to change it.
type SyncTask struct {
	ID                string
	Category          TaskCategory
	Priority          Priority
	Interval          time.Duration
	RequiresWifi      bool
	RequiresCharging  bool
	MaxRetries        int
	BackoffMultiplier float64
	Execute           Executor
}
