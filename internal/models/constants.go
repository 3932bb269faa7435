package models

import "time"

const (
	// CategoryUncategorized is the default transaction category and does not
	// count toward completeness when comparing duplicate records.
	CategoryUncategorized = "uncategorized"
)

const (
	// DefaultLowBatteryThreshold is the battery percentage at or below which
	// syncing is suspended when pause-on-low-battery is enabled.
	DefaultLowBatteryThreshold = 20

	// DefaultMaxConcurrentSyncs bounds simultaneous executor runs.
	DefaultMaxConcurrentSyncs = 3

	// DefaultExecutionTimeout caps a single executor invocation. A timeout is
	// accounted as a failure and goes through the retry policy.
	DefaultExecutionTimeout = 30 * time.Second

	// CriticalRetryCooldown is how long an exhausted CRITICAL task waits
	// before re-entering the schedule with a fresh retry budget.
	CriticalRetryCooldown = time.Hour

	// ReducedFrequencyFactor stretches every interval when battery-saver
	// (reduced frequency) mode is on.
	ReducedFrequencyFactor = 1.5
)

// Per-category interval multipliers. Data that changes often syncs at its base
// interval; derived or slow-moving data syncs proportionally less often.
const (
	MultiplierBalances       = 1.0
	MultiplierTransactions   = 1.0
	MultiplierNotifications  = 1.5
	MultiplierCategorization = 2.0
	MultiplierGoals          = 2.0
	MultiplierInsights       = 3.0
)

// CategoryMultiplier returns the interval multiplier for a task category.
// Unknown categories sync at the base interval.
func CategoryMultiplier(c TaskCategory) float64 {
	switch c {
	case CategoryBalances:
		return MultiplierBalances
	case CategoryTransactions:
		return MultiplierTransactions
	case CategoryNotifications:
		return MultiplierNotifications
	case CategoryCategorization:
		return MultiplierCategorization
	case CategoryGoals:
		return MultiplierGoals
	case CategoryInsights:
		return MultiplierInsights
	default:
		return 1.0
	}
}

// DefaultInterval returns the base sync interval for a category, used when a
// task is registered without one.
func DefaultInterval(c TaskCategory) time.Duration {
	switch c {
	case CategoryBalances:
		return DefaultBalancesInterval
	case CategoryTransactions:
		return DefaultTransactionsInterval
	case CategoryCategorization:
		return DefaultCategorizationInterval
	case CategoryInsights:
		return DefaultInsightsInterval
	case CategoryGoals:
		return DefaultGoalsInterval
	case CategoryNotifications:
		return DefaultNotificationsInterval
	default:
		return 30 * time.Minute
	}
}

const (
	// GateRecheckInterval is how soon a resource-gated task is re-evaluated.
	// Gating is not a failure; the retry counter is untouched.
	GateRecheckInterval = 5 * time.Minute
)

const (
	// StatusChangeGraceWindow is how long a local deactivation is trusted over
	// a remote record that still shows the entity active. A deactivation older
	// than this defers to the remote source.
	StatusChangeGraceWindow = 24 * time.Hour

	// DuplicateDescriptionDistance is the maximum Levenshtein distance at
	// which two transaction descriptions are considered the same purchase.
	DuplicateDescriptionDistance = 3
)

// Default base sync intervals per category.
const (
	DefaultBalancesInterval       = 15 * time.Minute
	DefaultTransactionsInterval   = 30 * time.Minute
	DefaultCategorizationInterval = 2 * time.Hour
	DefaultInsightsInterval       = 6 * time.Hour
	DefaultGoalsInterval          = 2 * time.Hour
	DefaultNotificationsInterval  = time.Hour
)
