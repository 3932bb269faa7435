package conflict

import (
	"time"

	"finsync/internal/models"
)

// Type classifies a divergence between a local and a remote record.
type Type string

const (
	TypeModifiedRecord  Type = "modified_record"
	TypeDuplicateRecord Type = "duplicate_record"
	TypeBalanceMismatch Type = "balance_mismatch"
	TypeStatusChange    Type = "status_change"
)

// Resolution is the decision for a detected conflict.
type Resolution string

const (
	ResolutionUseLocal     Resolution = "use_local"
	ResolutionUseRemote    Resolution = "use_remote"
	ResolutionManualReview Resolution = "manual_review"
)

// EntityKind names the record type a conflict refers to.
type EntityKind string

const (
	EntityAccount     EntityKind = "account"
	EntityTransaction EntityKind = "transaction"
)

// Details describes one detected divergence between a locally cached record
// and its remote counterpart. DetectedAt is stamped by the detector so that
// Resolve stays a pure function of its input — the status-change grace window
// is measured against DetectedAt, never against a hidden clock. Details are
// consumed immediately by the caller and never persisted as a standalone
// entity.
type Details struct {
	Type       Type
	Entity     EntityKind
	DetectedAt time.Time
	Resolution Resolution

	LocalAccount  *models.Account
	RemoteAccount *models.Account

	LocalTransaction  *models.Transaction
	RemoteTransaction *models.Transaction
}
