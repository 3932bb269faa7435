package conflict

import (
	"time"

	"finsync/internal/models"
)

// Resolver detects divergence between local and remote records and decides
// how to reconcile it. Detection stamps the clock into Details; resolution is
// deterministic and side-effect free.
type Resolver struct {
	now func() time.Time
}

// NewResolver builds a Resolver using the wall clock.
func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

// NewResolverWithClock builds a Resolver with an injected clock.
func NewResolverWithClock(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// DetectAccount compares a local and remote version of the same account.
// Returns nil when the two are semantically equal.
func (r *Resolver) DetectAccount(local, remote *models.Account) *Details {
	if local == nil || remote == nil {
		return nil
	}

	base := Details{
		Entity:        EntityAccount,
		DetectedAt:    r.now(),
		LocalAccount:  local,
		RemoteAccount: remote,
	}

	if local.Active != remote.Active {
		base.Type = TypeStatusChange
		return &base
	}
	if local.Balance != remote.Balance {
		base.Type = TypeBalanceMismatch
		return &base
	}
	if local.Name != remote.Name || local.Type != remote.Type ||
		local.Currency != remote.Currency || local.Institution != remote.Institution {
		base.Type = TypeModifiedRecord
		return &base
	}
	return nil
}

// DetectTransaction compares a local and remote transaction. Two records with
// different ids but the same account, amount and date, and similar
// descriptions, are flagged as duplicates.
func (r *Resolver) DetectTransaction(local, remote *models.Transaction) *Details {
	if local == nil || remote == nil {
		return nil
	}

	base := Details{
		Entity:            EntityTransaction,
		DetectedAt:        r.now(),
		LocalTransaction:  local,
		RemoteTransaction: remote,
	}

	if local.ID != remote.ID {
		if local.AccountID == remote.AccountID &&
			local.Amount == remote.Amount &&
			local.SameDay(remote) &&
			similarDescriptions(local.Description, remote.Description, models.DuplicateDescriptionDistance) {
			base.Type = TypeDuplicateRecord
			return &base
		}
		return nil
	}

	if local.Amount != remote.Amount ||
		!local.Date.Equal(remote.Date) ||
		local.Description != remote.Description ||
		local.Merchant != remote.Merchant ||
		local.Location != remote.Location ||
		local.Category != remote.Category ||
		local.Pending != remote.Pending {
		base.Type = TypeModifiedRecord
		return &base
	}
	return nil
}

// Resolve fills in the Resolution field using fixed, entity-specific rules.
// It does not re-detect, consult a clock, or use randomness: identical inputs
// always produce identical resolutions.
func Resolve(c *Details) *Details {
	if c == nil {
		return nil
	}
	resolved := *c

	switch c.Type {
	case TypeBalanceMismatch, TypeModifiedRecord:
		// The remote source is the system of record for monetary state.
		resolved.Resolution = ResolutionUseRemote

	case TypeDuplicateRecord:
		resolved.Resolution = resolveDuplicate(c)

	case TypeStatusChange:
		resolved.Resolution = resolveStatusChange(c)

	default:
		resolved.Resolution = ResolutionManualReview
	}

	return &resolved
}

func resolveDuplicate(c *Details) Resolution {
	if c.LocalTransaction == nil || c.RemoteTransaction == nil {
		return ResolutionManualReview
	}
	localScore := c.LocalTransaction.CompletenessScore()
	remoteScore := c.RemoteTransaction.CompletenessScore()
	if localScore > remoteScore {
		return ResolutionUseLocal
	}
	// Tie-break toward the remote version.
	return ResolutionUseRemote
}

func resolveStatusChange(c *Details) Resolution {
	if c.LocalAccount == nil || c.RemoteAccount == nil {
		return ResolutionManualReview
	}

	// A recent local deactivation is an intentional user action that has not
	// yet propagated upstream; trust it within the grace window.
	if !c.LocalAccount.Active && c.RemoteAccount.Active {
		if c.LocalAccount.DeactivatedAt != nil &&
			c.DetectedAt.Sub(*c.LocalAccount.DeactivatedAt) <= models.StatusChangeGraceWindow {
			return ResolutionUseLocal
		}
		return ResolutionUseRemote
	}
	return ResolutionUseRemote
}
