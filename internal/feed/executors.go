package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finsync/internal/conflict"
	"finsync/internal/events"
	"finsync/internal/metrics"
	"finsync/internal/models"
	"finsync/internal/retry"
	"finsync/internal/store"

	"github.com/rs/zerolog"
)

// Syncer builds the executors the scheduler runs: each one pulls a slice of
// remote data, runs conflict detection against the local cache and merges the
// outcome idempotently.
type Syncer struct {
	client   *Client
	store    *store.Store
	resolver *conflict.Resolver
	bus      *events.EventBus
	logger   *zerolog.Logger
	fetch    retry.Policy
	now      func() time.Time
}

func NewSyncer(client *Client, st *store.Store, resolver *conflict.Resolver, bus *events.EventBus, logger *zerolog.Logger) *Syncer {
	fetch := retry.DefaultPolicy()
	fetch.MaxRetries = 2
	return &Syncer{
		client:   client,
		store:    st,
		resolver: resolver,
		bus:      bus,
		logger:   logger,
		fetch:    fetch,
		now:      time.Now,
	}
}

// Tasks assembles the standard task set, one per category. The interval
// function supplies the configured base interval per category.
func (s *Syncer) Tasks(interval func(models.TaskCategory) time.Duration) []models.SyncTask {
	return []models.SyncTask{
		{
			ID:       "balances",
			Category: models.CategoryBalances,
			Priority: models.PriorityCritical,
			Interval: interval(models.CategoryBalances),
			Execute:  s.SyncBalances,
		},
		{
			ID:       "transactions",
			Category: models.CategoryTransactions,
			Priority: models.PriorityHigh,
			Interval: interval(models.CategoryTransactions),
			Execute:  s.SyncTransactions,
		},
		{
			ID:       "notifications",
			Category: models.CategoryNotifications,
			Priority: models.PriorityNormal,
			Interval: interval(models.CategoryNotifications),
			Execute:  s.SyncNotifications,
		},
		{
			ID:       "goals",
			Category: models.CategoryGoals,
			Priority: models.PriorityNormal,
			Interval: interval(models.CategoryGoals),
			Execute:  s.SyncGoals,
		},
		{
			ID:           "categorization",
			Category:     models.CategoryCategorization,
			Priority:     models.PriorityLow,
			Interval:     interval(models.CategoryCategorization),
			RequiresWifi: true,
			Execute:      s.SyncCategorization,
		},
		{
			ID:           "insights",
			Category:     models.CategoryInsights,
			Priority:     models.PriorityLow,
			Interval:     interval(models.CategoryInsights),
			RequiresWifi: true,
			Execute:      s.SyncInsights,
		},
	}
}

// SyncBalances refreshes the local account cache from the aggregator.
func (s *Syncer) SyncBalances(ctx context.Context) (models.SyncResult, error) {
	var remotes []models.Account
	err := s.fetch.Do(ctx, func(ctx context.Context) error {
		var err error
		remotes, err = s.client.Accounts(ctx)
		return err
	})
	if err != nil {
		return models.SyncResult{Message: "failed to fetch accounts"}, err
	}

	added, updated, conflicts := 0, 0, 0
	for i := range remotes {
		remote := remotes[i]
		local, err := s.store.GetAccountByExternalID(ctx, remote.ExternalID)
		if errors.Is(err, store.ErrNotFound) {
			remote.UpdatedAt = s.now()
			if err := s.store.UpsertAccount(ctx, &remote); err != nil {
				return models.SyncResult{Message: "failed to store account"}, err
			}
			added++
			continue
		}
		if err != nil {
			return models.SyncResult{Message: "failed to read account cache"}, err
		}

		remote.ID = local.ID
		c := s.resolver.DetectAccount(local, &remote)
		if c == nil {
			continue
		}
		conflicts++
		resolved := conflict.Resolve(c)
		s.audit(ctx, resolved)

		if resolved.Resolution == conflict.ResolutionUseRemote {
			remote.UpdatedAt = s.now()
			if err := s.store.UpsertAccount(ctx, &remote); err != nil {
				return models.SyncResult{Message: "failed to merge account"}, err
			}
			updated++
		}
	}

	return models.SyncResult{
		Success:     true,
		Message:     fmt.Sprintf("accounts: %d new, %d updated, %d conflicts", added, updated, conflicts),
		DataUpdated: added+updated > 0,
	}, nil
}

// SyncTransactions pulls recent transactions for every cached account and
// merges them, resolving duplicates against nearby local records.
func (s *Syncer) SyncTransactions(ctx context.Context) (models.SyncResult, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return models.SyncResult{Message: "failed to list accounts"}, err
	}

	added, updated, conflicts := 0, 0, 0
	for _, acct := range accounts {
		if !acct.Active {
			continue
		}

		var remotes []models.Transaction
		err := s.fetch.Do(ctx, func(ctx context.Context) error {
			var err error
			remotes, err = s.client.Transactions(ctx, acct.ID, acct.UpdatedAt.Add(-24*time.Hour))
			return err
		})
		if err != nil {
			return models.SyncResult{Message: "failed to fetch transactions for " + acct.ID}, err
		}

		for i := range remotes {
			remote := remotes[i]
			remote.AccountID = acct.ID

			a, u, c, err := s.mergeTransaction(ctx, &remote)
			if err != nil {
				return models.SyncResult{Message: "failed to merge transaction"}, err
			}
			added += a
			updated += u
			conflicts += c
		}
	}

	return models.SyncResult{
		Success:     true,
		Message:     fmt.Sprintf("transactions: %d new, %d updated, %d conflicts", added, updated, conflicts),
		DataUpdated: added+updated > 0,
	}, nil
}

func (s *Syncer) mergeTransaction(ctx context.Context, remote *models.Transaction) (added, updated, conflicts int, err error) {
	local, err := s.store.GetTransaction(ctx, remote.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, 0, 0, err
	}

	if local != nil {
		c := s.resolver.DetectTransaction(local, remote)
		if c == nil {
			return 0, 0, 0, nil
		}
		resolved := conflict.Resolve(c)
		s.audit(ctx, resolved)
		if resolved.Resolution == conflict.ResolutionUseRemote {
			remote.UpdatedAt = s.now()
			if err := s.store.UpsertTransaction(ctx, remote); err != nil {
				return 0, 0, 0, err
			}
			return 0, 1, 1, nil
		}
		return 0, 0, 1, nil
	}

	// New record: look for a duplicate booked under a different id.
	candidates, err := s.store.FindPotentialDuplicates(ctx, remote)
	if err != nil {
		return 0, 0, 0, err
	}
	for i := range candidates {
		dup := candidates[i]
		c := s.resolver.DetectTransaction(&dup, remote)
		if c == nil || c.Type != conflict.TypeDuplicateRecord {
			continue
		}
		resolved := conflict.Resolve(c)
		s.audit(ctx, resolved)
		switch resolved.Resolution {
		case conflict.ResolutionUseRemote:
			if err := s.store.DeleteTransaction(ctx, dup.ID); err != nil {
				return 0, 0, 0, err
			}
			remote.UpdatedAt = s.now()
			if err := s.store.UpsertTransaction(ctx, remote); err != nil {
				return 0, 0, 0, err
			}
			return 0, 1, 1, nil
		default:
			// Local copy wins or the pair is parked for review; either way
			// the remote record is not merged.
			return 0, 0, 1, nil
		}
	}

	remote.UpdatedAt = s.now()
	if err := s.store.UpsertTransaction(ctx, remote); err != nil {
		return 0, 0, 0, err
	}
	return 1, 0, 0, nil
}

// SyncNotifications pulls pending upstream alerts.
func (s *Syncer) SyncNotifications(ctx context.Context) (models.SyncResult, error) {
	var notes []Notification
	err := s.fetch.Do(ctx, func(ctx context.Context) error {
		var err error
		notes, err = s.client.Notifications(ctx)
		return err
	})
	if err != nil {
		return models.SyncResult{Message: "failed to fetch notifications"}, err
	}

	for _, n := range notes {
		s.logger.Info().
			Str("notification_id", n.ID).
			Str("kind", n.Kind).
			Str("account_id", n.AccountID).
			Msg("Notification received")
	}

	return models.SyncResult{
		Success:     true,
		Message:     fmt.Sprintf("notifications: %d pending", len(notes)),
		DataUpdated: len(notes) > 0,
	}, nil
}

// SyncGoals refreshes savings goal progress.
func (s *Syncer) SyncGoals(ctx context.Context) (models.SyncResult, error) {
	var goals []Goal
	err := s.fetch.Do(ctx, func(ctx context.Context) error {
		var err error
		goals, err = s.client.Goals(ctx)
		return err
	})
	if err != nil {
		return models.SyncResult{Message: "failed to fetch goals"}, err
	}

	reached := 0
	for _, g := range goals {
		if g.TargetAmount > 0 && g.CurrentAmount >= g.TargetAmount {
			reached++
		}
	}

	return models.SyncResult{
		Success:     true,
		Message:     fmt.Sprintf("goals: %d tracked, %d reached", len(goals), reached),
		DataUpdated: len(goals) > 0,
	}, nil
}

// categoryRules map merchant or description keywords to spending categories.
var categoryRules = []struct {
	keyword  string
	category string
}{
	{"grocery", "groceries"},
	{"supermarket", "groceries"},
	{"restaurant", "dining"},
	{"cafe", "dining"},
	{"coffee", "dining"},
	{"uber", "transport"},
	{"taxi", "transport"},
	{"transit", "transport"},
	{"fuel", "transport"},
	{"pharmacy", "health"},
	{"gym", "health"},
	{"netflix", "subscriptions"},
	{"spotify", "subscriptions"},
	{"rent", "housing"},
	{"mortgage", "housing"},
	{"salary", "income"},
	{"payroll", "income"},
}

// SyncCategorization assigns categories to uncategorized transactions using
// keyword rules. Purely local; runs on wifi to stay off the metered budget.
func (s *Syncer) SyncCategorization(ctx context.Context) (models.SyncResult, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return models.SyncResult{Message: "failed to list accounts"}, err
	}

	categorized := 0
	for _, acct := range accounts {
		txns, err := s.store.ListTransactionsByAccount(ctx, acct.ID, 500)
		if err != nil {
			return models.SyncResult{Message: "failed to list transactions"}, err
		}
		for i := range txns {
			txn := txns[i]
			if txn.Category != "" && txn.Category != models.CategoryUncategorized {
				continue
			}
			category, ok := classify(&txn)
			if !ok {
				continue
			}
			txn.Category = category
			txn.UpdatedAt = s.now()
			if err := s.store.UpsertTransaction(ctx, &txn); err != nil {
				return models.SyncResult{Message: "failed to update transaction"}, err
			}
			categorized++
		}
	}

	return models.SyncResult{
		Success:     true,
		Message:     fmt.Sprintf("categorization: %d transactions labeled", categorized),
		DataUpdated: categorized > 0,
	}, nil
}

func classify(txn *models.Transaction) (string, bool) {
	haystack := strings.ToLower(txn.Merchant + " " + txn.Description)
	for _, rule := range categoryRules {
		if strings.Contains(haystack, rule.keyword) {
			return rule.category, true
		}
	}
	return "", false
}

// SyncInsights recomputes a 30-day spending summary across all accounts. The
// result is derived data; it never mutates the cache.
func (s *Syncer) SyncInsights(ctx context.Context) (models.SyncResult, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return models.SyncResult{Message: "failed to list accounts"}, err
	}

	cutoff := s.now().AddDate(0, 0, -30)
	var spent, received float64
	counted := 0
	for _, acct := range accounts {
		txns, err := s.store.ListTransactionsByAccount(ctx, acct.ID, 500)
		if err != nil {
			return models.SyncResult{Message: "failed to list transactions"}, err
		}
		for _, txn := range txns {
			if txn.Date.Before(cutoff) || txn.Pending {
				continue
			}
			counted++
			if txn.Amount < 0 {
				spent += -txn.Amount
			} else {
				received += txn.Amount
			}
		}
	}

	s.logger.Info().
		Int("transactions", counted).
		Float64("spent", spent).
		Float64("received", received).
		Msg("Spending summary recomputed")

	return models.SyncResult{
		Success: true,
		Message: fmt.Sprintf("insights: %d transactions, %.2f out, %.2f in", counted, spent, received),
	}, nil
}

// audit records a resolved conflict in the local journal, publishes it on the
// bus and bumps the conflict counter.
func (s *Syncer) audit(ctx context.Context, c *conflict.Details) {
	payload := events.ConflictPayload{
		Entity:     string(c.Entity),
		Type:       string(c.Type),
		Resolution: string(c.Resolution),
		At:         c.DetectedAt,
	}
	switch c.Entity {
	case conflict.EntityAccount:
		if c.LocalAccount != nil {
			payload.LocalID = c.LocalAccount.ID
		}
		if c.RemoteAccount != nil {
			payload.RemoteID = c.RemoteAccount.ID
		}
	case conflict.EntityTransaction:
		if c.LocalTransaction != nil {
			payload.LocalID = c.LocalTransaction.ID
		}
		if c.RemoteTransaction != nil {
			payload.RemoteID = c.RemoteTransaction.ID
		}
	}

	if err := s.store.RecordConflict(ctx, payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to record conflict")
	}
	if err := s.bus.PublishJSON(events.EventConflictResolved, payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to publish conflict event")
	}
	metrics.IncConflict(string(c.Type), string(c.Resolution))

	s.logger.Info().
		Str("entity", string(c.Entity)).
		Str("type", string(c.Type)).
		Str("resolution", string(c.Resolution)).
		Str("local_id", payload.LocalID).
		Str("remote_id", payload.RemoteID).
		Msg("Conflict resolved")
}
