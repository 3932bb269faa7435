package feed

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"finsync/internal/conflict"
	"finsync/internal/events"
	"finsync/internal/models"
	"finsync/internal/store"
	"finsync/internal/syncerr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSyncer(t *testing.T, handler http.Handler) (*Syncer, *store.Store, *events.EventBus) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := testClient(t, handler)
	bus := events.NewEventBus()
	logger := zerolog.New(io.Discard)
	syncer := NewSyncer(client, st, conflict.NewResolver(), bus, &logger)
	return syncer, st, bus
}

func TestSyncBalancesAddsAndResolves(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[
			{"id":"acc-1","external_id":"ext-1","name":"Checking","type":"checking","balance":150.0,"currency":"USD","active":true},
			{"id":"acc-2","external_id":"ext-2","name":"Savings","type":"savings","balance":900.0,"currency":"USD","active":true}
		]}`))
	})
	syncer, st, bus := testSyncer(t, handler)
	ctx := context.Background()

	var conflictEvents atomic.Int32
	bus.Subscribe(events.EventConflictResolved, func(e *events.Event) error {
		conflictEvents.Add(1)
		return nil
	})

	require.NoError(t, st.UpsertAccount(ctx, &models.Account{
		ID: "acc-1", ExternalID: "ext-1", Name: "Checking", Type: "checking",
		Balance: 100.0, Currency: "USD", Active: true, UpdatedAt: time.Now(),
	}))

	result, err := syncer.SyncBalances(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.DataUpdated)

	// Balance conflict resolved in favor of the remote record
	got, err := st.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.Balance)

	// New account cached
	added, err := st.GetAccountByExternalID(ctx, "ext-2")
	require.NoError(t, err)
	assert.Equal(t, "Savings", added.Name)

	assert.Equal(t, int32(1), conflictEvents.Load())
}

func TestSyncBalancesNoChangesNoWrites(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[
			{"id":"acc-1","external_id":"ext-1","name":"Checking","type":"checking","balance":100.0,"currency":"USD","active":true}
		]}`))
	})
	syncer, st, _ := testSyncer(t, handler)
	ctx := context.Background()

	require.NoError(t, st.UpsertAccount(ctx, &models.Account{
		ID: "acc-1", ExternalID: "ext-1", Name: "Checking", Type: "checking",
		Balance: 100.0, Currency: "USD", Active: true, UpdatedAt: time.Now(),
	}))

	result, err := syncer.SyncBalances(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.DataUpdated)
}

func TestSyncBalancesFetchErrorPropagates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	syncer, _, _ := testSyncer(t, handler)

	result, err := syncer.SyncBalances(context.Background())
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, syncerr.KindAuth, syncerr.KindOf(err))
}

func TestSyncTransactionsMergesNewRecords(t *testing.T) {
	day := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/accounts/acc-1/transactions" {
			w.Write([]byte(`{"transactions":[
				{"id":"txn-1","account_id":"acc-1","amount":-42.0,"date":"` + day.Format(time.RFC3339) + `","description":"Hardware store"}
			]}`))
			return
		}
		w.Write([]byte(`{"transactions":[]}`))
	})
	syncer, st, _ := testSyncer(t, handler)
	ctx := context.Background()

	require.NoError(t, st.UpsertAccount(ctx, &models.Account{
		ID: "acc-1", ExternalID: "ext-1", Active: true, UpdatedAt: time.Now(),
	}))

	result, err := syncer.SyncTransactions(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.DataUpdated)

	got, err := st.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, -42.0, got.Amount)
}

func TestSyncTransactionsDuplicateKeepsRicherRecord(t *testing.T) {
	day := time.Date(2026, 8, 20, 9, 15, 0, 0, time.UTC)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/accounts/acc-1/transactions" {
			w.Write([]byte(`{"transactions":[
				{"id":"txn-remote","account_id":"acc-1","amount":-12.5,"date":"` + day.Format(time.RFC3339) + `","description":"Coffe Shop","merchant":"Coffee Shop Inc","location":"Main St"}
			]}`))
			return
		}
		w.Write([]byte(`{"transactions":[]}`))
	})
	syncer, st, bus := testSyncer(t, handler)
	ctx := context.Background()

	var conflictEvents atomic.Int32
	bus.Subscribe(events.EventConflictResolved, func(e *events.Event) error {
		conflictEvents.Add(1)
		return nil
	})

	require.NoError(t, st.UpsertAccount(ctx, &models.Account{
		ID: "acc-1", ExternalID: "ext-1", Active: true, UpdatedAt: time.Now(),
	}))
	// Sparse local copy of the same purchase under a different id
	require.NoError(t, st.UpsertTransaction(ctx, &models.Transaction{
		ID: "txn-local", AccountID: "acc-1", Amount: -12.5,
		Date: day.Add(2 * time.Hour), Description: "Coffee Shop", UpdatedAt: time.Now(),
	}))

	result, err := syncer.SyncTransactions(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)

	// The richer remote record replaced the sparse local one
	_, err = st.GetTransaction(ctx, "txn-local")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.GetTransaction(ctx, "txn-remote")
	require.NoError(t, err)
	assert.Equal(t, "Coffee Shop Inc", got.Merchant)

	assert.Equal(t, int32(1), conflictEvents.Load())
}

func TestSyncTransactionsSkipsInactiveAccounts(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"transactions":[]}`))
	})
	syncer, st, _ := testSyncer(t, handler)
	ctx := context.Background()

	deactivated := time.Now().Add(-time.Hour)
	require.NoError(t, st.UpsertAccount(ctx, &models.Account{
		ID: "acc-closed", ExternalID: "ext-closed", Active: false,
		DeactivatedAt: &deactivated, UpdatedAt: time.Now(),
	}))

	result, err := syncer.SyncTransactions(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSyncCategorization(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("categorization must not touch the network")
	})
	syncer, st, _ := testSyncer(t, handler)
	ctx := context.Background()

	require.NoError(t, st.UpsertAccount(ctx, &models.Account{
		ID: "acc-1", ExternalID: "ext-1", Active: true, UpdatedAt: time.Now(),
	}))
	require.NoError(t, st.UpsertTransaction(ctx, &models.Transaction{
		ID: "txn-1", AccountID: "acc-1", Amount: -5.0, Date: time.Now(),
		Description: "STARBUCKS COFFEE #1234", UpdatedAt: time.Now(),
	}))
	require.NoError(t, st.UpsertTransaction(ctx, &models.Transaction{
		ID: "txn-2", AccountID: "acc-1", Amount: -80.0, Date: time.Now(),
		Description: "ACME something", Category: "shopping", UpdatedAt: time.Now(),
	}))
	require.NoError(t, st.UpsertTransaction(ctx, &models.Transaction{
		ID: "txn-3", AccountID: "acc-1", Amount: -33.0, Date: time.Now(),
		Description: "mystery payee", UpdatedAt: time.Now(),
	}))

	result, err := syncer.SyncCategorization(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.DataUpdated)

	got, err := st.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "dining", got.Category)

	// Already categorized record untouched
	got, err = st.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.Equal(t, "shopping", got.Category)

	// No rule matched
	got, err = st.GetTransaction(ctx, "txn-3")
	require.NoError(t, err)
	assert.Empty(t, got.Category)
}

func TestSyncInsights(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("insights must not touch the network")
	})
	syncer, st, _ := testSyncer(t, handler)
	ctx := context.Background()

	require.NoError(t, st.UpsertAccount(ctx, &models.Account{
		ID: "acc-1", ExternalID: "ext-1", Active: true, UpdatedAt: time.Now(),
	}))
	require.NoError(t, st.UpsertTransaction(ctx, &models.Transaction{
		ID: "txn-1", AccountID: "acc-1", Amount: -50.0, Date: time.Now().Add(-24 * time.Hour), UpdatedAt: time.Now(),
	}))
	require.NoError(t, st.UpsertTransaction(ctx, &models.Transaction{
		ID: "txn-2", AccountID: "acc-1", Amount: 2000.0, Date: time.Now().Add(-48 * time.Hour), UpdatedAt: time.Now(),
	}))
	// Outside the 30 day window
	require.NoError(t, st.UpsertTransaction(ctx, &models.Transaction{
		ID: "txn-old", AccountID: "acc-1", Amount: -999.0, Date: time.Now().AddDate(0, 0, -60), UpdatedAt: time.Now(),
	}))

	result, err := syncer.SyncInsights(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "2 transactions")
	assert.False(t, result.DataUpdated)
}

func TestSyncNotifications(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"notifications":[
			{"id":"note-1","kind":"low_balance","message":"Checking below $50"}
		]}`))
	})
	syncer, _, _ := testSyncer(t, handler)

	result, err := syncer.SyncNotifications(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "1 pending")
}

func TestSyncGoals(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"goals":[
			{"id":"goal-1","name":"Vacation","target_amount":1000,"current_amount":1000},
			{"id":"goal-2","name":"Emergency fund","target_amount":5000,"current_amount":1200}
		]}`))
	})
	syncer, _, _ := testSyncer(t, handler)

	result, err := syncer.SyncGoals(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "2 tracked, 1 reached")
}

func TestTasksCoverAllCategories(t *testing.T) {
	syncer, _, _ := testSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tasks := syncer.Tasks(models.DefaultInterval)
	require.Len(t, tasks, len(models.AllCategories()))

	seen := make(map[models.TaskCategory]bool)
	for _, task := range tasks {
		assert.NotEmpty(t, task.ID)
		assert.NotNil(t, task.Execute)
		assert.Equal(t, models.DefaultInterval(task.Category), task.Interval)
		seen[task.Category] = true
	}
	for _, category := range models.AllCategories() {
		assert.True(t, seen[category], "missing task for %s", category)
	}
}
