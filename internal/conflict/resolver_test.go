package conflict

import (
	"testing"
	"time"

	"finsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sampleAccount() *models.Account {
	return &models.Account{
		ID:          "acc-1",
		ExternalID:  "ext-1",
		Institution: "First National",
		Name:        "Checking",
		Type:        "checking",
		Balance:     100.00,
		Currency:    "USD",
		Active:      true,
		UpdatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleTransaction() *models.Transaction {
	return &models.Transaction{
		ID:          "txn-1",
		AccountID:   "acc-1",
		Amount:      -42.50,
		Date:        time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Description: "Coffee Shop Downtown",
		Merchant:    "Coffee Shop",
		Category:    "dining",
	}
}

func TestDetectAccountIdentical(t *testing.T) {
	r := NewResolver()
	a := sampleAccount()
	b := *a

	assert.Nil(t, r.DetectAccount(a, &b), "identical accounts must not conflict")
	assert.Nil(t, r.DetectAccount(a, a), "an account compared with itself must not conflict")
}

func TestDetectAccountBalanceMismatch(t *testing.T) {
	r := NewResolver()
	local := sampleAccount()
	remote := *local
	remote.Balance = 120.00

	d := r.DetectAccount(local, &remote)
	require.NotNil(t, d)
	assert.Equal(t, TypeBalanceMismatch, d.Type)
	assert.Equal(t, EntityAccount, d.Entity)
	assert.False(t, d.DetectedAt.IsZero())
}

func TestDetectAccountStatusChange(t *testing.T) {
	r := NewResolver()
	deactivated := time.Now().Add(-2 * time.Hour)
	local := sampleAccount()
	local.Active = false
	local.DeactivatedAt = &deactivated
	remote := sampleAccount()

	d := r.DetectAccount(local, remote)
	require.NotNil(t, d)
	assert.Equal(t, TypeStatusChange, d.Type)
}

func TestDetectAccountModifiedRecord(t *testing.T) {
	r := NewResolver()
	local := sampleAccount()
	remote := *local
	remote.Name = "Everyday Checking"

	d := r.DetectAccount(local, &remote)
	require.NotNil(t, d)
	assert.Equal(t, TypeModifiedRecord, d.Type)
}

func TestDetectTransactionIdentical(t *testing.T) {
	r := NewResolver()
	a := sampleTransaction()
	b := *a

	assert.Nil(t, r.DetectTransaction(a, &b))
	assert.Nil(t, r.DetectTransaction(a, a))
}

func TestDetectTransactionDuplicate(t *testing.T) {
	r := NewResolver()
	local := sampleTransaction()
	remote := *local
	remote.ID = "txn-2"
	remote.Description = "Coffee Shop Dwntown" // distance 1

	d := r.DetectTransaction(local, &remote)
	require.NotNil(t, d)
	assert.Equal(t, TypeDuplicateRecord, d.Type)
}

func TestDetectTransactionDuplicateContainment(t *testing.T) {
	r := NewResolver()
	local := sampleTransaction()
	remote := *local
	remote.ID = "txn-2"
	remote.Description = "COFFEE SHOP DOWNTOWN #1042 SEATTLE WA"

	d := r.DetectTransaction(local, &remote)
	require.NotNil(t, d)
	assert.Equal(t, TypeDuplicateRecord, d.Type)
}

func TestDetectTransactionDistinctNotDuplicate(t *testing.T) {
	r := NewResolver()
	local := sampleTransaction()
	remote := *local
	remote.ID = "txn-2"
	remote.Description = "Monthly Gym Membership"

	assert.Nil(t, r.DetectTransaction(local, &remote))
}

func TestDetectTransactionDifferentAmountNotDuplicate(t *testing.T) {
	r := NewResolver()
	local := sampleTransaction()
	remote := *local
	remote.ID = "txn-2"
	remote.Amount = -43.00

	assert.Nil(t, r.DetectTransaction(local, &remote))
}

func TestDetectTransactionModified(t *testing.T) {
	r := NewResolver()
	local := sampleTransaction()
	remote := *local
	remote.Category = "coffee"

	d := r.DetectTransaction(local, &remote)
	require.NotNil(t, d)
	assert.Equal(t, TypeModifiedRecord, d.Type)
}

func TestResolveBalanceMismatchUsesRemote(t *testing.T) {
	r := NewResolver()
	local := sampleAccount()
	remote := *local
	remote.Balance = 120.00

	d := r.DetectAccount(local, &remote)
	require.NotNil(t, d)

	resolved := Resolve(d)
	assert.Equal(t, ResolutionUseRemote, resolved.Resolution)
}

func TestResolveModifiedRecordUsesRemote(t *testing.T) {
	d := &Details{Type: TypeModifiedRecord, Entity: EntityTransaction}
	assert.Equal(t, ResolutionUseRemote, Resolve(d).Resolution)
}

func TestResolveDuplicatePrefersCompleteness(t *testing.T) {
	local := sampleTransaction()
	local.Merchant = "Coffee Shop"
	local.Location = "Seattle, WA"
	local.Category = "dining"

	remote := sampleTransaction()
	remote.ID = "txn-2"
	remote.Merchant = ""
	remote.Location = ""
	remote.Category = models.CategoryUncategorized

	d := &Details{
		Type:              TypeDuplicateRecord,
		Entity:            EntityTransaction,
		LocalTransaction:  local,
		RemoteTransaction: remote,
	}
	assert.Equal(t, ResolutionUseLocal, Resolve(d).Resolution)
}

func TestResolveDuplicateTieBreaksToRemote(t *testing.T) {
	local := sampleTransaction()
	remote := sampleTransaction()
	remote.ID = "txn-2"

	d := &Details{
		Type:              TypeDuplicateRecord,
		Entity:            EntityTransaction,
		LocalTransaction:  local,
		RemoteTransaction: remote,
	}
	assert.Equal(t, ResolutionUseRemote, Resolve(d).Resolution)
}

func TestResolveStatusChangeGraceWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r := NewResolverWithClock(fixedClock(now))

	remote := sampleAccount()

	tests := []struct {
		name        string
		deactivated time.Time
		want        Resolution
	}{
		{"deactivated 2h ago keeps local", now.Add(-2 * time.Hour), ResolutionUseLocal},
		{"deactivated 48h ago defers to remote", now.Add(-48 * time.Hour), ResolutionUseRemote},
		{"deactivated exactly at window keeps local", now.Add(-models.StatusChangeGraceWindow), ResolutionUseLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := sampleAccount()
			local.Active = false
			deactivated := tt.deactivated
			local.DeactivatedAt = &deactivated

			d := r.DetectAccount(local, remote)
			require.NotNil(t, d)
			require.Equal(t, TypeStatusChange, d.Type)

			assert.Equal(t, tt.want, Resolve(d).Resolution)
		})
	}
}

func TestResolveStatusChangeRemoteDeactivated(t *testing.T) {
	r := NewResolver()
	local := sampleAccount()
	remote := sampleAccount()
	remote.Active = false

	d := r.DetectAccount(local, remote)
	require.NotNil(t, d)
	assert.Equal(t, ResolutionUseRemote, Resolve(d).Resolution)
}

func TestResolveUnknownTypeGoesToManualReview(t *testing.T) {
	d := &Details{Type: Type("something_else")}
	assert.Equal(t, ResolutionManualReview, Resolve(d).Resolution)
}

func TestResolveDeterministic(t *testing.T) {
	deactivated := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	local := sampleAccount()
	local.Active = false
	local.DeactivatedAt = &deactivated

	d := &Details{
		Type:          TypeStatusChange,
		Entity:        EntityAccount,
		DetectedAt:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		LocalAccount:  local,
		RemoteAccount: sampleAccount(),
	}

	first := Resolve(d)
	second := Resolve(d)
	assert.Equal(t, first.Resolution, second.Resolution)
	assert.Equal(t, *first, *second)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"coffee", "coffee", 0},
		{"coffee", "coffe", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestSimilarDescriptions(t *testing.T) {
	assert.True(t, similarDescriptions("Coffee  Shop", "coffee shop", 3))
	assert.True(t, similarDescriptions("Coffee Shop", "Coffee Shop Downtown", 3))
	assert.True(t, similarDescriptions("coffee shop", "coffee shpo", 3))
	assert.False(t, similarDescriptions("coffee shop", "hardware store", 3))
}
