package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finsync/internal/models"
)

// UpsertTransaction inserts or replaces the cached transaction.
func (s *Store) UpsertTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `INSERT INTO transactions (id, external_id, account_id, amount, date, description, merchant, location, category, pending, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                external_id = excluded.external_id,
                account_id = excluded.account_id,
                amount = excluded.amount,
                date = excluded.date,
                description = excluded.description,
                merchant = excluded.merchant,
                location = excluded.location,
                category = excluded.category,
                pending = excluded.pending,
                updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		txn.ID,
		txn.ExternalID,
		txn.AccountID,
		txn.Amount,
		txn.Date,
		txn.Description,
		txn.Merchant,
		txn.Location,
		txn.Category,
		txn.Pending,
		txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", txn.ID, err)
	}
	return nil
}

// DeleteTransaction removes a cached transaction, e.g. the loser of a
// duplicate-record resolution.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// GetTransaction loads one cached transaction.
func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT id, external_id, account_id, amount, date, description, merchant, location, category, pending, updated_at
              FROM transactions WHERE id = ?`

	var t models.Transaction
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.ExternalID, &t.AccountID, &t.Amount, &t.Date,
		&t.Description, &t.Merchant, &t.Location, &t.Category, &t.Pending, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return &t, nil
}

// ListTransactionsByAccount returns cached transactions for an account, newest
// first.
func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	query := `SELECT id, external_id, account_id, amount, date, description, merchant, location, category, pending, updated_at
              FROM transactions WHERE account_id = ? ORDER BY date DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(
			&t.ID, &t.ExternalID, &t.AccountID, &t.Amount, &t.Date,
			&t.Description, &t.Merchant, &t.Location, &t.Category, &t.Pending, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// FindPotentialDuplicates returns cached transactions on the same account with
// the same amount on the same calendar day as the candidate, excluding the
// candidate itself. The caller applies the description-similarity check.
func (s *Store) FindPotentialDuplicates(ctx context.Context, txn *models.Transaction) ([]models.Transaction, error) {
	dayStart := time.Date(txn.Date.Year(), txn.Date.Month(), txn.Date.Day(), 0, 0, 0, 0, txn.Date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `SELECT id, external_id, account_id, amount, date, description, merchant, location, category, pending, updated_at
              FROM transactions
              WHERE account_id = ? AND amount = ? AND date >= ? AND date < ? AND id != ?`

	rows, err := s.db.QueryContext(ctx, query, txn.AccountID, txn.Amount, dayStart, dayEnd, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(
			&t.ID, &t.ExternalID, &t.AccountID, &t.Amount, &t.Date,
			&t.Description, &t.Merchant, &t.Location, &t.Category, &t.Pending, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
