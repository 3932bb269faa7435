package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finsync/internal/models"
)

// UpsertAccount inserts or replaces the cached account. The merge decision is
// the caller's; an abandoned sync may safely re-run this.
func (s *Store) UpsertAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (id, external_id, institution, name, type, balance, currency, active, deactivated_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                external_id = excluded.external_id,
                institution = excluded.institution,
                name = excluded.name,
                type = excluded.type,
                balance = excluded.balance,
                currency = excluded.currency,
                active = excluded.active,
                deactivated_at = excluded.deactivated_at,
                updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.ExternalID,
		account.Institution,
		account.Name,
		account.Type,
		account.Balance,
		account.Currency,
		account.Active,
		account.DeactivatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.ID, err)
	}
	return nil
}

// GetAccount loads one cached account.
func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT id, external_id, institution, name, type, balance, currency, active, deactivated_at, updated_at
              FROM accounts WHERE id = ?`

	var a models.Account
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.ExternalID, &a.Institution, &a.Name, &a.Type,
		&a.Balance, &a.Currency, &a.Active, &a.DeactivatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return &a, nil
}

// GetAccountByExternalID looks an account up by its upstream identifier.
func (s *Store) GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	query := `SELECT id, external_id, institution, name, type, balance, currency, active, deactivated_at, updated_at
              FROM accounts WHERE external_id = ?`

	var a models.Account
	err := s.db.QueryRowContext(ctx, query, externalID).Scan(
		&a.ID, &a.ExternalID, &a.Institution, &a.Name, &a.Type,
		&a.Balance, &a.Currency, &a.Active, &a.DeactivatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by external id %s: %w", externalID, err)
	}
	return &a, nil
}

// ListAccounts returns every cached account.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	query := `SELECT id, external_id, institution, name, type, balance, currency, active, deactivated_at, updated_at
              FROM accounts ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(
			&a.ID, &a.ExternalID, &a.Institution, &a.Name, &a.Type,
			&a.Balance, &a.Currency, &a.Active, &a.DeactivatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
