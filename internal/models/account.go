package models

import "time"

// Account is the locally cached view of a financial account.
type Account struct {
	ID            string     `json:"id" yaml:"id"`
	ExternalID    string     `json:"external_id" yaml:"external_id"`
	Institution   string     `json:"institution" yaml:"institution"`
	Name          string     `json:"name" yaml:"name"`
	Type          string     `json:"type" yaml:"type"`
	Balance       float64    `json:"balance" yaml:"balance"`
	Currency      string     `json:"currency" yaml:"currency"`
	Active        bool       `json:"active" yaml:"active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" yaml:"deactivated_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at" yaml:"-"`
}

// SameIdentity reports whether two accounts refer to the same upstream account.
func (a *Account) SameIdentity(other *Account) bool {
	if a == nil || other == nil {
		return false
	}
	if a.ExternalID != "" && other.ExternalID != "" {
		return a.ExternalID == other.ExternalID
	}
	return a.ID == other.ID
}
