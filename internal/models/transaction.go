package models

import "time"

// Transaction is the locally cached view of a single transaction.
type Transaction struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	AccountID   string    `json:"account_id"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant,omitempty"`
	Location    string    `json:"location,omitempty"`
	Category    string    `json:"category,omitempty"`
	Pending     bool      `json:"pending"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SameDay reports whether the transaction date falls on the same calendar day
// as the other transaction, ignoring time of day.
func (t *Transaction) SameDay(other *Transaction) bool {
	y1, m1, d1 := t.Date.Date()
	y2, m2, d2 := other.Date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// CompletenessScore counts how many auxiliary fields carry useful data.
// Used to pick the richer of two duplicate records.
func (t *Transaction) CompletenessScore() int {
	score := 0
	if t.Merchant != "" {
		score++
	}
	if t.Location != "" {
		score++
	}
	if t.Category != "" && t.Category != CategoryUncategorized {
		score++
	}
	return score
}
