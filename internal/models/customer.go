package models

import "time"

// Customer is the minimal owner entity the identity directory tracks.
// Accounts reference customers by ID only; nothing here owns the accounts.
type Customer struct {
	SchemaVersion int       `json:"schema_version"`
	CustomerID    string    `json:"customer_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
