// Package events holds the account domain events, the mapper that derives
// them from change records, and their wire encoding.
package events

import "time"

// Event discriminators.
const (
	TypeAccountCreated = "AccountCreated"
	TypeAccountUpdated = "AccountUpdated"
	TypeAccountDeleted = "AccountDeleted"
)

// Event is one of AccountCreated, AccountUpdated or AccountDeleted.
type Event interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

type AccountCreated struct {
	Type       string    `json:"type"`
	AccountID  string    `json:"accountId"`
	HolderName string    `json:"holderName"`
	Cpf        string    `json:"cpf"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e AccountCreated) EventType() string     { return e.Type }
func (e AccountCreated) AggregateID() string   { return e.AccountID }
func (e AccountCreated) OccurredAt() time.Time { return e.Timestamp }

// AccountUpdated carries both sides of every tracked field, even when a
// value did not change, so consumers can detect no-op updates.
type AccountUpdated struct {
	Type      string    `json:"type"`
	AccountID string    `json:"accountId"`
	OldName   string    `json:"oldName"`
	NewName   string    `json:"newName"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	Timestamp time.Time `json:"timestamp"`
}

func (e AccountUpdated) EventType() string     { return e.Type }
func (e AccountUpdated) AggregateID() string   { return e.AccountID }
func (e AccountUpdated) OccurredAt() time.Time { return e.Timestamp }

// NameChanged reports whether the holder name differs between images.
func (e AccountUpdated) NameChanged() bool { return e.OldName != e.NewName }

// StatusChanged reports whether the status differs between images.
func (e AccountUpdated) StatusChanged() bool { return e.OldStatus != e.NewStatus }

type AccountDeleted struct {
	Type      string    `json:"type"`
	AccountID string    `json:"accountId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e AccountDeleted) EventType() string     { return e.Type }
func (e AccountDeleted) AggregateID() string   { return e.AccountID }
func (e AccountDeleted) OccurredAt() time.Time { return e.Timestamp }
