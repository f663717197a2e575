package models

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "krtbank/pkg/domain-errors"
)

// AccountID is assigned once at creation and never reassigned.
type AccountID uuid.UUID

func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

func ParseAccountID(raw string) (AccountID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return AccountID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid account id")
	}
	if parsed == uuid.Nil {
		return AccountID{}, dErrors.New(dErrors.CodeBadRequest, "account id is required")
	}
	return AccountID(parsed), nil
}

func (id AccountID) String() string {
	return uuid.UUID(id).String()
}

func (id AccountID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// Account is the aggregate root for a bank account.
//
// Invariants:
//   - ID and Cpf are set at construction and immutable afterwards
//   - HolderName is always a validated HolderName
//   - Status is either active or inactive; Activate and Deactivate are idempotent
//
// The aggregate never deletes itself; removal is a repository decision.
type Account struct {
	id         AccountID
	holderName HolderName
	cpf        Cpf
	status     Status
}

// NewAccount validates both value objects and returns an active account with
// a fresh id.
func NewAccount(holderName, cpf string) (*Account, error) {
	name, err := ParseHolderName(holderName)
	if err != nil {
		return nil, err
	}
	doc, err := ParseCpf(cpf)
	if err != nil {
		return nil, err
	}
	return &Account{
		id:         NewAccountID(),
		holderName: name,
		cpf:        doc,
		status:     StatusActive,
	}, nil
}

// RehydrateAccount rebuilds an account from storage with the same validation
// as NewAccount.
func RehydrateAccount(id, holderName, cpf string, status int) (*Account, error) {
	accountID, err := ParseAccountID(id)
	if err != nil {
		return nil, err
	}
	name, err := ParseHolderName(holderName)
	if err != nil {
		return nil, err
	}
	doc, err := ParseCpf(cpf)
	if err != nil {
		return nil, err
	}
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &Account{
		id:         accountID,
		holderName: name,
		cpf:        doc,
		status:     st,
	}, nil
}

func (a *Account) ID() AccountID {
	return a.id
}

func (a *Account) HolderName() HolderName {
	return a.holderName
}

func (a *Account) Cpf() Cpf {
	return a.cpf
}

func (a *Account) Status() Status {
	return a.status
}

func (a *Account) IsActive() bool {
	return a.status == StatusActive
}

// Rename replaces the holder name. Status and Cpf are untouched.
func (a *Account) Rename(raw string) error {
	name, err := ParseHolderName(raw)
	if err != nil {
		return err
	}
	a.holderName = name
	return nil
}

func (a *Account) Activate() {
	a.status = StatusActive
}

func (a *Account) Deactivate() {
	a.status = StatusInactive
}

// SetActive applies an explicit activity flag.
func (a *Account) SetActive(active bool) {
	if active {
		a.Activate()
		return
	}
	a.Deactivate()
}

func (a *Account) String() string {
	return fmt.Sprintf("Account(%s, %s)", a.id, a.status)
}
