package models

import (
	"errors"
	"strings"
	"unicode/utf8"

	dErrors "krtbank/pkg/domain-errors"
)

const holderNameMinLength = 3

var (
	ErrHolderNameRequired = errors.New("holder name is required")
	ErrHolderNameTooShort = errors.New("holder name must have at least 3 characters")
)

// HolderName is the trimmed display name of the account holder.
type HolderName struct {
	value string
}

func ParseHolderName(raw string) (HolderName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return HolderName{}, dErrors.Wrap(ErrHolderNameRequired, dErrors.CodeValidation, "invalid holder name")
	}
	if utf8.RuneCountInString(trimmed) < holderNameMinLength {
		return HolderName{}, dErrors.Wrap(ErrHolderNameTooShort, dErrors.CodeValidation, "invalid holder name")
	}
	return HolderName{value: trimmed}, nil
}

func (n HolderName) Value() string {
	return n.value
}

func (n HolderName) String() string {
	return n.value
}

func (n HolderName) Equal(other HolderName) bool {
	return n.value == other.value
}
