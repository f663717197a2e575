package models

import (
	"fmt"

	dErrors "krtbank/pkg/domain-errors"
)

// Status is the activity flag of an account. The numeric values are the
// persisted and published representation.
type Status int

const (
	StatusActive   Status = 0
	StatusInactive Status = 1
)

// ParseStatus accepts only the two known status codes.
func ParseStatus(code int) (Status, error) {
	s := Status(code)
	if !s.IsValid() {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown account status %d", code))
	}
	return s, nil
}

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
