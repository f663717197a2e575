package events

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRecord marks a change record that lacks an image or field its
// operation requires.
var ErrMalformedRecord = errors.New("malformed change record")

// Mapper turns change records into domain events.
type Mapper struct {
	now func() time.Time
}

type MapperOption func(*Mapper)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MapperOption {
	return func(m *Mapper) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map classifies record. It returns a nil Event and nil error for an
// operation it does not recognize; the caller skips such records. The event
// timestamp is the mapping time in UTC, not the record time.
func (m *Mapper) Map(record ChangeRecord) (Event, error) {
	ts := m.now().UTC()
	switch record.Operation {
	case OperationInsert:
		return m.created(record, ts)
	case OperationModify:
		return m.updated(record, ts)
	case OperationRemove:
		return m.deleted(record, ts)
	default:
		return nil, nil
	}
}

func (m *Mapper) created(record ChangeRecord, ts time.Time) (Event, error) {
	img := record.NewImage
	id, err := field(img, "new", FieldID)
	if err != nil {
		return nil, err
	}
	name, err := field(img, "new", FieldHolderName)
	if err != nil {
		return nil, err
	}
	cpf, err := field(img, "new", FieldCpf, FieldIdentifier)
	if err != nil {
		return nil, err
	}
	status, err := field(img, "new", FieldStatus)
	if err != nil {
		return nil, err
	}
	return AccountCreated{
		Type:       TypeAccountCreated,
		AccountID:  id,
		HolderName: name,
		Cpf:        cpf,
		Status:     status,
		Timestamp:  ts,
	}, nil
}

func (m *Mapper) updated(record ChangeRecord, ts time.Time) (Event, error) {
	id, err := field(record.NewImage, "new", FieldID)
	if err != nil {
		return nil, err
	}
	oldName, err := field(record.OldImage, "old", FieldHolderName)
	if err != nil {
		return nil, err
	}
	newName, err := field(record.NewImage, "new", FieldHolderName)
	if err != nil {
		return nil, err
	}
	oldStatus, err := field(record.OldImage, "old", FieldStatus)
	if err != nil {
		return nil, err
	}
	newStatus, err := field(record.NewImage, "new", FieldStatus)
	if err != nil {
		return nil, err
	}
	return AccountUpdated{
		Type:      TypeAccountUpdated,
		AccountID: id,
		OldName:   oldName,
		NewName:   newName,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Timestamp: ts,
	}, nil
}

func (m *Mapper) deleted(record ChangeRecord, ts time.Time) (Event, error) {
	id, err := field(record.OldImage, "old", FieldID)
	if err != nil {
		return nil, err
	}
	return AccountDeleted{
		Type:      TypeAccountDeleted,
		AccountID: id,
		Timestamp: ts,
	}, nil
}

func field(img Image, side string, names ...string) (string, error) {
	if img == nil {
		return "", fmt.Errorf("%w: %s image missing", ErrMalformedRecord, side)
	}
	v, ok := img.Lookup(names...)
	if !ok {
		return "", fmt.Errorf("%w: %s image has no %s", ErrMalformedRecord, side, names[0])
	}
	return v, nil
}
