package store

import (
	"context"
	"strconv"
	"sync"

	"krtbank/internal/account/models"
	"krtbank/internal/events"
	"krtbank/pkg/platform/sentinel"
)

type accountRow struct {
	id         string
	holderName string
	cpf        string
	status     int
}

func (r accountRow) toAccount() (*models.Account, error) {
	return models.RehydrateAccount(r.id, r.holderName, r.cpf, r.status)
}

func rowOf(a *models.Account) accountRow {
	return accountRow{
		id:         a.ID().String(),
		holderName: a.HolderName().Value(),
		cpf:        a.Cpf().Normalized(),
		status:     int(a.Status()),
	}
}

// InMemory is a process-local account store with its own change log. Stored
// rows are copies, so callers mutating a returned account do not affect the
// store until they call Update.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]accountRow
	byCpf    map[string]string
	changes  []events.ChangeRecord
	seq      int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[string]accountRow),
		byCpf:    make(map[string]string),
	}
}

func (s *InMemory) Create(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := rowOf(a)
	if _, exists := s.accounts[row.id]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byCpf[row.cpf]; exists {
		return sentinel.ErrConflict
	}
	s.accounts[row.id] = row
	s.byCpf[row.cpf] = row.id
	s.appendChange(events.OperationInsert, nil, imageOf(a))
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id models.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.accounts[id.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return row.toAccount()
}

func (s *InMemory) FindByCpf(_ context.Context, cpf models.Cpf) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCpf[cpf.Normalized()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.accounts[id].toAccount()
}

func (s *InMemory) Update(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := rowOf(a)
	old, ok := s.accounts[row.id]
	if !ok {
		return sentinel.ErrNotFound
	}
	oldAccount, err := old.toAccount()
	if err != nil {
		return err
	}
	s.accounts[row.id] = row
	s.appendChange(events.OperationModify, imageOf(oldAccount), imageOf(a))
	return nil
}

func (s *InMemory) Delete(_ context.Context, id models.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.accounts[id.String()]
	if !ok {
		return sentinel.ErrNotFound
	}
	oldAccount, err := old.toAccount()
	if err != nil {
		return err
	}
	delete(s.accounts, old.id)
	delete(s.byCpf, old.cpf)
	s.appendChange(events.OperationRemove, imageOf(oldAccount), nil)
	return nil
}

// Pending returns up to limit unpublished change records, oldest first.
func (s *InMemory) Pending(_ context.Context, limit int) ([]events.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.changes)
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]events.ChangeRecord, n)
	copy(out, s.changes[:n])
	return out, nil
}

// MarkPublished acknowledges change records by event id and drops them from
// the log. Unknown ids are ignored.
func (s *InMemory) MarkPublished(_ context.Context, eventIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ack := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		ack[id] = struct{}{}
	}
	kept := s.changes[:0]
	for _, c := range s.changes {
		if _, ok := ack[c.EventID]; !ok {
			kept = append(kept, c)
		}
	}
	clear(s.changes[len(kept):])
	s.changes = kept
	return nil
}

// appendChange must be called with s.mu held.
func (s *InMemory) appendChange(op events.Operation, oldImage, newImage events.Image) {
	s.seq++
	s.changes = append(s.changes, events.ChangeRecord{
		EventID:   strconv.FormatInt(s.seq, 10),
		Operation: op,
		OldImage:  oldImage,
		NewImage:  newImage,
	})
}
