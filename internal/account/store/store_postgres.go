package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"krtbank/internal/account/models"
	"krtbank/internal/events"
	"krtbank/pkg/platform/sentinel"
	"krtbank/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

const (
	insertAccountSQL = `INSERT INTO accounts (id, holder_name, cpf, status, document) VALUES ($1, $2, $3, $4, $5)`
	selectByIDSQL    = `SELECT id, holder_name, cpf, status FROM accounts WHERE id = $1`
	selectByCpfSQL   = `SELECT id, holder_name, cpf, status FROM accounts WHERE cpf = $1`
	lockByIDSQL      = `SELECT id, holder_name, cpf, status FROM accounts WHERE id = $1 FOR UPDATE`
	updateAccountSQL = `UPDATE accounts SET holder_name = $2, status = $3, document = $4, updated_at = now() WHERE id = $1`
	deleteAccountSQL = `DELETE FROM accounts WHERE id = $1`
	insertChangeSQL  = `INSERT INTO account_changes (operation, old_image, new_image) VALUES ($1, $2, $3)`
	pendingSQL       = `SELECT seq, operation, old_image, new_image FROM account_changes WHERE published_at IS NULL ORDER BY seq LIMIT $1`
	markPublishedSQL = `UPDATE account_changes SET published_at = now() WHERE seq = ANY($1) AND published_at IS NULL`
)

// PostgresStore persists accounts in PostgreSQL. Every mutation appends a
// row to account_changes in the same transaction; that table is the
// change-data-capture source the relay publishes from.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure account schema: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	img := imageOf(a)
	doc, err := encodeImage(img)
	if err != nil {
		return err
	}
	return tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		_, err := t.ExecContext(ctx, insertAccountSQL,
			a.ID().String(), a.HolderName().Value(), a.Cpf().Normalized(), int(a.Status()), doc)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert account: %w", err)
		}
		return appendChange(ctx, t, events.OperationInsert, nil, img)
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, id models.AccountID) (*models.Account, error) {
	a, err := scanAccount(s.reader(ctx).QueryRowContext(ctx, selectByIDSQL, id.String()))
	if err != nil {
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) FindByCpf(ctx context.Context, cpf models.Cpf) (*models.Account, error) {
	a, err := scanAccount(s.reader(ctx).QueryRowContext(ctx, selectByCpfSQL, cpf.Normalized()))
	if err != nil {
		return nil, fmt.Errorf("find account by cpf: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, a *models.Account) error {
	img := imageOf(a)
	doc, err := encodeImage(img)
	if err != nil {
		return err
	}
	return tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		old, err := scanAccount(t.QueryRowContext(ctx, lockByIDSQL, a.ID().String()))
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if _, err := t.ExecContext(ctx, updateAccountSQL,
			a.ID().String(), a.HolderName().Value(), int(a.Status()), doc); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		return appendChange(ctx, t, events.OperationModify, imageOf(old), img)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, id models.AccountID) error {
	return tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		old, err := scanAccount(t.QueryRowContext(ctx, lockByIDSQL, id.String()))
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		if _, err := t.ExecContext(ctx, deleteAccountSQL, id.String()); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return appendChange(ctx, t, events.OperationRemove, imageOf(old), nil)
	})
}

// Pending returns up to limit unpublished change records in sequence order.
func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]events.ChangeRecord, error) {
	rows, err := s.db.QueryContext(ctx, pendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending changes: %w", err)
	}
	defer rows.Close()

	var out []events.ChangeRecord
	for rows.Next() {
		var (
			seq                int64
			op                 string
			oldImage, newImage []byte
		)
		if err := rows.Scan(&seq, &op, &oldImage, &newImage); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		oldImg, err := decodeImage(oldImage)
		if err != nil {
			return nil, err
		}
		newImg, err := decodeImage(newImage)
		if err != nil {
			return nil, err
		}
		out = append(out, events.ChangeRecord{
			EventID:   strconv.FormatInt(seq, 10),
			Operation: events.Operation(op),
			OldImage:  oldImg,
			NewImage:  newImg,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return out, nil
}

// MarkPublished acknowledges change records by event id.
func (s *PostgresStore) MarkPublished(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	seqs := make([]int64, 0, len(eventIDs))
	for _, id := range eventIDs {
		seq, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid change id %q: %w", id, err)
		}
		seqs = append(seqs, seq)
	}
	if _, err := s.db.ExecContext(ctx, markPublishedSQL, pq.Array(seqs)); err != nil {
		return fmt.Errorf("mark changes published: %w", err)
	}
	return nil
}

func (s *PostgresStore) reader(ctx context.Context) queryer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func appendChange(ctx context.Context, t *sql.Tx, op events.Operation, oldImage, newImage events.Image) error {
	oldRaw, err := encodeImage(oldImage)
	if err != nil {
		return err
	}
	newRaw, err := encodeImage(newImage)
	if err != nil {
		return err
	}
	if _, err := t.ExecContext(ctx, insertChangeSQL, string(op), nullableJSON(oldRaw), nullableJSON(newRaw)); err != nil {
		return fmt.Errorf("append account change: %w", err)
	}
	return nil
}

// nullableJSON maps an absent image to SQL NULL rather than an empty string.
func nullableJSON(raw []byte) any {
	if raw == nil {
		return nil
	}
	return raw
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		id, holderName, cpf string
		status              int
	)
	if err := row.Scan(&id, &holderName, &cpf, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return models.RehydrateAccount(id, holderName, cpf, status)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
