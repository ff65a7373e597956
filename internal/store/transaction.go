package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/model"
)

type TransactionStore struct {
	q DBTX
}

func NewTransactionStore(q DBTX) *TransactionStore {
	return &TransactionStore{q: q}
}

func (s *TransactionStore) WithTx(tx *sql.Tx) *TransactionStore {
	return &TransactionStore{q: tx}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var createdBy uuid.NullUUID
	err := scanner.Scan(
		&t.ID, &t.ChildID, &t.Amount, &t.Type, &t.Category,
		&t.Description, &t.BalanceAfter, &createdBy, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.CreatedBy = uuidPtr(createdBy)
	return &t, nil
}

const transactionCols = `id, child_id, amount, type, category, description, balance_after, created_by, created_at`

// Create appends a ledger row. ID and CreatedAt are assigned when empty.
func (s *TransactionStore) Create(ctx context.Context, t *model.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ChildID, t.Amount, t.Type, t.Category,
		t.Description, t.BalanceAfter, nullUUID(t.CreatedBy), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListByChild returns a child's ledger, newest first.
func (s *TransactionStore) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]model.Transaction, error) {
	return s.list(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE child_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		childID, limit, offset,
	)
}

// ListSince returns a child's ledger rows created at or after since, oldest first.
func (s *TransactionStore) ListSince(ctx context.Context, childID uuid.UUID, since time.Time) ([]model.Transaction, error) {
	return s.list(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE child_id = ? AND created_at >= ?
		 ORDER BY created_at ASC, rowid ASC`,
		childID, since.UTC(),
	)
}

// ListByCategorySince returns rows in one category within [since, until).
func (s *TransactionStore) ListByCategorySince(ctx context.Context, childID uuid.UUID, category model.Category, since, until time.Time) ([]model.Transaction, error) {
	return s.list(ctx,
		`SELECT `+transactionCols+` FROM transactions
		 WHERE child_id = ? AND category = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, rowid ASC`,
		childID, category, since.UTC(), until.UTC(),
	)
}

func (s *TransactionStore) list(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}
