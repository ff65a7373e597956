package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/allowance/internal/model"
)

type FamilyStore struct {
	q DBTX
}

func NewFamilyStore(q DBTX) *FamilyStore {
	return &FamilyStore{q: q}
}

func (s *FamilyStore) WithTx(tx *sql.Tx) *FamilyStore {
	return &FamilyStore{q: tx}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	err := scanner.Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const familyCols = `id, name, created_at`

func (s *FamilyStore) Create(ctx context.Context, name string) (*model.Family, error) {
	f := &model.Family{ID: uuid.New(), Name: name, CreatedAt: now()}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO families (id, name, created_at) VALUES (?, ?, ?)`,
		f.ID, f.Name, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Family, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}
