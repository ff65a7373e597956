package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

type WishListStore struct {
	q DBTX
}

func NewWishListStore(q DBTX) *WishListStore {
	return &WishListStore{q: q}
}

func (s *WishListStore) WithTx(tx *sql.Tx) *WishListStore {
	return &WishListStore{q: tx}
}

func scanWishListItem(scanner interface{ Scan(...any) error }) (*model.WishListItem, error) {
	var w model.WishListItem
	var goalID uuid.NullUUID
	err := scanner.Scan(&w.ID, &w.ChildID, &w.Name, &w.Price, &w.URL, &w.Notes, &w.Purchased, &goalID, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.GoalID = uuidPtr(goalID)
	return &w, nil
}

const wishListCols = `id, child_id, name, price, url, notes, purchased, goal_id, created_at`

type WishListParams struct {
	Name  string
	Price decimal.Decimal
	URL   string
	Notes string
}

func (s *WishListStore) Create(ctx context.Context, childID uuid.UUID, p WishListParams) (*model.WishListItem, error) {
	ts := now()
	w := &model.WishListItem{
		ID:        uuid.New(),
		ChildID:   childID,
		Name:      p.Name,
		Price:     p.Price,
		URL:       p.URL,
		Notes:     p.Notes,
		CreatedAt: ts,
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO wish_list_items (id, child_id, name, price, url, notes, purchased, goal_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		w.ID, w.ChildID, w.Name, w.Price, w.URL, w.Notes, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wish list item: %w", err)
	}
	return w, nil
}

func (s *WishListStore) GetByID(ctx context.Context, id uuid.UUID) (*model.WishListItem, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+wishListCols+` FROM wish_list_items WHERE id = ?`, id)
	w, err := scanWishListItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wish list item: %w", err)
	}
	return w, nil
}

// ListByChild returns unpurchased items first, then by creation time.
func (s *WishListStore) ListByChild(ctx context.Context, childID uuid.UUID) ([]model.WishListItem, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+wishListCols+` FROM wish_list_items WHERE child_id = ? ORDER BY purchased ASC, created_at ASC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wish list items: %w", err)
	}
	defer rows.Close()

	var items []model.WishListItem
	for rows.Next() {
		w, err := scanWishListItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wish list item: %w", err)
		}
		items = append(items, *w)
	}
	return items, rows.Err()
}

func (s *WishListStore) Update(ctx context.Context, id uuid.UUID, p WishListParams) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE wish_list_items SET name = ?, price = ?, url = ?, notes = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Price, p.URL, p.Notes, now(), id,
	)
	if err != nil {
		return fmt.Errorf("update wish list item: %w", err)
	}
	return nil
}

func (s *WishListStore) MarkPurchased(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE wish_list_items SET purchased = 1, updated_at = ? WHERE id = ?`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark wish list item purchased: %w", err)
	}
	return nil
}

func (s *WishListStore) LinkGoal(ctx context.Context, id, goalID uuid.UUID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE wish_list_items SET goal_id = ?, updated_at = ? WHERE id = ?`,
		goalID, now(), id,
	)
	if err != nil {
		return fmt.Errorf("link wish list goal: %w", err)
	}
	return nil
}

func (s *WishListStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM wish_list_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete wish list item: %w", err)
	}
	return nil
}
