package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"grocery/internal/models"
)

var itemSortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"price":     "price",
	"quantity":  "quantity",
	"id":        "id",
}

type ItemRepo struct {
	db *sql.DB
}

func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

func (r *ItemRepo) CreateItem(ctx context.Context, item *models.GroceryItem) error {
	query := `
		INSERT INTO grocery_items (name, price, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, item.Name, item.Price, item.Quantity).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create grocery item: %w", mapPQError(err))
	}
	return nil
}

// FindByIDs loads every existing item in ids with one query. Missing ids are absent from the map.
func (r *ItemRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.GroceryItem, error) {
	query := `
		SELECT id, name, price, quantity, created_at, updated_at
		FROM grocery_items
		WHERE id = ANY($1)`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find grocery items: %w", mapPQError(err))
	}
	defer rows.Close()

	items := make(map[int64]models.GroceryItem, len(ids))
	for rows.Next() {
		var item models.GroceryItem
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Price, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan grocery item: %w", err)
		}
		items[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find grocery items: %w", mapPQError(err))
	}
	return items, nil
}

// DecrementQuantity takes amount units off the item's stock.
// It returns a *models.StockError (matching models.ErrInsufficientStock) when the row no longer holds amount units.
func (r *ItemRepo) DecrementQuantity(ctx context.Context, id int64, amount int) error {
	query := `
		UPDATE grocery_items
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2`

	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("decrement item %d: %w", id, mapPQError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement item %d: %w", id, err)
	}
	if n == 0 {
		return &models.StockError{ItemID: id}
	}
	return nil
}

// ListAvailable pages through items with stock left, optionally filtered by name.
func (r *ItemRepo) ListAvailable(ctx context.Context, search string, page models.Page) (*models.ItemPage, error) {
	page = page.Normalize("createdAt")
	col := sortColumn(itemSortColumns, page.SortBy, "created_at")
	db := conn(ctx, r.db)

	where := `WHERE quantity > 0 AND ($1::text = '' OR name ILIKE '%' || $1::text || '%')`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grocery_items `+where, search).Scan(&total); err != nil {
		return nil, fmt.Errorf("count available items: %w", mapPQError(err))
	}

	query := fmt.Sprintf(`
		SELECT id, name, price, quantity, created_at, updated_at
		FROM grocery_items
		%s
		ORDER BY %s %s, id %s
		LIMIT $2 OFFSET $3`, where, col, page.OrderBy, page.OrderBy)

	rows, err := db.QueryContext(ctx, query, search, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list available items: %w", mapPQError(err))
	}
	defer rows.Close()

	result := &models.ItemPage{TotalCount: total, Items: []models.GroceryItem{}}
	for rows.Next() {
		var item models.GroceryItem
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Price, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan grocery item: %w", err)
		}
		result.Items = append(result.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list available items: %w", mapPQError(err))
	}
	return result, nil
}
