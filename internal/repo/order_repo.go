package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"grocery/internal/models"
)

var orderSortColumns = map[string]string{
	"createdAt":   "created_at",
	"totalAmount": "total_amount",
	"id":          "id",
}

var orderItemSortColumns = map[string]string{
	"createdAt":  "oi.created_at",
	"quantity":   "oi.quantity",
	"totalPrice": "oi.total_price",
	"orderId":    "oi.order_id",
	"id":         "oi.id",
}

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) CreateOrder(ctx context.Context, userID int64, totalAmount decimal.Decimal, status models.OrderStatus) (*models.Order, error) {
	query := `
		INSERT INTO orders (user_id, total_amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, total_amount, status, created_at, updated_at`

	var order models.Order
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID, totalAmount, status).Scan(
		&order.ID, &order.UserID, &order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", mapPQError(err))
	}
	return &order, nil
}

func (r *OrderRepo) CreateOrderItem(ctx context.Context, orderID, itemID int64, quantity int, price, totalPrice decimal.Decimal) (*models.OrderItem, error) {
	query := `
		INSERT INTO order_items (order_id, item_id, quantity, price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_id, item_id, quantity, price, total_price, created_at`

	var item models.OrderItem
	err := conn(ctx, r.db).QueryRowContext(ctx, query, orderID, itemID, quantity, price, totalPrice).Scan(
		&item.ID, &item.OrderID, &item.ItemID, &item.Quantity, &item.Price, &item.TotalPrice, &item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", mapPQError(err))
	}
	return &item, nil
}

func (r *OrderRepo) FindOrdersByUser(ctx context.Context, userID int64, page models.Page) (*models.OrderPage, error) {
	page = page.Normalize("createdAt")
	col := sortColumn(orderSortColumns, page.SortBy, "created_at")
	db := conn(ctx, r.db)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", mapPQError(err))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, total_amount, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY %s %s, id %s
		LIMIT $2 OFFSET $3`, col, page.OrderBy, page.OrderBy)

	rows, err := db.QueryContext(ctx, query, userID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", mapPQError(err))
	}
	defer rows.Close()

	result := &models.OrderPage{TotalCount: total, Orders: []models.Order{}}
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result.Orders = append(result.Orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find orders: %w", mapPQError(err))
	}
	return result, nil
}

// FindOrderItems lists the lines of the user's orders joined with item names.
// orderID 0 means every order of the user.
func (r *OrderRepo) FindOrderItems(ctx context.Context, userID, orderID int64, page models.Page) (*models.OrderItemPage, error) {
	page = page.Normalize("createdAt")
	col := sortColumn(orderItemSortColumns, page.SortBy, "oi.created_at")
	db := conn(ctx, r.db)

	from := `
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN grocery_items gi ON gi.id = oi.item_id
		WHERE o.user_id = $1 AND ($2::bigint = 0 OR oi.order_id = $2::bigint)`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, userID, orderID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count order items: %w", mapPQError(err))
	}

	query := fmt.Sprintf(`
		SELECT oi.id, oi.order_id, oi.item_id, oi.quantity, oi.price, oi.total_price, oi.created_at, gi.name
		%s
		ORDER BY %s %s, oi.id %s
		LIMIT $3 OFFSET $4`, from, col, page.OrderBy, page.OrderBy)

	rows, err := db.QueryContext(ctx, query, userID, orderID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("find order items: %w", mapPQError(err))
	}
	defer rows.Close()

	result := &models.OrderItemPage{TotalCount: total, Items: []models.OrderItemView{}}
	for rows.Next() {
		var v models.OrderItemView
		if err := rows.Scan(
			&v.ID, &v.OrderID, &v.ItemID, &v.Quantity, &v.Price, &v.TotalPrice, &v.CreatedAt, &v.ItemName,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		result.Items = append(result.Items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find order items: %w", mapPQError(err))
	}
	return result, nil
}
