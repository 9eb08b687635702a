package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"grocery/internal/models"
)

func (s *Store) CreateOrder(ctx context.Context, userID int64, totalAmount decimal.Decimal, status models.OrderStatus) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	order := models.Order{
		ID:          s.nextID(&s.seq.order),
		UserID:      userID,
		TotalAmount: totalAmount,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if t := txFrom(ctx); t != nil {
		t.orders = append(t.orders, order)
		return &order, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return &order, nil
}

func (s *Store) CreateOrderItem(ctx context.Context, orderID, itemID int64, quantity int, price, totalPrice decimal.Decimal) (*models.OrderItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := txFrom(ctx)

	s.mu.RLock()
	_, orderOK := s.orders[orderID]
	_, itemOK := s.items[itemID]
	s.mu.RUnlock()

	if !orderOK && t != nil {
		orderOK = slices.ContainsFunc(t.orders, func(o models.Order) bool { return o.ID == orderID })
	}
	if !orderOK || !itemOK {
		return nil, fmt.Errorf("create order item: order %d item %d: %w", orderID, itemID, models.ErrNotFound)
	}

	oi := models.OrderItem{
		ID:         s.nextID(&s.seq.orderItem),
		OrderID:    orderID,
		ItemID:     itemID,
		Quantity:   quantity,
		Price:      price,
		TotalPrice: totalPrice,
		CreatedAt:  s.now(),
	}

	if t != nil {
		t.orderItems = append(t.orderItems, oi)
		return &oi, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderItems[oi.ID] = oi
	return &oi, nil
}

func (s *Store) FindOrdersByUser(ctx context.Context, userID int64, page models.Page) (*models.OrderPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize("createdAt")

	s.mu.RLock()
	var orders []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(orders, func(a, b models.Order) int {
		var c int
		switch page.SortBy {
		case "totalAmount":
			c = a.TotalAmount.Cmp(b.TotalAmount)
		case "id":
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return direction(page, c)
	})

	return &models.OrderPage{
		TotalCount: len(orders),
		Orders:     window(orders, page),
	}, nil
}

// FindOrderItems lists the lines of the user's orders; orderID 0 means all of them.
func (s *Store) FindOrderItems(ctx context.Context, userID, orderID int64, page models.Page) (*models.OrderItemPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize("createdAt")

	s.mu.RLock()
	var views []models.OrderItemView
	for _, oi := range s.orderItems {
		o, ok := s.orders[oi.OrderID]
		if !ok || o.UserID != userID {
			continue
		}
		if orderID != 0 && oi.OrderID != orderID {
			continue
		}
		views = append(views, models.OrderItemView{OrderItem: oi, ItemName: s.items[oi.ItemID].Name})
	}
	s.mu.RUnlock()

	slices.SortFunc(views, func(a, b models.OrderItemView) int {
		var c int
		switch page.SortBy {
		case "quantity":
			c = cmp.Compare(a.Quantity, b.Quantity)
		case "totalPrice":
			c = a.TotalPrice.Cmp(b.TotalPrice)
		case "orderId":
			c = cmp.Compare(a.OrderID, b.OrderID)
		case "id":
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return direction(page, c)
	})

	return &models.OrderItemPage{
		TotalCount: len(views),
		Items:      window(views, page),
	}, nil
}
