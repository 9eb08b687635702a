package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPlaced OrderStatus = "Placed"
)

type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"orderId"`
	ItemID     int64           `json:"itemId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// OrderItemView is an order line joined with the catalog name of its item.
// It does not exist as a table.
type OrderItemView struct {
	OrderItem
	ItemName string `json:"itemName"`
}

type OrderPage struct {
	TotalCount int     `json:"totalCount"`
	Orders     []Order `json:"orders"`
}

type OrderItemPage struct {
	TotalCount int             `json:"totalCount"`
	Items      []OrderItemView `json:"orderItems"`
}
