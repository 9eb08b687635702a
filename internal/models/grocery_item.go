package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GroceryItem struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Available reports whether the item can cover qty units right now.
func (i GroceryItem) Available(qty int) bool {
	return qty > 0 && i.Quantity >= qty
}

type ItemPage struct {
	TotalCount int           `json:"totalCount"`
	Items      []GroceryItem `json:"groceryItems"`
}
