package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"grocery/internal/models"
)

type CatalogStore interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.GroceryItem, error)
	DecrementQuantity(ctx context.Context, id int64, amount int) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, userID int64, totalAmount decimal.Decimal, status models.OrderStatus) (*models.Order, error)
	CreateOrderItem(ctx context.Context, orderID, itemID int64, quantity int, price, totalPrice decimal.Decimal) (*models.OrderItem, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Outcome labels for Recorder.
const (
	OutcomeSuccess     = "success"
	OutcomeValidation  = "validation"
	OutcomeUnavailable = "unavailable"
	OutcomeConflict    = "conflict"
	OutcomeError       = "error"
)

type Recorder interface {
	ObservePlacement(outcome string, took time.Duration)
	IncConflictRetry()
}

type nopRecorder struct{}

func (nopRecorder) ObservePlacement(string, time.Duration) {}
func (nopRecorder) IncConflictRetry()                      {}

// PlacedHook runs on the request path after a placement has committed; keep it short.
type PlacedHook func(ctx context.Context, p *Placement)
