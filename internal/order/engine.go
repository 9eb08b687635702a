// Package order places grocery orders: it checks availability, prices the lines
// and decrements stock as one all-or-nothing unit.
package order

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"grocery/internal/logging"
	"grocery/internal/models"
)

const tracerName = "grocery/internal/order"

// maxQuantity bounds the summed quantity of one item in an order. It is the
// range of the INTEGER quantity columns.
const maxQuantity = math.MaxInt32

// Line is one requested item of an order.
type Line struct {
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

// Placement is a committed order and its lines.
type Placement struct {
	Order models.Order
	Items []models.OrderItem
}

type Engine struct {
	catalog  CatalogStore
	orders   OrderStore
	tx       Transactor
	retries  int
	log      *zap.Logger
	recorder Recorder
	tracer   trace.Tracer
	hooks    []PlacedHook
}

type Option func(*Engine)

// WithConflictRetries sets how many times a placement that lost a stock race is re-run.
func WithConflictRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

func WithPlacedHook(h PlacedHook) Option {
	return func(e *Engine) {
		if h != nil {
			e.hooks = append(e.hooks, h)
		}
	}
}

func NewEngine(catalog CatalogStore, orders OrderStore, tx Transactor, opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog,
		orders:   orders,
		tx:       tx,
		retries:  1,
		log:      zap.NewNop(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlaceOrder creates an order for userID from lines. Either the order, all of its
// lines and every stock decrement are committed, or nothing is.
//
// Errors match ErrValidation, ErrInsufficientAvailability (as *UnavailableError)
// or ErrPersistence.
func (e *Engine) PlaceOrder(ctx context.Context, userID int64, lines []Line) (_ *Placement, err error) {
	logger := logging.FromContextOr(ctx, e.log).With(
		zap.Int64("user_id", userID),
		zap.Int("lines", len(lines)),
	)

	ctx, span := e.tracer.Start(ctx, "order.PlaceOrder", trace.WithAttributes(
		attribute.Int64("order.user_id", userID),
		attribute.Int("order.lines", len(lines)),
	))
	start := time.Now()
	outcome := OutcomeSuccess
	var placement *Placement

	defer func() {
		took := time.Since(start)
		e.recorder.ObservePlacement(outcome, took)

		fields := []zap.Field{
			zap.String("outcome", outcome),
			zap.Float64("latency_seconds", took.Seconds()),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}

		span.SetAttributes(attribute.String("order.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			fields = append(fields, zap.Error(err))
			if outcome == OutcomeError {
				logger.Error("order_place_failed", fields...)
			} else {
				logger.Info("order_place_failed", fields...)
			}
		} else {
			span.SetAttributes(attribute.Int64("order.id", placement.Order.ID))
			span.SetStatus(codes.Ok, outcome)
			fields = append(fields,
				zap.Int64("order_id", placement.Order.ID),
				zap.String("total_amount", placement.Order.TotalAmount.StringFixed(2)),
			)
			logger.Info("order_placed", fields...)
		}
		span.End()
	}()

	requested, err := validate(userID, lines)
	if err != nil {
		outcome = OutcomeValidation
		return nil, err
	}

	ids := make([]int64, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	logger.Debug("order_place_start", zap.Int64s("item_ids", ids))

	for attempt := 0; ; attempt++ {
		placement, err = e.attempt(ctx, userID, lines, ids, requested)
		if err == nil {
			for _, hook := range e.hooks {
				hook(ctx, placement)
			}
			return placement, nil
		}

		var conflict *conflictError
		if !errors.As(err, &conflict) {
			outcome = classify(err)
			return nil, err
		}
		if attempt < e.retries && ctx.Err() == nil {
			e.recorder.IncConflictRetry()
			span.AddEvent("order.conflict_retry", trace.WithAttributes(attribute.Int("attempt", attempt+1)))
			logger.Warn("order_conflict_retry",
				zap.Int("attempt", attempt+1),
				zap.Int64s("item_ids", conflict.itemIDs),
			)
			continue
		}

		if len(conflict.itemIDs) == 0 {
			outcome = OutcomeError
			return nil, persistenceError("commit", conflict.err)
		}
		outcome = OutcomeConflict
		return nil, &UnavailableError{ItemIDs: conflict.itemIDs, Conflict: true}
	}
}

func (e *Engine) attempt(ctx context.Context, userID int64, lines []Line, ids []int64, requested map[int64]int) (*Placement, error) {
	var placement *Placement

	err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
		snapshot, err := e.catalog.FindByIDs(ctx, ids)
		if err != nil {
			return persistenceError("load items", err)
		}

		if missing := unavailable(lines, requested, snapshot); len(missing) > 0 {
			return &UnavailableError{ItemIDs: missing}
		}

		total := decimal.Zero
		prices := make([]decimal.Decimal, len(lines))
		for i, l := range lines {
			prices[i] = snapshot[l.ItemID].Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			total = total.Add(prices[i])
		}

		order, err := e.orders.CreateOrder(ctx, userID, total, models.StatusPlaced)
		if err != nil {
			return persistenceError("create order", err)
		}

		items := make([]models.OrderItem, 0, len(lines))
		for i, l := range lines {
			oi, err := e.orders.CreateOrderItem(ctx, order.ID, l.ItemID, l.Quantity, snapshot[l.ItemID].Price, prices[i])
			if err != nil {
				return persistenceError("create order item", err)
			}
			items = append(items, *oi)
		}

		// ascending id order keeps row locks ordered across concurrent placements
		var short []int64
		var shortErr error
		for _, id := range ids {
			err := e.catalog.DecrementQuantity(ctx, id, requested[id])
			switch {
			case err == nil:
			case errors.Is(err, models.ErrInsufficientStock):
				short = append(short, id)
				shortErr = errors.Join(shortErr, err)
			default:
				return persistenceError("decrement stock", err)
			}
		}
		if len(short) > 0 {
			return &conflictError{itemIDs: short, err: shortErr}
		}

		placement = &Placement{Order: *order, Items: items}
		return nil
	})
	if err == nil {
		return placement, nil
	}

	var unavailableErr *UnavailableError
	var conflict *conflictError
	switch {
	case errors.As(err, &unavailableErr), errors.As(err, &conflict), errors.Is(err, ErrPersistence):
		return nil, err
	case errors.Is(err, models.ErrInsufficientStock):
		// commit-time re-validation rejected a decrement
		return nil, &conflictError{itemIDs: models.StockErrorIDs(err), err: err}
	case errors.Is(err, models.ErrConflict):
		return nil, &conflictError{err: err}
	default:
		return nil, persistenceError("transaction", err)
	}
}

// validate checks the request shape and sums the requested quantity per item.
func validate(userID int64, lines []Line) (map[int64]int, error) {
	if userID <= 0 {
		return nil, validationError("user id must be positive")
	}
	if len(lines) == 0 {
		return nil, validationError("at least one item is required")
	}
	requested := make(map[int64]int, len(lines))
	for i, l := range lines {
		if l.ItemID <= 0 {
			return nil, validationError("item %d: item id must be positive", i)
		}
		if l.Quantity <= 0 {
			return nil, validationError("item %d: quantity must be positive", i)
		}
		// both operands are positive and requested never exceeds maxQuantity, so this cannot overflow
		if l.Quantity > maxQuantity-requested[l.ItemID] {
			return nil, validationError("item %d: total quantity for item %d exceeds %d", i, l.ItemID, maxQuantity)
		}
		requested[l.ItemID] += l.Quantity
	}
	return requested, nil
}

// unavailable returns each item id that is missing or short, once, in the order it first appears in lines.
func unavailable(lines []Line, requested map[int64]int, snapshot map[int64]models.GroceryItem) []int64 {
	var ids []int64
	seen := make(map[int64]bool, len(requested))
	for _, l := range lines {
		if seen[l.ItemID] {
			continue
		}
		seen[l.ItemID] = true
		item, ok := snapshot[l.ItemID]
		if !ok || !item.Available(requested[l.ItemID]) {
			ids = append(ids, l.ItemID)
		}
	}
	return ids
}

func classify(err error) string {
	var unavailableErr *UnavailableError
	switch {
	case errors.Is(err, ErrValidation):
		return OutcomeValidation
	case errors.As(err, &unavailableErr):
		if unavailableErr.Conflict {
			return OutcomeConflict
		}
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
