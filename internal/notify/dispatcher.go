// Package notify delivers order events to out-of-band channels after commit.
// Delivery is best effort: events are queued in memory and dropped when the queue is full.
package notify

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grocery/internal/models"
)

const (
	defaultQueueSize = 256
	deliveryTimeout  = 10 * time.Second
)

type Line struct {
	ItemID     int64
	Quantity   int
	TotalPrice decimal.Decimal
}

type OrderPlaced struct {
	OrderID     int64
	UserID      int64
	TotalAmount decimal.Decimal
	Lines       []Line
	PlacedAt    time.Time
}

func OrderPlacedFrom(order models.Order, items []models.OrderItem) OrderPlaced {
	e := OrderPlaced{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		PlacedAt:    order.CreatedAt,
		Lines:       make([]Line, 0, len(items)),
	}
	for _, it := range items {
		e.Lines = append(e.Lines, Line{ItemID: it.ItemID, Quantity: it.Quantity, TotalPrice: it.TotalPrice})
	}
	return e
}

type Sink interface {
	Send(ctx context.Context, e OrderPlaced) error
}

// Dispatcher runs a single worker that hands queued events to every sink in turn.
type Dispatcher struct {
	sinks []Sink
	log   *zap.Logger

	mu      sync.RWMutex
	queue   chan OrderPlaced
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewDispatcher(logger *zap.Logger, queueSize int, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		sinks: sinks,
		log:   logger.With(zap.String("component", "notify")),
		queue: make(chan OrderPlaced, queueSize),
		done:  make(chan struct{}),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.loop(context.WithoutCancel(ctx))
		d.log.Info("notify_dispatcher_started", zap.Int("sinks", len(d.sinks)))
	})
}

// Publish enqueues e without blocking. It reports whether the event was accepted.
func (d *Dispatcher) Publish(e OrderPlaced) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.log.Warn("notify_event_dropped", zap.Int64("order_id", e.OrderID), zap.String("reason", "stopped"))
		return false
	}
	select {
	case d.queue <- e:
		return true
	default:
		d.log.Warn("notify_event_dropped", zap.Int64("order_id", e.OrderID), zap.String("reason", "queue_full"))
		return false
	}
}

// Stop refuses new events, lets the worker drain the queue and waits for it or for ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	})

	d.startOnce.Do(func() { close(d.done) })

	select {
	case <-d.done:
		d.log.Info("notify_dispatcher_stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for e := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(ctx, sink, e)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, e OrderPlaced) {
	logger := d.log.With(zap.Int64("order_id", e.OrderID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notify_sink_panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := sink.Send(ctx, e); err != nil {
		logger.Warn("notify_delivery_failed", zap.Error(err))
		return
	}
	logger.Debug("notify_delivered")
}
