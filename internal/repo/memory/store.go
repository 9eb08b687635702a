// Package memory is an in-process implementation of the grocery stores.
// It backs the memory STORE_DRIVER and the tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"grocery/internal/models"
)

type Store struct {
	mu sync.RWMutex

	items      map[int64]models.GroceryItem
	orders     map[int64]models.Order
	orderItems map[int64]models.OrderItem
	users      map[int64]models.User
	usernames  map[string]int64

	seq struct {
		sync.Mutex
		item, order, orderItem, user int64
	}

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		items:      make(map[int64]models.GroceryItem),
		orders:     make(map[int64]models.Order),
		orderItems: make(map[int64]models.OrderItem),
		users:      make(map[int64]models.User),
		usernames:  make(map[string]int64),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// tx holds writes staged by one WithinTx call until commit.
type tx struct {
	decrements map[int64]int
	items      []models.GroceryItem
	orders     []models.Order
	orderItems []models.OrderItem
	users      []models.User
}

type txKey struct{}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithinTx runs fn with writes staged in memory. On success the staged writes are
// re-validated and applied atomically under the store lock; on error they are discarded.
// Ids handed out by a discarded transaction are not reused.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	t := &tx{decrements: make(map[int64]int)}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, amount := range t.decrements {
		item, ok := s.items[id]
		if !ok || item.Quantity < amount {
			errs = append(errs, &models.StockError{ItemID: id})
		}
	}
	for _, u := range t.users {
		if _, taken := s.usernames[u.Username]; taken {
			errs = append(errs, fmt.Errorf("username %q: %w", u.Username, models.ErrConflict))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("commit tx: %w", errors.Join(errs...))
	}

	now := s.now()
	for id, amount := range t.decrements {
		item := s.items[id]
		item.Quantity -= amount
		item.UpdatedAt = now
		s.items[id] = item
	}
	for _, item := range t.items {
		s.items[item.ID] = item
	}
	for _, u := range t.users {
		s.users[u.ID] = u
		s.usernames[u.Username] = u.ID
	}
	for _, o := range t.orders {
		s.orders[o.ID] = o
	}
	for _, oi := range t.orderItems {
		s.orderItems[oi.ID] = oi
	}
	return nil
}

func (s *Store) nextID(counter *int64) int64 {
	s.seq.Lock()
	defer s.seq.Unlock()
	*counter++
	return *counter
}

// SetPrice overwrites an item's unit price outside any transaction.
func (s *Store) SetPrice(id int64, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	item.Price = price
	item.UpdatedAt = s.now()
	s.items[id] = item
	return nil
}

// SetQuantity overwrites an item's stock outside any transaction.
func (s *Store) SetQuantity(id int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	item.Quantity = quantity
	item.UpdatedAt = s.now()
	s.items[id] = item
	return nil
}
