package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"grocery/internal/models"
)

func (s *Store) CreateItem(ctx context.Context, item *models.GroceryItem) error {
	now := s.now()
	item.ID = s.nextID(&s.seq.item)
	item.CreatedAt = now
	item.UpdatedAt = now

	if t := txFrom(ctx); t != nil {
		t.items = append(t.items, *item)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
	return nil
}

// FindByIDs returns the committed items, less any decrements staged by the caller's transaction.
func (s *Store) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.GroceryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := txFrom(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]models.GroceryItem, len(ids))
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok {
			continue
		}
		if t != nil {
			item.Quantity -= t.decrements[id]
		}
		out[id] = item
	}
	return out, nil
}

// DecrementQuantity checks the stock now and, inside a transaction, stages the
// decrement for re-validation at commit.
func (s *Store) DecrementQuantity(ctx context.Context, id int64, amount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := txFrom(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return &models.StockError{ItemID: id}
	}
	staged := 0
	if t != nil {
		staged = t.decrements[id]
	}
	if item.Quantity-staged < amount {
		return &models.StockError{ItemID: id}
	}

	if t != nil {
		t.decrements[id] = staged + amount
		return nil
	}
	item.Quantity -= amount
	item.UpdatedAt = s.now()
	s.items[id] = item
	return nil
}

func (s *Store) ListAvailable(ctx context.Context, search string, page models.Page) (*models.ItemPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize("createdAt")
	needle := strings.ToLower(search)

	s.mu.RLock()
	matched := make([]models.GroceryItem, 0, len(s.items))
	for _, item := range s.items {
		if item.Quantity <= 0 {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		matched = append(matched, item)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b models.GroceryItem) int {
		var c int
		switch page.SortBy {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "price":
			c = a.Price.Cmp(b.Price)
		case "quantity":
			c = cmp.Compare(a.Quantity, b.Quantity)
		case "id":
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return direction(page, c)
	})

	return &models.ItemPage{
		TotalCount: len(matched),
		Items:      window(matched, page),
	}, nil
}

func direction(page models.Page, c int) int {
	if page.OrderBy == "DESC" {
		return -c
	}
	return c
}

func window[T any](all []T, page models.Page) []T {
	start := page.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := min(start+page.Size, len(all))
	return all[start:end]
}
