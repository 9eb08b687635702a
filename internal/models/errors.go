package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError reports an item whose stock could not cover a decrement.
type StockError struct {
	ItemID int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("item %d: %s", e.ItemID, ErrInsufficientStock)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StockErrorIDs collects the item ids of every StockError in err's tree.
func StockErrorIDs(err error) []int64 {
	var ids []int64
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if se, ok := e.(*StockError); ok {
			ids = append(ids, se.ItemID)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return ids
}
