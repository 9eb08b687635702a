package models

import "strings"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a limit/offset window with a requested sort.
// SortBy is a logical field name; stores map it onto a whitelisted column.
type Page struct {
	Number  int
	Size    int
	SortBy  string
	OrderBy string
}

// Normalize fills defaults and clamps out of range values.
func (p Page) Normalize(defaultSort string) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.SortBy == "" {
		p.SortBy = defaultSort
	}
	if strings.EqualFold(p.OrderBy, "asc") {
		p.OrderBy = "ASC"
	} else {
		p.OrderBy = "DESC"
	}
	return p
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
