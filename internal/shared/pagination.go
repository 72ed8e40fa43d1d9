package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	// DefaultPageSize applies when limit is absent or invalid.
	DefaultPageSize = 20
	// MaxPageSize caps any requested limit.
	MaxPageSize = 100
)

// Page is a normalized page request.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// NewPage clamps page to >= 1 and limit to 1..MaxPageSize.
func NewPage(page, limit int) Page {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Page{Page: page, Limit: limit}
}

// PageFromRequest reads ?page= and ?limit= from the query string.
func PageFromRequest(r *http.Request) Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return NewPage(page, limit)
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata.
func NewPagination(p Page, total int) Pagination {
	p = NewPage(p.Page, p.Limit)
	totalPages := int(math.Ceil(float64(total) / float64(p.Limit)))
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: totalPages}
}

// PageResult is the list envelope returned by admin listings.
type PageResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewPageResult wraps items with pagination metadata. Nil items encode as [].
func NewPageResult[T any](items []T, p Page, total int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Pagination: NewPagination(p, total)}
}
