// Package paging normalizes page/limit/order input and builds the pagination
// metadata returned by every list endpoint.
package paging

import (
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultPage    = 1
	DefaultLimit   = 10
	MaxLimit       = 20
	DefaultOrderBy = "created_at"
)

// Request is raw, untrusted pagination input.
type Request struct {
	Page    int
	Limit   int
	OrderBy string
	Order   string
}

// Params is normalized pagination input, safe to hand to a query.
type Params struct {
	Page    int
	Limit   int
	OrderBy string
	Order   string // "asc" or "desc"
}

// Offset is the number of rows to skip.
func (p Params) Offset() int { return (p.Page - 1) * p.Limit }

// Desc reports whether results are ordered descending.
func (p Params) Desc() bool { return p.Order == "desc" }

// Normalize clamps page and limit and restricts OrderBy to allowedOrderBy.
// A zero limit means "not given" and falls back to DefaultLimit; a negative
// limit clamps to 1.
func Normalize(r Request, allowedOrderBy ...string) Params {
	p := Params{Page: r.Page, Limit: r.Limit}
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.Limit == 0:
		p.Limit = DefaultLimit
	case p.Limit < 1:
		p.Limit = 1
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}

	p.Order = strings.ToLower(strings.TrimSpace(r.Order))
	if p.Order != "asc" {
		p.Order = "desc"
	}

	p.OrderBy = DefaultOrderBy
	if slices.Contains(allowedOrderBy, r.OrderBy) {
		p.OrderBy = r.OrderBy
	}
	return p
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// NewMeta computes totalPages = ceil(total/limit) and the next/prev flags.
func NewMeta(total int64, page, limit int) Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Meta{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// Result is one page of data plus its metadata.
type Result[T any] struct {
	Data       []T
	Pagination Meta
}

// NewResult wraps a page of rows. A nil slice becomes empty.
func NewResult[T any](data []T, total int64, p Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	return Result[T]{Data: data, Pagination: NewMeta(total, p.Page, p.Limit)}
}

// ParseInt parses a query-string integer, returning 0 when s is not a number.
func ParseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
