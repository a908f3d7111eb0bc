// Package pager computes the page envelope returned by every search path.
package pager

import (
	"fmt"
	"math"

	"github.com/dshills/caresearch/pkg/types"
)

// Page is one page of results. The JSON shape is the same for every entity
// kind and for both the structured and the full-text path.
type Page[T any] struct {
	Data       []T `json:"data"`
	TotalCount int `json:"totalCount"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// Validate rejects page < 1, size < 1 and, when maxSize > 0, size > maxSize.
// Requests are never clamped.
func Validate(page, size, maxSize int) error {
	if page < 1 {
		return fmt.Errorf("%w: page number must be >= 1, got %d", types.ErrInvalidArgument, page)
	}
	if size < 1 {
		return fmt.Errorf("%w: page size must be >= 1, got %d", types.ErrInvalidArgument, size)
	}
	if maxSize > 0 && size > maxSize {
		return fmt.Errorf("%w: page size must be <= %d, got %d", types.ErrInvalidArgument, maxSize, size)
	}
	return nil
}

// New builds a page around data, which must already be the requested window.
func New[T any](data []T, total, page, size int) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:       data,
		TotalCount: total,
		PageNumber: page,
		PageSize:   size,
		TotalPages: TotalPages(total, size),
	}
}

// Slice pages an in-memory sequence.
func Slice[T any](items []T, page, size int) Page[T] {
	start, end := Window(len(items), page, size)
	return New(items[start:end], len(items), page, size)
}

// Map converts the data of a page, keeping the envelope.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Data))
	for i, v := range p.Data {
		out[i] = fn(v)
	}
	return Page[U]{
		Data:       out,
		TotalCount: p.TotalCount,
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}

// TotalPages is ceil(total / size).
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Offset is the number of items before the first item of page. It
// saturates at math.MaxInt, so a page too far out is past the end.
func Offset(page, size int) int {
	if page < 1 || size < 1 {
		return 0
	}
	if page-1 > math.MaxInt/size {
		return math.MaxInt
	}
	return (page - 1) * size
}

// Window returns the bounds of page within a sequence of n items.
// A page past the end yields an empty window.
func Window(n, page, size int) (start, end int) {
	start = Offset(page, size)
	if start > n {
		start = n
	}
	end = start + size
	if end > n {
		end = n
	}
	return start, end
}
