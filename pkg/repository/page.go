package repository

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	// Ascending sorts from smallest to largest.
	Ascending Direction = "ASC"
	// Descending sorts from largest to smallest.
	Descending Direction = "DESC"
)

// ParseDirection parses "asc" or "desc" in any case.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(s) {
	case "asc":
		return Ascending, true
	case "desc":
		return Descending, true
	default:
		return "", false
	}
}

// Order sorts by a single entity property.
type Order struct {
	Property  string    `json:"property"`
	Direction Direction `json:"direction"`
}

// Asc orders by property ascending.
func Asc(property string) Order {
	return Order{Property: property, Direction: Ascending}
}

// Desc orders by property descending.
func Desc(property string) Order {
	return Order{Property: property, Direction: Descending}
}

// IsDescending reports whether o sorts descending.
func (o Order) IsDescending() bool {
	return o.Direction == Descending
}

func (o Order) String() string {
	return fmt.Sprintf("%s: %s", o.Property, o.Direction)
}

// Sort is an ordered list of orders; earlier orders take precedence.
type Sort []Order

// By builds a Sort from orders.
func By(orders ...Order) Sort {
	return Sort(orders)
}

// IsSorted reports whether s contains at least one order.
func (s Sort) IsSorted() bool {
	return len(s) > 0
}

// Pageable requests one page of a result set. Page is zero-based.
type Pageable struct {
	Page int
	Size int
	Sort Sort
}

// PageRequest builds a Pageable.
func PageRequest(page, size int, orders ...Order) Pageable {
	return Pageable{Page: page, Size: size, Sort: By(orders...)}
}

// Offset returns the number of rows preceding the page.
func (p Pageable) Offset() int {
	return p.Page * p.Size
}

// Validate checks that the page index and size are usable.
func (p Pageable) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("%w: page index must not be negative, got %d", ErrInvalidPageable, p.Page)
	}
	if p.Size < 1 {
		return fmt.Errorf("%w: page size must be at least 1, got %d", ErrInvalidPageable, p.Size)
	}
	if p.Page > math.MaxInt/p.Size {
		return fmt.Errorf("%w: page %d of size %d overflows the row offset", ErrInvalidPageable, p.Page, p.Size)
	}
	return nil
}

// Page is a slice of a result set plus the metadata needed to navigate it.
type Page[T any] struct {
	Content       []*T
	TotalElements int64
	Number        int
	Size          int
	Sort          Sort
}

// NewPage builds a page for pageable holding content out of total elements.
func NewPage[T any](content []*T, pageable Pageable, total int64) *Page[T] {
	if content == nil {
		content = []*T{}
	}
	return &Page[T]{
		Content:       content,
		TotalElements: total,
		Number:        pageable.Page,
		Size:          pageable.Size,
		Sort:          pageable.Sort,
	}
}

// TotalPages returns ceil(TotalElements / Size).
func (p *Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 1
	}
	return int((p.TotalElements + int64(p.Size) - 1) / int64(p.Size))
}

// NumberOfElements returns the number of elements on this page.
func (p *Page[T]) NumberOfElements() int {
	return len(p.Content)
}

// HasNext reports whether a page follows this one.
func (p *Page[T]) HasNext() bool {
	return p.Number+1 < p.TotalPages()
}

// HasPrevious reports whether a page precedes this one.
func (p *Page[T]) HasPrevious() bool {
	return p.Number > 0
}

// IsFirst reports whether this is the first page.
func (p *Page[T]) IsFirst() bool {
	return !p.HasPrevious()
}

// IsLast reports whether this is the last page.
func (p *Page[T]) IsLast() bool {
	return !p.HasNext()
}

// IsEmpty reports whether the page holds no elements.
func (p *Page[T]) IsEmpty() bool {
	return len(p.Content) == 0
}

type pageJSON[T any] struct {
	Content          []*T  `json:"content"`
	TotalElements    int64 `json:"totalElements"`
	TotalPages       int   `json:"totalPages"`
	Number           int   `json:"number"`
	Size             int   `json:"size"`
	NumberOfElements int   `json:"numberOfElements"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	Empty            bool  `json:"empty"`
	Sort             Sort  `json:"sort"`
}

// MarshalJSON renders the page together with its derived metadata.
func (p *Page[T]) MarshalJSON() ([]byte, error) {
	sort := p.Sort
	if sort == nil {
		sort = Sort{}
	}
	return json.Marshal(pageJSON[T]{
		Content:          p.Content,
		TotalElements:    p.TotalElements,
		TotalPages:       p.TotalPages(),
		Number:           p.Number,
		Size:             p.Size,
		NumberOfElements: p.NumberOfElements(),
		First:            p.IsFirst(),
		Last:             p.IsLast(),
		Empty:            p.IsEmpty(),
		Sort:             sort,
	})
}

// UnmarshalJSON reads the fields written by MarshalJSON; derived fields are ignored.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var raw pageJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Content = raw.Content
	p.TotalElements = raw.TotalElements
	p.Number = raw.Number
	p.Size = raw.Size
	p.Sort = raw.Sort
	return nil
}

// MapPage converts the content of p with fn, keeping the page metadata.
func MapPage[T, R any](p *Page[T], fn func(*T) *R) *Page[R] {
	content := make([]*R, 0, len(p.Content))
	for _, item := range p.Content {
		content = append(content, fn(item))
	}
	return &Page[R]{
		Content:       content,
		TotalElements: p.TotalElements,
		Number:        p.Number,
		Size:          p.Size,
		Sort:          p.Sort,
	}
}

// pageTotal returns the total element count for a page without a count query
// when the content alone determines it; otherwise it calls count.
func pageTotal(pageable Pageable, contentLen int, count func() (int64, error)) (int64, error) {
	if pageable.Offset() == 0 && contentLen < pageable.Size {
		return int64(contentLen), nil
	}
	if contentLen != 0 && contentLen < pageable.Size {
		return int64(pageable.Offset() + contentLen), nil
	}
	return count()
}
