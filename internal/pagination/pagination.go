// Package pagination binds page requests from query strings.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/festy23/datajpa/pkg/repository"
)

const (
	// DefaultMaxSize caps the page size a client may request.
	DefaultMaxSize = 2000
)

// Defaults configures how a page request is read from a query string.
type Defaults struct {
	Page    int
	Size    int
	MaxSize int
	Sort    repository.Sort

	PageParam string
	SizeParam string
	SortParam string
}

// New returns defaults with the given size and sort and the standard parameter names.
func New(size int, orders ...repository.Order) Defaults {
	return Defaults{
		Size:      size,
		MaxSize:   DefaultMaxSize,
		Sort:      repository.By(orders...),
		PageParam: "page",
		SizeParam: "size",
		SortParam: "sort",
	}
}

// Bind reads the page request of c.
func (d Defaults) Bind(c *gin.Context) repository.Pageable {
	return d.FromQuery(c.Request.URL.Query())
}

// FromQuery reads a page request from q.
//
// A missing, malformed or negative page falls back to the default page; a
// missing, malformed or non-positive size to the default size. Sizes above
// MaxSize are capped. A page whose row offset would overflow is clamped to
// the last addressable page, which is past the end of any real result. Each sort value lists properties separated by commas
// and may end with a direction that applies to all of them, for example
// "sort=id,desc&sort=username". Sort properties are not validated here.
func (d Defaults) FromQuery(q url.Values) repository.Pageable {
	page := d.Page
	if v, err := strconv.Atoi(q.Get(d.PageParam)); err == nil && v >= 0 {
		page = v
	}

	size := d.Size
	if v, err := strconv.Atoi(q.Get(d.SizeParam)); err == nil && v > 0 {
		size = v
	}
	if d.MaxSize > 0 && size > d.MaxSize {
		size = d.MaxSize
	}

	if size > 0 && page > math.MaxInt/size {
		page = math.MaxInt / size
	}

	sort := parseSort(q[d.SortParam])
	if !sort.IsSorted() {
		sort = append(repository.Sort{}, d.Sort...)
	}

	return repository.Pageable{Page: page, Size: size, Sort: sort}
}

func parseSort(values []string) repository.Sort {
	var sort repository.Sort
	for _, value := range values {
		var properties []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				properties = append(properties, part)
			}
		}
		if len(properties) == 0 {
			continue
		}

		direction := repository.Ascending
		if d, ok := repository.ParseDirection(properties[len(properties)-1]); ok {
			direction = d
			properties = properties[:len(properties)-1]
		}
		for _, p := range properties {
			sort = append(sort, repository.Order{Property: p, Direction: direction})
		}
	}
	return sort
}
