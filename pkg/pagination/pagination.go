package pagination

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// Link is a FHIR Bundle link entry.
type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// FromValues reads _count and _offset, clamping to [1, MaxLimit] and >= 0.
func FromValues(q url.Values) Params {
	limit, _ := strconv.Atoi(q.Get("_count"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset, _ := strconv.Atoi(q.Get("_offset"))
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// FromContext extracts pagination parameters from the echo context.
func FromContext(c echo.Context) Params {
	return FromValues(c.QueryParams())
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page, never negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Links builds self, next and previous links for a searchset. filters are
// the search parameters of the request; paging parameters in it are replaced.
func (p Params) Links(basePath string, filters url.Values, total int) []Link {
	links := []Link{{Relation: "self", URL: p.pageURL(basePath, filters, p.Offset)}}
	if p.HasNext(total) {
		links = append(links, Link{Relation: "next", URL: p.pageURL(basePath, filters, p.NextOffset())})
	}
	if p.HasPrevious() {
		links = append(links, Link{Relation: "previous", URL: p.pageURL(basePath, filters, p.PreviousOffset())})
	}
	return links
}

func (p Params) pageURL(basePath string, filters url.Values, offset int) string {
	q := url.Values{}
	for k, vs := range filters {
		if k == "_count" || k == "_offset" {
			continue
		}
		q[k] = vs
	}
	q.Set("_count", strconv.Itoa(p.Limit))
	q.Set("_offset", strconv.Itoa(offset))
	return fmt.Sprintf("%s?%s", basePath, q.Encode())
}
