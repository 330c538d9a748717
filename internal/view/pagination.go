// Package view builds the read-only table and pagination models the list
// pages render. Views hold no state; handlers own page, limit and total.
package view

import (
	"net/url"
	"strconv"
)

// DefaultLimit is the page size when the query does not carry one.
const DefaultLimit = 10

// MaxLimit caps the page size a client may request.
const MaxLimit = 100

// Pagination describes one page of a list.
type Pagination struct {
	Page  int
	Limit int
	Total int
}

// PageFromQuery reads page and limit from q, falling back to page 1 and
// DefaultLimit for missing or invalid values.
func PageFromQuery(q url.Values) Pagination {
	p := Pagination{Page: 1, Limit: DefaultLimit}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// WithTotal returns p with the total reported by the backend.
func (p Pagination) WithTotal(total int) Pagination {
	p.Total = total
	return p
}

// TotalPages is ceil(Total/Limit).
func (p Pagination) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// PrevDisabled is true exactly on the first page.
func (p Pagination) PrevDisabled() bool {
	return p.Page <= 1
}

// NextDisabled is true on the last page, past it, and on an empty list.
func (p Pagination) NextDisabled() bool {
	return p.Page >= p.TotalPages()
}

// Bounds returns the slice bounds of the current page within n items. A page
// past the end yields an empty range.
func (p Pagination) Bounds(n int) (start, end int) {
	if p.Limit <= 0 || p.Page < 1 || p.Page-1 >= (n+p.Limit-1)/p.Limit {
		return n, n
	}
	start = (p.Page - 1) * p.Limit
	return start, min(start+p.Limit, n)
}

// Pages lists the page numbers for the numbered controls.
func (p Pagination) Pages() []int {
	n := p.TotalPages()
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// Link is one pagination control.
type Link struct {
	Label    string
	Href     string
	Active   bool
	Disabled bool
}

// Links renders previous, numbered and next controls relative to base,
// preserving the other query parameters.
func (p Pagination) Links(base string, q url.Values) []Link {
	href := func(page int) string {
		v := url.Values{}
		for k, vs := range q {
			v[k] = append([]string(nil), vs...)
		}
		v.Set("page", strconv.Itoa(page))
		v.Set("limit", strconv.Itoa(p.Limit))
		return base + "?" + v.Encode()
	}

	links := []Link{{Label: "Previous", Href: href(p.Page - 1), Disabled: p.PrevDisabled()}}
	for _, n := range p.Pages() {
		links = append(links, Link{Label: strconv.Itoa(n), Href: href(n), Active: n == p.Page})
	}
	links = append(links, Link{Label: "Next", Href: href(p.Page + 1), Disabled: p.NextDisabled()})
	return links
}
