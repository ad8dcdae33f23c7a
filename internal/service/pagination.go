package service

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// PageWindow is the clamped position of one page inside a result set
type PageWindow struct {
	Page       int
	TotalPages int
	Skip       int
	Limit      int
	PrevPage   *int
	NextPage   *int
}

// HasPrev reports whether a page precedes the window
func (w PageWindow) HasPrev() bool { return w.PrevPage != nil }

// HasNext reports whether a page follows the window
func (w PageWindow) HasNext() bool { return w.NextPage != nil }

// Paginate places page inside a result set of total records split into pages
// of pageSize. An empty set still has one page, and page is clamped into
// [1, TotalPages]. A non-positive pageSize falls back to DefaultPageSize.
func Paginate(total, page, pageSize int) PageWindow {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if total < 0 {
		total = 0
	}

	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	} else if page > totalPages {
		page = totalPages
	}

	w := PageWindow{
		Page:       page,
		TotalPages: totalPages,
		Skip:       (page - 1) * pageSize,
		Limit:      pageSize,
	}
	if page > 1 {
		prev := page - 1
		w.PrevPage = &prev
	}
	if page < totalPages {
		next := page + 1
		w.NextPage = &next
	}
	return w
}

// leadingInt reads the integer at the start of raw, ignoring whatever
// follows it: "2.5" and "2abc" are 2. Values beyond the int range saturate.
func leadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) {
		if s[0] == '-' {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}
	return n, err == nil
}

// ParsePage coerces a raw page parameter. Input without a leading integer is
// page 1; out-of-range numbers are kept for Paginate to clamp.
func ParsePage(raw string) int {
	n, ok := leadingInt(raw)
	if !ok {
		return DefaultPage
	}
	return n
}

// ParsePageSize coerces a raw limit parameter; input without a leading
// integer, or a non-positive one, becomes DefaultPageSize.
func ParsePageSize(raw string) int {
	n, ok := leadingInt(raw)
	if !ok || n < 1 {
		return DefaultPageSize
	}
	return n
}

// pageLink renders the listing URL for page, or nil when there is no such page
func pageLink(path string, pageSize int, page *int) *string {
	if page == nil {
		return nil
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(*page))
	link := path + "?" + q.Encode()
	return &link
}
