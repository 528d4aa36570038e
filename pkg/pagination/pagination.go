package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Params holds skip/limit window parameters extracted from query strings.
type Params struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// DefaultParams returns the first window of DefaultLimit rows.
func DefaultParams() Params {
	return Params{Skip: 0, Limit: DefaultLimit}
}

// FromRequest extracts skip and limit from the query string. Invalid or
// out-of-range values fall back to the defaults; limit is capped at MaxLimit.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if skip := q.Get("skip"); skip != "" {
		if v, err := strconv.Atoi(skip); err == nil && v >= 0 {
			p.Skip = v
		}
	}

	if limit := q.Get("limit"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil && v > 0 {
			p.Limit = min(v, MaxLimit)
		}
	}

	return p
}

// Result wraps one window of a listing together with the total row count.
type Result[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Skip    int  `json:"skip"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// NewResult builds a Result. A nil slice is normalised to an empty one so it
// encodes as [] rather than null.
func NewResult[T any](items []T, total int, params Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items:   items,
		Total:   total,
		Skip:    params.Skip,
		Limit:   params.Limit,
		HasMore: params.Skip+len(items) < total,
	}
}
