package core

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FieldSet declares, for one resource, which request parameters map to which store columns.
type FieldSet struct {
	Filters  map[string]string // param -> column
	Search   []string          // columns matched by `search`
	Ordering map[string]string // param -> column
	Default  []DBOrdering      // applied when no valid ordering is requested; columns, not params
	Dates    []string          // filter params holding a YYYY-MM-DD date
}

func (fs FieldSet) isDate(param string) bool {
	for _, d := range fs.Dates {
		if d == param {
			return true
		}
	}
	return false
}

// ListParams are the list modifiers applied after scoping.
type ListParams struct {
	Filters   map[string]string
	Search    string
	Orderings []DBOrdering
	Page      int
	PageSize  int
}

// NewListParams reads list modifiers from query parameters: page, page_size, search, ordering and filters.
func NewListParams(q url.Values) ListParams {
	p := ListParams{Filters: make(map[string]string)}
	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		val := CleanString(vals[0])
		switch key {
		case "page":
			p.Page, _ = strconv.Atoi(val)
		case "page_size":
			p.PageSize, _ = strconv.Atoi(val)
		case "search":
			p.Search = val
		case "ordering":
			p.Orderings = ParseOrdering(val)
		default:
			if val != "" {
				p.Filters[key] = val
			}
		}
	}
	return p
}

// ParseOrdering parses `a,-b` into ascending a then descending b.
func ParseOrdering(val string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}

// Clean drops undeclared filters & orderings, maps params to columns and bounds pagination.
// A malformed date filter is a ValidationError.
func (p ListParams) Clean(fs FieldSet) (ListParams, error) {
	cleaned := ListParams{
		Filters:  make(map[string]string, len(p.Filters)),
		Search:   CleanString(p.Search),
		Page:     p.Page,
		PageSize: p.PageSize,
	}
	for param, val := range p.Filters {
		col, ok := fs.Filters[param]
		if !ok {
			continue
		}
		if fs.isDate(param) {
			d, err := ParseDate(val)
			if err != nil {
				return ListParams{}, NewFieldError(param, "enter a valid date (YYYY-MM-DD)")
			}
			val = d.String()
		}
		cleaned.Filters[col] = val
	}
	if len(fs.Search) == 0 {
		cleaned.Search = ""
	}
	for _, ord := range p.Orderings {
		if col, ok := fs.Ordering[ord.Field]; ok {
			cleaned.Orderings = append(cleaned.Orderings, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	if len(cleaned.Orderings) == 0 {
		cleaned.Orderings = fs.Default
	}
	if cleaned.Page < 1 {
		cleaned.Page = 1
	}
	if cleaned.PageSize < 1 {
		cleaned.PageSize = DefaultPageSize
	} else if cleaned.PageSize > MaxPageSize {
		cleaned.PageSize = MaxPageSize
	}
	return cleaned, nil
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// CacheKey is a canonical, order independent representation of the params.
func (p ListParams) CacheKey() string {
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k + "=" + p.Filters[k] + "&")
	}
	sb.WriteString("search=" + strings.ToLower(p.Search))
	sb.WriteString("&ordering=")
	for i, ord := range p.Orderings {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(ord.String())
	}
	sb.WriteString("&page=" + strconv.Itoa(p.Page))
	sb.WriteString("&page_size=" + strconv.Itoa(p.PageSize))
	return sb.String()
}

// Page is one page of a list result.
type Page[T any] struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  []T `json:"results"`
}

func NewPage[T any](results []T, count int, params ListParams) Page[T] {
	if results == nil {
		results = []T{}
	}
	return Page[T]{Count: count, Page: params.Page, PageSize: params.PageSize, Results: results}
}
