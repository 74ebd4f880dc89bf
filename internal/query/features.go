package query

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tourbook/tours-api/internal/apperror"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	// DefaultMaxLimit bounds page size unless configured otherwise.
	DefaultMaxLimit = 100
	// DefaultSortField is used when no sort parameter is given.
	DefaultSortField = "createdAt"
)

// reserved parameters drive the other stages and are never filters.
var reserved = map[string]bool{"sort": true, "fields": true, "page": true, "limit": true}

var operators = map[string]string{
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
	"in":  "IN",
}

// Features decorates a Query from raw query-string parameters.  Stages run
// in the order they are called; All applies filter, sort, field selection
// and pagination in that order.  The first failure is kept and returned by
// Err; later stages become no-ops.
type Features struct {
	Query    *Query
	Params   url.Values
	MaxLimit int

	err error
}

// NewFeatures wraps q with the given parameters.  maxLimit <= 0 disables
// the page size clamp.
func NewFeatures(q *Query, params url.Values, maxLimit int) *Features {
	return &Features{Query: q, Params: params, MaxLimit: maxLimit}
}

// Err returns the first error raised by a stage.
func (f *Features) Err() error { return f.err }

// All runs every stage and returns the decorated query.
func (f *Features) All() (*Query, error) {
	f.Filter().Sort().LimitFields().Paginate()
	if f.err != nil {
		return nil, f.err
	}
	return f.Query, nil
}

// Filter turns every non-reserved parameter into a condition.  `field=v`
// is equality (repeated values become IN) and `field[op]=v` applies one of
// gte, gt, lte, lt or in.
func (f *Features) Filter() *Features {
	if f.err != nil {
		return f
	}
	keys := make([]string, 0, len(f.Params))
	for k := range f.Params {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	// Stable SQL for identical parameter sets.
	sort.Strings(keys)
	for _, key := range keys {
		name, op, err := splitKey(key)
		if err != nil {
			f.err = err
			return f
		}
		field, ok := f.Query.Field(name)
		if !ok || !field.Queryable() {
			f.err = apperror.BadRequest(fmt.Sprintf("Invalid filter field: %s", name))
			return f
		}
		raw := f.Params[key]
		if op == "in" {
			raw = splitList(raw)
		}
		vals := make([]any, 0, len(raw))
		for _, r := range raw {
			v, err := convert(field, r)
			if err != nil {
				f.err = err
				return f
			}
			vals = append(vals, v)
		}
		if len(vals) == 0 {
			continue
		}
		switch {
		case op == "in" || (op == "" && len(vals) > 1):
			f.Query.Where(field.Column+" IN ("+placeholders(len(vals))+")", vals...)
		case op == "":
			f.Query.Where(field.Column+" = ?", vals[0])
		default:
			for _, v := range vals {
				f.Query.Where(field.Column+" "+operators[op]+" ?", v)
			}
		}
	}
	return f
}

// Sort applies the comma separated `sort` parameter, `-` meaning descending.
// Without it, results are ordered by creation time, newest first.
func (f *Features) Sort() *Features {
	if f.err != nil {
		return f
	}
	list := strings.TrimSpace(f.Params.Get("sort"))
	if list == "" {
		if _, ok := f.Query.Field(DefaultSortField); ok && !f.Query.Ordered() {
			_ = f.Query.OrderBy(DefaultSortField, true)
		}
		return f
	}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if err := f.Query.OrderBy(name, desc); err != nil {
			f.err = apperror.BadRequest(fmt.Sprintf("Invalid sort field: %s", name))
			return f
		}
	}
	return f
}

// LimitFields applies the comma separated `fields` parameter.  Entries
// prefixed with `-` are excluded from the default projection instead.
func (f *Features) LimitFields() *Features {
	if f.err != nil {
		return f
	}
	list := strings.TrimSpace(f.Params.Get("fields"))
	if list == "" {
		return f
	}
	var include, exclude []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "-"):
			exclude = append(exclude, strings.TrimPrefix(part, "-"))
		default:
			include = append(include, part)
		}
	}
	var err error
	switch {
	case len(include) > 0:
		err = f.Query.Select(include...)
	case len(exclude) > 0:
		err = f.Query.Exclude(exclude...)
	}
	if err != nil {
		f.err = apperror.BadRequest(fmt.Sprintf("Invalid fields parameter: %s", list))
	}
	return f
}

// Paginate applies `page` and `limit`.  Missing, non-numeric or
// non-positive values fall back to page 1 and limit 10.
func (f *Features) Paginate() *Features {
	if f.err != nil {
		return f
	}
	page, limit := PageParams(f.Params, f.MaxLimit)
	f.Query.Limit(limit, (page-1)*limit)
	return f
}

// PageParams parses page and limit with their defaults and clamp.
func PageParams(params url.Values, maxLimit int) (page, limit int) {
	page, err := strconv.Atoi(strings.TrimSpace(params.Get("page")))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err = strconv.Atoi(strings.TrimSpace(params.Get("limit")))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	// The offset (page-1)*limit must fit in an int.  Pages past that are
	// empty anyway, so clamp to the last representable one.
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return page, limit
}

// splitKey parses `field` or `field[op]`.
func splitKey(key string) (name, op string, err error) {
	i := strings.IndexByte(key, '[')
	if i < 0 {
		return key, "", nil
	}
	if !strings.HasSuffix(key, "]") || i == 0 {
		return "", "", apperror.BadRequest(fmt.Sprintf("Invalid filter: %s", key))
	}
	name, op = key[:i], key[i+1:len(key)-1]
	if _, ok := operators[op]; !ok {
		return "", "", apperror.BadRequest(fmt.Sprintf("Invalid filter operator: %s", op))
	}
	return name, op, nil
}

func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// convert casts a raw value to the field's kind.
func convert(f Field, raw string) (any, error) {
	switch f.Kind {
	case KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, apperror.Cast(f.Name, raw)
		}
		return n, nil
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, apperror.Cast(f.Name, raw)
		}
		return b, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, apperror.Cast(f.Name, raw)
	}
	return raw, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
