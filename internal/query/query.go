// Package query turns listing query strings into validated MongoDB filters,
// find options and pagination metadata.
//
// Only a closed set of parameters is understood: searchTerm, page, limit,
// sort and fields, plus equality filters on fields a resource explicitly
// allows. Anything else is rejected.
package query

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ukydev/fuel-delivery/internal/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "-createdAt"
)

var reserved = map[string]bool{
	"searchTerm": true,
	"page":       true,
	"limit":      true,
	"sort":       true,
	"fields":     true,
}

var safeField = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// FieldKind controls how a filter value from the query string is converted.
type FieldKind int

const (
	String FieldKind = iota
	Bool
	Number
	ObjectID
)

// Spec describes what a listing endpoint accepts.
type Spec struct {
	SearchFields []string
	Filters      map[string]FieldKind
}

// Without returns a copy of s that no longer accepts the named filters.
func (s Spec) Without(fields ...string) Spec {
	out := Spec{SearchFields: s.SearchFields, Filters: make(map[string]FieldKind, len(s.Filters))}
	for k, v := range s.Filters {
		out.Filters[k] = v
	}
	for _, f := range fields {
		delete(out.Filters, f)
	}
	return out
}

// SortField is one sort key.
type SortField struct {
	Field string
	Desc  bool
}

// Query is a parsed and validated listing request.
type Query struct {
	SearchTerm    string
	Page          int
	Limit         int
	Sort          []SortField
	Fields        []string
	ExcludeFields bool // fields were given as -name
	Filters       bson.M
	searchFields  []string
}

// Meta is the pagination block returned with every listing.
type Meta struct {
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"totalPage"`
}

// Page is a listing result.
type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// Default returns the query used when no parameters are given.
func Default(spec Spec) Query {
	q, _ := Parse(url.Values{}, spec)
	return q
}

// Parse validates values against spec.
func Parse(values url.Values, spec Spec) (Query, error) {
	q := Query{
		SearchTerm:   strings.TrimSpace(values.Get("searchTerm")),
		Page:         DefaultPage,
		Limit:        DefaultLimit,
		Filters:      bson.M{},
		searchFields: spec.SearchFields,
	}

	if v := values.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return Query{}, apperr.InvalidInput("page must be a positive integer")
		}
		q.Page = page
	}

	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return Query{}, apperr.InvalidInput("limit must be a positive integer")
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}
		q.Limit = limit
	}

	sort := values.Get("sort")
	if sort == "" {
		sort = DefaultSort
	}
	for _, part := range splitList(sort) {
		sf := SortField{Field: part}
		if strings.HasPrefix(part, "-") {
			sf = SortField{Field: part[1:], Desc: true}
		}
		if !safeField.MatchString(sf.Field) {
			return Query{}, apperr.InvalidInput(fmt.Sprintf("invalid sort field %q", sf.Field))
		}
		q.Sort = append(q.Sort, sf)
	}

	for i, f := range splitList(values.Get("fields")) {
		exclude := strings.HasPrefix(f, "-")
		if i > 0 && exclude != q.ExcludeFields {
			return Query{}, apperr.InvalidInput("fields cannot mix included and excluded fields")
		}
		q.ExcludeFields = exclude
		f = strings.TrimPrefix(f, "-")
		if !safeField.MatchString(f) {
			return Query{}, apperr.InvalidInput(fmt.Sprintf("invalid field %q", f))
		}
		q.Fields = append(q.Fields, f)
	}

	for key, vals := range values {
		if reserved[key] {
			continue
		}
		kind, ok := spec.Filters[key]
		if !ok {
			return Query{}, apperr.InvalidInput(fmt.Sprintf("unsupported query parameter %q", key))
		}
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		v, err := convert(vals[0], kind)
		if err != nil {
			return Query{}, apperr.InvalidInput(fmt.Sprintf("invalid value for %s: %v", key, err))
		}
		q.Filters[key] = v
	}

	return q, nil
}

func convert(raw string, kind FieldKind) (interface{}, error) {
	switch kind {
	case Bool:
		return strconv.ParseBool(raw)
	case Number:
		return strconv.ParseFloat(raw, 64)
	case ObjectID:
		return primitive.ObjectIDFromHex(raw)
	default:
		return raw, nil
	}
}

// Filter merges base with the allowed equality filters and the search term.
// Keys in base win over query filters.
func (q Query) Filter(base bson.M) bson.M {
	out := bson.M{}
	for k, v := range q.Filters {
		out[k] = v
	}
	for k, v := range base {
		out[k] = v
	}
	if q.SearchTerm != "" && len(q.searchFields) > 0 {
		pattern := regexp.QuoteMeta(q.SearchTerm)
		or := make(bson.A, 0, len(q.searchFields))
		for _, f := range q.searchFields {
			or = append(or, bson.M{f: primitive.Regex{Pattern: pattern, Options: "i"}})
		}
		out["$or"] = or
	}
	return out
}

// Skip is the number of documents before the requested page.
func (q Query) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

// SortDoc returns the sort document.
func (q Query) SortDoc() bson.D {
	d := make(bson.D, 0, len(q.Sort))
	for _, s := range q.Sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: s.Field, Value: dir})
	}
	return d
}

// Projection returns the field selection or nil for every field.
func (q Query) Projection() bson.M {
	if len(q.Fields) == 0 {
		return nil
	}
	keep := 1
	if q.ExcludeFields {
		keep = 0
	}
	p := bson.M{}
	for _, f := range q.Fields {
		p[f] = keep
	}
	return p
}

// FindOptions returns skip, limit, sort and projection for a Find call.
func (q Query) FindOptions() *options.FindOptions {
	opts := options.Find().
		SetSkip(q.Skip()).
		SetLimit(int64(q.Limit)).
		SetSort(q.SortDoc())
	if p := q.Projection(); p != nil {
		opts.SetProjection(p)
	}
	return opts
}

// Stages returns sort, skip and limit as aggregation stages, for listings
// that join references after paging. Projection is left to the caller since
// it has to run after the joins.
func (q Query) Stages() []bson.D {
	return []bson.D{
		{{Key: "$sort", Value: q.SortDoc()}},
		{{Key: "$skip", Value: q.Skip()}},
		{{Key: "$limit", Value: int64(q.Limit)}},
	}
}

// Meta builds pagination metadata for total matching documents.
func (q Query) Meta(total int64) Meta {
	totalPage := 0
	if q.Limit > 0 {
		totalPage = int(math.Ceil(float64(total) / float64(q.Limit)))
	}
	return Meta{Page: q.Page, Limit: q.Limit, Total: total, TotalPage: totalPage}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
