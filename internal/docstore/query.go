package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		switch f.Op {
		case "==", "!=", "<", "<=", ">", ">=":
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if _, err := splitPath(f.Field); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if _, err := splitPath(o.Field); err != nil {
			return err
		}
	}
	return nil
}

// runQuery filters, orders and limits docs in memory. Documents missing a
// filtered or ordered field are excluded.
func runQuery(docs []*Document, q Query) ([]*Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := normalize(f.Value, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}

	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if matches(d, filters) && hasFields(d, q.OrderBy) {
			out = append(out, d)
		}
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, _ := GetPath(out[i].Data, o.Field)
				b, _ := GetPath(out[j].Data, o.Field)
				c, ok := compareValues(a, b)
				if !ok || c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func hasFields(d *Document, orders []Order) bool {
	for _, o := range orders {
		if _, ok := GetPath(d.Data, o.Field); !ok {
			return false
		}
	}
	return true
}

func matches(d *Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := GetPath(d.Data, f.Field)
		if !ok {
			return false
		}
		if !compareOp(v, f.Op, f.Value) {
			return false
		}
	}
	return true
}

func compareOp(v interface{}, op string, want interface{}) bool {
	c, ok := compareValues(v, want)
	switch op {
	case "==":
		return ok && c == 0
	case "!=":
		return !ok || c != 0
	}
	if !ok {
		return false
	}
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

// compareValues orders two JSON values. Strings that both parse as RFC3339
// timestamps compare chronologically.
func compareValues(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		at, aerr := time.Parse(time.RFC3339Nano, av)
		bt, berr := time.Parse(time.RFC3339Nano, bv)
		if aerr == nil && berr == nil {
			return at.Compare(bt), true
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}
