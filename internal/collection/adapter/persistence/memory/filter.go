package memory

import (
	"reflect"
	"sort"
	"strings"

	"firestore-collection/internal/collection/domain/model"

	"github.com/spf13/cast"
)

// lookup resolves a dotted field path
func lookup(r model.Record, path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			if rec, isRec := cur.(model.Record); isRec {
				m = rec
			} else {
				return nil, false
			}
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// compare orders two scalar values. ok is false for incomparable types.
func compare(a, b interface{}) (int, bool) {
	switch {
	case isNumber(a) && isNumber(b):
		fa, fb := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
		return 0, false
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0, true
			case !ba:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func equal(a, b interface{}) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// toSlice returns the elements of any slice or array value
func toSlice(v interface{}) ([]interface{}, bool) {
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func contains(list []interface{}, v interface{}) bool {
	for _, e := range list {
		if equal(e, v) {
			return true
		}
	}
	return false
}

// matches evaluates one where clause. Documents missing the field never match.
func matches(r model.Record, f model.Filter) bool {
	val, ok := lookup(r, f.Field)
	if !ok {
		return false
	}

	switch f.Operator {
	case model.OperatorEqual:
		return equal(val, f.Value)
	case model.OperatorNotEqual:
		return !equal(val, f.Value)
	case model.OperatorLessThan, model.OperatorLessThanOrEqual, model.OperatorGreaterThan, model.OperatorGreaterThanOrEqual:
		c, ok := compare(val, f.Value)
		if !ok {
			return false
		}
		switch f.Operator {
		case model.OperatorLessThan:
			return c < 0
		case model.OperatorLessThanOrEqual:
			return c <= 0
		case model.OperatorGreaterThan:
			return c > 0
		}
		return c >= 0
	case model.OperatorIn:
		list, ok := toSlice(f.Value)
		return ok && contains(list, val)
	case model.OperatorNotIn:
		list, ok := toSlice(f.Value)
		return ok && !contains(list, val)
	case model.OperatorArrayContains:
		arr, ok := toSlice(val)
		return ok && contains(arr, f.Value)
	case model.OperatorArrayContainsAny:
		arr, ok := toSlice(val)
		wanted, ok2 := toSlice(f.Value)
		if !ok || !ok2 {
			return false
		}
		for _, w := range wanted {
			if contains(arr, w) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// evaluate applies where, order, offset and limit
func evaluate(records []model.Record, q model.Query) []model.Record {
	out := make([]model.Record, 0, len(records))
outer:
	for _, r := range records {
		for _, f := range q.Where {
			if !matches(r, f) {
				continue outer
			}
		}
		for _, o := range q.OrderBy {
			if _, ok := lookup(r, o.Field); !ok {
				continue outer
			}
		}
		out = append(out, r)
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, _ := lookup(out[i], o.Field)
				b, _ := lookup(out[j], o.Field)
				c, _ := compare(a, b)
				if c == 0 {
					continue
				}
				if o.Direction == model.Descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []model.Record{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
