package model

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// Fields managed by the collection layer
const (
	FieldID      = "_id"
	FieldCreated = "__created"
	FieldUpdated = "__updated"
	FieldVersion = "_v"
)

// Record is a stored document: field name to value.
// Nested objects are map[string]interface{} (or Record).
type Record map[string]interface{}

type deleteField struct{}

func (deleteField) String() string { return "<delete>" }

// DeleteField marks a field for removal inside an update patch
var DeleteField interface{} = deleteField{}

// IsDeleteField reports whether v is the DeleteField sentinel
func IsDeleteField(v interface{}) bool {
	_, ok := v.(deleteField)
	return ok
}

// ID returns the _id or "" when unset
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	if v, ok := r[FieldID]; ok && v != nil {
		return cast.ToString(v)
	}
	return ""
}

// HasID reports a non-empty _id
func (r Record) HasID() bool {
	return r.ID() != ""
}

// Created returns __created in epoch milliseconds, 0 when unset
func (r Record) Created() int64 {
	return cast.ToInt64(r[FieldCreated])
}

// Updated returns __updated in epoch milliseconds, 0 when unset
func (r Record) Updated() int64 {
	return cast.ToInt64(r[FieldUpdated])
}

// Version returns the _v schema tag
func (r Record) Version() string {
	return cast.ToString(r[FieldVersion])
}

// Clone returns a deep copy. Nested maps become map[string]interface{}.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Record:
		return map[string]interface{}(t.Clone())
	case map[string]interface{}:
		return map[string]interface{}(Record(t).Clone())
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// asMap returns v as a plain map when it is an object value
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]interface{}:
		return t, true
	}
	return nil, false
}

// NormalizePatch rewrites every nil value of an update patch to DeleteField,
// recursing into nested objects. The input is not modified.
func NormalizePatch(patch Record) Record {
	out := make(Record, len(patch))
	for k, v := range patch {
		out[k] = normalizePatchValue(v)
	}
	return out
}

func normalizePatchValue(v interface{}) interface{} {
	if v == nil {
		return DeleteField
	}
	if m, ok := asMap(v); ok {
		nested := make(map[string]interface{}, len(m))
		for k, e := range m {
			nested[k] = normalizePatchValue(e)
		}
		return nested
	}
	return cloneValue(v)
}

// ApplyPatch deep-merges a normalized patch into dst.
// Nested objects merge key by key; DeleteField removes the key.
func ApplyPatch(dst Record, patch Record) Record {
	if dst == nil {
		dst = Record{}
	}
	mergeInto(dst, patch)
	return dst
}

func mergeInto(dst map[string]interface{}, patch map[string]interface{}) {
	for k, v := range patch {
		if IsDeleteField(v) {
			delete(dst, k)
			continue
		}
		pm, isMap := asMap(v)
		if !isMap {
			dst[k] = cloneValue(v)
			continue
		}
		existing, ok := asMap(dst[k])
		if !ok {
			if !setsValue(pm) {
				continue
			}
			existing = map[string]interface{}{}
		} else {
			existing = map[string]interface{}(Record(existing).Clone())
		}
		mergeInto(existing, pm)
		dst[k] = existing
	}
}

// setsValue reports whether a normalized nested patch writes at least one
// leaf. Nested patches that only unset, or are empty, leave the parent alone.
func setsValue(m map[string]interface{}) bool {
	for _, v := range m {
		if IsDeleteField(v) {
			continue
		}
		if nested, ok := asMap(v); ok {
			if setsValue(nested) {
				return true
			}
			continue
		}
		return true
	}
	return false
}

// FlattenPatch splits a normalized patch into dotted field paths to set and to unset.
func FlattenPatch(patch Record) (set map[string]interface{}, unset []string) {
	set = map[string]interface{}{}
	flattenInto("", patch, set, &unset)
	return set, unset
}

func flattenInto(prefix string, m map[string]interface{}, set map[string]interface{}, unset *[]string) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if IsDeleteField(v) {
			*unset = append(*unset, path)
			continue
		}
		if nested, ok := asMap(v); ok {
			flattenInto(path, nested, set, unset)
			continue
		}
		set[path] = cloneValue(v)
	}
}

// DecodeRecord decodes a record into a typed struct using `json` tags
func DecodeRecord[T any](r Record) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(map[string]interface{}(r)); err != nil {
		return out, err
	}
	return out, nil
}

// IDs extracts the _id of each record
func IDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID())
	}
	return ids
}
