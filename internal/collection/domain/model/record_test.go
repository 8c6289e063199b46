package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Accessors(t *testing.T) {
	r := Record{FieldID: "abc", FieldCreated: int64(10), FieldUpdated: 20.0, FieldVersion: "1.0.0"}
	assert.Equal(t, "abc", r.ID())
	assert.True(t, r.HasID())
	assert.Equal(t, int64(10), r.Created())
	assert.Equal(t, int64(20), r.Updated())
	assert.Equal(t, "1.0.0", r.Version())

	assert.Equal(t, "", Record{}.ID())
	assert.Equal(t, "", Record{FieldID: nil}.ID())
	assert.False(t, Record(nil).HasID())
}

func TestRecord_CloneIsDeep(t *testing.T) {
	orig := Record{"nested": map[string]interface{}{"a": 1}, "list": []interface{}{map[string]interface{}{"x": 1}}}
	clone := orig.Clone()

	clone["nested"].(map[string]interface{})["a"] = 2
	clone["list"].([]interface{})[0].(map[string]interface{})["x"] = 2

	assert.Equal(t, 1, orig["nested"].(map[string]interface{})["a"])
	assert.Equal(t, 1, orig["list"].([]interface{})[0].(map[string]interface{})["x"])
}

func TestNormalizePatch_NilBecomesDeleteRecursively(t *testing.T) {
	patch := Record{
		"top":    nil,
		"keep":   "v",
		"nested": map[string]interface{}{"a": nil, "b": 1, "deeper": Record{"c": nil}},
	}
	n := NormalizePatch(patch)

	assert.True(t, IsDeleteField(n["top"]))
	assert.Equal(t, "v", n["keep"])
	nested := n["nested"].(map[string]interface{})
	assert.True(t, IsDeleteField(nested["a"]))
	assert.Equal(t, 1, nested["b"])
	assert.True(t, IsDeleteField(nested["deeper"].(map[string]interface{})["c"]))
	assert.Nil(t, patch["top"], "input untouched")
}

func TestApplyPatch_DeepMerge(t *testing.T) {
	current := Record{
		"name":   "x",
		"gone":   true,
		"nested": map[string]interface{}{"a": 1, "keep": "k"},
	}
	patch := NormalizePatch(Record{
		"gone":   nil,
		"nested": map[string]interface{}{"a": nil, "b": 1},
		"fresh":  map[string]interface{}{"z": nil, "y": 2},
	})

	out := ApplyPatch(current.Clone(), patch)

	assert.NotContains(t, out, "gone")
	nested := out["nested"].(map[string]interface{})
	assert.NotContains(t, nested, "a")
	assert.Equal(t, 1, nested["b"])
	assert.Equal(t, "k", nested["keep"])
	assert.Equal(t, map[string]interface{}{"y": 2}, out["fresh"])
	assert.Equal(t, 1, current["nested"].(map[string]interface{})["a"])
}

func TestFlattenPatch(t *testing.T) {
	set, unset := FlattenPatch(NormalizePatch(Record{
		"name":   "n",
		"nested": map[string]interface{}{"a": nil, "b": 1, "deep": map[string]interface{}{"c": true}},
		"empty":  map[string]interface{}{},
		"list":   []interface{}{1, 2},
	}))

	assert.Equal(t, map[string]interface{}{
		"name":           "n",
		"nested.b":       1,
		"nested.deep.c":  true,
		"list":           []interface{}{1, 2},
	}, set)
	assert.Equal(t, []string{"nested.a"}, unset)
}

func TestEmptyNestedPatchIsNoOp(t *testing.T) {
	current := Record{"nested": map[string]interface{}{"keep": 1}, "scalar": "s"}
	patch := NormalizePatch(Record{
		"nested":  map[string]interface{}{},
		"scalar":  map[string]interface{}{"x": nil},
		"absent":  map[string]interface{}{"deep": map[string]interface{}{}},
		"created": map[string]interface{}{"gone": nil, "y": 1},
	})

	out := ApplyPatch(current.Clone(), patch)
	assert.Equal(t, Record{
		"nested":  map[string]interface{}{"keep": 1},
		"scalar":  "s",
		"created": map[string]interface{}{"y": 1},
	}, out)

	set, unset := FlattenPatch(patch)
	assert.Equal(t, map[string]interface{}{"created.y": 1}, set)
	assert.ElementsMatch(t, []string{"scalar.x", "created.gone"}, unset)
}

type user struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Created int64  `json:"__created"`
}

func TestDecodeRecord(t *testing.T) {
	u, err := DecodeRecord[user](Record{FieldID: "1", "name": "ana", FieldCreated: "15"})
	require.NoError(t, err)
	assert.Equal(t, user{ID: "1", Name: "ana", Created: 15}, u)
}

func TestIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, IDs([]Record{{FieldID: "a"}, {FieldID: "b"}}))
}
