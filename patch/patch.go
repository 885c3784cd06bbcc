// Copyright (c) 2026 Quanta Exchange Contributors
//
// patch implements RFC 7386 JSON Merge Patch. Built directly on
// valyala/fastjson.Value, the library the teacher already reaches for
// to pull fields out of decoded records (records.go's fastjsonInt64/
// fastjsonUint64 helpers) -- here used for its mutable object methods
// (Set/Del/GetObject) instead of read-only field access.

package patch

import (
	"github.com/valyala/fastjson"
)

// Merge applies RFC 7386 semantics: target is mutated in place and
// returned. If patch is a JSON object, each of its keys is either
// recursively merged into the corresponding target key (when the
// patch value is itself an object), deleted from target (when the
// patch value is null), or used to replace/add the target key
// (otherwise). If patch is not an object, it replaces target wholesale.
func Merge(target, patch *fastjson.Value) *fastjson.Value {
	if patch == nil {
		return target
	}
	patchObj, err := patch.Object()
	if err != nil {
		// patch is a scalar or array: RFC 7386 says the result is the
		// patch itself.
		return patch
	}

	targetObj, err := target.Object()
	if err != nil {
		// target isn't an object (or is null): start fresh so the merge
		// has somewhere to write keys into.
		target = fastjson.MustParse("{}")
		targetObj, _ = target.Object()
	}

	patchObj.Visit(func(key []byte, v *fastjson.Value) {
		k := string(key)
		if v.Type() == fastjson.TypeNull {
			targetObj.Del(k)
			return
		}
		existing := targetObj.Get(k)
		if v.Type() == fastjson.TypeObject {
			if existing == nil || existing.Type() != fastjson.TypeObject {
				existing = fastjson.MustParse("{}")
			}
			targetObj.Set(k, Merge(existing, v))
			return
		}
		targetObj.Set(k, v)
	})
	return target
}

// MergeBytes is a convenience wrapper that parses target and patch,
// merges them, and serializes the result.
func MergeBytes(target, patch []byte) ([]byte, error) {
	var tp fastjson.Parser
	targetVal, err := tp.ParseBytes(target)
	if err != nil {
		targetVal = fastjson.MustParse("{}")
	}
	var pp fastjson.Parser
	patchVal, err := pp.ParseBytes(patch)
	if err != nil {
		return nil, err
	}
	merged := Merge(targetVal, patchVal)
	return merged.MarshalTo(nil), nil
}

// ApplyPatches applies each patch in patches to snapshot, in order,
// mutating and returning snapshot.
func ApplyPatches(snapshot *fastjson.Value, patches []*fastjson.Value) *fastjson.Value {
	for _, p := range patches {
		snapshot = Merge(snapshot, p)
	}
	return snapshot
}

// CreatePatch returns the minimal RFC 7386 merge patch that, applied to
// original, yields updated: keys present in original but absent (or
// changed) in updated are handled per RFC 7386 (removed -> null,
// changed -> new value), nested objects are diffed recursively, and
// arrays are always treated as atomic (a changed array is replaced
// wholesale, never diffed element-by-element).
func CreatePatch(original, updated *fastjson.Value) *fastjson.Value {
	updatedObj, err := updated.Object()
	if err != nil {
		// updated is a scalar, array, or null: the patch is just updated.
		return updated
	}

	originalObj, origErr := original.Object()

	result := fastjson.MustParse("{}")
	resultObj, _ := result.Object()

	if origErr == nil {
		originalObj.Visit(func(key []byte, _ *fastjson.Value) {
			k := string(key)
			if updatedObj.Get(k) == nil {
				resultObj.Set(k, fastjson.MustParse("null"))
			}
		})
	}

	updatedObj.Visit(func(key []byte, uv *fastjson.Value) {
		k := string(key)
		var ov *fastjson.Value
		if origErr == nil {
			ov = originalObj.Get(k)
		}
		switch {
		case ov == nil:
			resultObj.Set(k, uv)
		case uv.Type() == fastjson.TypeObject && ov.Type() == fastjson.TypeObject:
			sub := CreatePatch(ov, uv)
			if subObj, err := sub.Object(); err == nil && subObj.Len() == 0 {
				return // no change in this nested object
			}
			resultObj.Set(k, sub)
		case !jsonEqual(ov, uv):
			resultObj.Set(k, uv)
		}
	})

	return result
}

func jsonEqual(a, b *fastjson.Value) bool {
	return string(a.MarshalTo(nil)) == string(b.MarshalTo(nil))
}
