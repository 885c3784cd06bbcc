// Copyright (c) 2026 Quanta Exchange Contributors

package patch_test

import (
	"testing"

	"github.com/valyala/fastjson"

	"github.com/quantaex/qx-store/patch"
)

// TestMergeRFC7386Examples covers every example in RFC 7386 appendix A.
func TestMergeRFC7386Examples(t *testing.T) {
	cases := []struct {
		name   string
		target string
		patch  string
		want   string
	}{
		{"ex1", `{"a":"b"}`, `{"a":"c"}`, `{"a":"c"}`},
		{"ex2", `{"a":"b"}`, `{"b":"c"}`, `{"a":"b","b":"c"}`},
		{"ex3", `{"a":"b"}`, `{"a":null}`, `{}`},
		{"ex4", `{"a":"b","b":"c"}`, `{"a":null}`, `{"b":"c"}`},
		{"ex5", `{"a":["b"]}`, `{"a":"c"}`, `{"a":"c"}`},
		{"ex6", `{"a":"c"}`, `{"a":["b"]}`, `{"a":["b"]}`},
		{"ex7", `{"a":{"b":"c"}}`, `{"a":{"b":"d","c":null}}`, `{"a":{"b":"d"}}`},
		{"ex8", `{"a":[{"b":"c"}]}`, `{"a":[1]}`, `{"a":[1]}`},
		{"ex9", `["a","b"]`, `["c","d"]`, `["c","d"]`},
		{"ex10", `{"a":"b"}`, `["c"]`, `["c"]`},
		{"ex11", `{"a":"foo"}`, `null`, `null`},
		{"ex12", `{"a":"foo"}`, `"bar"`, `"bar"`},
		{"ex13", `{"e":null}`, `{"a":1}`, `{"e":null,"a":1}`},
		{"ex14", `[1,2]`, `{"a":"b","c":null}`, `{"a":"b"}`},
		{"ex15", `{}`, `{"a":{"bb":{"ccc":null}}}`, `{"a":{"bb":{}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := patch.MergeBytes([]byte(tc.target), []byte(tc.patch))
			if err != nil {
				t.Fatalf("MergeBytes: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("merge(%s, %s) = %s, want %s", tc.target, tc.patch, got, tc.want)
			}
		})
	}
}

func TestApplyPatchesInOrder(t *testing.T) {
	snapshot := fastjson.MustParse(`{"a":1,"b":2}`)
	patches := []*fastjson.Value{
		fastjson.MustParse(`{"a":2}`),
		fastjson.MustParse(`{"b":null,"c":3}`),
	}

	result := patch.ApplyPatches(snapshot, patches)
	got := string(result.MarshalTo(nil))
	want := `{"a":2,"c":3}`
	if got != want {
		t.Fatalf("ApplyPatches = %s, want %s", got, want)
	}
}

func TestCreatePatchRoundTrips(t *testing.T) {
	cases := []struct {
		name     string
		original string
		updated  string
	}{
		{"add key", `{"a":1}`, `{"a":1,"b":2}`},
		{"remove key", `{"a":1,"b":2}`, `{"a":1}`},
		{"change scalar", `{"a":1}`, `{"a":2}`},
		{"nested change", `{"a":{"b":1,"c":2}}`, `{"a":{"b":1,"c":3}}`},
		{"array replaced wholesale", `{"a":[1,2,3]}`, `{"a":[4]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			original := fastjson.MustParse(tc.original)
			updated := fastjson.MustParse(tc.updated)
			p := patch.CreatePatch(original, updated)

			target := fastjson.MustParse(tc.original)
			merged := patch.Merge(target, p)

			want := fastjson.MustParse(tc.updated)
			if string(merged.MarshalTo(nil)) != string(want.MarshalTo(nil)) {
				t.Fatalf("applying CreatePatch(%s, %s) = %s, patch %s, want %s",
					tc.original, tc.updated, merged.MarshalTo(nil), p.MarshalTo(nil), tc.updated)
			}
		})
	}
}
