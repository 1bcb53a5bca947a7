package filter

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestQueryStringToMap_ObjectAndArray(t *testing.T) {
	qsc := NewQueryStringConverter()

	arr, err := qsc.QueryStringToMap(`{"amount":"500"}`)
	if err != nil {
		t.Fatalf("QueryStringToMap(object) error: %v", err)
	}
	if len(arr) != 1 || arr[0]["amount"] != "500" {
		t.Fatalf("object -> unexpected result %v", arr)
	}

	arr2, err := qsc.QueryStringToMap(`[{"a":"1"},{"b":2}]`)
	if err != nil {
		t.Fatalf("QueryStringToMap(array) error: %v", err)
	}
	if len(arr2) != 2 {
		t.Fatalf("array -> want len 2, got %d", len(arr2))
	}
	if n, ok := arr2[1]["b"].(json.Number); !ok || n.String() != "2" {
		t.Fatalf("array[1].b want json.Number 2 got %T %v", arr2[1]["b"], arr2[1]["b"])
	}

	if _, err = qsc.QueryStringToMap(`not json`); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

func TestQueryStringConverter_Convert(t *testing.T) {
	qsc := NewQueryStringConverter()

	got, err := qsc.Convert(`[{"status":"a"},{"$and":[{"qty__gte":1},{"status":"b"}]},{"tags__in":["x",2]}]`)
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}

	want := Params{
		"status":   {"a", "b"},
		"qty__gte": {"1"},
		"tags__in": {"x", "2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Convert mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryStringConverter_LargeNumbers(t *testing.T) {
	qsc := NewQueryStringConverter()

	got, err := qsc.Convert(`{"id":9007199254740993,"big__in":[10000000000000000000,1.5]}`)
	if err != nil {
		t.Fatalf("Convert error: %v", err)
	}

	want := Params{
		"id":      {"9007199254740993"},
		"big__in": {"10000000000000000000", "1.5"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Convert mismatch (-want +got):\n%s", diff)
	}

	if _, err = qsc.Convert(`{"a":1} {"b":2}`); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestQueryStringConverter_Rejects(t *testing.T) {
	qsc := NewQueryStringConverter()

	cases := []string{
		`{"$or":[{"a":1}]}`,
		`{"$not":{"a":1}}`,
		`{"a":{"b":1}}`,
		`{"a":[[1]]}`,
		`{"$and":"x"}`,
	}
	for _, c := range cases {
		if _, err := qsc.Convert(c); err == nil {
			t.Fatalf("expected error for %s", c)
		}
	}
}

func TestFilterStringConverter_Convert(t *testing.T) {
	fsc := NewFilterStringConverter()

	cases := []struct {
		in   string
		want Params
	}{
		{`a = 1`, Params{"a__eq": {"1"}}},
		{`a != "x" AND b > 2.5`, Params{"a__neq": {"x"}, "b__gt": {"2.5"}}},
		{`NOT a = 1`, Params{"a__neq": {"1"}}},
		{`user.name = "bob"`, Params{"user.name__eq": {"bob"}}},
		{`a < 3 AND a >= 1`, Params{"a__lt": {"3"}, "a__gte": {"1"}}},
		{`flag = true`, Params{"flag__eq": {"true"}}},
	}

	for _, tc := range cases {
		got, err := fsc.Convert(tc.in)
		if err != nil {
			t.Fatalf("Convert(%q) error: %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("Convert(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestFilterStringConverter_Unsupported(t *testing.T) {
	fsc := NewFilterStringConverter()

	for _, in := range []string{`a = 1 OR b = 2`, `NOT (a = 1 AND b = 2)`, `a`} {
		if _, err := fsc.Convert(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}

	got, err := fsc.Convert("   ")
	if err != nil || got != nil {
		t.Fatalf("empty filter should yield nil, got %v, %v", got, err)
	}
}

func TestParams_SortedKeys(t *testing.T) {
	p := Params{"b": {"1"}, "a": {"2"}, "c": nil}
	if diff := cmp.Diff([]string{"a", "b", "c"}, p.SortedKeys()); diff != "" {
		t.Fatalf("SortedKeys mismatch:\n%s", diff)
	}
}
