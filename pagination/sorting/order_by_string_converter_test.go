package sorting

import (
	"reflect"
	"testing"
)

func TestOrderByStringConverter_Convert_Empty(t *testing.T) {
	obc := NewOrderByStringConverter()
	got, err := obc.Convert("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result for empty input, got: %#v", got)
	}
}

func TestOrderByStringConverter_ParseJsonString_AllEmptyItems(t *testing.T) {
	obc := NewOrderByStringConverter()
	got, err := obc.ParseJsonString(`["", ""]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil result for [\"\", \"\"], got: %#v", got)
	}
}

func TestOrderByStringConverter_Convert_JSON(t *testing.T) {
	obc := NewOrderByStringConverter()
	got, err := obc.Convert(`["-createdAt", "name", "id:DESC"]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Term{
		{Field: "createdAt", Direction: "desc"},
		{Field: "name"},
		{Field: "id", Direction: "DESC"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatch:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestOrderByStringConverter_Convert_List(t *testing.T) {
	obc := NewOrderByStringConverter()
	got, err := obc.Convert("-amount,+id,orders.name:desc,,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Term{
		{Field: "amount", Direction: "desc"},
		{Field: "id", Direction: "asc"},
		{Field: "orders.name", Direction: "desc"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatch:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestOrderByStringConverter_Convert_AIP(t *testing.T) {
	obc := NewOrderByStringConverter()
	got, err := obc.Convert("orders.name DESC, id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Term{
		{Field: "orders.name", Direction: "desc"},
		{Field: "id", Direction: "asc"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatch:\n got: %#v\nwant: %#v", got, want)
	}
}

func TestOrderByStringConverter_Convert_AIPInvalid(t *testing.T) {
	obc := NewOrderByStringConverter()
	for _, in := range []string{"name;DROP desc", "name sideways", "a b c"} {
		if _, err := obc.Convert(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestOrderByStringConverter_Convert_InvalidJSON(t *testing.T) {
	obc := NewOrderByStringConverter()
	if _, err := obc.Convert(`[1, 2]`); err == nil {
		t.Fatal("expected error for non-string JSON items")
	}
}
