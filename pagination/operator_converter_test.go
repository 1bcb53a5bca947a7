package pagination

import (
	"testing"
)

func TestConverterStringToOperator(t *testing.T) {
	cases := map[string]Operator{
		"eq":           OperatorEQ,
		"EQ":           OperatorEQ,
		"equal":        OperatorEQ,
		"equals":       OperatorEQ,
		"ne":           OperatorNEQ,
		"not-equal":    OperatorNEQ,
		"not_equal":    OperatorNEQ,
		"gt":           OperatorGT,
		"greater-than": OperatorGT,
		"gte":          OperatorGTE,
		"less_than":    OperatorLT,
		"lte":          OperatorLTE,
		"like":         OperatorLike,
		"not_like":     OperatorNotLike,
		"contains":     OperatorContains,
		"not_contains": OperatorNotContains,
		"icontains":    OperatorIContains,
		"startsWith":   OperatorStartsWith,
		"ends_with":    OperatorEndsWith,
		"in":           OperatorIn,
		"notin":        OperatorNIn,
		"not_in":       OperatorNIn,
		"isNotNull":    OperatorIsNotNull,
		"isnull":       OperatorIsNull,
		"between":      OperatorBetween,

		// unknown / empty -> unspecified
		"":       OperatorUnspecified,
		"foobar": OperatorUnspecified,
		"regexp": OperatorUnspecified,
		"search": OperatorUnspecified,
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			got := ConverterStringToOperator(input)
			if got != want {
				t.Fatalf("ConverterStringToOperator(%q) = %v, want %v", input, got, want)
			}
		})
	}
}

func TestIsValidOperatorString(t *testing.T) {
	valid := []string{"eq", "not_equal", "contains", "is_null"}
	for _, s := range valid {
		if !IsValidOperatorString(s) {
			t.Fatalf("IsValidOperatorString(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "unknown_op", "blah", "json_contains"}
	for _, s := range invalid {
		if IsValidOperatorString(s) {
			t.Fatalf("IsValidOperatorString(%q) = true, want false", s)
		}
	}
}

func TestOperator_Properties(t *testing.T) {
	if OperatorUnspecified.IsValid() {
		t.Fatal("unspecified operator must not be valid")
	}
	for _, op := range AllOperators() {
		if !op.IsValid() {
			t.Fatalf("%v should be valid", op)
		}
		if op.String() == "OPERATOR_UNSPECIFIED" {
			t.Fatalf("%d has no name", op)
		}
	}

	if !OperatorContains.IsStringOperator() || OperatorGT.IsStringOperator() {
		t.Fatal("unexpected string operator classification")
	}
	if !OperatorIn.IsMultiValue() || !OperatorBetween.IsMultiValue() || OperatorEQ.IsMultiValue() {
		t.Fatal("unexpected multi value classification")
	}
	if OperatorIsNull.Negate() != OperatorIsNotNull || OperatorIsNotNull.Negate() != OperatorIsNull {
		t.Fatal("null checks must negate each other")
	}
	if OperatorEQ.Negate() != OperatorEQ {
		t.Fatal("Negate must not change non null operators")
	}
}
