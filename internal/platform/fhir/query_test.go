package fhir

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
)

var (
	ucumUgDL = &Coding{System: "http://unitsofmeasure.org", Code: "ug/dL", Display: "ug/dL"}
	c71_1    = NewCoding("http://fhir.de/CodeSystem/bfarm/icd-10-gm", "C71.1", "Frontallappen")
)

func decimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestQuantityValue(t *testing.T) {
	tests := []struct {
		name   string
		prefix SearchPrefix
		value  string
		unit   *Coding
		want   string
	}{
		{"less than without unit", PrefixLt, "10", nil, "lt10"},
		{"greater equal with unit", PrefixGe, "17.9", ucumUgDL, "ge17.9|http://unitsofmeasure.org|ug/dL"},
		{"keeps trailing zeros", PrefixEq, "7.30", nil, "eq7.30"},
		{"no scientific notation", PrefixGt, "1E+3", nil, "gt1000"},
		{"small values", PrefixLe, "0.0000001", nil, "le0.0000001"},
		{"negative", PrefixGe, "-4.5", nil, "ge-4.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuantityValue(tt.prefix, decimal(t, tt.value), tt.unit)
			if got != tt.want {
				t.Errorf("QuantityValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryParams_AppendKeepsReceiver(t *testing.T) {
	base := NewQueryParams("code", c71_1.SearchValue())
	a := base.Append("verification-status", "confirmed")
	b := base.Append("severity", "severe")

	if base.Len() != 1 {
		t.Fatalf("expected base to keep 1 param, got %d", base.Len())
	}
	if a.Params()[1].Value != "confirmed" {
		t.Errorf("expected confirmed, got %s", a.Params()[1].Value)
	}
	if b.Params()[1].Value != "severe" {
		t.Errorf("expected severe, got %s", b.Params()[1].Value)
	}
}

func TestQueryParams_Order(t *testing.T) {
	params := EmptyParams.
		AppendCoding("code", c71_1).
		AppendQuantity("value-quantity", PrefixGe, decimal(t, "4"), nil).
		AppendQuantity("value-quantity", PrefixLe, decimal(t, "10"), nil)

	want := "code=http://fhir.de/CodeSystem/bfarm/icd-10-gm|C71.1&value-quantity=ge4&value-quantity=le10"
	if got := params.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestQueryParams_Encode(t *testing.T) {
	params := NewQueryParams("code", "http://loinc.org|2143-6")
	want := "code=http%3A%2F%2Floinc.org%7C2143-6"
	if got := params.Encode(); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestQuery_Equal(t *testing.T) {
	q1 := NewQuery("Condition", NewQueryParams("code", c71_1.SearchValue()))
	q2 := NewQuery("Condition", EmptyParams.AppendCoding("code", c71_1))
	q3 := NewQuery("Observation", NewQueryParams("code", c71_1.SearchValue()))

	if !q1.Equal(q2) {
		t.Error("expected structurally equal queries to be equal")
	}
	if q1.Key() != q2.Key() {
		t.Error("expected equal queries to share a key")
	}
	if q1.Equal(q3) || q1.Key() == q3.Key() {
		t.Error("expected queries with different resource types to differ")
	}
}

func TestQuery_String(t *testing.T) {
	q := NewQuery("Condition", NewQueryParams("code", c71_1.SearchValue()))
	want := "Condition?code=http://fhir.de/CodeSystem/bfarm/icd-10-gm|C71.1"
	if got := q.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	text, err := q.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(text) != want {
		t.Errorf("MarshalText() = %q, want %q", text, want)
	}
}
