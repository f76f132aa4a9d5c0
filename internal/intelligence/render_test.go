package intelligence

import (
	"math"
	"testing"
)

func TestSafeDivGuardsNonFinite(t *testing.T) {
	if got := safeDiv(10, 0); got != 0 {
		t.Fatalf("division by zero must yield 0, got %v", got)
	}
	if got := safeDiv(math.Inf(1), 2); got != 0 {
		t.Fatalf("non-finite result must yield 0, got %v", got)
	}
	if got := safeDiv(6, 3); got != 2 {
		t.Fatalf("plain division broken: %v", got)
	}
}

func TestRoundCents(t *testing.T) {
	if got := roundCents(727.27); got != 727 {
		t.Fatalf("unexpected rounding: %d", got)
	}
	if got := roundCents(727.5); got != 728 {
		t.Fatalf("unexpected rounding: %d", got)
	}
	if got := roundCents(math.NaN()); got != 0 {
		t.Fatalf("NaN must round to 0, got %d", got)
	}
}

func TestParseCurrencyCents(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"$1,250.50", 125050, true},
		{"820.00", 82000, true},
		{" $ 45 ", 4500, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseCurrencyCents(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseCurrencyCents(%q) = %d, %t; want %d, %t", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFormatters(t *testing.T) {
	if got := formatCents(123456); got != "$1234.56" {
		t.Fatalf("formatCents: %q", got)
	}
	if got := formatPct(0.456); got != "45.6%" {
		t.Fatalf("formatPct: %q", got)
	}
	if got := formatQty(36); got != "36" {
		t.Fatalf("formatQty whole: %q", got)
	}
	if got := formatQty(2.5); got != "2.5" {
		t.Fatalf("formatQty fractional: %q", got)
	}
}

func TestRenderResultNormalizesEmptyProjection(t *testing.T) {
	result := renderResult("sim-1", "", projection{currentMargin: math.NaN()})

	if result.Dish != "—" {
		t.Fatalf("empty dish must render a dash, got %q", result.Dish)
	}
	if result.Branch != AllBranchesLabel {
		t.Fatalf("empty branch must render the global label, got %q", result.Branch)
	}
	if result.CurrentMargin != 0 {
		t.Fatalf("NaN margin must render as 0, got %v", result.CurrentMargin)
	}
	if result.Ingredients == nil || result.TableRows == nil {
		t.Fatalf("slices must be non-nil")
	}
	if !result.ReadOnly || result.Disclosure != ReadOnlyDisclosure {
		t.Fatalf("read-only contract missing: %+v", result)
	}
}
