package intelligence

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"mesaviva/backend/internal/domain"
)

// ReadOnlyDisclosure is surfaced verbatim on every simulation view. It is a
// user-facing contract: the engine never mutates ledger, inventory or
// recipe state.
const ReadOnlyDisclosure = "Simulación de solo lectura: no se modifica ningún registro de ventas, inventario o recetas."

// Placeholder strings rendered when no real cost could be resolved. The
// presentation layer shows these instead of a fabricated number.
const (
	PlaceholderMissingCost       = "Falta Costo Real"
	PlaceholderAwaitingPurchases = "Esperando Compras"
)

// AllBranchesLabel names the global scope when no branch filter applies.
const AllBranchesLabel = "Todas las sucursales"

// renderResult normalizes a strategy projection into the fixed
// SimulationResult shape. No business logic lives here; its only job is a
// uniform contract so the presentation layer never branches on which
// strategy ran.
func renderResult(runID string, branchLabel string, p projection) domain.SimulationResult {
	dish := p.dish
	if dish == "" {
		dish = "—"
	}
	if branchLabel == "" {
		branchLabel = AllBranchesLabel
	}
	ingredients := p.ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	rows := p.rows
	if rows == nil {
		rows = []domain.TableRow{}
	}

	return domain.SimulationResult{
		RunID:                      runID,
		Dish:                       dish,
		Branch:                     branchLabel,
		CurrentMargin:              finiteOrZero(p.currentMargin),
		ProjectedMargin:            finiteOrZero(p.projectedMargin),
		CurrentDailyUtilityCents:   p.currentDailyCents,
		ProjectedDailyUtilityCents: p.projectedDailyCents,
		MonthlyImpactCents:         p.monthlyImpactCents,
		Ingredients:                ingredients,
		TableRows:                  rows,
		RecommendedActionText:      p.action,
		HasRealCost:                p.hasRealCost,
		ReadOnly:                   true,
		Disclosure:                 ReadOnlyDisclosure,
	}
}

// safeDiv divides and returns 0 for zero denominators or non-finite
// results, so NaN/Infinity never reach the render layer.
func safeDiv(num float64, den float64) float64 {
	if den == 0 {
		return 0
	}
	return finiteOrZero(num / den)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// roundCents rounds a cent-denominated float to whole cents, guarding
// against non-finite intermediates.
func roundCents(cents float64) int64 {
	return int64(math.Round(finiteOrZero(cents)))
}

func moneyToCents(amount float64) int64 {
	return roundCents(amount * 100)
}

// parseCurrencyCents parses currency strings like "$1,250.50" that some
// triggers put in metadata instead of numbers.
func parseCurrencyCents(raw string) (int64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return moneyToCents(value), true
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

func formatPct(ratio float64) string {
	return fmt.Sprintf("%.1f%%", finiteOrZero(ratio)*100)
}

func formatQty(qty float64) string {
	qty = finiteOrZero(qty)
	if qty == math.Trunc(qty) {
		return strconv.FormatFloat(qty, 'f', 0, 64)
	}
	return strconv.FormatFloat(qty, 'f', 1, 64)
}
