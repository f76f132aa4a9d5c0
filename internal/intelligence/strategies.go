package intelligence

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mesaviva/backend/internal/domain"
)

// StrategyKind is the closed set of simulation strategies. Exactly one
// strategy runs per simulation request.
type StrategyKind int

const (
	StrategyExpenseReduction StrategyKind = iota
	StrategyMarginAdjustment
	StrategyIdleCapital
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyMarginAdjustment:
		return "margin_adjustment"
	case StrategyIdleCapital:
		return "idle_capital"
	default:
		return "expense_reduction"
	}
}

// ExpenseRule is the static reduction heuristic for one expense category.
type ExpenseRule struct {
	ReductionPct float64
	Action       string
}

// Config carries every tunable the strategies use. The values are business
// heuristics inherited from operations, not derived quantities; tests
// override them per-case.
type Config struct {
	// MarginFloor is the hard lower bound on the target margin, applied
	// regardless of what the event metadata asks for.
	MarginFloor float64
	// MaxTargetMargin caps the target so the simulated price formula
	// cost/(1-target) stays finite.
	MaxTargetMargin float64
	// BaselineDailyVolume substitutes for recipes with no completed-order
	// history, so projections are never trivially zero.
	BaselineDailyVolume float64
	// StockReductionRate is the flat optimization target for idle stock.
	StockReductionRate float64
	// OpportunityCostRate is the monthly cost of doing nothing about
	// frozen capital.
	OpportunityCostRate float64
	// DefaultFrozenCapitalCents and DefaultIdleQty back-fill idle capital
	// events whose metadata omits the figures.
	DefaultFrozenCapitalCents int64
	DefaultIdleQty            float64

	ExpenseRules           map[string]ExpenseRule
	DefaultExpenseRule     ExpenseRule
	DefaultExpenseCategory string
}

func DefaultConfig() Config {
	return Config{
		MarginFloor:               0.35,
		MaxTargetMargin:           0.95,
		BaselineDailyVolume:       2,
		StockReductionRate:        0.60,
		OpportunityCostRate:       0.10,
		DefaultFrozenCapitalCents: 50000,
		DefaultIdleQty:            150,
		ExpenseRules: map[string]ExpenseRule{
			"Renta":         {ReductionPct: 5, Action: "Renegociar el contrato de arrendamiento o evaluar reubicación."},
			"Nómina":        {ReductionPct: 8, Action: "Revisar turnos y horas extra contra la demanda por franja horaria."},
			"Marketing":     {ReductionPct: 30, Action: "Pausar campañas de bajo retorno y concentrar pauta en canales medibles."},
			"Servicios":     {ReductionPct: 15, Action: "Auditar tarifas de luz, gas y agua; operar equipos fuera de horario pico."},
			"Insumos":       {ReductionPct: 12, Action: "Consolidar proveedores y negociar precio por volumen en insumos principales."},
			"Mantenimiento": {ReductionPct: 20, Action: "Pasar de mantenimiento correctivo a preventivo con calendario mensual."},
		},
		DefaultExpenseRule:     ExpenseRule{ReductionPct: 10, Action: "Revisar los gastos varios del periodo y eliminar cargos no recurrentes."},
		DefaultExpenseCategory: "Varios",
	}
}

// SelectStrategy maps a suggestion to its strategy. Total by construction:
// anything the first three rules miss falls back to expense reduction with
// the default category, the only strategy that degrades gracefully with
// empty metadata and no backend data.
func SelectStrategy(sug domain.Suggestion) StrategyKind {
	switch {
	case sug.EventType == EventExpenseAnomaly:
		return StrategyExpenseReduction
	case sug.Category == domain.CategoryFinancial || metaString(sug.Metadata, "recipe_name") != "":
		return StrategyMarginAdjustment
	case sug.Category == domain.CategoryInventory || metaString(sug.Metadata, "ingredient_name") != "":
		return StrategyIdleCapital
	default:
		return StrategyExpenseReduction
	}
}

// projection is the raw strategy output before shape normalization.
type projection struct {
	dish                string
	branchID            string
	currentMargin       float64
	projectedMargin     float64
	currentDailyCents   int64
	projectedDailyCents int64
	monthlyImpactCents  int64
	ingredients         []string
	rows                []domain.TableRow
	action              string
	hasRealCost         bool
}

func (e *Engine) simulateExpenseReduction(ctx context.Context, sug domain.Suggestion, branchID string) projection {
	category := metaString(sug.Metadata, "expense_category")
	if category == "" {
		category = metaString(sug.Metadata, "category")
	}
	label, rule := e.cfg.lookupExpenseRule(category)

	baseline, err := e.store.MonthlyExpenseAverage(ctx, label, branchID)
	estimated := false
	if err != nil || baseline <= 0 {
		if err != nil {
			log.Printf("[intelligence] monthly expense average unavailable for category=%s branch=%q: %v", label, branchID, err)
		}
		// No historical rows: the triggering event's own amount is the
		// monthly baseline, flagged as a lower-confidence estimate.
		baseline = 0
		if amount, ok := metaNumber(sug.Metadata, "actual_amount"); ok && amount > 0 {
			baseline = moneyToCents(amount)
		} else if sug.ImpactCents != nil && *sug.ImpactCents > 0 {
			baseline = *sug.ImpactCents
		}
		estimated = true
	}

	savings := roundCents(float64(baseline) * rule.ReductionPct / 100)
	daily := roundCents(float64(savings) / 30)

	actualLabel := formatCents(baseline)
	if estimated {
		actualLabel += " (estimado)"
	}

	action := rule.Action
	if estimated {
		action += " Estimación basada en el gasto que disparó la alerta; aún no hay promedio mensual histórico."
	}

	return projection{
		dish:                label,
		branchID:            branchID,
		projectedDailyCents: daily,
		monthlyImpactCents:  savings,
		hasRealCost:         true,
		rows: []domain.TableRow{
			{Label: "Gasto mensual (" + label + ")", Actual: actualLabel, Simulated: formatCents(baseline - savings)},
			{Label: "Ahorro mensual", Actual: "—", Simulated: formatCents(savings)},
			{Label: "Utilidad diaria", Actual: formatCents(0), Simulated: formatCents(daily)},
		},
		action: action,
	}
}

func (e *Engine) simulateMarginAdjustment(ctx context.Context, sug domain.Suggestion, branchID string) projection {
	target := e.targetMargin(sug.Metadata)

	recipe := e.resolveRecipe(ctx, sug)
	if recipe == nil {
		dish := metaString(sug.Metadata, "recipe_name")
		if dish == "" {
			dish = "Receta"
		}
		return projection{
			dish:            dish,
			branchID:        branchID,
			projectedMargin: target,
			rows: []domain.TableRow{
				{Label: "Costo unitario", Actual: PlaceholderMissingCost, Simulated: PlaceholderAwaitingPurchases},
				{Label: "Precio", Actual: PlaceholderMissingCost, Simulated: PlaceholderAwaitingPurchases},
				{Label: "Margen", Actual: "—", Simulated: formatPct(target)},
			},
			action: "No se encontró la receta asociada al evento; no es posible calcular el ajuste de margen.",
		}
	}

	ingredients := e.ingredientNames(ctx, recipe.ID)
	basis := e.resolveCost(ctx, recipe.ID, branchID)
	price := recipe.PriceCents

	if !basis.Confidence {
		return projection{
			dish:            recipe.Name,
			branchID:        branchID,
			projectedMargin: target,
			ingredients:     ingredients,
			rows: []domain.TableRow{
				{Label: "Costo unitario", Actual: PlaceholderMissingCost, Simulated: PlaceholderAwaitingPurchases},
				{Label: "Precio", Actual: formatCents(price), Simulated: PlaceholderAwaitingPurchases},
				{Label: "Margen", Actual: "—", Simulated: formatPct(target)},
			},
			action: "No se puede calcular económicamente esta receta: falta el costo real de los insumos. Se requiere historial de compras para obtener el costo.",
		}
	}

	cost := basis.UnitCostCents
	currentMargin := 0.0
	if price > 0 && cost > 0 {
		currentMargin = safeDiv(float64(price-cost), float64(price))
	}

	volume, err := e.store.DailySalesVolume(ctx, recipe.ID, branchID)
	baselineVolume := false
	if err != nil {
		log.Printf("[intelligence] sales volume unavailable for recipe=%s branch=%q: %v", recipe.ID, branchID, err)
	}
	if err != nil || volume <= 0 {
		volume = e.cfg.BaselineDailyVolume
		baselineVolume = true
	}

	simPrice := roundCents(safeDiv(float64(cost), 1-target))
	currentDaily := roundCents(float64(price-cost) * volume)
	projectedDaily := roundCents(float64(simPrice-cost) * volume)
	monthlyImpact := roundCents(float64(simPrice-price) * volume * 30)

	action := fmt.Sprintf("Ajustar el precio de %s a %s para alcanzar un margen de %s.",
		recipe.Name, formatCents(simPrice), formatPct(target))
	if basis.Source == CostSourceTechnicalRecipe {
		action += " Costo derivado de la receta técnica, no de compras registradas."
	}
	if baselineVolume {
		action += fmt.Sprintf(" Proyección sobre una base de %s ventas diarias por falta de historial.", formatQty(volume))
	}

	return projection{
		dish:                recipe.Name,
		branchID:            branchID,
		currentMargin:       currentMargin,
		projectedMargin:     target,
		currentDailyCents:   currentDaily,
		projectedDailyCents: projectedDaily,
		monthlyImpactCents:  monthlyImpact,
		ingredients:         ingredients,
		hasRealCost:         true,
		rows: []domain.TableRow{
			{Label: "Costo unitario", Actual: formatCents(cost), Simulated: formatCents(cost)},
			{Label: "Precio", Actual: formatCents(price), Simulated: formatCents(simPrice)},
			{Label: "Margen", Actual: formatPct(currentMargin), Simulated: formatPct(target)},
			{Label: "Utilidad diaria", Actual: formatCents(currentDaily), Simulated: formatCents(projectedDaily)},
			{Label: "Impacto mensual", Actual: "—", Simulated: formatCents(monthlyImpact)},
		},
		action: action,
	}
}

// simulateIdleCapital is a static heuristic over the event's own metadata;
// it never queries live cost data.
func (e *Engine) simulateIdleCapital(_ context.Context, sug domain.Suggestion, branchID string) projection {
	frozen := e.cfg.DefaultFrozenCapitalCents
	if amount, ok := metaNumber(sug.Metadata, "frozen_capital"); ok && amount > 0 {
		frozen = moneyToCents(amount)
	} else if raw := metaString(sug.Metadata, "frozen_capital"); raw != "" {
		if cents, ok := parseCurrencyCents(raw); ok && cents > 0 {
			frozen = cents
		}
	}

	qty := e.cfg.DefaultIdleQty
	if q, ok := metaNumber(sug.Metadata, "current_qty"); ok && q > 0 {
		qty = q
	}

	optimizedQty := qty * (1 - e.cfg.StockReductionRate)
	recovered := roundCents(float64(frozen) * e.cfg.StockReductionRate)
	opportunity := roundCents(float64(frozen) * e.cfg.OpportunityCostRate)

	dish := metaString(sug.Metadata, "ingredient_name")
	if dish == "" {
		dish = "Inventario detenido"
	}

	return projection{
		dish:                dish,
		branchID:            branchID,
		projectedDailyCents: roundCents(float64(recovered) / 30),
		monthlyImpactCents:  recovered,
		hasRealCost:         true,
		rows: []domain.TableRow{
			{Label: "Capital inmovilizado", Actual: formatCents(frozen), Simulated: formatCents(frozen - recovered)},
			{Label: "Stock (unidades)", Actual: formatQty(qty), Simulated: formatQty(optimizedQty)},
			{Label: "Capital recuperado", Actual: "—", Simulated: formatCents(recovered)},
			{Label: "Costo de oportunidad mensual", Actual: formatCents(opportunity), Simulated: formatCents(0)},
		},
		action: fmt.Sprintf("Reducir el stock de %s a %s unidades con promociones o ajuste de compras; libera %s de capital.",
			dish, formatQty(optimizedQty), formatCents(recovered)),
	}
}

// targetMargin applies the hard floor and the finiteness cap to whatever
// target the event metadata carries.
func (e *Engine) targetMargin(meta map[string]any) float64 {
	target := e.cfg.MarginFloor
	if requested, ok := metaNumber(meta, "target_margin"); ok && requested > target {
		target = requested
	}
	if target >= e.cfg.MaxTargetMargin {
		target = e.cfg.MaxTargetMargin
	}
	return target
}

func (e *Engine) ingredientNames(ctx context.Context, recipeID string) []string {
	ingredients, err := e.store.ListRecipeIngredients(ctx, recipeID)
	if err != nil {
		log.Printf("[intelligence] ingredient list unavailable for recipe=%s: %v", recipeID, err)
		return nil
	}
	names := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if ing.IngredientName != "" {
			names = append(names, ing.IngredientName)
		}
	}
	return names
}

// lookupExpenseRule matches the category case-insensitively and falls back
// to the default "Varios" rule for anything unknown.
func (c Config) lookupExpenseRule(category string) (string, ExpenseRule) {
	for label, rule := range c.ExpenseRules {
		if strings.EqualFold(label, category) {
			return label, rule
		}
	}
	return c.DefaultExpenseCategory, c.DefaultExpenseRule
}
