package intelligence

import (
	"context"
	"log"

	"mesaviva/backend/internal/domain"
	"mesaviva/backend/internal/xid"
)

// ReadStore is the only persistence surface the engine sees. It contains
// read methods exclusively, so the read-only invariant of every simulation
// run holds at compile time: a strategy cannot issue a write it has no
// access to.
type ReadStore interface {
	GetRecipeByID(ctx context.Context, id string) (*domain.Recipe, error)
	FindRecipeByName(ctx context.Context, name string) (*domain.Recipe, error)
	LatestCostSnapshot(ctx context.Context, recipeID string, branchID string) (int64, error)
	ListRecipeIngredients(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error)
	IngredientUnitCosts(ctx context.Context, branchID string, ingredientIDs []string) (map[string]int64, error)
	DailySalesVolume(ctx context.Context, recipeID string, branchID string) (float64, error)
	MonthlyExpenseAverage(ctx context.Context, category string, branchID string) (int64, error)
	GetBranch(ctx context.Context, id string) (*domain.Branch, error)
}

// Engine runs read-only financial simulations for suggestions. Each run is
// a sequential chain of point-in-time reads scoped to its own request
// context; nothing is shared across runs and nothing is retried.
type Engine struct {
	store ReadStore
	cfg   Config
}

func NewEngine(store ReadStore, cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.MarginFloor <= 0 {
		cfg.MarginFloor = defaults.MarginFloor
	}
	if cfg.MaxTargetMargin <= 0 || cfg.MaxTargetMargin >= 1 {
		cfg.MaxTargetMargin = defaults.MaxTargetMargin
	}
	if cfg.BaselineDailyVolume <= 0 {
		cfg.BaselineDailyVolume = defaults.BaselineDailyVolume
	}
	if cfg.StockReductionRate <= 0 || cfg.StockReductionRate >= 1 {
		cfg.StockReductionRate = defaults.StockReductionRate
	}
	if cfg.OpportunityCostRate <= 0 {
		cfg.OpportunityCostRate = defaults.OpportunityCostRate
	}
	if cfg.DefaultFrozenCapitalCents <= 0 {
		cfg.DefaultFrozenCapitalCents = defaults.DefaultFrozenCapitalCents
	}
	if cfg.DefaultIdleQty <= 0 {
		cfg.DefaultIdleQty = defaults.DefaultIdleQty
	}
	if len(cfg.ExpenseRules) == 0 {
		cfg.ExpenseRules = defaults.ExpenseRules
	}
	if cfg.DefaultExpenseRule.Action == "" {
		cfg.DefaultExpenseRule = defaults.DefaultExpenseRule
	}
	if cfg.DefaultExpenseCategory == "" {
		cfg.DefaultExpenseCategory = defaults.DefaultExpenseCategory
	}

	return &Engine{store: store, cfg: cfg}
}

// Simulate runs the single strategy matching the suggestion and renders the
// comparative projection. It performs zero writes. The context doubles as
// the liveness token: when the caller has gone away (modal closed), the
// result is discarded rather than applied.
func (e *Engine) Simulate(ctx context.Context, sug domain.Suggestion, branchID string) (*domain.SimulationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := xid.New("sim")
	kind := SelectStrategy(sug)
	log.Printf("[intelligence] run=%s strategy=%s event=%s branch=%q", runID, kind, sug.ID, branchID)

	var p projection
	switch kind {
	case StrategyMarginAdjustment:
		p = e.simulateMarginAdjustment(ctx, sug, branchID)
	case StrategyIdleCapital:
		p = e.simulateIdleCapital(ctx, sug, branchID)
	default:
		p = e.simulateExpenseReduction(ctx, sug, branchID)
	}

	// Abandoned run: the reads already happened but the result must not be
	// applied after the caller unmounted.
	if err := ctx.Err(); err != nil {
		log.Printf("[intelligence] run=%s abandoned: %v", runID, err)
		return nil, err
	}

	result := renderResult(runID, e.branchLabel(ctx, branchID), p)
	return &result, nil
}

// branchLabel resolves a display name for the branch scope; lookups are
// best-effort and fall back to the raw id.
func (e *Engine) branchLabel(ctx context.Context, branchID string) string {
	if branchID == "" {
		return ""
	}
	branch, err := e.store.GetBranch(ctx, branchID)
	if err != nil || branch == nil {
		return branchID
	}
	return branch.Name
}
