package intelligence

import (
	"context"
	"log"

	"mesaviva/backend/internal/domain"
)

// CostSource identifies which fallback tier produced a cost basis.
type CostSource string

const (
	CostSourceBranchSnapshot  CostSource = "branch_snapshot"
	CostSourceTechnicalRecipe CostSource = "technical_recipe"
	CostSourceNone            CostSource = "none"
)

// CostBasis is the outcome of cost resolution for one recipe. It is built
// fresh for every simulation request and never cached, so projections always
// reflect the current state of the backend.
type CostBasis struct {
	UnitCostCents int64
	Source        CostSource
	Confidence    bool
}

// resolveCost resolves the best-available unit cost for a recipe through an
// ordered fallback chain. A failed read at any tier counts as "no data at
// this tier" and falls through; only exhausting every tier yields a basis
// without confidence. Callers must never substitute a fabricated cost when
// Confidence is false.
func (e *Engine) resolveCost(ctx context.Context, recipeID string, branchID string) CostBasis {
	// Tier 1: freshest daily average cost snapshot for this branch (or the
	// most recent snapshot across branches when the scope is global).
	snapshot, err := e.store.LatestCostSnapshot(ctx, recipeID, branchID)
	if err != nil {
		log.Printf("[intelligence] cost snapshot unavailable for recipe=%s branch=%q: %v", recipeID, branchID, err)
	} else if snapshot > 0 {
		return CostBasis{UnitCostCents: snapshot, Source: CostSourceBranchSnapshot, Confidence: true}
	}

	// Tier 2: technical cost derived from the recipe's ingredient list and
	// the branch's current inventory unit costs. Ingredients without an
	// inventory row contribute zero; that lowers accuracy but is not an
	// error.
	ingredients, err := e.store.ListRecipeIngredients(ctx, recipeID)
	if err != nil {
		log.Printf("[intelligence] recipe ingredients unavailable for recipe=%s: %v", recipeID, err)
		return CostBasis{Source: CostSourceNone}
	}
	if len(ingredients) == 0 {
		return CostBasis{Source: CostSourceNone}
	}

	ids := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		ids = append(ids, ing.IngredientID)
	}
	unitCosts, err := e.store.IngredientUnitCosts(ctx, branchID, ids)
	if err != nil {
		log.Printf("[intelligence] ingredient costs unavailable for branch=%q: %v", branchID, err)
		return CostBasis{Source: CostSourceNone}
	}

	total := 0.0
	for _, ing := range ingredients {
		cost, ok := unitCosts[ing.IngredientID]
		if !ok || cost <= 0 {
			continue
		}
		total += ing.Quantity * float64(cost)
	}
	if cents := roundCents(total); cents > 0 {
		return CostBasis{UnitCostCents: cents, Source: CostSourceTechnicalRecipe, Confidence: true}
	}

	return CostBasis{Source: CostSourceNone}
}

// resolveRecipe locates the recipe a suggestion refers to, preferring the
// explicit source record id and falling back to a case-insensitive name
// lookup (first match wins; ties are an accepted ambiguity). Returns nil
// when the recipe cannot be identified at all.
func (e *Engine) resolveRecipe(ctx context.Context, sug domain.Suggestion) *domain.Recipe {
	id := sug.SourceRecordID
	if id == "" {
		id = metaString(sug.Metadata, "recipe_id")
	}
	if id != "" {
		recipe, err := e.store.GetRecipeByID(ctx, id)
		if err == nil {
			return recipe
		}
		log.Printf("[intelligence] recipe lookup by id=%s failed, trying name: %v", id, err)
	}

	name := metaString(sug.Metadata, "recipe_name")
	if name == "" {
		return nil
	}
	recipe, err := e.store.FindRecipeByName(ctx, name)
	if err != nil {
		log.Printf("[intelligence] recipe lookup by name=%q failed: %v", name, err)
		return nil
	}
	return recipe
}
