package intelligence

import (
	"context"
	"errors"
	"testing"

	"mesaviva/backend/internal/domain"
)

func TestResolveCostPrefersBranchSnapshot(t *testing.T) {
	repo := &fakeReadStore{
		latestCostSnapshot: func(_ context.Context, _ string, _ string) (int64, error) {
			return 4000, nil
		},
		listRecipeIngredients: func(_ context.Context, _ string) ([]domain.RecipeIngredient, error) {
			t.Fatalf("must not reach tier 2 when a snapshot exists")
			return nil, nil
		},
	}
	engine := NewEngine(repo, DefaultConfig())

	basis := engine.resolveCost(context.Background(), "REC-1", "BR-1")
	if basis.Source != CostSourceBranchSnapshot || !basis.Confidence {
		t.Fatalf("expected confident snapshot basis, got %+v", basis)
	}
	if basis.UnitCostCents != 4000 {
		t.Fatalf("unexpected cost: %d", basis.UnitCostCents)
	}
}

func TestResolveCostFallsBackToTechnicalRecipe(t *testing.T) {
	repo := &fakeReadStore{
		listRecipeIngredients: func(_ context.Context, _ string) ([]domain.RecipeIngredient, error) {
			return []domain.RecipeIngredient{
				{IngredientID: "ING-A", Quantity: 2},
				{IngredientID: "ING-B", Quantity: 0.5},
				{IngredientID: "ING-MISSING", Quantity: 10},
			}, nil
		},
		ingredientUnitCosts: func(_ context.Context, _ string, _ []string) (map[string]int64, error) {
			return map[string]int64{"ING-A": 150, "ING-B": 1000}, nil
		},
	}
	engine := NewEngine(repo, DefaultConfig())

	basis := engine.resolveCost(context.Background(), "REC-1", "BR-1")
	if basis.Source != CostSourceTechnicalRecipe || !basis.Confidence {
		t.Fatalf("expected technical recipe basis, got %+v", basis)
	}
	// 2*150 + 0.5*1000; the unstocked ingredient contributes zero.
	if basis.UnitCostCents != 800 {
		t.Fatalf("unexpected technical cost: %d", basis.UnitCostCents)
	}
}

func TestResolveCostExhaustedTiersYieldNoConfidence(t *testing.T) {
	engine := NewEngine(&fakeReadStore{}, DefaultConfig())

	basis := engine.resolveCost(context.Background(), "REC-1", "BR-1")
	if basis.Source != CostSourceNone || basis.Confidence {
		t.Fatalf("expected no-confidence basis, got %+v", basis)
	}
	if basis.UnitCostCents != 0 {
		t.Fatalf("no-confidence basis must not carry a cost: %d", basis.UnitCostCents)
	}
}

func TestResolveCostReadFailureFallsThrough(t *testing.T) {
	repo := &fakeReadStore{
		latestCostSnapshot: func(_ context.Context, _ string, _ string) (int64, error) {
			return 0, errors.New("connection reset")
		},
		listRecipeIngredients: func(_ context.Context, _ string) ([]domain.RecipeIngredient, error) {
			return []domain.RecipeIngredient{{IngredientID: "ING-A", Quantity: 1}}, nil
		},
		ingredientUnitCosts: func(_ context.Context, _ string, _ []string) (map[string]int64, error) {
			return map[string]int64{"ING-A": 2700}, nil
		},
	}
	engine := NewEngine(repo, DefaultConfig())

	basis := engine.resolveCost(context.Background(), "REC-1", "BR-1")
	if basis.Source != CostSourceTechnicalRecipe {
		t.Fatalf("a failed snapshot read must fall through to tier 2, got %+v", basis)
	}
	if basis.UnitCostCents != 2700 {
		t.Fatalf("unexpected cost: %d", basis.UnitCostCents)
	}
}

func TestResolveRecipePrefersSourceRecordID(t *testing.T) {
	repo := &fakeReadStore{
		getRecipeByID: func(_ context.Context, id string) (*domain.Recipe, error) {
			return &domain.Recipe{ID: id, Name: "Por ID"}, nil
		},
		findRecipeByName: func(_ context.Context, _ string) (*domain.Recipe, error) {
			t.Fatalf("must not fall back to name when id lookup succeeds")
			return nil, nil
		},
	}
	engine := NewEngine(repo, DefaultConfig())

	recipe := engine.resolveRecipe(context.Background(), domain.Suggestion{
		SourceRecordID: "REC-1",
		Metadata:       map[string]any{"recipe_name": "Otra"},
	})
	if recipe == nil || recipe.Name != "Por ID" {
		t.Fatalf("expected id lookup to win, got %+v", recipe)
	}
}

func TestResolveRecipeFallsBackToMetadataName(t *testing.T) {
	repo := &fakeReadStore{
		findRecipeByName: func(_ context.Context, name string) (*domain.Recipe, error) {
			return &domain.Recipe{ID: "REC-2", Name: name}, nil
		},
	}
	engine := NewEngine(repo, DefaultConfig())

	recipe := engine.resolveRecipe(context.Background(), domain.Suggestion{
		Metadata: map[string]any{"recipe_name": "Tacos al Pastor"},
	})
	if recipe == nil || recipe.ID != "REC-2" {
		t.Fatalf("expected name fallback, got %+v", recipe)
	}
}

func TestResolveRecipeUnresolvableReturnsNil(t *testing.T) {
	engine := NewEngine(&fakeReadStore{}, DefaultConfig())

	if recipe := engine.resolveRecipe(context.Background(), domain.Suggestion{}); recipe != nil {
		t.Fatalf("expected nil for unresolvable suggestion, got %+v", recipe)
	}
}
