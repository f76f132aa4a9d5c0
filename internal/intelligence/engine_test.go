package intelligence

import (
	"context"
	"errors"
	"testing"

	"mesaviva/backend/internal/domain"
	"mesaviva/backend/internal/store"
)

// fakeReadStore is a function-field stub so each test can wire exactly the
// reads its scenario needs; unset fields report missing data.
type fakeReadStore struct {
	getRecipeByID         func(ctx context.Context, id string) (*domain.Recipe, error)
	findRecipeByName      func(ctx context.Context, name string) (*domain.Recipe, error)
	latestCostSnapshot    func(ctx context.Context, recipeID string, branchID string) (int64, error)
	listRecipeIngredients func(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error)
	ingredientUnitCosts   func(ctx context.Context, branchID string, ids []string) (map[string]int64, error)
	dailySalesVolume      func(ctx context.Context, recipeID string, branchID string) (float64, error)
	monthlyExpenseAverage func(ctx context.Context, category string, branchID string) (int64, error)
	getBranch             func(ctx context.Context, id string) (*domain.Branch, error)
}

func (f *fakeReadStore) GetRecipeByID(ctx context.Context, id string) (*domain.Recipe, error) {
	if f.getRecipeByID == nil {
		return nil, store.ErrNotFound
	}
	return f.getRecipeByID(ctx, id)
}

func (f *fakeReadStore) FindRecipeByName(ctx context.Context, name string) (*domain.Recipe, error) {
	if f.findRecipeByName == nil {
		return nil, store.ErrNotFound
	}
	return f.findRecipeByName(ctx, name)
}

func (f *fakeReadStore) LatestCostSnapshot(ctx context.Context, recipeID string, branchID string) (int64, error) {
	if f.latestCostSnapshot == nil {
		return 0, store.ErrNotFound
	}
	return f.latestCostSnapshot(ctx, recipeID, branchID)
}

func (f *fakeReadStore) ListRecipeIngredients(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error) {
	if f.listRecipeIngredients == nil {
		return nil, nil
	}
	return f.listRecipeIngredients(ctx, recipeID)
}

func (f *fakeReadStore) IngredientUnitCosts(ctx context.Context, branchID string, ids []string) (map[string]int64, error) {
	if f.ingredientUnitCosts == nil {
		return map[string]int64{}, nil
	}
	return f.ingredientUnitCosts(ctx, branchID, ids)
}

func (f *fakeReadStore) DailySalesVolume(ctx context.Context, recipeID string, branchID string) (float64, error) {
	if f.dailySalesVolume == nil {
		return 0, nil
	}
	return f.dailySalesVolume(ctx, recipeID, branchID)
}

func (f *fakeReadStore) MonthlyExpenseAverage(ctx context.Context, category string, branchID string) (int64, error) {
	if f.monthlyExpenseAverage == nil {
		return 0, store.ErrNotFound
	}
	return f.monthlyExpenseAverage(ctx, category, branchID)
}

func (f *fakeReadStore) GetBranch(ctx context.Context, id string) (*domain.Branch, error) {
	if f.getBranch == nil {
		return nil, store.ErrNotFound
	}
	return f.getBranch(ctx, id)
}

func TestSimulateCancelledContextBeforeRun(t *testing.T) {
	engine := NewEngine(&fakeReadStore{}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Simulate(ctx, domain.Suggestion{ID: "EVT-X", EventType: EventExpenseAnomaly}, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSimulateAlwaysRendersReadOnlyContract(t *testing.T) {
	engine := NewEngine(&fakeReadStore{}, DefaultConfig())

	result, err := engine.Simulate(context.Background(), domain.Suggestion{
		ID:        "EVT-Y",
		EventType: EventExpenseAnomaly,
		Metadata:  map[string]any{},
	}, "")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if !result.ReadOnly {
		t.Fatalf("every simulation result must be read-only")
	}
	if result.Disclosure != ReadOnlyDisclosure {
		t.Fatalf("unexpected disclosure: %q", result.Disclosure)
	}
	if result.RunID == "" {
		t.Fatalf("run id must be set")
	}
	if result.Ingredients == nil || result.TableRows == nil {
		t.Fatalf("rendered slices must be non-nil")
	}
	if result.Branch != AllBranchesLabel {
		t.Fatalf("empty branch scope must render %q, got %q", AllBranchesLabel, result.Branch)
	}
}

func TestSimulateBranchLabelFallsBackToID(t *testing.T) {
	engine := NewEngine(&fakeReadStore{}, DefaultConfig())

	result, err := engine.Simulate(context.Background(), domain.Suggestion{
		ID:        "EVT-Z",
		EventType: EventExpenseAnomaly,
	}, "BR-MISSING")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if result.Branch != "BR-MISSING" {
		t.Fatalf("unresolvable branch must fall back to the raw id, got %q", result.Branch)
	}
}

func TestSimulateResolvesBranchName(t *testing.T) {
	repo := &fakeReadStore{
		getBranch: func(_ context.Context, id string) (*domain.Branch, error) {
			return &domain.Branch{ID: id, Name: "Sucursal Centro"}, nil
		},
	}
	engine := NewEngine(repo, DefaultConfig())

	result, err := engine.Simulate(context.Background(), domain.Suggestion{
		ID:        "EVT-W",
		EventType: EventExpenseAnomaly,
	}, "BR-CENTRO")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if result.Branch != "Sucursal Centro" {
		t.Fatalf("expected resolved branch name, got %q", result.Branch)
	}
}

func TestNewEngineBackfillsZeroConfig(t *testing.T) {
	engine := NewEngine(&fakeReadStore{}, Config{})

	defaults := DefaultConfig()
	if engine.cfg.MarginFloor != defaults.MarginFloor {
		t.Fatalf("margin floor not backfilled: %v", engine.cfg.MarginFloor)
	}
	if engine.cfg.DefaultExpenseCategory != "Varios" {
		t.Fatalf("default expense category not backfilled: %q", engine.cfg.DefaultExpenseCategory)
	}
	if len(engine.cfg.ExpenseRules) == 0 {
		t.Fatalf("expense rules not backfilled")
	}
}
