package store

import (
	"context"
	"errors"
	"time"

	"mesaviva/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the full persistence surface of the backend. The
// intelligence engine never sees this interface; it depends on the narrower
// read-only intelligence.ReadStore, which every Repository satisfies.
type Repository interface {
	ListOpenEvents(ctx context.Context, branchID string, limit int) ([]domain.SystemEvent, error)
	GetEventByID(ctx context.Context, id string) (*domain.SystemEvent, error)
	MarkEventResolved(ctx context.Context, id string, at time.Time) (*domain.SystemEvent, error)

	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranch(ctx context.Context, id string) (*domain.Branch, error)

	GetRecipeByID(ctx context.Context, id string) (*domain.Recipe, error)
	FindRecipeByName(ctx context.Context, name string) (*domain.Recipe, error)
	LatestCostSnapshot(ctx context.Context, recipeID string, branchID string) (int64, error)
	ListRecipeIngredients(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error)
	IngredientUnitCosts(ctx context.Context, branchID string, ingredientIDs []string) (map[string]int64, error)
	DailySalesVolume(ctx context.Context, recipeID string, branchID string) (float64, error)
	MonthlyExpenseAverage(ctx context.Context, category string, branchID string) (int64, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
