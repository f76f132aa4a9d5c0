package memory

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mesaviva/backend/internal/domain"
	"mesaviva/backend/internal/store"
)

// Store is a mutex-guarded in-memory repository used for dev/demo mode and
// tests. The seed mirrors a small two-branch restaurant with enough shape
// to exercise every cost-resolution tier.
type Store struct {
	mu                sync.RWMutex
	events            map[string]domain.SystemEvent
	branches          map[string]domain.Branch
	recipes           map[string]domain.Recipe
	recipeIngredients map[string][]domain.RecipeIngredient
	inventory         map[string]map[string]domain.InventoryItem
	costSnapshots     []domain.CostSnapshot
	dailyVolumes      map[string]map[string]float64
	expenses          []domain.ExpenseRecord
	auditLogs         []domain.AuditLog
	users             map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_MANAGER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. Production runs
// use PostgreSQL (DATABASE_URL set) and never touch these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "gerente123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_MANAGER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_MANAGER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"gerente", managerPwd, "manager"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()

	branches := map[string]domain.Branch{
		"BR-CENTRO": {ID: "BR-CENTRO", Name: "Sucursal Centro"},
		"BR-NORTE":  {ID: "BR-NORTE", Name: "Sucursal Norte"},
	}

	recipes := map[string]domain.Recipe{
		"REC-BURGER":   {ID: "REC-BURGER", Name: "Hamburguesa Clásica", BranchID: "BR-CENTRO", PriceCents: 12000, Active: true},
		"REC-PASTOR":   {ID: "REC-PASTOR", Name: "Tacos al Pastor", BranchID: "BR-CENTRO", PriceCents: 9500, Active: true},
		"REC-CESAR":    {ID: "REC-CESAR", Name: "Ensalada César", BranchID: "BR-NORTE", PriceCents: 11000, Active: true},
		"REC-LIMONADA": {ID: "REC-LIMONADA", Name: "Limonada de la Casa", BranchID: "BR-NORTE", PriceCents: 4500, Active: true},
	}

	recipeIngredients := map[string][]domain.RecipeIngredient{
		"REC-BURGER": {
			{RecipeID: "REC-BURGER", IngredientID: "ING-CARNE", IngredientName: "Carne molida", Quantity: 0.18, Unit: "kg"},
			{RecipeID: "REC-BURGER", IngredientID: "ING-PAN", IngredientName: "Pan brioche", Quantity: 1, Unit: "pieza"},
			{RecipeID: "REC-BURGER", IngredientID: "ING-QUESO", IngredientName: "Queso manchego", Quantity: 0.03, Unit: "kg"},
		},
		"REC-PASTOR": {
			{RecipeID: "REC-PASTOR", IngredientID: "ING-TORTILLA", IngredientName: "Tortilla de maíz", Quantity: 3, Unit: "pieza"},
			{RecipeID: "REC-PASTOR", IngredientID: "ING-PASTOR", IngredientName: "Cerdo adobado", Quantity: 0.15, Unit: "kg"},
			{RecipeID: "REC-PASTOR", IngredientID: "ING-PINA", IngredientName: "Piña", Quantity: 0.05, Unit: "kg"},
		},
		"REC-CESAR": {
			{RecipeID: "REC-CESAR", IngredientID: "ING-LECHUGA", IngredientName: "Lechuga romana", Quantity: 0.2, Unit: "kg"},
			{RecipeID: "REC-CESAR", IngredientID: "ING-POLLO", IngredientName: "Pechuga de pollo", Quantity: 0.15, Unit: "kg"},
			{RecipeID: "REC-CESAR", IngredientID: "ING-QUESO", IngredientName: "Queso manchego", Quantity: 0.02, Unit: "kg"},
		},
		// Limonada's ingredients are deliberately absent from inventory so
		// the "no cost available" path stays reachable in dev mode.
		"REC-LIMONADA": {
			{RecipeID: "REC-LIMONADA", IngredientID: "ING-LIMON", IngredientName: "Limón", Quantity: 0.1, Unit: "kg"},
			{RecipeID: "REC-LIMONADA", IngredientID: "ING-AZUCAR", IngredientName: "Azúcar", Quantity: 0.04, Unit: "kg"},
		},
	}

	inventory := map[string]map[string]domain.InventoryItem{
		"BR-CENTRO": {
			"ING-CARNE":    {BranchID: "BR-CENTRO", IngredientID: "ING-CARNE", IngredientName: "Carne molida", Qty: 24, UnitCostCents: 16000, UpdatedAt: now},
			"ING-PAN":      {BranchID: "BR-CENTRO", IngredientID: "ING-PAN", IngredientName: "Pan brioche", Qty: 80, UnitCostCents: 900, UpdatedAt: now},
			"ING-QUESO":    {BranchID: "BR-CENTRO", IngredientID: "ING-QUESO", IngredientName: "Queso manchego", Qty: 6, UnitCostCents: 12000, UpdatedAt: now},
			"ING-TORTILLA": {BranchID: "BR-CENTRO", IngredientID: "ING-TORTILLA", IngredientName: "Tortilla de maíz", Qty: 300, UnitCostCents: 150, UpdatedAt: now},
			"ING-PASTOR":   {BranchID: "BR-CENTRO", IngredientID: "ING-PASTOR", IngredientName: "Cerdo adobado", Qty: 18, UnitCostCents: 14000, UpdatedAt: now},
			"ING-PINA":     {BranchID: "BR-CENTRO", IngredientID: "ING-PINA", IngredientName: "Piña", Qty: 10, UnitCostCents: 3000, UpdatedAt: now},
		},
		"BR-NORTE": {
			"ING-LECHUGA": {BranchID: "BR-NORTE", IngredientID: "ING-LECHUGA", IngredientName: "Lechuga romana", Qty: 14, UnitCostCents: 2500, UpdatedAt: now},
			"ING-POLLO":   {BranchID: "BR-NORTE", IngredientID: "ING-POLLO", IngredientName: "Pechuga de pollo", Qty: 20, UnitCostCents: 11000, UpdatedAt: now},
			"ING-QUESO":   {BranchID: "BR-NORTE", IngredientID: "ING-QUESO", IngredientName: "Queso manchego", Qty: 4, UnitCostCents: 12400, UpdatedAt: now},
		},
	}

	costSnapshots := []domain.CostSnapshot{
		{ID: "CS-1", RecipeID: "REC-BURGER", BranchID: "BR-CENTRO", AvgUnitCostCents: 4000, SnapshotDate: now.AddDate(0, 0, -1)},
		{ID: "CS-2", RecipeID: "REC-BURGER", BranchID: "BR-CENTRO", AvgUnitCostCents: 3800, SnapshotDate: now.AddDate(0, 0, -6)},
	}

	dailyVolumes := map[string]map[string]float64{
		"BR-CENTRO": {"REC-BURGER": 18, "REC-PASTOR": 25},
		"BR-NORTE":  {"REC-BURGER": 11, "REC-CESAR": 9},
	}

	expenses := []domain.ExpenseRecord{
		{ID: "EXP-1", BranchID: "BR-CENTRO", Category: "Marketing", AmountCents: 42000, IncurredAt: now.AddDate(0, -1, 0)},
		{ID: "EXP-2", BranchID: "BR-CENTRO", Category: "Marketing", AmountCents: 38000, IncurredAt: now.AddDate(0, -2, 0)},
		{ID: "EXP-3", BranchID: "BR-CENTRO", Category: "Marketing", AmountCents: 40000, IncurredAt: now.AddDate(0, -3, 0)},
		{ID: "EXP-4", BranchID: "BR-CENTRO", Category: "Servicios", AmountCents: 61000, IncurredAt: now.AddDate(0, -1, 0)},
		{ID: "EXP-5", BranchID: "BR-CENTRO", Category: "Servicios", AmountCents: 58500, IncurredAt: now.AddDate(0, -2, 0)},
	}

	events := map[string]domain.SystemEvent{}
	for _, ev := range seedEvents(now) {
		events[ev.ID] = ev
	}

	return &Store{
		events:            events,
		branches:          branches,
		recipes:           recipes,
		recipeIngredients: recipeIngredients,
		inventory:         inventory,
		costSnapshots:     costSnapshots,
		dailyVolumes:      dailyVolumes,
		expenses:          expenses,
		auditLogs:         make([]domain.AuditLog, 0, 64),
		users:             seedUsers(),
	}
}

func seedEvents(now time.Time) []domain.SystemEvent {
	impact := func(cents int64) *int64 { return &cents }
	meta := func(s string) json.RawMessage { return json.RawMessage(s) }

	return []domain.SystemEvent{
		{
			ID: "EVT-1001", EventType: "margin_drift", EventCategory: "financial", Severity: "warning",
			BranchID: "BR-CENTRO", SourceTable: "recipes", SourceRecordID: "REC-BURGER",
			ImpactCents:      impact(92000),
			ImpactProjection: "El margen de la hamburguesa cayó 9 puntos en los últimos 14 días.",
			Metadata:         meta(`{"recipe_name":"Hamburguesa Clásica","target_margin":0.45,"current_margin":0.31}`),
			CreatedAt:        now.Add(-2 * time.Hour),
		},
		{
			ID: "EVT-1002", EventType: "expense_anomaly", EventCategory: "financial", Severity: "critical",
			BranchID: "BR-CENTRO", SourceTable: "expenses", SourceRecordID: "EXP-9001",
			ImpactCents:      impact(61250),
			ImpactProjection: "El gasto de marketing de este mes supera 1.5x el promedio histórico.",
			Metadata:         meta(`{"expense_category":"Marketing","actual_amount":612.50}`),
			CreatedAt:        now.Add(-45 * time.Minute),
		},
		{
			ID: "EVT-1003", EventType: "efficiency_leak", EventCategory: "inventory", Severity: "warning",
			BranchID: "BR-NORTE", SourceTable: "inventory_items", SourceRecordID: "ING-QUESO",
			ImpactProjection: "El queso manchego lleva 21 días sin rotación significativa.",
			Metadata:         meta(`{"ingredient_name":"Queso manchego","frozen_capital":820.00,"current_qty":90}`),
			CreatedAt:        now.Add(-26 * time.Hour),
		},
		{
			ID: "EVT-1004", EventType: "idle_inventory_capital", EventCategory: "inventory", Severity: "info",
			BranchID: "BR-NORTE", SourceTable: "inventory_items", SourceRecordID: "ING-POLLO",
			ImpactProjection:  "Capital detenido en pechuga de pollo.",
			RecommendedAction: "Programar un platillo de temporada para rotar la pechuga de pollo.",
			Metadata:          meta(`{"ingredient_name":"Pechuga de pollo"}`),
			CreatedAt:         now.Add(-30 * time.Hour),
		},
		{
			ID: "EVT-1005", EventType: "low_stock", EventCategory: "inventory", Severity: "warning",
			BranchID: "BR-CENTRO", SourceTable: "inventory_items", SourceRecordID: "ING-CARNE",
			ImpactProjection: "Quedan menos de dos días de carne molida al ritmo de venta actual.",
			Metadata:         meta(`{"ingredient_name":"Carne molida","days_left":1.6}`),
			CreatedAt:        now.Add(-20 * time.Minute),
		},
		{
			ID: "EVT-1006", EventType: "profit_deviation", EventCategory: "financial", Severity: "warning",
			BranchID: "BR-CENTRO", SourceTable: "recipes", SourceRecordID: "REC-PASTOR",
			ImpactProjection: "La utilidad de los tacos al pastor está 12% por debajo de lo proyectado.",
			Metadata:         meta(`{"recipe_name":"Tacos al Pastor"}`),
			CreatedAt:        now.Add(-4 * time.Hour),
		},
	}
}

func (s *Store) ListOpenEvents(_ context.Context, branchID string, limit int) ([]domain.SystemEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.SystemEvent, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Resolved {
			continue
		}
		if branchID != "" && ev.BranchID != branchID {
			continue
		}
		events = append(events, ev)
	}

	slices.SortFunc(events, func(a, b domain.SystemEvent) int {
		if ra, rb := domain.SeverityRank(a.Severity), domain.SeverityRank(b.Severity); ra != rb {
			return rb - ra
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *Store) GetEventByID(_ context.Context, id string) (*domain.SystemEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := ev
	return &copied, nil
}

func (s *Store) MarkEventResolved(_ context.Context, id string, at time.Time) (*domain.SystemEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	ev.Resolved = true
	ev.ResolvedAt = &at
	s.events[id] = ev
	copied := ev
	return &copied, nil
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]domain.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		branches = append(branches, b)
	}
	slices.SortFunc(branches, func(a, b domain.Branch) int { return strings.Compare(a.Name, b.Name) })
	return branches, nil
}

func (s *Store) GetBranch(_ context.Context, id string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := branch
	return &copied, nil
}

func (s *Store) GetRecipeByID(_ context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipe, ok := s.recipes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := recipe
	return &copied, nil
}

// FindRecipeByName is case-insensitive and returns the first match in a
// deterministic (id-sorted) order; ties are an accepted ambiguity.
func (s *Store) FindRecipeByName(_ context.Context, name string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.recipes))
	for id := range s.recipes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		recipe := s.recipes[id]
		if strings.EqualFold(recipe.Name, strings.TrimSpace(name)) {
			copied := recipe
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) LatestCostSnapshot(_ context.Context, recipeID string, branchID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.CostSnapshot
	for i := range s.costSnapshots {
		snap := s.costSnapshots[i]
		if snap.RecipeID != recipeID {
			continue
		}
		if branchID != "" && snap.BranchID != branchID {
			continue
		}
		if best == nil || snap.SnapshotDate.After(best.SnapshotDate) {
			best = &s.costSnapshots[i]
		}
	}
	if best == nil {
		return 0, store.ErrNotFound
	}
	return best.AvgUnitCostCents, nil
}

func (s *Store) ListRecipeIngredients(_ context.Context, recipeID string) ([]domain.RecipeIngredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ingredients := s.recipeIngredients[recipeID]
	copied := make([]domain.RecipeIngredient, len(ingredients))
	copy(copied, ingredients)
	return copied, nil
}

func (s *Store) IngredientUnitCosts(_ context.Context, branchID string, ingredientIDs []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int64, len(ingredientIDs))
	for _, id := range ingredientIDs {
		if branchID != "" {
			if item, ok := s.inventory[branchID][id]; ok {
				result[id] = item.UnitCostCents
			}
			continue
		}
		// Global scope: average the unit cost across branches that stock
		// the ingredient.
		total, count := int64(0), int64(0)
		for _, branchInventory := range s.inventory {
			if item, ok := branchInventory[id]; ok {
				total += item.UnitCostCents
				count++
			}
		}
		if count > 0 {
			result[id] = total / count
		}
	}
	return result, nil
}

func (s *Store) DailySalesVolume(_ context.Context, recipeID string, branchID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if branchID != "" {
		return s.dailyVolumes[branchID][recipeID], nil
	}
	total := 0.0
	for _, volumes := range s.dailyVolumes {
		total += volumes[recipeID]
	}
	return total, nil
}

func (s *Store) MonthlyExpenseAverage(_ context.Context, category string, branchID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	monthly := map[string]int64{}
	for _, exp := range s.expenses {
		if !strings.EqualFold(exp.Category, category) {
			continue
		}
		if branchID != "" && exp.BranchID != branchID {
			continue
		}
		monthly[exp.IncurredAt.Format("2006-01")] += exp.AmountCents
	}
	if len(monthly) == 0 {
		return 0, store.ErrNotFound
	}

	total := int64(0)
	for _, amount := range monthly {
		total += amount
	}
	return total / int64(len(monthly)), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" || entry.Action == "" {
		return store.ErrInvalidInput
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int { return strings.Compare(a.Username, b.Username) })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}
