package domain

import (
	"encoding/json"
	"time"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// EventCategory is the normalized category a system event is filed under.
type EventCategory string

const (
	CategoryInventory EventCategory = "INVENTORY"
	CategoryFinancial EventCategory = "FINANCIAL"
	CategoryAdmin     EventCategory = "ADMIN"
)

// SystemEvent is a row emitted by backend triggers. The intelligence layer
// only ever reads these; the resolved flag is toggled through the service.
type SystemEvent struct {
	ID                string          `json:"id"`
	EventType         string          `json:"event_type"`
	EventCategory     string          `json:"event_category"`
	Severity          string          `json:"severity"`
	BranchID          string          `json:"branch_id"`
	SourceTable       string          `json:"source_table"`
	SourceRecordID    string          `json:"source_record_id"`
	ImpactCents       *int64          `json:"impact_cents,omitempty"`
	ImpactProjection  string          `json:"impact_projection"`
	RecommendedAction string          `json:"recommended_action,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	Resolved          bool            `json:"resolved"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Alert is the display-only projection of a non-simulatable event.
// Recomputed on every feed fetch, never persisted.
type Alert struct {
	ID             string         `json:"id"`
	Severity       string         `json:"severity"`
	Type           EventCategory  `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Impact         string         `json:"impact,omitempty"`
	ActionLabel    string         `json:"action_label"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata"`
	SourceRecordID string         `json:"source_record_id"`
	SourceTable    string         `json:"source_table"`
	EventType      string         `json:"event_type"`
}

// Suggestion is the actionable projection of a simulatable event. Every
// suggestion maps to exactly one simulation strategy.
type Suggestion struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	ActionLabel     string         `json:"action_label"`
	ImpactFinancial string         `json:"impact_financial,omitempty"`
	ImpactCents     *int64         `json:"impact_cents,omitempty"`
	Category        EventCategory  `json:"category"`
	Horizon         string         `json:"horizon"`
	Metadata        map[string]any `json:"metadata"`
	SourceRecordID  string         `json:"source_record_id"`
	SourceTable     string         `json:"source_table"`
	EventType       string         `json:"event_type"`
}

// TableRow is one comparative line of a rendered simulation.
type TableRow struct {
	Label     string `json:"label"`
	Actual    string `json:"actual"`
	Simulated string `json:"simulated"`
}

// SimulationResult is the rendered projection of one simulation run. It is
// never written to persistent storage; it lives for a single render cycle.
type SimulationResult struct {
	RunID                      string     `json:"run_id"`
	Dish                       string     `json:"dish"`
	Branch                     string     `json:"branch"`
	CurrentMargin              float64    `json:"current_margin"`
	ProjectedMargin            float64    `json:"projected_margin"`
	CurrentDailyUtilityCents   int64      `json:"current_daily_utility_cents"`
	ProjectedDailyUtilityCents int64      `json:"projected_daily_utility_cents"`
	MonthlyImpactCents         int64      `json:"monthly_impact_cents"`
	Ingredients                []string   `json:"ingredients"`
	TableRows                  []TableRow `json:"table_rows"`
	RecommendedActionText      string     `json:"recommended_action_text"`
	HasRealCost                bool       `json:"has_real_cost"`
	ReadOnly                   bool       `json:"read_only"`
	Disclosure                 string     `json:"disclosure"`
}

type IntelligenceFeed struct {
	Alerts      []Alert       `json:"alerts"`
	Suggestions []Suggestion  `json:"suggestions"`
	RawEvents   []SystemEvent `json:"raw_events"`
}

type SimulateRequest struct {
	EventID  string `json:"event_id"`
	BranchID string `json:"branch_id,omitempty"`
}

type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Recipe struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	BranchID   string `json:"branch_id"`
	PriceCents int64  `json:"price_cents"`
	Active     bool   `json:"active"`
}

type RecipeIngredient struct {
	RecipeID       string  `json:"recipe_id"`
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
}

type InventoryItem struct {
	BranchID       string    `json:"branch_id"`
	IngredientID   string    `json:"ingredient_id"`
	IngredientName string    `json:"ingredient_name"`
	Qty            float64   `json:"qty"`
	UnitCostCents  int64     `json:"unit_cost_cents"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CostSnapshot is a daily average cost-per-unit recorded for a recipe in a
// branch. The freshest snapshot is the authoritative cost source.
type CostSnapshot struct {
	ID               string    `json:"id"`
	RecipeID         string    `json:"recipe_id"`
	BranchID         string    `json:"branch_id"`
	AvgUnitCostCents int64     `json:"avg_unit_cost_cents"`
	SnapshotDate     time.Time `json:"snapshot_date"`
}

type ExpenseRecord struct {
	ID          string    `json:"id"`
	BranchID    string    `json:"branch_id"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	IncurredAt  time.Time `json:"incurred_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	BranchID      string    `json:"branch_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// SeverityRank orders severities for feed sorting (higher first).
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}
