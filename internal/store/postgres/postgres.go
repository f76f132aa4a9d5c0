package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mesaviva/backend/internal/domain"
	"mesaviva/backend/internal/store"
	"mesaviva/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListOpenEvents(ctx context.Context, branchID string, limit int) ([]domain.SystemEvent, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, event_category, severity, branch_id, source_table, source_record_id,
		       impact_cents, impact_projection, recommended_action, metadata, resolved, resolved_at, created_at
		FROM system_events
		WHERE resolved = false AND ($1 = '' OR branch_id = $1)
		ORDER BY CASE severity WHEN 'critical' THEN 2 WHEN 'warning' THEN 1 ELSE 0 END DESC, created_at DESC
		LIMIT $2
	`, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.SystemEvent, 0, limit)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.SystemEvent, error) {
	var ev domain.SystemEvent
	var impact sql.NullInt64
	var recommended, recordID sql.NullString
	var metadata []byte
	var resolvedAt sql.NullTime

	err := row.Scan(&ev.ID, &ev.EventType, &ev.EventCategory, &ev.Severity, &ev.BranchID, &ev.SourceTable,
		&recordID, &impact, &ev.ImpactProjection, &recommended, &metadata, &ev.Resolved, &resolvedAt, &ev.CreatedAt)
	if err != nil {
		return domain.SystemEvent{}, err
	}

	if impact.Valid {
		v := impact.Int64
		ev.ImpactCents = &v
	}
	if recommended.Valid {
		ev.RecommendedAction = recommended.String
	}
	if recordID.Valid {
		ev.SourceRecordID = recordID.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		ev.ResolvedAt = &t
	}
	ev.Metadata = metadata
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

func (s *Store) GetEventByID(ctx context.Context, id string) (*domain.SystemEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_type, event_category, severity, branch_id, source_table, source_record_id,
		       impact_cents, impact_projection, recommended_action, metadata, resolved, resolved_at, created_at
		FROM system_events
		WHERE id = $1
	`, id)

	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (s *Store) MarkEventResolved(ctx context.Context, id string, at time.Time) (*domain.SystemEvent, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE system_events
		SET resolved = true, resolved_at = $2
		WHERE id = $1 AND resolved = false
	`, id, at)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetEventByID(ctx, id)
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM branches
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 16)
	for rows.Next() {
		var b domain.Branch
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

func (s *Store) GetBranch(ctx context.Context, id string) (*domain.Branch, error) {
	var b domain.Branch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM branches
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetRecipeByID(ctx context.Context, id string) (*domain.Recipe, error) {
	var r domain.Recipe
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, branch_id, price_cents, active
		FROM recipes
		WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &r.BranchID, &r.PriceCents, &r.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// FindRecipeByName takes the first case-insensitive match in id order.
func (s *Store) FindRecipeByName(ctx context.Context, name string) (*domain.Recipe, error) {
	var r domain.Recipe
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, branch_id, price_cents, active
		FROM recipes
		WHERE lower(name) = lower(btrim($1))
		ORDER BY id
		LIMIT 1
	`, name).Scan(&r.ID, &r.Name, &r.BranchID, &r.PriceCents, &r.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) LatestCostSnapshot(ctx context.Context, recipeID string, branchID string) (int64, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx, `
		SELECT avg_unit_cost_cents
		FROM recipe_cost_snapshots
		WHERE recipe_id = $1 AND ($2 = '' OR branch_id = $2)
		ORDER BY snapshot_date DESC
		LIMIT 1
	`, recipeID, branchID).Scan(&cents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return cents, nil
}

func (s *Store) ListRecipeIngredients(ctx context.Context, recipeID string) ([]domain.RecipeIngredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ri.recipe_id, ri.ingredient_id, i.name, ri.quantity, ri.unit
		FROM recipe_ingredients ri
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = $1
		ORDER BY i.name
	`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingredients := make([]domain.RecipeIngredient, 0, 16)
	for rows.Next() {
		var ing domain.RecipeIngredient
		if err := rows.Scan(&ing.RecipeID, &ing.IngredientID, &ing.IngredientName, &ing.Quantity, &ing.Unit); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ingredients, nil
}

// IngredientUnitCosts returns branch unit costs; with an empty branch scope
// it averages across the branches that stock each ingredient.
func (s *Store) IngredientUnitCosts(ctx context.Context, branchID string, ingredientIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(ingredientIDs))
	if len(ingredientIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_id, AVG(unit_cost_cents)::bigint
		FROM inventory_items
		WHERE ingredient_id = ANY($1) AND ($2 = '' OR branch_id = $2)
		GROUP BY ingredient_id
	`, ingredientIDs, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			return nil, err
		}
		result[id] = cents
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DailySalesVolume averages completed-order quantities for the recipe over
// the last 30 days.
func (s *Store) DailySalesVolume(ctx context.Context, recipeID string, branchID string) (float64, error) {
	var volume sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(oi.qty), 0) / 30.0
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.recipe_id = $1
		  AND o.status = 'completed'
		  AND o.closed_at >= now() - interval '30 days'
		  AND ($2 = '' OR o.branch_id = $2)
	`, recipeID, branchID).Scan(&volume)
	if err != nil {
		return 0, err
	}
	if !volume.Valid {
		return 0, nil
	}
	return volume.Float64, nil
}

// MonthlyExpenseAverage averages the monthly totals for a category over the
// last six months; ErrNotFound when there is no history at all.
func (s *Store) MonthlyExpenseAverage(ctx context.Context, category string, branchID string) (int64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(monthly_total)
		FROM (
			SELECT date_trunc('month', incurred_at) AS month, SUM(amount_cents) AS monthly_total
			FROM expenses
			WHERE lower(category) = lower($1)
			  AND incurred_at >= now() - interval '6 months'
			  AND ($2 = '' OR branch_id = $2)
			GROUP BY date_trunc('month', incurred_at)
		) monthly
	`, category, branchID).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, store.ErrNotFound
	}
	return int64(avg.Float64), nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR branch_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, branchID, nullableTime(from), nullableTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
