package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"mesaviva/backend/internal/store"
)

func TestEventResolveLifecycle(t *testing.T) {
	databaseURL := os.Getenv("MESAVIVA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set MESAVIVA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	eventID := fmt.Sprintf("EVT-IT-%d", stamp)
	branchID := fmt.Sprintf("BR-IT-%d", stamp)
	metadata, _ := json.Marshal(map[string]any{"recipe_name": "Platillo IT"})

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM system_events WHERE id = $1`, eventID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, branchID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, name) VALUES ($1, 'Sucursal IT')
	`, branchID); err != nil {
		t.Fatalf("insert branch: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO system_events (id, event_type, event_category, severity, branch_id, source_table,
			source_record_id, impact_cents, impact_projection, metadata, resolved, created_at)
		VALUES ($1, 'margin_drift', 'financial', 'warning', $2, 'recipes', NULL, 92000,
			'Margen en caída', $3, false, now())
	`, eventID, branchID, metadata); err != nil {
		t.Fatalf("insert event: %v", err)
	}

	events, err := s.ListOpenEvents(ctx, branchID, 10)
	if err != nil {
		t.Fatalf("list open events: %v", err)
	}
	if len(events) != 1 || events[0].ID != eventID {
		t.Fatalf("expected the seeded event, got %+v", events)
	}

	resolved, err := s.MarkEventResolved(ctx, eventID, time.Now().UTC())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedAt == nil {
		t.Fatalf("event not resolved: %+v", resolved)
	}

	if _, err := s.MarkEventResolved(ctx, eventID, time.Now().UTC()); err != store.ErrNotFound {
		t.Fatalf("resolving twice must report not found, got %v", err)
	}

	events, err = s.ListOpenEvents(ctx, branchID, 10)
	if err != nil {
		t.Fatalf("list open events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("resolved event still listed as open: %+v", events)
	}
}
