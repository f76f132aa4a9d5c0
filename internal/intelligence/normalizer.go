// Package intelligence classifies system events emitted by backend triggers
// into alerts and simulatable suggestions, and runs read-only financial
// simulations over point-in-time snapshots of recipes, inventory and orders.
package intelligence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"mesaviva/backend/internal/domain"
)

const (
	EventMarginDrift          = "margin_drift"
	EventProfitDeviation      = "profit_deviation"
	EventExpenseAnomaly       = "expense_anomaly"
	EventEfficiencyLeak       = "efficiency_leak"
	EventIdleInventory        = "idle_inventory"
	EventIdleInventoryCapital = "idle_inventory_capital"
)

// simulatableTypes is the closed set of event types that become suggestions.
var simulatableTypes = map[string]bool{
	EventMarginDrift:     true,
	EventProfitDeviation: true,
	EventExpenseAnomaly:  true,
	EventEfficiencyLeak:  true,
}

// noticeOnlyTypes use recommended_action as the primary message instead of
// the impact projection.
var noticeOnlyTypes = map[string]bool{
	EventIdleInventory:        true,
	EventIdleInventoryCapital: true,
}

var eventTitles = map[string]string{
	EventMarginDrift:          "Margen en caída",
	EventProfitDeviation:      "Desviación de utilidad",
	EventExpenseAnomaly:       "Gasto fuera de patrón",
	EventEfficiencyLeak:       "Fuga de eficiencia",
	EventIdleInventory:        "Inventario sin movimiento",
	EventIdleInventoryCapital: "Capital inmovilizado en inventario",
	"low_stock":               "Stock bajo",
	"stock_out":               "Ingrediente agotado",
	"price_below_cost":        "Precio por debajo del costo",
	"waste_spike":             "Merma elevada",
	"pending_purchase_order":  "Orden de compra pendiente",
}

var alertActionLabels = map[string]string{
	"low_stock":               "Revisar inventario",
	"stock_out":               "Generar compra",
	EventIdleInventory:        "Revisar rotación",
	EventIdleInventoryCapital: "Revisar rotación",
	"waste_spike":             "Revisar cocina",
	"pending_purchase_order":  "Revisar compras",
}

var suggestionHorizons = map[string]string{
	EventMarginDrift:     "inmediato",
	EventProfitDeviation: "30 días",
	EventExpenseAnomaly:  "30 días",
	EventEfficiencyLeak:  "90 días",
}

const defaultHorizon = "30 días"

type Kind int

const (
	KindAlert Kind = iota
	KindSuggestion
)

// Classified is the result of classifying one system event. Exactly one of
// Alert or Suggestion is set, according to Kind.
type Classified struct {
	Kind       Kind
	Alert      *domain.Alert
	Suggestion *domain.Suggestion
}

// Classify maps a raw system event into an alert or a suggestion. It is
// total: unknown event types, categories and malformed metadata all degrade
// to safe defaults, never to an error.
func Classify(ev domain.SystemEvent) Classified {
	meta, err := ParseMetadata(ev.Metadata)
	if err != nil {
		log.Printf("[intelligence] WARN: event %s has malformed metadata, continuing with empty metadata: %v", ev.ID, err)
	}

	severity := normalizeSeverity(ev.Severity)
	category := normalizeCategory(ev.EventCategory)
	title := titleFor(ev.EventType, meta)

	if simulatableTypes[ev.EventType] {
		sug := domain.Suggestion{
			ID:             ev.ID,
			Title:          title,
			Description:    ev.ImpactProjection,
			ActionLabel:    "Simular impacto",
			ImpactCents:    ev.ImpactCents,
			Category:       category,
			Horizon:        horizonFor(ev.EventType),
			Metadata:       meta,
			SourceRecordID: ev.SourceRecordID,
			SourceTable:    ev.SourceTable,
			EventType:      ev.EventType,
		}
		if ev.ImpactCents != nil {
			sug.ImpactFinancial = formatCents(*ev.ImpactCents) + "/mes"
		}
		return Classified{Kind: KindSuggestion, Suggestion: &sug}
	}

	message := ev.ImpactProjection
	if noticeOnlyTypes[ev.EventType] && strings.TrimSpace(ev.RecommendedAction) != "" {
		message = ev.RecommendedAction
	}

	alert := domain.Alert{
		ID:             ev.ID,
		Severity:       severity,
		Type:           category,
		Title:          title,
		Message:        message,
		ActionLabel:    actionLabelFor(ev.EventType),
		Timestamp:      ev.CreatedAt,
		Metadata:       meta,
		SourceRecordID: ev.SourceRecordID,
		SourceTable:    ev.SourceTable,
		EventType:      ev.EventType,
	}
	if ev.ImpactCents != nil {
		alert.Impact = formatCents(*ev.ImpactCents)
	}
	return Classified{Kind: KindAlert, Alert: &alert}
}

// BuildFeed classifies a batch of events into the feed consumed by the
// presentation layer. Alerts and suggestions are recomputed on every call.
func BuildFeed(events []domain.SystemEvent) domain.IntelligenceFeed {
	feed := domain.IntelligenceFeed{
		Alerts:      make([]domain.Alert, 0, len(events)),
		Suggestions: make([]domain.Suggestion, 0, len(events)),
		RawEvents:   events,
	}
	if feed.RawEvents == nil {
		feed.RawEvents = []domain.SystemEvent{}
	}
	for _, ev := range events {
		classified := Classify(ev)
		switch classified.Kind {
		case KindSuggestion:
			feed.Suggestions = append(feed.Suggestions, *classified.Suggestion)
		default:
			feed.Alerts = append(feed.Alerts, *classified.Alert)
		}
	}
	return feed
}

// ParseMetadata decodes event metadata that may arrive as a JSON object, a
// JSON-encoded string containing an object, or garbage. It always returns a
// usable (possibly empty) map; the error reports what was recovered from.
func ParseMetadata(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return map[string]any{}, fmt.Errorf("metadata is not valid JSON: %w", err)
	}

	switch v := decoded.(type) {
	case map[string]any:
		return v, nil
	case string:
		// Backend triggers sometimes double-encode the metadata column.
		var nested map[string]any
		if err := json.Unmarshal([]byte(v), &nested); err != nil {
			return map[string]any{}, fmt.Errorf("string metadata is not a JSON object: %w", err)
		}
		return nested, nil
	default:
		return map[string]any{}, fmt.Errorf("metadata decoded to %T, expected object", decoded)
	}
}

func normalizeSeverity(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case domain.SeverityCritical:
		return domain.SeverityCritical
	case domain.SeverityWarning:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

func normalizeCategory(category string) domain.EventCategory {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "inventory":
		return domain.CategoryInventory
	case "financial":
		return domain.CategoryFinancial
	default:
		return domain.CategoryAdmin
	}
}

func titleFor(eventType string, meta map[string]any) string {
	title, ok := eventTitles[eventType]
	if !ok {
		title = humanizeEventType(eventType)
	}
	if entity := affectedEntity(meta); entity != "" {
		title = title + ": " + entity
	}
	return title
}

// humanizeEventType is the deterministic fallback for event types the
// localization table has never seen.
func humanizeEventType(eventType string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(eventType)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "EVENTO"
	}
	return strings.ToUpper(cleaned)
}

func affectedEntity(meta map[string]any) string {
	if name := metaString(meta, "recipe_name"); name != "" {
		return name
	}
	return metaString(meta, "ingredient_name")
}

func actionLabelFor(eventType string) string {
	if label, ok := alertActionLabels[eventType]; ok {
		return label
	}
	return "Revisar"
}

func horizonFor(eventType string) string {
	if horizon, ok := suggestionHorizons[eventType]; ok {
		return horizon
	}
	return defaultHorizon
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func metaNumber(meta map[string]any, key string) (float64, bool) {
	if meta == nil {
		return 0, false
	}
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
