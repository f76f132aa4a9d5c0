package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"mesaviva/backend/internal/cache"
	"mesaviva/backend/internal/domain"
	"mesaviva/backend/internal/intelligence"
	"mesaviva/backend/internal/store"
	"mesaviva/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const defaultFeedLimit = 200

type Service struct {
	repo      store.Repository
	engine    *intelligence.Engine
	feedCache cache.EventFeedCache
	feedTTL   time.Duration
}

func New(repo store.Repository, engine *intelligence.Engine, feedCache cache.EventFeedCache, feedTTL time.Duration) *Service {
	if feedCache == nil {
		feedCache = cache.NoopEventFeedCache{}
	}
	if feedTTL <= 0 {
		feedTTL = 30 * time.Second
	}

	return &Service{
		repo:      repo,
		engine:    engine,
		feedCache: feedCache,
		feedTTL:   feedTTL,
	}
}

// Feed returns the classified intelligence feed for a branch. Raw event rows
// may come from the cache; classification always runs on the fetched rows so
// a resolved or restocked event never lingers as a stale card.
func (s *Service) Feed(ctx context.Context, branchID string) (domain.IntelligenceFeed, error) {
	branchID = strings.TrimSpace(branchID)
	events, err := s.openEvents(ctx, branchID)
	if err != nil {
		return domain.IntelligenceFeed{}, err
	}
	return intelligence.BuildFeed(events), nil
}

// ListEvents returns the raw open event rows without classification.
func (s *Service) ListEvents(ctx context.Context, branchID string, limit int) ([]domain.SystemEvent, error) {
	if limit < 1 || limit > defaultFeedLimit {
		limit = defaultFeedLimit
	}
	return s.repo.ListOpenEvents(ctx, strings.TrimSpace(branchID), limit)
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

// Simulate runs the projection for one simulatable event. The event must
// classify as a suggestion; alerts and notice-only events are rejected.
func (s *Service) Simulate(ctx context.Context, req domain.SimulateRequest) (*domain.SimulationResult, error) {
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return nil, fmt.Errorf("%w: event_id is required", store.ErrInvalidInput)
	}

	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Resolved {
		return nil, fmt.Errorf("%w: event %s is already resolved", store.ErrInvalidInput, eventID)
	}

	classified := intelligence.Classify(*event)
	if classified.Kind != intelligence.KindSuggestion {
		return nil, fmt.Errorf("%w: event %s is not simulatable", store.ErrInvalidInput, eventID)
	}

	branchID := strings.TrimSpace(req.BranchID)
	if branchID == "" {
		branchID = event.BranchID
	}

	result, err := s.engine.Simulate(ctx, *classified.Suggestion, branchID)
	if err != nil {
		return nil, err
	}

	actor, _ := ActorFromContext(ctx)
	log.Printf("[service] simulation run=%s event=%s branch=%s actor=%s", result.RunID, eventID, branchID, actor.Username)
	return result, nil
}

// ResolveEvent marks an event handled. Resolution is the only write the
// intelligence surface performs, and it is audit logged.
func (s *Service) ResolveEvent(ctx context.Context, eventID string) (*domain.SystemEvent, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Role != "admin" && actor.Role != "manager") {
		return nil, fmt.Errorf("admin or manager role required")
	}

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", store.ErrInvalidInput)
	}

	resolved, err := s.repo.MarkEventResolved(ctx, eventID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, resolved.BranchID, "event_resolve", "system_event", resolved.ID, resolved.EventType)
	s.invalidateFeedCache(ctx, resolved.BranchID)
	return resolved, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	return s.repo.ListAuditLogs(ctx, strings.TrimSpace(branchID), from, to, limit)
}

func (s *Service) openEvents(ctx context.Context, branchID string) ([]domain.SystemEvent, error) {
	key := feedCacheKey(branchID)

	cached, hit, err := s.feedCache.Get(ctx, key)
	if err != nil {
		log.Printf("[service] WARN: event cache read failed key=%s: %v", key, err)
	} else if hit {
		return cached, nil
	}

	events, err := s.repo.ListOpenEvents(ctx, branchID, defaultFeedLimit)
	if err != nil {
		return nil, err
	}

	if err := s.feedCache.Set(ctx, key, events, s.feedTTL); err != nil {
		log.Printf("[service] WARN: event cache write failed key=%s: %v", key, err)
	}
	return events, nil
}

func (s *Service) invalidateFeedCache(ctx context.Context, branchID string) {
	for _, key := range []string{feedCacheKey(branchID), feedCacheKey("")} {
		if err := s.feedCache.Invalidate(ctx, key); err != nil {
			log.Printf("[service] WARN: event cache invalidate failed key=%s: %v", key, err)
		}
	}
}

func feedCacheKey(branchID string) string {
	if branchID == "" {
		return "events:open:all"
	}
	return "events:open:" + branchID
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      branchID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s entity=%s: %v", action, entityID, err)
	}
}
