package repository

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"lead_protection_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// MemoryStore is a LeadStore kept in process memory. It backs tests and the
// development server when no database is configured. It also counts open
// dependents so it can stand in for the opportunity adapter.
type MemoryStore struct {
	mu         sync.RWMutex
	leads      map[uuid.UUID]domain.Lead
	activities map[uuid.UUID][]domain.Activity
	settings   map[uuid.UUID]domain.Settings
	erasures   []domain.ErasureRecord
	dependents map[uuid.UUID]int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:      make(map[uuid.UUID]domain.Lead),
		activities: make(map[uuid.UUID][]domain.Activity),
		settings:   make(map[uuid.UUID]domain.Settings),
		dependents: make(map[uuid.UUID]int),
	}
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return lead.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	params = params.Normalize()

	s.mu.RLock()
	matched := make([]domain.Lead, 0)
	for _, lead := range s.leads {
		if !params.Scope.All && !lead.IsOwner(params.Scope.UserID) && !lead.IsCollaborator(params.Scope.UserID) {
			continue
		}
		if params.Status != nil && lead.Status != *params.Status {
			continue
		}
		if !params.IncludeDeleted && params.Status == nil && lead.Status == domain.StatusDeleted {
			continue
		}
		matched = append(matched, lead.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return bytes.Compare(matched[i].ID[:], matched[j].ID[:]) < 0
	})

	total := len(matched)
	if params.Offset >= total {
		return []domain.Lead{}, total, nil
	}
	end := min(params.Offset+params.Limit, total)
	return matched[params.Offset:end], total, nil
}

func (s *MemoryStore) Create(ctx context.Context, lead domain.Lead, activities []domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.leads[lead.ID]; exists {
		return ErrVersionConflict
	}
	s.leads[lead.ID] = lead.Clone()
	s.appendActivities(lead.ID, activities)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, m Mutation) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leads[m.Lead.ID]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	if current.Version != m.ExpectedVersion {
		return domain.Lead{}, ErrVersionConflict
	}

	next := m.Lead.Clone()
	next.Version = current.Version + 1
	s.leads[next.ID] = next
	s.appendActivities(next.ID, m.Activities)
	if m.Erasure != nil {
		s.erasures = append(s.erasures, *m.Erasure)
	}
	return next.Clone(), nil
}

func (s *MemoryStore) appendActivities(leadID uuid.UUID, activities []domain.Activity) {
	for _, a := range activities {
		a.Metadata = maps.Clone(a.Metadata)
		s.activities[leadID] = append(s.activities[leadID], a)
	}
}

func (s *MemoryStore) AppendActivity(ctx context.Context, activity domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[activity.LeadID]; !ok {
		return ErrNotFound
	}
	s.appendActivities(activity.LeadID, []domain.Activity{activity})
	return nil
}

func (s *MemoryStore) ListActivities(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]domain.Activity, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	all := slices.Clone(s.activities[leadID])
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].OccurredAt.After(all[j].OccurredAt) })

	total := len(all)
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Activity{}, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}

func (s *MemoryStore) ListSweepCandidates(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	candidates := make([]domain.Lead, 0)
	for id, lead := range s.leads {
		if !lead.Status.IsDecaying() || lead.IsClockStopped() {
			continue
		}
		if bytes.Compare(id[:], afterID[:]) <= 0 {
			continue
		}
		candidates = append(candidates, lead.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return bytes.Compare(candidates[i].ID[:], candidates[j].ID[:]) < 0
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (s *MemoryStore) GetSettings(ctx context.Context, userID uuid.UUID) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[userID]
	if !ok {
		return domain.Settings{}, ErrSettingsMissing
	}
	settings.Capabilities = slices.Clone(settings.Capabilities)
	return settings, nil
}

func (s *MemoryStore) UpsertSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.Capabilities = slices.Clone(settings.Capabilities)
	s.settings[settings.UserID] = settings
	return settings, nil
}

// SetOpenDependents records how many open opportunities reference a lead.
func (s *MemoryStore) SetOpenDependents(leadID uuid.UUID, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dependents[leadID] = count
}

// CountOpenDependents returns the count recorded by SetOpenDependents.
func (s *MemoryStore) CountOpenDependents(ctx context.Context, leadID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dependents[leadID], nil
}

func (s *MemoryStore) ListPseudonymizationCandidates(ctx context.Context, expiredBy time.Time, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	candidates := make([]domain.Lead, 0)
	for id, lead := range s.leads {
		if lead.Status != domain.StatusExpired || lead.ExpiredAt == nil || lead.ExpiredAt.After(expiredBy) {
			continue
		}
		if lead.PseudonymizedAt != nil || lead.IsErased() {
			continue
		}
		if bytes.Compare(id[:], afterID[:]) <= 0 {
			continue
		}
		candidates = append(candidates, lead.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return bytes.Compare(candidates[i].ID[:], candidates[j].ID[:]) < 0
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (s *MemoryStore) ListErasures(ctx context.Context, leadID uuid.UUID) ([]domain.ErasureRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ErasureRecord, 0)
	for _, r := range s.erasures {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}

var _ LeadStore = (*MemoryStore)(nil)
