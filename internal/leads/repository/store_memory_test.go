package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lead_protection_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	terms = domain.Terms{Months: 6, ReminderDays: 60, GraceDays: 10}
)

func seed(t *testing.T, store *MemoryStore, owner uuid.UUID) domain.Lead {
	t.Helper()
	lead := domain.NewLead(owner, terms, domain.Contact{CompanyName: "Acme"}, nil, now)
	require.NoError(t, store.Create(context.Background(), lead, nil))
	return lead
}

func TestMemoryStoreUpdateIsCompareAndSwap(t *testing.T) {
	store := NewMemoryStore()
	lead := seed(t, store, uuid.New())
	ctx := context.Background()

	first := lead.Clone()
	first.Contact.City = "Utrecht"
	updated, err := store.Update(ctx, Mutation{Lead: first, ExpectedVersion: lead.Version})
	require.NoError(t, err)
	assert.Equal(t, lead.Version+1, updated.Version)

	second := lead.Clone()
	second.Contact.City = "Delft"
	_, err = store.Update(ctx, Mutation{Lead: second, ExpectedVersion: lead.Version})
	require.ErrorIs(t, err, ErrVersionConflict)

	stored, err := store.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Utrecht", stored.Contact.City)

	_, err = store.Update(ctx, Mutation{Lead: domain.Lead{ID: uuid.New()}, ExpectedVersion: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentWritersOnSameVersion(t *testing.T) {
	store := NewMemoryStore()
	lead := seed(t, store, uuid.New())

	const writers = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := lead.Clone()
			next.Contact.Notes = string(rune('a' + i))
			_, err := store.Update(context.Background(), Mutation{Lead: next, ExpectedVersion: lead.Version})
			switch err {
			case nil:
				succeeded.Add(1)
			case ErrVersionConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	collaborator := uuid.New()
	lead := domain.NewLead(uuid.New(), terms, domain.Contact{CompanyName: "Acme"}, nil, now)
	lead.AddCollaborator(collaborator)
	require.NoError(t, store.Create(context.Background(), lead, nil))

	got, err := store.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	got.CollaboratorIDs[0] = uuid.Nil

	again, err := store.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{collaborator}, again.CollaboratorIDs)
}

func TestMemoryStoreListScopes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	owner, collaborator := uuid.New(), uuid.New()

	shared := domain.NewLead(owner, terms, domain.Contact{CompanyName: "Shared"}, nil, now)
	shared.AddCollaborator(collaborator)
	require.NoError(t, store.Create(ctx, shared, nil))
	seed(t, store, owner)
	seed(t, store, uuid.New())

	deleted := seed(t, store, owner)
	deleted.Status = domain.StatusDeleted
	_, err := store.Update(ctx, Mutation{Lead: deleted, ExpectedVersion: deleted.Version})
	require.NoError(t, err)

	tests := []struct {
		name   string
		params ListParams
		want   int
	}{
		{"owner", ListParams{Scope: domain.ListScope{UserID: owner}}, 2},
		{"owner with deleted", ListParams{Scope: domain.ListScope{UserID: owner}, IncludeDeleted: true}, 3},
		{"collaborator", ListParams{Scope: domain.ListScope{UserID: collaborator}}, 1},
		{"admin", ListParams{Scope: domain.ListScope{All: true}}, 3},
		{"status filter", ListParams{Scope: domain.ListScope{All: true}, Status: statusPtr(domain.StatusDeleted)}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, total, err := store.List(ctx, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, total)
			assert.Len(t, items, tc.want)
		})
	}
}

func TestMemoryStoreSweepCandidatesPageByID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for range 5 {
		seed(t, store, uuid.New())
	}
	stopped := seed(t, store, uuid.New())
	stopped.ClockStoppedAt = &now
	stopped.StopReason = "paused"
	_, err := store.Update(ctx, Mutation{Lead: stopped, ExpectedVersion: stopped.Version})
	require.NoError(t, err)

	seen := map[uuid.UUID]bool{}
	after := uuid.Nil
	for {
		page, err := store.ListSweepCandidates(ctx, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, l := range page {
			require.False(t, seen[l.ID], "lead returned twice")
			seen[l.ID] = true
		}
		after = page[len(page)-1].ID
	}
	assert.Len(t, seen, 5)
	assert.False(t, seen[stopped.ID])
}

func TestMemoryStoreActivitiesNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	lead := seed(t, store, uuid.New())

	for i := range 3 {
		a := domain.NewSystemActivity(lead.ID, domain.ActivityNote, "entry", uuid.Nil, now.Add(time.Duration(i)*time.Hour), nil)
		require.NoError(t, store.AppendActivity(ctx, a))
	}
	require.ErrorIs(t, store.AppendActivity(ctx, domain.Activity{LeadID: uuid.New()}), ErrNotFound)

	items, total, err := store.ListActivities(ctx, lead.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.True(t, items[0].OccurredAt.After(items[1].OccurredAt))
}

func TestMemoryStoreSettings(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	user := uuid.New()

	_, err := store.GetSettings(ctx, user)
	require.ErrorIs(t, err, ErrSettingsMissing)

	_, err = store.UpsertSettings(ctx, domain.Settings{UserID: user, Terms: terms, Capabilities: []domain.Capability{domain.CapabilityStopClock}})
	require.NoError(t, err)

	got, err := store.GetSettings(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, terms, got.Terms)
	assert.Equal(t, []domain.Capability{domain.CapabilityStopClock}, got.Capabilities)
}

func TestListParamsNormalize(t *testing.T) {
	assert.Equal(t, 50, ListParams{}.Normalize().Limit)
	assert.Equal(t, 200, ListParams{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 0, ListParams{Offset: -3}.Normalize().Offset)
}

func statusPtr(s domain.Status) *domain.Status { return &s }

func TestMemoryStorePseudonymizationCandidates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiredAt := now.Add(180 * 24 * time.Hour)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		lead := seed(t, store, uuid.New())
		next := lead.Clone()
		next.Status = domain.StatusExpired
		next.ExpiredAt = &expiredAt
		_, err := store.Update(ctx, Mutation{Lead: next, ExpectedVersion: lead.Version})
		require.NoError(t, err)
		ids = append(ids, lead.ID)
	}
	seed(t, store, uuid.New())

	early, err := store.ListPseudonymizationCandidates(ctx, expiredAt.Add(-time.Second), uuid.Nil, 10)
	require.NoError(t, err)
	assert.Empty(t, early)

	first, err := store.ListPseudonymizationCandidates(ctx, expiredAt, uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	rest, err := store.ListPseudonymizationCandidates(ctx, expiredAt, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	paged := []uuid.UUID{first[0].ID, first[1].ID, rest[0].ID}
	assert.ElementsMatch(t, ids, paged)
}

func TestMemoryStoreListErasures(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	lead := seed(t, store, uuid.New())
	other := seed(t, store, uuid.New())
	admin := domain.Caller{UserID: uuid.New(), Roles: []domain.Role{domain.RoleAdmin}}

	next := lead.Clone()
	record, err := domain.Erase(&next, admin, 0, "data subject request received by mail", now)
	require.NoError(t, err)
	_, err = store.Update(ctx, Mutation{Lead: next, ExpectedVersion: lead.Version, Erasure: &record})
	require.NoError(t, err)

	log, err := store.ListErasures(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, record.Reason, log[0].Reason)

	none, err := store.ListErasures(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
