package repository

import (
	"context"
	"errors"
	"time"

	"lead_protection_backend/internal/leads/domain"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrVersionConflict = errors.New("lead version conflict")
	ErrSettingsMissing = errors.New("lead settings not found")
)

// =====================================
// Segregated Interfaces
// =====================================

// LeadReader provides read-only access to leads.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, int, error)
}

// LeadWriter persists leads. Update is a compare-and-swap on Version.
type LeadWriter interface {
	Create(ctx context.Context, lead domain.Lead, activities []domain.Activity) error
	Update(ctx context.Context, m Mutation) (domain.Lead, error)
}

// ActivityReader lists a lead's activity log, newest first.
type ActivityReader interface {
	ListActivities(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]domain.Activity, int, error)
}

// ActivityWriter appends log entries that leave the lead itself unchanged,
// so they do not bump its version.
type ActivityWriter interface {
	AppendActivity(ctx context.Context, activity domain.Activity) error
}

// SweepSource pages through leads the protection sweep may advance.
type SweepSource interface {
	ListSweepCandidates(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Lead, error)
}

// PrivacySource pages through EXPIRED leads whose contact details are due for
// pseudonymisation: expired at or before expiredBy, not yet pseudonymised and
// not erased.
type PrivacySource interface {
	ListPseudonymizationCandidates(ctx context.Context, expiredBy time.Time, afterID uuid.UUID, limit int) ([]domain.Lead, error)
}

// ErasureLog reads back the GDPR erasure records of a lead, oldest first.
type ErasureLog interface {
	ListErasures(ctx context.Context, leadID uuid.UUID) ([]domain.ErasureRecord, error)
}

// SettingsStore reads and writes per-user lead settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID uuid.UUID) (domain.Settings, error)
	UpsertSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error)
}

// LeadStore is the full persistence contract of the leads module.
type LeadStore interface {
	LeadReader
	LeadWriter
	ActivityReader
	ActivityWriter
	SweepSource
	PrivacySource
	ErasureLog
	SettingsStore
}

// Mutation is one versioned write: the new lead state, the version it was
// derived from and the audit rows written in the same transaction.
type Mutation struct {
	Lead            domain.Lead
	ExpectedVersion int64
	Activities      []domain.Activity
	Erasure         *domain.ErasureRecord
}

// ListParams filters a lead listing.
type ListParams struct {
	Scope          domain.ListScope
	Status         *domain.Status
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Normalize clamps paging to sane bounds.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
