package adapters

import (
	"context"
	"fmt"

	leadsvc "lead_protection_backend/internal/leads/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OpportunityDependents counts open sales opportunities that still point at a
// lead. The opportunities table belongs to the sales pipeline; the lead engine
// only reads it.
type OpportunityDependents struct {
	pool *pgxpool.Pool
}

// NewOpportunityDependents creates a new opportunity dependents adapter.
func NewOpportunityDependents(pool *pgxpool.Pool) *OpportunityDependents {
	return &OpportunityDependents{pool: pool}
}

// CountOpenDependents returns how many OPEN opportunities reference leadID.
func (a *OpportunityDependents) CountOpenDependents(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := a.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM opportunities WHERE lead_id = $1 AND status = 'OPEN'`,
		leadID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open opportunities: %w", err)
	}
	return count, nil
}

// Compile-time check.
var _ leadsvc.DependentCounter = (*OpportunityDependents)(nil)
