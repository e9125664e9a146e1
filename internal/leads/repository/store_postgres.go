package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lead_protection_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the pgx-backed LeadStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const leadColumns = `
	l.id, l.version, l.status, l.owner_user_id,
	COALESCE((SELECT array_agg(c.user_id ORDER BY c.added_at, c.user_id) FROM lead_collaborators c WHERE c.lead_id = l.id), '{}'),
	l.registered_at, l.last_activity_at, l.reminder_sent_at, l.grace_period_start_at, l.expired_at,
	l.clock_stopped_at, l.stop_reason, l.stop_approved_by, l.paused_micros,
	l.protection_months, l.protection_days60, l.protection_days10, l.territory_id,
	l.company_name, l.contact_person, l.email, l.phone, l.street, l.postal_code, l.city, l.notes,
	l.erased_at, l.erased_by, l.created_at, l.updated_at, l.updated_by,
	l.contact_blocked, l.consent_revoked_at, l.consent_revoked_by, l.pseudonymized_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead         domain.Lead
		status       string
		stopReason   *string
		pausedMicros int64
	)
	err := row.Scan(
		&lead.ID, &lead.Version, &status, &lead.OwnerUserID,
		&lead.CollaboratorIDs,
		&lead.RegisteredAt, &lead.LastActivityAt, &lead.ReminderSentAt, &lead.GracePeriodStartAt, &lead.ExpiredAt,
		&lead.ClockStoppedAt, &stopReason, &lead.StopApprovedBy, &pausedMicros,
		&lead.Terms.Months, &lead.Terms.ReminderDays, &lead.Terms.GraceDays, &lead.TerritoryID,
		&lead.Contact.CompanyName, &lead.Contact.ContactPerson, &lead.Contact.Email, &lead.Contact.Phone,
		&lead.Contact.Street, &lead.Contact.PostalCode, &lead.Contact.City, &lead.Contact.Notes,
		&lead.ErasedAt, &lead.ErasedBy, &lead.CreatedAt, &lead.UpdatedAt, &lead.UpdatedBy,
		&lead.ContactBlocked, &lead.ConsentRevokedAt, &lead.ConsentRevokedBy, &lead.PseudonymizedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status, err = domain.ParseStatus(status)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("lead %s: %w", lead.ID, err)
	}
	if stopReason != nil {
		lead.StopReason = *stopReason
	}
	lead.PausedTotal = time.Duration(pausedMicros) * time.Microsecond
	return lead, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads l WHERE l.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (s *PostgresStore) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	params = params.Normalize()

	var status *string
	if params.Status != nil {
		v := string(*params.Status)
		status = &v
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+leadColumns+`, COUNT(*) OVER()
		FROM leads l
		WHERE ($1::boolean OR l.owner_user_id = $2
			OR EXISTS (SELECT 1 FROM lead_collaborators c WHERE c.lead_id = l.id AND c.user_id = $2))
		  AND ($3::text IS NULL OR l.status = $3)
		  AND ($3::text IS NOT NULL OR $4::boolean OR l.status <> 'DELETED')
		ORDER BY l.updated_at DESC, l.id
		LIMIT $5 OFFSET $6
	`, params.Scope.All, params.Scope.UserID, status, params.IncludeDeleted, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	total := 0
	for rows.Next() {
		lead, count, err := scanLeadWithCount(rows)
		if err != nil {
			return nil, 0, err
		}
		total = count
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	if len(items) == 0 && params.Offset > 0 {
		// Past the last page the window count is unavailable.
		if err := s.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM leads l
			WHERE ($1::boolean OR l.owner_user_id = $2
				OR EXISTS (SELECT 1 FROM lead_collaborators c WHERE c.lead_id = l.id AND c.user_id = $2))
			  AND ($3::text IS NULL OR l.status = $3)
			  AND ($3::text IS NOT NULL OR $4::boolean OR l.status <> 'DELETED')
		`, params.Scope.All, params.Scope.UserID, status, params.IncludeDeleted).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

// scanLeadWithCount reads a lead row followed by a trailing window count.
func scanLeadWithCount(rows pgx.Rows) (domain.Lead, int, error) {
	var count int
	values := countingRow{rows: rows, count: &count}
	lead, err := scanLead(values)
	return lead, count, err
}

type countingRow struct {
	rows  pgx.Rows
	count *int
}

func (r countingRow) Scan(dest ...any) error {
	return r.rows.Scan(append(dest, r.count)...)
}

func (s *PostgresStore) Create(ctx context.Context, lead domain.Lead, activities []domain.Activity) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO leads (
				id, version, status, owner_user_id,
				registered_at, last_activity_at, reminder_sent_at, grace_period_start_at, expired_at,
				clock_stopped_at, stop_reason, stop_approved_by, paused_micros,
				protection_months, protection_days60, protection_days10, territory_id,
				company_name, contact_person, email, phone, street, postal_code, city, notes,
				erased_at, erased_by, created_at, updated_at, updated_by,
				contact_blocked, consent_revoked_at, consent_revoked_by, pseudonymized_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
				$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34
			)
		`, leadArgs(lead)...)
		if err != nil {
			return err
		}
		if err := writeCollaborators(ctx, tx, lead); err != nil {
			return err
		}
		return insertActivities(ctx, tx, activities)
	})
}

func (s *PostgresStore) Update(ctx context.Context, m Mutation) (domain.Lead, error) {
	var updated domain.Lead
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		args := leadArgs(m.Lead)
		// $1 id, $2 expected version; the remaining columns keep their order.
		args[1] = m.ExpectedVersion
		tag, err := tx.Exec(ctx, `
			UPDATE leads SET
				version = version + 1,
				status = $3, owner_user_id = $4,
				registered_at = $5, last_activity_at = $6, reminder_sent_at = $7, grace_period_start_at = $8, expired_at = $9,
				clock_stopped_at = $10, stop_reason = $11, stop_approved_by = $12, paused_micros = $13,
				protection_months = $14, protection_days60 = $15, protection_days10 = $16, territory_id = $17,
				company_name = $18, contact_person = $19, email = $20, phone = $21,
				street = $22, postal_code = $23, city = $24, notes = $25,
				erased_at = $26, erased_by = $27, created_at = $28, updated_at = $29, updated_by = $30,
				contact_blocked = $31, consent_revoked_at = $32, consent_revoked_by = $33, pseudonymized_at = $34
			WHERE id = $1 AND version = $2
		`, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, m.Lead.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrVersionConflict
		}

		if _, err := tx.Exec(ctx, `DELETE FROM lead_collaborators WHERE lead_id = $1 AND NOT (user_id = ANY($2))`,
			m.Lead.ID, collaboratorIDs(m.Lead)); err != nil {
			return err
		}
		if err := writeCollaborators(ctx, tx, m.Lead); err != nil {
			return err
		}
		if err := insertActivities(ctx, tx, m.Activities); err != nil {
			return err
		}
		if m.Erasure != nil {
			if _, err := tx.Exec(ctx, `
				INSERT INTO gdpr_erasure_log (id, lead_id, identity_hash, previous_status, erased_at, erased_by, reason)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, m.Erasure.ID, m.Erasure.LeadID, m.Erasure.IdentityHash, string(m.Erasure.PreviousStatus),
				m.Erasure.ErasedAt, m.Erasure.ErasedBy, m.Erasure.Reason); err != nil {
				return err
			}
		}

		updated, err = scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads l WHERE l.id = $1`, m.Lead.ID))
		return err
	})
	if err != nil {
		return domain.Lead{}, err
	}
	return updated, nil
}

func leadArgs(lead domain.Lead) []any {
	var stopReason *string
	if lead.ClockStoppedAt != nil {
		reason := lead.StopReason
		stopReason = &reason
	}
	return []any{
		lead.ID, lead.Version, string(lead.Status), lead.OwnerUserID,
		lead.RegisteredAt, lead.LastActivityAt, lead.ReminderSentAt, lead.GracePeriodStartAt, lead.ExpiredAt,
		lead.ClockStoppedAt, stopReason, lead.StopApprovedBy, lead.PausedTotal.Microseconds(),
		lead.Terms.Months, lead.Terms.ReminderDays, lead.Terms.GraceDays, lead.TerritoryID,
		lead.Contact.CompanyName, lead.Contact.ContactPerson, lead.Contact.Email, lead.Contact.Phone,
		lead.Contact.Street, lead.Contact.PostalCode, lead.Contact.City, lead.Contact.Notes,
		lead.ErasedAt, lead.ErasedBy, lead.CreatedAt, lead.UpdatedAt, lead.UpdatedBy,
		lead.ContactBlocked, lead.ConsentRevokedAt, lead.ConsentRevokedBy, lead.PseudonymizedAt,
	}
}

func collaboratorIDs(lead domain.Lead) []uuid.UUID {
	if lead.CollaboratorIDs == nil {
		return []uuid.UUID{}
	}
	return lead.CollaboratorIDs
}

func writeCollaborators(ctx context.Context, tx pgx.Tx, lead domain.Lead) error {
	if len(lead.CollaboratorIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO lead_collaborators (lead_id, user_id, added_at)
		SELECT $1, u, $3 FROM unnest($2::uuid[]) AS u
		ON CONFLICT (lead_id, user_id) DO NOTHING
	`, lead.ID, lead.CollaboratorIDs, lead.UpdatedAt)
	return err
}

func insertActivities(ctx context.Context, tx pgx.Tx, activities []domain.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range activities {
		var metadata []byte
		if len(a.Metadata) > 0 {
			encoded, err := json.Marshal(a.Metadata)
			if err != nil {
				return fmt.Errorf("encode activity metadata: %w", err)
			}
			metadata = encoded
		}
		batch.Queue(`
			INSERT INTO lead_activities (id, lead_id, activity_type, description, actor_id, occurred_at, meaningful, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, a.ID, a.LeadID, string(a.Type), a.Description, a.ActorID, a.OccurredAt, a.Meaningful, metadata)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) AppendActivity(ctx context.Context, activity domain.Activity) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, activity.LeadID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return insertActivities(ctx, tx, []domain.Activity{activity})
	})
}

func (s *PostgresStore) ListActivities(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]domain.Activity, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lead_activities WHERE lead_id = $1`, leadID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, lead_id, activity_type, description, actor_id, occurred_at, meaningful, metadata
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY occurred_at DESC, id
		LIMIT $2 OFFSET $3
	`, leadID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			a        domain.Activity
			typ      string
			metadata []byte
		)
		if err := rows.Scan(&a.ID, &a.LeadID, &typ, &a.Description, &a.ActorID, &a.OccurredAt, &a.Meaningful, &metadata); err != nil {
			return nil, 0, err
		}
		a.Type = domain.ActivityType(typ)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, 0, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return items, total, nil
}

func (s *PostgresStore) ListSweepCandidates(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.status IN ('REGISTERED', 'ACTIVE', 'REMINDER', 'GRACE_PERIOD')
		  AND l.clock_stopped_at IS NULL
		  AND l.id > $1
		ORDER BY l.id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (s *PostgresStore) ListPseudonymizationCandidates(ctx context.Context, expiredBy time.Time, afterID uuid.UUID, limit int) ([]domain.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.status = 'EXPIRED'
		  AND l.expired_at <= $1
		  AND l.pseudonymized_at IS NULL
		  AND l.erased_at IS NULL
		  AND l.id > $2
		ORDER BY l.id
		LIMIT $3
	`, expiredBy, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Lead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (s *PostgresStore) ListErasures(ctx context.Context, leadID uuid.UUID) ([]domain.ErasureRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, lead_id, identity_hash, previous_status, erased_at, erased_by, reason
		FROM gdpr_erasure_log
		WHERE lead_id = $1
		ORDER BY erased_at, id
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ErasureRecord, 0)
	for rows.Next() {
		var (
			r      domain.ErasureRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.LeadID, &r.IdentityHash, &status, &r.ErasedAt, &r.ErasedBy, &r.Reason); err != nil {
			return nil, err
		}
		r.PreviousStatus = domain.Status(status)
		items = append(items, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (s *PostgresStore) GetSettings(ctx context.Context, userID uuid.UUID) (domain.Settings, error) {
	settings, err := scanSettings(s.pool.QueryRow(ctx, `
		SELECT user_id, protection_months, reminder_days, grace_days, capabilities, notification_email, updated_at, updated_by
		FROM user_lead_settings
		WHERE user_id = $1
	`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Settings{}, ErrSettingsMissing
	}
	return settings, err
}

func (s *PostgresStore) UpsertSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	caps := make([]string, 0, len(settings.Capabilities))
	for _, c := range settings.Capabilities {
		caps = append(caps, string(c))
	}
	return scanSettings(s.pool.QueryRow(ctx, `
		INSERT INTO user_lead_settings (user_id, protection_months, reminder_days, grace_days, capabilities, notification_email, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			protection_months = EXCLUDED.protection_months,
			reminder_days = EXCLUDED.reminder_days,
			grace_days = EXCLUDED.grace_days,
			capabilities = EXCLUDED.capabilities,
			notification_email = EXCLUDED.notification_email,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
		RETURNING user_id, protection_months, reminder_days, grace_days, capabilities, notification_email, updated_at, updated_by
	`, settings.UserID, settings.Terms.Months, settings.Terms.ReminderDays, settings.Terms.GraceDays,
		caps, settings.NotificationEmail, settings.UpdatedAt, settings.UpdatedBy))
}

func scanSettings(row pgx.Row) (domain.Settings, error) {
	var (
		settings domain.Settings
		caps     []string
	)
	if err := row.Scan(&settings.UserID, &settings.Terms.Months, &settings.Terms.ReminderDays, &settings.Terms.GraceDays,
		&caps, &settings.NotificationEmail, &settings.UpdatedAt, &settings.UpdatedBy); err != nil {
		return domain.Settings{}, err
	}
	settings.Capabilities = domain.ParseCapabilities(caps)
	return settings, nil
}

var _ LeadStore = (*PostgresStore)(nil)
