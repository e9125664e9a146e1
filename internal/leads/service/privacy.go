package service

import (
	"context"
	"time"

	"lead_protection_backend/internal/events"
	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/internal/leads/transport"
	"lead_protection_backend/platform/metrics"

	"github.com/google/uuid"
)

const defaultPseudonymizeAfterDays = 60

// RevokeConsent records a consent withdrawal. From then on the lead refuses
// meaningful contact activities.
func (s *Service) RevokeConsent(ctx context.Context, caller domain.Caller, id uuid.UUID, expectedVersion *int64) (transport.LeadResponse, error) {
	current, err := s.loadReadable(ctx, caller, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		return transport.LeadResponse{}, err
	}

	now := s.now()
	lead := current.Clone()
	if err := domain.RevokeConsent(&lead, caller, now); err != nil {
		return transport.LeadResponse{}, mapError(err)
	}

	updated, err := s.repo.Update(ctx, repository.Mutation{
		Lead:            lead,
		ExpectedVersion: current.Version,
		Activities: []domain.Activity{
			domain.NewSystemActivity(lead.ID, domain.ActivityConsentRevoked, "Consent revoked; contact blocked", caller.UserID, now, nil),
		},
	})
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}

	s.eventBus.Publish(ctx, events.LeadConsentRevoked{
		BaseEvent:   events.NewBaseEventAt(now),
		LeadID:      updated.ID,
		OwnerUserID: updated.OwnerUserID,
		RevokedBy:   caller.UserID,
	})
	return ToLeadResponse(updated), nil
}

// ContactAllowed reports whether the lead may be contacted.
func (s *Service) ContactAllowed(ctx context.Context, caller domain.Caller, id uuid.UUID) (transport.ContactAllowedResponse, error) {
	lead, err := s.loadReadable(ctx, caller, id)
	if err != nil {
		return transport.ContactAllowedResponse{}, err
	}
	return transport.ContactAllowedResponse{
		LeadID:           lead.ID,
		Allowed:          lead.ContactAllowed(),
		ConsentRevokedAt: lead.ConsentRevokedAt,
		Erased:           lead.IsErased(),
	}, nil
}

// ErasureLog returns the GDPR erasure records of a lead.
func (s *Service) ErasureLog(ctx context.Context, caller domain.Caller, id uuid.UUID) ([]transport.ErasureLogEntryResponse, error) {
	if !domain.CanErase(caller) {
		return nil, mapError(domain.ErrAccessDenied)
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	records, err := s.repo.ListErasures(ctx, id)
	if err != nil {
		s.log.DatabaseError("list_erasures", err)
		return nil, err
	}
	out := make([]transport.ErasureLogEntryResponse, 0, len(records))
	for _, r := range records {
		out = append(out, ToErasureLogEntry(r))
	}
	return out, nil
}

// PseudonymizeExpired pseudonymises the contact details of leads that have
// been EXPIRED for longer than the policy allows. A lead that fails or loses
// a version race is left for the next run.
func (s *Service) PseudonymizeExpired(ctx context.Context) (int, error) {
	afterDays := s.policy.PseudonymizeAfterDays
	if afterDays <= 0 {
		afterDays = defaultPseudonymizeAfterDays
	}
	now := s.now()
	after := time.Duration(afterDays) * 24 * time.Hour

	var (
		done, failed int
		runErr       error
	)
	cursor := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		batch, err := s.repo.ListPseudonymizationCandidates(ctx, now.Add(-after), cursor, s.sweepBatchSize)
		if err != nil {
			s.log.DatabaseError("list_pseudonymization_candidates", err)
			runErr = err
			break
		}
		if len(batch) == 0 {
			break
		}

		for _, lead := range batch {
			changed, err := s.pseudonymizeLead(ctx, lead, now, after)
			switch {
			case isConflict(err):
				s.log.Debug("pseudonymization skipped after version conflict", "leadId", lead.ID)
			case err != nil:
				failed++
				s.log.Warn("pseudonymization failed for lead", "leadId", lead.ID, "error", err)
			case changed:
				done++
			}
		}

		cursor = batch[len(batch)-1].ID
		if len(batch) < s.sweepBatchSize {
			break
		}
	}

	metrics.RecordPseudonymization(done, failed)
	s.log.Info("pseudonymization completed", "pseudonymized", done, "failed", failed)
	if done > 0 {
		s.eventBus.Publish(ctx, events.LeadsPseudonymized{BaseEvent: events.NewBaseEventAt(now), Count: done})
	}
	return done, runErr
}

func (s *Service) pseudonymizeLead(ctx context.Context, lead domain.Lead, now time.Time, after time.Duration) (bool, error) {
	if !domain.PseudonymizationDue(lead, now, after) {
		return false, nil
	}
	next := lead.Clone()
	if !domain.Pseudonymize(&next, now) {
		return false, nil
	}
	_, err := s.repo.Update(ctx, repository.Mutation{
		Lead:            next,
		ExpectedVersion: lead.Version,
		Activities: []domain.Activity{
			domain.NewSystemActivity(lead.ID, domain.ActivityLeadPseudonymized, "Contact details pseudonymized", uuid.Nil, now, nil),
		},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
