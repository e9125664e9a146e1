package service

import (
	"context"

	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/internal/leads/transport"
	"lead_protection_backend/platform/apperr"
	"lead_protection_backend/platform/sanitize"

	"github.com/google/uuid"
)

// AddActivity logs a contact event. A meaningful activity re-anchors the
// protection clock and may reactivate the lead; anything else is appended
// without touching the lead's version. A version conflict with the sweep is
// retried once against a fresh read.
func (s *Service) AddActivity(ctx context.Context, caller domain.Caller, id uuid.UUID, req transport.CreateActivityRequest) (transport.RecordActivityResponse, error) {
	typ, err := domain.ParseActivityType(req.Type)
	if err != nil {
		return transport.RecordActivityResponse{}, apperr.Wrap(apperr.KindValidation, err.Error(), err).WithCode("VALIDATION_ERROR")
	}
	description := sanitize.TextMax(req.Description, 5000)

	for attempt := 0; ; attempt++ {
		current, err := s.loadReadable(ctx, caller, id)
		if err != nil {
			return transport.RecordActivityResponse{}, err
		}

		now := s.now()
		lead := current.Clone()
		outcome, err := domain.RecordActivity(&lead, caller, typ, description, s.classifier, now)
		if err != nil {
			return transport.RecordActivityResponse{}, mapError(err)
		}

		if !outcome.ClockReset {
			if err := s.repo.AppendActivity(ctx, outcome.Activity); err != nil {
				return transport.RecordActivityResponse{}, mapError(err)
			}
			return transport.RecordActivityResponse{
				Activity: ToActivityResponse(outcome.Activity),
				Lead:     ToLeadResponse(current),
			}, nil
		}

		activities := []domain.Activity{outcome.Activity}
		var entered []domain.Status
		if outcome.Transition {
			activities = append(activities, statusChangeActivity(lead.ID, outcome.From, lead.Status, domain.TriggerActivity, caller.UserID, now))
			entered = append(entered, lead.Status)
		}

		updated, err := s.repo.Update(ctx, repository.Mutation{
			Lead:            lead,
			ExpectedVersion: current.Version,
			Activities:      activities,
		})
		if isConflict(err) && attempt == 0 {
			continue
		}
		if err != nil {
			return transport.RecordActivityResponse{}, mapError(err)
		}

		s.publishTransitions(ctx, updated, outcome.From, entered, domain.TriggerActivity, &caller.UserID, now)
		return transport.RecordActivityResponse{
			Activity:   ToActivityResponse(outcome.Activity),
			Lead:       ToLeadResponse(updated),
			ClockReset: true,
		}, nil
	}
}

// ListActivities returns the lead's activity log, newest first.
func (s *Service) ListActivities(ctx context.Context, caller domain.Caller, id uuid.UUID, req transport.ListActivitiesRequest) (transport.ActivityListResponse, error) {
	if _, err := s.loadReadable(ctx, caller, id); err != nil {
		return transport.ActivityListResponse{}, err
	}

	items, total, err := s.repo.ListActivities(ctx, id, req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return transport.ActivityListResponse{}, err
	}

	resp := make([]transport.ActivityResponse, 0, len(items))
	for _, a := range items {
		resp = append(resp, ToActivityResponse(a))
	}
	return transport.ActivityListResponse{
		Items:      resp,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages(total, req.PageSize),
	}, nil
}
