// Package service orchestrates the lead protection lifecycle: it resolves the
// caller, loads the lead, runs the domain rules and persists the result with a
// version check before publishing events.
package service

import (
	"context"
	"errors"
	"time"

	"lead_protection_backend/internal/events"
	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/internal/leads/transport"
	"lead_protection_backend/platform/apperr"
	"lead_protection_backend/platform/config"
	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/metrics"
	"lead_protection_backend/platform/phone"
	"lead_protection_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Repository is what the service needs from persistence.
type Repository interface {
	repository.LeadStore
}

// DependentCounter reports open commercial opportunities tied to a lead.
type DependentCounter interface {
	CountOpenDependents(ctx context.Context, leadID uuid.UUID) (int, error)
}

// Service implements the lead protection use cases.
type Service struct {
	repo       Repository
	dependents DependentCounter
	eventBus   events.Bus
	policy     config.ProtectionPolicy
	clock      domain.Clock
	classifier domain.Classifier
	log        *logger.Logger
	now        func() time.Time

	sweepBatchSize   int
	sweepConcurrency int
}

// Option customises a Service.
type Option func(*Service)

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSweep sets the sweep page size and per-page concurrency.
func WithSweep(batchSize, concurrency int) Option {
	return func(s *Service) {
		if batchSize > 0 {
			s.sweepBatchSize = batchSize
		}
		if concurrency > 0 {
			s.sweepConcurrency = concurrency
		}
	}
}

// New creates the lead protection service.
func New(repo Repository, dependents DependentCounter, eventBus events.Bus, policy config.ProtectionPolicy, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:             repo,
		dependents:       dependents,
		eventBus:         eventBus,
		policy:           policy,
		clock:            domain.NewClock(policy.MonthDays),
		classifier:       domain.NewClassifier(policy.MeaningfulActivities, policy.MeaningfulDescription),
		log:              log,
		now:              func() time.Time { return time.Now().UTC() },
		sweepBatchSize:   100,
		sweepConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a REGISTERED lead owned by the caller. Protection terms
// are copied from the owner's settings so later changes never apply
// retroactively.
func (s *Service) Register(ctx context.Context, caller domain.Caller, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	normalizedPhone, err := phone.Normalize(req.Phone, phone.DefaultRegion)
	if err != nil {
		return transport.LeadResponse{}, apperr.Validation("invalid phone number").WithCode("VALIDATION_ERROR").
			WithDetails(map[string]string{"phone": "e164"})
	}

	settings, _, err := s.settingsFor(ctx, caller.UserID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	now := s.now()
	contact := domain.Contact{
		CompanyName:   sanitize.TextMax(req.CompanyName, 200),
		ContactPerson: sanitize.TextMax(req.ContactPerson, 200),
		Email:         sanitize.Text(req.Email),
		Phone:         normalizedPhone,
		Street:        sanitize.Text(req.Street),
		PostalCode:    sanitize.Text(req.PostalCode),
		City:          sanitize.Text(req.City),
		Notes:         sanitize.TextMax(req.Notes, 5000),
	}
	if contact.CompanyName == "" {
		return transport.LeadResponse{}, apperr.Validation("company name is required").WithCode("VALIDATION_ERROR")
	}

	lead := domain.NewLead(caller.UserID, settings.Terms, contact, req.TerritoryID, now)
	for _, id := range req.CollaboratorIDs {
		lead.AddCollaborator(id)
	}

	registered := domain.NewSystemActivity(lead.ID, domain.ActivityLeadAssigned, "Lead registered", caller.UserID, now,
		map[string]any{"ownerUserId": caller.UserID.String()})
	if err := s.repo.Create(ctx, lead, []domain.Activity{registered}); err != nil {
		return transport.LeadResponse{}, mapError(err)
	}

	s.eventBus.Publish(ctx, events.LeadRegistered{
		BaseEvent:   events.NewBaseEventAt(now),
		LeadID:      lead.ID,
		OwnerUserID: lead.OwnerUserID,
		CompanyName: lead.Contact.CompanyName,
	})
	return ToLeadResponse(lead), nil
}

// Get returns a lead the caller can read.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.loadReadable(ctx, caller, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// List returns the leads the caller owns or collaborates on; admins see all.
func (s *Service) List(ctx context.Context, caller domain.Caller, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	params := repository.ListParams{
		Scope:          domain.ScopeFor(caller),
		IncludeDeleted: req.IncludeDeleted,
		Limit:          req.PageSize,
		Offset:         (req.Page - 1) * req.PageSize,
	}
	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation(err.Error()).WithCode("VALIDATION_ERROR")
		}
		params.Status = &status
	}

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	// The store already scopes the query; this keeps a misbehaving store
	// from leaking rows.
	leads = domain.FilterAccessible(leads, caller)

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, ToLeadResponse(lead))
	}
	return transport.LeadListResponse{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages(total, req.PageSize),
	}, nil
}

// Protection reports where the lead stands on its protection clock.
func (s *Service) Protection(ctx context.Context, caller domain.Caller, id uuid.UUID) (transport.ProtectionResponse, error) {
	lead, err := s.loadReadable(ctx, caller, id)
	if err != nil {
		return transport.ProtectionResponse{}, err
	}
	return ToProtectionResponse(lead, s.clock.Project(lead, s.now())), nil
}

// Patch applies a partial update: clock resume, status change, clock stop,
// contact fields and collaborators, in that order, as one versioned write.
func (s *Service) Patch(ctx context.Context, caller domain.Caller, id uuid.UUID, expectedVersion *int64, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	current, err := s.loadReadable(ctx, caller, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		return transport.LeadResponse{}, err
	}
	if !domain.CanMutate(current, caller) {
		return transport.LeadResponse{}, mapError(domain.ErrAccessDenied)
	}

	caller, err = s.withCapabilities(ctx, caller)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	now := s.now()
	lead := current.Clone()
	var (
		activities []domain.Activity
		published  []events.Event
		entered    []domain.Status
	)

	if req.StopClock != nil && !*req.StopClock && lead.IsClockStopped() {
		interval, err := domain.ResumeClock(&lead, caller, now)
		if err != nil {
			return transport.LeadResponse{}, mapError(err)
		}
		activities = append(activities, domain.NewSystemActivity(lead.ID, domain.ActivityClockResumed,
			"Protection clock resumed", caller.UserID, now, pauseMetadata(interval)))
		published = append(published, events.LeadClockResumed{
			BaseEvent:     events.NewBaseEventAt(now),
			LeadID:        lead.ID,
			PausedSeconds: int64(interval.Paused / time.Second),
		})
	} else if req.StopClock != nil && !*req.StopClock {
		return transport.LeadResponse{}, mapError(domain.ErrClockNotStopped)
	}

	if req.Status != nil {
		target, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation(err.Error()).WithCode("VALIDATION_ERROR")
		}
		if target != lead.Status {
			from := lead.Status
			if target == domain.StatusDeleted {
				count, err := s.countDependents(ctx, lead.ID)
				if err != nil {
					return transport.LeadResponse{}, err
				}
				err = domain.SoftDelete(&lead, caller, count, now)
				if err != nil {
					return transport.LeadResponse{}, mapError(err)
				}
			} else if err := domain.ApplyTransition(&lead, domain.Transition{
				To: target, Trigger: domain.TriggerManual, Caller: caller, At: now,
			}); err != nil {
				return transport.LeadResponse{}, mapError(err)
			}
			activities = append(activities, statusChangeActivity(lead.ID, from, target, domain.TriggerManual, caller.UserID, now))
			entered = append(entered, target)
		}
	}

	if req.StopClock != nil && *req.StopClock {
		reason := ""
		if req.StopReason != nil {
			reason = sanitize.TextMax(*req.StopReason, 500)
		}
		if err := domain.StopClock(&lead, caller, reason, now); err != nil {
			return transport.LeadResponse{}, mapError(err)
		}
		activities = append(activities, domain.NewSystemActivity(lead.ID, domain.ActivityClockStopped,
			"Protection clock stopped: "+lead.StopReason, caller.UserID, now,
			map[string]any{"stoppedAt": now.Format(time.RFC3339Nano), "reason": lead.StopReason}))
		published = append(published, events.LeadClockStopped{
			BaseEvent:  events.NewBaseEventAt(now),
			LeadID:     lead.ID,
			Reason:     lead.StopReason,
			ApprovedBy: caller.UserID,
		})
	}

	if req.HasContactChanges() {
		if lead.Status == domain.StatusDeleted {
			return transport.LeadResponse{}, mapError(domain.ErrLeadDeleted)
		}
		if err := applyContactPatch(&lead.Contact, req); err != nil {
			return transport.LeadResponse{}, err
		}
		lead.UpdatedAt = now
		lead.UpdatedBy = &caller.UserID
	}

	if len(req.AddCollaborators) > 0 || len(req.RemoveCollaborators) > 0 {
		if err := domain.ChangeCollaborators(&lead, caller, req.AddCollaborators, req.RemoveCollaborators, now); err != nil {
			return transport.LeadResponse{}, mapError(err)
		}
	}

	if len(activities) == 0 && !req.HasContactChanges() && len(req.AddCollaborators) == 0 && len(req.RemoveCollaborators) == 0 {
		return ToLeadResponse(current), nil
	}

	updated, err := s.repo.Update(ctx, repository.Mutation{
		Lead:            lead,
		ExpectedVersion: current.Version,
		Activities:      activities,
	})
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}

	s.publishTransitions(ctx, updated, current.Status, entered, domain.TriggerManual, &caller.UserID, now)
	for _, evt := range published {
		s.eventBus.Publish(ctx, evt)
	}
	return ToLeadResponse(updated), nil
}

// Delete soft-deletes a lead once the deletion guard approves.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id uuid.UUID, expectedVersion *int64) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanDelete(current, caller) {
		return mapError(domain.ErrAccessDenied)
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		return err
	}

	count, err := s.countDependents(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	lead := current.Clone()
	if err := domain.SoftDelete(&lead, caller, count, now); err != nil {
		return mapError(err)
	}

	updated, err := s.repo.Update(ctx, repository.Mutation{
		Lead:            lead,
		ExpectedVersion: current.Version,
		Activities: []domain.Activity{
			statusChangeActivity(lead.ID, current.Status, domain.StatusDeleted, domain.TriggerDeletion, caller.UserID, now),
		},
	})
	if err != nil {
		return mapError(err)
	}
	s.publishTransitions(ctx, updated, current.Status, []domain.Status{domain.StatusDeleted}, domain.TriggerDeletion, &caller.UserID, now)
	return nil
}

// EraseGDPR anonymises the lead's personal data and writes the erasure log
// row, with its reason, in the same transaction.
func (s *Service) EraseGDPR(ctx context.Context, caller domain.Caller, id uuid.UUID, req transport.ErasureRequest) (transport.ErasureResponse, error) {
	if !domain.CanErase(caller) {
		return transport.ErasureResponse{}, mapError(domain.ErrAccessDenied)
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return transport.ErasureResponse{}, err
	}
	if current.IsErased() {
		return transport.ErasureResponse{}, mapError(domain.ErrAlreadyErased)
	}

	count, err := s.countDependents(ctx, id)
	if err != nil {
		return transport.ErasureResponse{}, err
	}

	now := s.now()
	lead := current.Clone()
	record, err := domain.Erase(&lead, caller, count, sanitize.TextMax(req.Reason, 500), now)
	if err != nil {
		return transport.ErasureResponse{}, mapError(err)
	}

	activities := []domain.Activity{
		domain.NewSystemActivity(lead.ID, domain.ActivityLeadErased, "Personal data erased", caller.UserID, now,
			map[string]any{"identityHash": record.IdentityHash, "previousStatus": string(record.PreviousStatus), "reason": record.Reason}),
	}
	var entered []domain.Status
	if lead.Status != current.Status {
		activities = append(activities, statusChangeActivity(lead.ID, current.Status, lead.Status, domain.TriggerDeletion, caller.UserID, now))
		entered = append(entered, lead.Status)
	}

	updated, err := s.repo.Update(ctx, repository.Mutation{
		Lead:            lead,
		ExpectedVersion: current.Version,
		Activities:      activities,
		Erasure:         &record,
	})
	if err != nil {
		return transport.ErasureResponse{}, mapError(err)
	}

	s.publishTransitions(ctx, updated, current.Status, entered, domain.TriggerDeletion, &caller.UserID, now)
	s.eventBus.Publish(ctx, events.LeadErased{
		BaseEvent:    events.NewBaseEventAt(now),
		LeadID:       updated.ID,
		IdentityHash: record.IdentityHash,
		ErasedBy:     caller.UserID,
	})
	return transport.ErasureResponse{
		LeadID:       updated.ID,
		Status:       string(updated.Status),
		IdentityHash: record.IdentityHash,
		ErasedAt:     record.ErasedAt,
	}, nil
}

// TransferOwnership hands the lead to another user. It is the only path that
// changes the owner.
func (s *Service) TransferOwnership(ctx context.Context, caller domain.Caller, id uuid.UUID, expectedVersion *int64, req transport.TransferOwnershipRequest) (transport.LeadResponse, error) {
	caller, err := s.withCapabilities(ctx, caller)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if !domain.CanTransferOwnership(caller) {
		return transport.LeadResponse{}, mapError(domain.ErrAccessDenied)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		return transport.LeadResponse{}, err
	}

	now := s.now()
	lead := current.Clone()
	previous, err := domain.TransferOwnership(&lead, caller, req.NewOwnerID, now)
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}

	updated, err := s.repo.Update(ctx, repository.Mutation{
		Lead:            lead,
		ExpectedVersion: current.Version,
		Activities: []domain.Activity{
			domain.NewSystemActivity(lead.ID, domain.ActivityOwnershipTransferred, "Lead ownership transferred", caller.UserID, now,
				map[string]any{"previousOwner": previous.String(), "newOwner": req.NewOwnerID.String()}),
		},
	})
	if err != nil {
		return transport.LeadResponse{}, mapError(err)
	}

	s.eventBus.Publish(ctx, events.LeadOwnershipTransferred{
		BaseEvent:     events.NewBaseEventAt(now),
		LeadID:        updated.ID,
		PreviousOwner: previous,
		NewOwner:      updated.OwnerUserID,
		TransferredBy: caller.UserID,
	})
	return ToLeadResponse(updated), nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, mapError(err)
	}
	return lead, nil
}

func (s *Service) loadReadable(ctx context.Context, caller domain.Caller, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.load(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	if !domain.CanAccess(lead, caller) {
		return domain.Lead{}, mapError(domain.ErrAccessDenied)
	}
	return lead, nil
}

func (s *Service) countDependents(ctx context.Context, leadID uuid.UUID) (int, error) {
	if s.dependents == nil {
		return 0, nil
	}
	count, err := s.dependents.CountOpenDependents(ctx, leadID)
	if err != nil {
		s.log.DatabaseError("count_open_dependents", err)
		return 0, err
	}
	return count, nil
}

// withCapabilities loads the caller's capability grants from their settings.
func (s *Service) withCapabilities(ctx context.Context, caller domain.Caller) (domain.Caller, error) {
	settings, _, err := s.settingsFor(ctx, caller.UserID)
	if err != nil {
		return caller, err
	}
	return caller.WithCapabilities(settings.Capabilities), nil
}

// publishTransitions emits a status change event for every status a write
// entered. Only the last protection phase entered produces an owner notice,
// so a lead that decayed through several phases in one write is not sent
// stale reminders.
func (s *Service) publishTransitions(ctx context.Context, lead domain.Lead, from domain.Status, entered []domain.Status, trigger domain.Trigger, actor *uuid.UUID, now time.Time) {
	prev := from
	for _, to := range entered {
		metrics.RecordTransition(string(prev), string(to), string(trigger))
		s.log.WithContext(ctx).LeadTransition(lead.ID.String(), string(prev), string(to), string(trigger))
		s.eventBus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent:   events.NewBaseEventAt(now),
			LeadID:      lead.ID,
			OwnerUserID: lead.OwnerUserID,
			From:        string(prev),
			To:          string(to),
			Trigger:     string(trigger),
			ActorID:     actor,
		})
		prev = to
	}

	notice := events.ProtectionNotice{
		LeadID:      lead.ID,
		OwnerUserID: lead.OwnerUserID,
		CompanyName: lead.Contact.CompanyName,
		ExpiresAt:   s.expiresAt(lead, now),
	}
	switch domain.LastProtectionPhase(entered) {
	case domain.StatusReminder:
		s.eventBus.Publish(ctx, events.LeadReminderDue{BaseEvent: events.NewBaseEventAt(now), ProtectionNotice: notice})
	case domain.StatusGracePeriod:
		s.eventBus.Publish(ctx, events.LeadGracePeriodStarted{BaseEvent: events.NewBaseEventAt(now), ProtectionNotice: notice})
	case domain.StatusExpired:
		s.eventBus.Publish(ctx, events.LeadProtectionExpired{BaseEvent: events.NewBaseEventAt(now), ProtectionNotice: notice})
	}
}

func (s *Service) expiresAt(lead domain.Lead, now time.Time) *time.Time {
	if lead.Status == domain.StatusExpired {
		return lead.ExpiredAt
	}
	return s.clock.Project(lead, now).ExpiresAt
}

func checkVersion(lead domain.Lead, expected *int64) error {
	if expected != nil && *expected != lead.Version {
		return mapError(repository.ErrVersionConflict)
	}
	return nil
}

func statusChangeActivity(leadID uuid.UUID, from, to domain.Status, trigger domain.Trigger, actor uuid.UUID, now time.Time) domain.Activity {
	return domain.NewSystemActivity(leadID, domain.ActivityStatusChange, string(from)+" -> "+string(to), actor, now,
		map[string]any{"from": string(from), "to": string(to), "trigger": string(trigger)})
}

// pauseMetadata is the pause log entry stored with a CLOCK_RESUMED activity.
func pauseMetadata(interval domain.PauseInterval) map[string]any {
	meta := map[string]any{
		"stoppedAt":     interval.StoppedAt.Format(time.RFC3339Nano),
		"resumedAt":     interval.ResumedAt.Format(time.RFC3339Nano),
		"pausedSeconds": int64(interval.Paused / time.Second),
		"reason":        interval.Reason,
	}
	if interval.StoppedBy != nil {
		meta["stoppedBy"] = interval.StoppedBy.String()
	}
	return meta
}

func applyContactPatch(contact *domain.Contact, req transport.UpdateLeadRequest) error {
	if req.CompanyName != nil {
		name := sanitize.TextMax(*req.CompanyName, 200)
		if name == "" {
			return apperr.Validation("company name is required").WithCode("VALIDATION_ERROR")
		}
		contact.CompanyName = name
	}
	if req.ContactPerson != nil {
		contact.ContactPerson = sanitize.TextMax(*req.ContactPerson, 200)
	}
	if req.Email != nil {
		contact.Email = sanitize.Text(*req.Email)
	}
	if req.Phone != nil {
		normalized, err := phone.Normalize(*req.Phone, phone.DefaultRegion)
		if err != nil {
			return apperr.Validation("invalid phone number").WithCode("VALIDATION_ERROR").
				WithDetails(map[string]string{"phone": "e164"})
		}
		contact.Phone = normalized
	}
	if req.Street != nil {
		contact.Street = sanitize.Text(*req.Street)
	}
	if req.PostalCode != nil {
		contact.PostalCode = sanitize.Text(*req.PostalCode)
	}
	if req.City != nil {
		contact.City = sanitize.Text(*req.City)
	}
	if req.Notes != nil {
		contact.Notes = sanitize.TextMax(*req.Notes, 5000)
	}
	return nil
}

func totalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// isConflict reports an optimistic-concurrency miss from the store.
func isConflict(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict)
}
