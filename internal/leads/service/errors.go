package service

import (
	"errors"

	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/platform/apperr"
)

// mapError translates domain and repository errors into apperr errors with a
// stable machine code. Unknown errors pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	var transitionErr *domain.TransitionError
	if errors.As(err, &transitionErr) {
		return apperr.Wrap(apperr.KindBadRequest, transitionErr.Error(), err).
			WithCode("INVALID_TRANSITION").
			WithDetails(map[string]string{"from": string(transitionErr.From), "to": string(transitionErr.To)})
	}

	var blockedErr *domain.DeletionBlockedError
	if errors.As(err, &blockedErr) {
		return apperr.Wrap(apperr.KindConflict, blockedErr.Error(), err).
			WithCode("DELETION_BLOCKED").
			WithDetails(map[string]any{"resource": blockedErr.Resource, "count": blockedErr.Count})
	}

	switch {
	case errors.Is(err, domain.ErrAccessDenied):
		return apperr.Wrap(apperr.KindForbidden, "access denied", err).WithCode("ACCESS_DENIED")
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, domain.ErrVersionConflict):
		return apperr.Wrap(apperr.KindConflict, "lead was modified by another request; reload and retry", err).WithCode("VERSION_CONFLICT")
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, domain.ErrLeadNotFound):
		return apperr.Wrap(apperr.KindNotFound, "lead not found", err).WithCode("NOT_FOUND")
	case errors.Is(err, domain.ErrClockAlreadyStopped):
		return apperr.Wrap(apperr.KindBadRequest, err.Error(), err).WithCode("CLOCK_ALREADY_STOPPED")
	case errors.Is(err, domain.ErrClockNotStopped):
		return apperr.Wrap(apperr.KindBadRequest, err.Error(), err).WithCode("CLOCK_NOT_STOPPED")
	case errors.Is(err, domain.ErrStopReasonRequired):
		return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithCode("STOP_REASON_REQUIRED")
	case errors.Is(err, domain.ErrLeadDeleted):
		return apperr.Wrap(apperr.KindGone, err.Error(), err).WithCode("LEAD_DELETED")
	case errors.Is(err, domain.ErrAlreadyErased):
		return apperr.Wrap(apperr.KindConflict, err.Error(), err).WithCode("ALREADY_ERASED")
	case errors.Is(err, domain.ErrInvalidOwner):
		return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithCode("INVALID_OWNER")
	case errors.Is(err, domain.ErrInvalidTerms):
		return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithCode("INVALID_TERMS")
	case errors.Is(err, domain.ErrErasureReasonRequired):
		return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithCode("VALIDATION_ERROR")
	case errors.Is(err, domain.ErrConsentAlreadyRevoked):
		return apperr.Wrap(apperr.KindBadRequest, err.Error(), err).WithCode("CONSENT_ALREADY_REVOKED")
	case errors.Is(err, domain.ErrContactBlocked):
		return apperr.Wrap(apperr.KindConflict, err.Error(), err).WithCode("CONTACT_BLOCKED")
	case errors.Is(err, domain.ErrSystemActivityType):
		return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithCode("VALIDATION_ERROR")
	}
	return err
}
