package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidOwner = errors.New("new owner must be a different, valid user")

// TransferOwnership reassigns the lead. It is the only path that changes
// OwnerUserID; the new owner is dropped from the collaborator set.
func TransferOwnership(lead *Lead, caller Caller, newOwner uuid.UUID, now time.Time) (uuid.UUID, error) {
	if !CanTransferOwnership(caller) {
		return uuid.Nil, ErrAccessDenied
	}
	if lead.Status == StatusDeleted {
		return uuid.Nil, ErrLeadDeleted
	}
	if newOwner == uuid.Nil || newOwner == lead.OwnerUserID {
		return uuid.Nil, ErrInvalidOwner
	}
	previous := lead.OwnerUserID
	lead.RemoveCollaborator(newOwner)
	lead.OwnerUserID = newOwner
	lead.touch(&caller.UserID, now)
	return previous, nil
}

// ChangeCollaborators applies additions then removals. Only the owner or an
// admin may change the set.
func ChangeCollaborators(lead *Lead, caller Caller, add, remove []uuid.UUID, now time.Time) error {
	if !CanMutate(*lead, caller) {
		return ErrAccessDenied
	}
	if lead.Status == StatusDeleted {
		return ErrLeadDeleted
	}
	for _, id := range add {
		lead.AddCollaborator(id)
	}
	for _, id := range remove {
		lead.RemoveCollaborator(id)
	}
	lead.touch(&caller.UserID, now)
	return nil
}
