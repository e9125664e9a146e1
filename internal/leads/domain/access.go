package domain

import "github.com/google/uuid"

// CanAccess reports read access: admins, the owner and collaborators.
func CanAccess(lead Lead, caller Caller) bool {
	if caller.IsAdmin() {
		return true
	}
	return lead.IsOwner(caller.UserID) || lead.IsCollaborator(caller.UserID)
}

// CanMutate reports write access to lead fields and status. Collaborators are
// read and activity-log only.
func CanMutate(lead Lead, caller Caller) bool {
	return caller.IsAdmin() || lead.IsOwner(caller.UserID)
}

// CanDelete reports whether the caller may request a soft delete.
func CanDelete(lead Lead, caller Caller) bool {
	return CanMutate(lead, caller) || caller.HasRole(RoleManager)
}

// CanErase reports whether the caller may run a GDPR erasure.
func CanErase(caller Caller) bool {
	return caller.IsAdmin() || caller.HasRole(RoleManager)
}

// CanTransferOwnership reports whether the caller may reassign lead owners.
func CanTransferOwnership(caller Caller) bool {
	return caller.HasRole(RoleManager) || caller.Can(CapabilityTransferOwnership)
}

// ListScope describes which leads a listing may return.
type ListScope struct {
	All    bool
	UserID uuid.UUID
}

// ScopeFor restricts non-admin callers to leads they own or collaborate on.
func ScopeFor(caller Caller) ListScope {
	if caller.IsAdmin() {
		return ListScope{All: true}
	}
	return ListScope{UserID: caller.UserID}
}

// FilterAccessible drops leads the caller cannot read.
func FilterAccessible(leads []Lead, caller Caller) []Lead {
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if CanAccess(l, caller) {
			out = append(out, l)
		}
	}
	return out
}
