package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Role is a coarse authorization role carried in the access token.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleSales   Role = "SALES"
)

// ParseRoles maps free-text token roles onto the closed Role set.
// Unknown values are dropped.
func ParseRoles(values []string) []Role {
	roles := make([]Role, 0, len(values))
	for _, v := range values {
		switch Role(strings.ToUpper(strings.TrimSpace(v))) {
		case RoleAdmin:
			roles = append(roles, RoleAdmin)
		case RoleManager:
			roles = append(roles, RoleManager)
		case RoleSales:
			roles = append(roles, RoleSales)
		}
	}
	return roles
}

// Capability is a per-user feature grant stored in the user's lead settings.
type Capability string

const (
	CapabilityStopClock         Capability = "STOP_CLOCK"
	CapabilityTransferOwnership Capability = "TRANSFER_OWNERSHIP"
)

// ParseCapabilities maps stored strings onto the closed Capability set.
func ParseCapabilities(values []string) []Capability {
	caps := make([]Capability, 0, len(values))
	for _, v := range values {
		switch Capability(strings.ToUpper(strings.TrimSpace(v))) {
		case CapabilityStopClock:
			caps = append(caps, CapabilityStopClock)
		case CapabilityTransferOwnership:
			caps = append(caps, CapabilityTransferOwnership)
		}
	}
	return caps
}

// Caller is the authenticated identity an engine call runs on behalf of.
type Caller struct {
	UserID       uuid.UUID
	Roles        []Role
	Capabilities []Capability
}

// SystemCaller is used for sweep-initiated transitions.
var SystemCaller = Caller{}

// IsSystem reports whether the call was initiated by the engine itself.
func (c Caller) IsSystem() bool {
	return c.UserID == uuid.Nil
}

// HasRole reports whether the caller holds the given role.
func (c Caller) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (c Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// Can reports whether the caller holds a capability. Admins hold all of them.
func (c Caller) Can(capability Capability) bool {
	if c.IsAdmin() {
		return true
	}
	for _, cp := range c.Capabilities {
		if cp == capability {
			return true
		}
	}
	return false
}

// WithCapabilities returns a copy of the caller with the given capabilities.
func (c Caller) WithCapabilities(caps []Capability) Caller {
	c.Capabilities = append([]Capability(nil), caps...)
	return c
}
