package academia

import "strings"

// Role is the authorization tag stored in a user profile document.
type Role string

const (
	// RoleUnknown means no role could be established for the identity.
	RoleUnknown Role = ""
	// RoleApprentice is the default, least privileged role.
	RoleApprentice Role = "apprentice"
	// RoleAdmin grants access to the admin area.
	RoleAdmin Role = "admin"
)

// DefaultRole is assigned to every newly created profile.
const DefaultRole = RoleApprentice

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleApprentice, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsKnown is false for RoleUnknown and anything not predefined
func (r Role) IsKnown() bool {
	return r.IsValid()
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	roleHierarchy := map[Role]int{
		RoleApprentice: 1,
		RoleAdmin:      2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []Role {
	return []Role{
		RoleApprentice,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role. Anything that is not a
// predefined role maps to RoleUnknown.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(roleStr)))
	if !role.IsValid() {
		return RoleUnknown, false
	}
	return role, true
}
