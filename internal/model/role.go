package model

// Role values stored in users.role and carried in the JWT "role" claim.
// Every role-gated code path consumes these constants; the literal set is
// declared exactly once.
const (
	RoleAdmin        = "ADMIN"
	RoleManager      = "MANAGER"
	RoleCaretaker    = "CARETAKER"
	RoleVeterinarian = "VETERINARIAN"
	RoleEventManager = "EVENTMANAGER"
	RoleUser         = "USER"
)

// AllRoles returns every role the system recognises.
func AllRoles() []string {
	return []string{
		RoleAdmin,
		RoleManager,
		RoleCaretaker,
		RoleVeterinarian,
		RoleEventManager,
		RoleUser,
	}
}

// GateRoles returns the roles allowed to verify tickets at the gate.
// Husbandry roles (caretaker, veterinarian) have no gate duties.
func GateRoles() []string {
	return []string{RoleAdmin, RoleManager, RoleEventManager}
}

// IsValidRole reports whether s is a recognised role value.
func IsValidRole(s string) bool {
	for _, r := range AllRoles() {
		if s == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role may act on bookings owned by other users
// (pay on their behalf, fetch their ticket tokens).
func IsAdmin(role string) bool {
	return role == RoleAdmin
}
