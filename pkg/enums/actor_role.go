package enums

import "fmt"

// ActorRole identifies who requested an order transition or payout action.
// RoleSystem marks machine-triggered transitions (payment reconciliation);
// it is never accepted from an external caller.
type ActorRole string

const (
	RoleBuyer      ActorRole = "buyer"
	RoleSeller     ActorRole = "seller"
	RoleRider      ActorRole = "rider"
	RoleAdmin      ActorRole = "admin"
	RoleSuperAdmin ActorRole = "super_admin"
	RoleSystem     ActorRole = "system"
)

var validActorRoles = []ActorRole{
	RoleBuyer,
	RoleSeller,
	RoleRider,
	RoleAdmin,
	RoleSuperAdmin,
	RoleSystem,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role carries administrative privileges.
func (r ActorRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
