// ABOUTME: Role enum for authorization decisions
// ABOUTME: Closed set with a total mapping from free-form input

package identity

// Role is a user's marketplace role
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleAgent   Role = "agent"
	RoleOwner   Role = "owner"
	RoleRenter  Role = "renter"
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
)

// ValidRoles lists all valid roles
var ValidRoles = []Role{
	RoleBuyer,
	RoleSeller,
	RoleAgent,
	RoleOwner,
	RoleRenter,
	RoleAdmin,
	RoleSupport,
}

// ParseRole maps free-form input onto the closed role set. Unknown input
// defaults to buyer, the least privileged role.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleBuyer, RoleSeller, RoleAgent, RoleOwner, RoleRenter, RoleAdmin, RoleSupport:
		return Role(s)
	default:
		return RoleBuyer
	}
}

// Admin reports whether the role grants moderation access.
func (r Role) Admin() bool {
	return r == RoleAdmin
}
