package authz

// Permission is a string tag gating one category of sensitive operations.
type Permission string

const (
	PermUsersRead        Permission = "users:read"
	PermUsersWrite       Permission = "users:write"
	PermInvestmentsRead  Permission = "investments:read"
	PermInvestmentsWrite Permission = "investments:write"
	PermMetricsRead      Permission = "metrics:read"
	PermWalletsRead      Permission = "wallets:read"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSupport Role = "support"
	RoleUser    Role = "user"
)

var rolePermissions = map[Role][]Permission{
	RoleManager: {PermInvestmentsRead, PermInvestmentsWrite, PermMetricsRead, PermUsersRead, PermWalletsRead},
	RoleSupport: {PermUsersRead, PermWalletsRead},
	RoleUser:    {},
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSupport, RoleUser:
		return true
	}
	return false
}

// Permissions returns the static grant set for a role. Admin carries an
// implicit wildcard and is handled in Allowed rather than listed here.
func Permissions(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Allowed reports whether the role satisfies the required permission.
func Allowed(role Role, required Permission) bool {
	if role == RoleAdmin {
		return true
	}
	for _, perm := range rolePermissions[role] {
		if perm == required {
			return true
		}
	}
	return false
}
