// Package domain defines the records exchanged between the parser, the guided
// entry wizard, storage and the outbound collaborators.
package domain

const (
	// RoleAdmin marks the operator chat that receives admin notices.
	RoleAdmin = "admin"
	// RoleUser represents a field user with no elevated privileges.
	RoleUser = "user"
)

// Role priorities; higher values carry more privileges.
const (
	RolePriorityUser  = 1
	RolePriorityAdmin = 2
)

// RolePriority returns the ordering weight of a role, or 0 for unknown roles.
func RolePriority(role string) int {
	switch role {
	case RoleAdmin:
		return RolePriorityAdmin
	case RoleUser:
		return RolePriorityUser
	default:
		return 0
	}
}

// IsAdmin reports whether the role grants access to operator commands.
func IsAdmin(role string) bool {
	return RolePriority(role) >= RolePriorityAdmin
}
