// Package authz implements spec §4.11: an OIDC bearer-token
// middleware that resolves a verified subject to a local user and
// loads that user's role for the requested property, plus the
// DB-backed role store the dashboard's RBAC endpoints sit on.
package authz

// Role is one of the five levels forming a total order (spec §3):
// viewer < governance < staff < manager < owner. Every authorization
// check is a single integer comparison against an endpoint's minimum.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleGovernance Role = "governance"
	RoleStaff      Role = "staff"
	RoleManager    Role = "manager"
	RoleOwner      Role = "owner"
)

var roleLevel = map[Role]int{
	RoleViewer:     0,
	RoleGovernance: 1,
	RoleStaff:      2,
	RoleManager:    3,
	RoleOwner:      4,
}

// Level returns the role's position in the total order, or -1 for an
// unrecognized role (treated as no access).
func Level(r Role) int {
	if l, ok := roleLevel[r]; ok {
		return l
	}
	return -1
}

// Meets reports whether role r satisfies an endpoint's minimum
// required role.
func Meets(r Role, min Role) bool {
	return Level(r) >= Level(min)
}
