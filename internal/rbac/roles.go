package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
//
// - viewer: read-only access to progress and run history.
// - operator: may start and cancel backfill runs.
// - admin: everything, bypasses role checks.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
