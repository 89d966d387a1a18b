// Package assignments owns the role-assignment relation: which principal
// holds which role, at which scope. A principal may hold the same role
// several times, once per distinct scope.
package assignments

import (
	"time"

	"github.com/gatehouse-io/gatehouse/internal/scope"
)

// Assignment ties a principal to a role within a scope. The store enforces
// at most one row per (principal, role, scope) triple.
type Assignment struct {
	PrincipalID string
	RoleID      string
	Scope       scope.Key
	CreatedAt   time.Time
}

// SyncResult reports which role IDs a scoped sync attached and detached.
type SyncResult struct {
	Attached []string
	Detached []string
}
