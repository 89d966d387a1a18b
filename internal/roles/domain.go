// Package roles manages role and permission definitions: the catalogue of
// grantable capabilities and the privilege-ranked roles that bundle them.
package roles

import "time"

// Role is a privilege-ranked grouping of permissions. Higher Level means
// more privileged. An OrgID restricts the definition to one organization's
// role catalogue; empty means the role is available everywhere.
type Role struct {
	ID          string
	Slug        string
	Name        string
	Level       int
	Description string
	OrgID       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic grantable capability identified by its slug.
// Group clusters related permissions for display ("orders", "reports").
type Permission struct {
	ID          string
	Slug        string
	Name        string
	Group       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SyncResult reports the outcome of replacing a role's permission set.
type SyncResult struct {
	Attached int
	Detached int
}
