package shared

import "errors"

var (
	// ErrRoleNotFound indicates the referenced role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionNotFound indicates the referenced permission does not exist.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrAssignmentNotFound indicates no assignment matches the exact scope.
	ErrAssignmentNotFound = errors.New("role assignment not found")
	// ErrDuplicateAssignment indicates the principal already holds the role
	// in the exact same scope.
	ErrDuplicateAssignment = errors.New("role already assigned in this scope")
	// ErrDuplicateSlug indicates a role or permission slug is already taken.
	ErrDuplicateSlug = errors.New("slug already in use")
	// ErrDirectoryUnavailable indicates the team directory could not be
	// reached. Read paths absorb it and continue with an empty team
	// permission set.
	ErrDirectoryUnavailable = errors.New("team directory unavailable")
)
