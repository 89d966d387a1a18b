package shared

// Permissions guarding the access-management surface itself.
const (
	PermRolesView = "iam.roles.view"
	PermRolesEdit = "iam.roles.edit"

	PermPermissionsView = "iam.permissions.view"
	PermPermissionsEdit = "iam.permissions.edit"

	PermAssignmentsView = "iam.assignments.view"
	PermAssignmentsEdit = "iam.assignments.edit"
)

// IAMScopes lists all permissions related to access management.
func IAMScopes() []string {
	return []string{
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermPermissionsEdit,
		PermAssignmentsView,
		PermAssignmentsEdit,
	}
}
