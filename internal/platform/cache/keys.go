package cache

// RoleKey is the cache key for a role's permission set. Keyed by role slug,
// not principal, so every principal holding the role shares one entry.
func RoleKey(roleSlug string) string {
	return "role:" + roleSlug
}

// TeamPermsKey is the cache key for a principal's team-derived permissions
// within one organization.
func TeamPermsKey(principalID, orgID string) string {
	return "teamPerms:" + principalID + ":" + orgID
}
