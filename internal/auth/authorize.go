package auth

// Authorize checks whether the principal's role grants access. Admin passes
// every check; other roles must appear in the allowed list. An empty allowed
// list therefore means admin-only. Ownership checks are not handled here:
// they belong to the service that owns the resource.
func Authorize(p Principal, allowed ...Role) error {
	if p.Role == RoleAdmin {
		return nil
	}
	for _, role := range allowed {
		if p.Role == role {
			return nil
		}
	}
	return ErrForbidden
}
