package domain

// Identity is the per-request resolved caller, attached to the request
// context after authentication. It always reflects the current user row,
// never just the token claims.
type Identity struct {
	UserID string
	Email  string
	Role   Role
	Status Status
}
