package entity

// Actor is the authenticated user performing an operation. Identity and role
// come from the upstream authentication layer and are trusted as given.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// IsPrivileged reports whether the actor holds the approver or admin role
func (a Actor) IsPrivileged() bool {
	return IsPrivilegedRole(a.Role)
}
