package models

// Role identifies which side of a room a participant sits on. A room
// always pairs one user (the initiator) with one provider (the responder).
type Role string

const (
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleProvider
}

// Counterpart returns the opposite side of the room.
func (r Role) Counterpart() Role {
	if r == RoleUser {
		return RoleProvider
	}
	return RoleUser
}
