package model

import "time"

type Role string

const (
	RoleStudent    Role = "Student"
	RoleTeacher    Role = "Teacher"
	RoleModerator  Role = "Moderator"
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
)

// IsModerationCapable reports whether the role may mute/unmute/remove/clear.
func (r Role) IsModerationCapable() bool {
	return r == RoleTeacher || r == RoleModerator
}

// CanSendMessages reports whether the role may post chat messages.
// Administrative roles may observe a room but not post to it.
func (r Role) CanSendMessages() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleModerator
}

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	TenantID  *string   `db:"tenant_id" json:"tenantId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
