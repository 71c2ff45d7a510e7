package model

import "time"

// SessionState is the persisted read-only marker for a session. It is
// written exactly once, by the Completed/Cancelled transition, and never
// cleared. A set marker blocks all further joins and sends.
type SessionState struct {
	SessionID string     `db:"session_id" json:"sessionId"`
	TenantID  string     `db:"tenant_id" json:"tenantId"`
	ReadOnly  bool       `db:"read_only" json:"readOnly"`
	EndedAt   *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// Closed reports whether the room must reject new joins and sends.
func (s *SessionState) Closed() bool {
	return s != nil && (s.ReadOnly || s.EndedAt != nil)
}
