package model

import (
	"fmt"
	"time"
)

// Slot is a recurring timetable entry. The live-class subsystem consumes
// slots to authorize room actions and derive default broadcast titles; it
// does not own their CRUD lifecycle.
type Slot struct {
	ID           string     `db:"id" json:"id"`
	TenantID     string     `db:"tenant_id" json:"tenantId"`
	Day          string     `db:"day" json:"day"`
	StartTime    string     `db:"start_time" json:"startTime"` // HH:mm
	EndTime      string     `db:"end_time" json:"endTime"`     // HH:mm
	StartMinutes int        `db:"start_minutes" json:"startMinutes"`
	EndMinutes   int        `db:"end_minutes" json:"endMinutes"`
	Subject      string     `db:"subject" json:"subject"`
	BatchID      string     `db:"batch_id" json:"batchId"`
	TeacherID    string     `db:"teacher_id" json:"teacherId"`
	SessionID    *string    `db:"session_id" json:"sessionId,omitempty"`
	Status       SlotStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

type SlotStatus string

const (
	SlotStatusScheduled SlotStatus = "Scheduled"
	SlotStatusLive      SlotStatus = "Live"
	SlotStatusCompleted SlotStatus = "Completed"
	SlotStatusCancelled SlotStatus = "Cancelled"
)

// DefaultSessionTitle builds the broadcast title used when the caller
// does not supply one.
func (s *Slot) DefaultSessionTitle() string {
	return fmt.Sprintf("%s - %s - %s %s", s.Subject, s.BatchID, s.Day, s.StartTime)
}
