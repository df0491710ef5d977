package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is one monitored attendee of a session. FinalFocusScore is the last
// absolute score reported by the participant's agent.
type Participant struct {
	ID                  uuid.UUID  `json:"id"`
	SessionID           uuid.UUID  `json:"session_id"`
	UserID              *uuid.UUID `json:"user_id,omitempty"`
	FullName            string     `json:"full_name"`
	RollNumber          string     `json:"roll_number"`
	FinalFocusScore     float64    `json:"final_focus_score"`
	ViolationsCount     int        `json:"violations_count"`
	NetworkIssueSeconds float64    `json:"network_issue_seconds"`
	LastHeartbeat       *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
