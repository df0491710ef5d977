package models

import (
	"time"

	"github.com/google/uuid"
)

// FocusEvent is one row of a participant's score history.
type FocusEvent struct {
	ID                uuid.UUID `json:"id"`
	ParticipantID     uuid.UUID `json:"participant_id"`
	SessionID         uuid.UUID `json:"session_id"`
	EventType         string    `json:"event_type"`
	FocusScore        float64   `json:"focus_score"`
	IsLookingAtScreen *bool     `json:"is_looking_at_screen,omitempty"`
	IsTabActive       *bool     `json:"is_tab_active,omitempty"`
	IsWindowVisible   *bool     `json:"is_window_visible,omitempty"`
	CurrentURL        *string   `json:"current_url,omitempty"`
	NetworkStable     bool      `json:"network_stable"`
	CreatedAt         time.Time `json:"created_at"`
}

// Violation is one discrete violation occurrence reported by an agent.
type Violation struct {
	ID              uuid.UUID `json:"id"`
	ParticipantID   uuid.UUID `json:"participant_id"`
	SessionID       uuid.UUID `json:"session_id"`
	Type            string    `json:"type"`
	URL             *string   `json:"url,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	CameraMode      *string   `json:"camera_mode,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	CreatedAt       time.Time `json:"created_at"`
}
