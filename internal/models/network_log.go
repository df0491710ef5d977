package models

import (
	"time"

	"github.com/google/uuid"
)

// Network log statuses.
const (
	NetworkStatusOffline  = "offline"
	NetworkStatusResolved = "resolved"
)

// NetworkLog is one connectivity loss of a participant. It stays offline until a
// matching resolution closes it.
type NetworkLog struct {
	ID              uuid.UUID  `json:"id"`
	ParticipantID   uuid.UUID  `json:"participant_id"`
	SessionID       uuid.UUID  `json:"session_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
