package focus

import (
	"math"
	"time"
)

// MaxScore and MinScore bound the focus score.
const (
	MaxScore = 100.0
	MinScore = 0.0
)

// HistoryType tags score history entries.
type HistoryType string

const (
	HistoryPenalty  HistoryType = "PENALTY"
	HistoryRecovery HistoryType = "RECOVERY"
)

// HistoryEntry is one score change.
type HistoryEntry struct {
	Type      HistoryType `json:"type"`
	OldScore  float64     `json:"oldScore"`
	NewScore  float64     `json:"newScore"`
	Magnitude float64     `json:"magnitude"`
	Timestamp time.Time   `json:"timestamp"`
}

// SessionState is the per-tab monitoring state. It is owned by a Monitor and handed by
// pointer to the tracker, score engine and warning dispatcher on every tick.
type SessionState struct {
	ParticipantID string
	SessionID     string
	Score         float64
	CameraMode    CameraMode

	// Violations holds the start of each active kind. A missing key means not violating.
	Violations map[ViolationKind]time.Time
	// crossed marks kinds that already reached grace in the current episode.
	crossed map[ViolationKind]bool

	// Warnings marks kinds warned in the current episode.
	Warnings  map[ViolationKind]bool
	Displayed *Warning

	History []HistoryEntry
}

// NewSessionState starts a session at full score.
func NewSessionState(participantID, sessionID string) *SessionState {
	return &SessionState{
		ParticipantID: participantID,
		SessionID:     sessionID,
		Score:         MaxScore,
		CameraMode:    CameraOff,
		Violations:    make(map[ViolationKind]time.Time),
		crossed:       make(map[ViolationKind]bool),
		Warnings:      make(map[ViolationKind]bool),
	}
}

// AnyActive reports whether any kind currently has a start timestamp, including kinds
// still inside their grace period.
func (s *SessionState) AnyActive() bool {
	return len(s.Violations) > 0
}

// DisplayScore is the whole-percent value shown to the participant.
func (s *SessionState) DisplayScore() int {
	return int(math.Round(s.Score))
}

// WireScore is the two-decimal value persisted and transmitted.
func (s *SessionState) WireScore() float64 {
	return Round2(s.Score)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampScore(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}
