package mirror

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType is the closed set of event kinds the mirror dispatches on.
type EventType int

const (
	EventOther EventType = iota
	EventFocusUpdate
	EventNetworkDetected
	EventNetworkResolved
)

var eventTypeNames = map[EventType]string{
	EventFocusUpdate:     "focus_update",
	EventNetworkDetected: "network_issue_detected",
	EventNetworkResolved: "network_issue_resolved",
}

// ParseEventType maps a wire name to its EventType. Unknown names are EventOther.
func ParseEventType(s string) EventType {
	for t, name := range eventTypeNames {
		if name == s {
			return t
		}
	}
	return EventOther
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "other"
}

// Timestamp accepts RFC3339 strings or epoch milliseconds.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = parsed
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = time.UnixMilli(ms)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

// or returns t, or fallback when t is unset.
func (t *Timestamp) or(fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.Time
}

// ViolationInput is one violation occurrence as sent by an agent.
type ViolationInput struct {
	Type      string     `json:"type"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
	URL       *string    `json:"url,omitempty"`
	Duration  *float64   `json:"duration,omitempty"`
	Mode      *string    `json:"mode,omitempty"`
}

// Request is the body of POST /focus/events.
type Request struct {
	ParticipantID     string           `json:"participantId"`
	SessionID         string           `json:"sessionId"`
	EventType         string           `json:"eventType"`
	FocusScore        *float64         `json:"focusScore"`
	IsLookingAtScreen *bool            `json:"isLookingAtScreen"`
	IsTabActive       *bool            `json:"isTabActive"`
	IsWindowVisible   *bool            `json:"isWindowVisible"`
	CurrentURL        *string          `json:"currentUrl"`
	NetworkStable     *bool            `json:"networkStable"`
	Violations        []ViolationInput `json:"violations"`
	Timestamp         *Timestamp       `json:"timestamp"`
}

// Result is the body returned to the agent.
type Result struct {
	Success         bool    `json:"success"`
	FocusScore      float64 `json:"focusScore"`
	NetworkIssue    bool    `json:"networkIssue,omitempty"`
	NetworkRestored bool    `json:"networkRestored,omitempty"`
}

// FocusUpdated is broadcast to session observers after every non-network event.
type FocusUpdated struct {
	ParticipantID     string           `json:"participantId"`
	FullName          string           `json:"fullName"`
	RollNumber        string           `json:"rollNumber"`
	FocusScore        float64          `json:"focusScore"`
	RiskLevel         RiskLevel        `json:"riskLevel"`
	Status            Status           `json:"status"`
	IsLookingAtScreen *bool            `json:"isLookingAtScreen"`
	IsTabActive       *bool            `json:"isTabActive"`
	IsWindowVisible   *bool            `json:"isWindowVisible"`
	NetworkStable     bool             `json:"networkStable"`
	Violations        []ViolationInput `json:"violations"`
	Timestamp         time.Time        `json:"timestamp"`
}

// NetworkStatus is broadcast to session observers after network events.
type NetworkStatus struct {
	ParticipantID   string    `json:"participantId"`
	FullName        string    `json:"fullName"`
	NetworkStable   bool      `json:"networkStable"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
