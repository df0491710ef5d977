package agent

import (
	"encoding/json"
	"time"

	"github.com/aura-proctor/backend/internal/focus"
)

// Message types sent by the extension.
const (
	TypePermissionsGranted = "PERMISSIONS_GRANTED"
	TypeSignal             = "SIGNAL"
	TypeSendFocusEvent     = "SEND_FOCUS_EVENT"
	TypeSaveFocusScore     = "SAVE_FOCUS_SCORE"
	TypeSendHeartbeat      = "SEND_HEARTBEAT"
	TypeUnload             = "UNLOAD"
)

// Message types sent to the extension.
const (
	TypeStarted        = "MONITORING_STARTED"
	TypeShowWarning    = "SHOW_WARNING"
	TypeDismissWarning = "DISMISS_WARNING"
	TypeBanner         = "SHOW_BANNER"
	TypeStatus         = "STATUS"
	TypeFocusScore     = "FOCUS_SCORE"
	TypeError          = "ERROR"
)

// Message is the envelope exchanged with the extension.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message of type t.
func NewMessage(t string, payload interface{}) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// Permissions is the payload of PERMISSIONS_GRANTED. IDs fall back to the host config.
// Camera reports whether the page obtained a camera stream.
type Permissions struct {
	ParticipantID string `json:"participantId"`
	SessionID     string `json:"sessionId"`
	Camera        bool   `json:"camera"`
	At            *int64 `json:"at,omitempty"`
}

// Signal is the payload of SIGNAL: one platform observation. Active applies to boolean
// signals, Value to "url", and the widths to "geometry_split".
type Signal struct {
	Name        focus.SignalName `json:"name"`
	Active      bool             `json:"active"`
	Value       string           `json:"value,omitempty"`
	WindowWidth int              `json:"windowWidth,omitempty"`
	ScreenWidth int              `json:"screenWidth,omitempty"`
	At          *int64           `json:"at,omitempty"`
}

// Started is the payload of MONITORING_STARTED.
type Started struct {
	CameraMode focus.CameraMode `json:"cameraMode"`
}

// Dismiss is the payload of DISMISS_WARNING.
type Dismiss struct {
	Kind focus.ViolationKind `json:"kind"`
}

// Banner is the payload of SHOW_BANNER.
type Banner struct {
	Text string `json:"text"`
}

// FocusScore is the payload of FOCUS_SCORE, the answer to SAVE_FOCUS_SCORE.
type FocusScore struct {
	ParticipantID string           `json:"participantId"`
	SessionID     string           `json:"sessionId"`
	Score         float64          `json:"score"`
	DisplayScore  int              `json:"displayScore"`
	CameraMode    focus.CameraMode `json:"cameraMode"`
	Violating     bool             `json:"violating"`
	Changes       int              `json:"changes"`
}

// ErrorPayload is the payload of ERROR.
type ErrorPayload struct {
	Request string `json:"request,omitempty"`
	Error   string `json:"error"`
}

// millisOr converts optional epoch milliseconds, defaulting to fallback.
func millisOr(ms *int64, fallback time.Time) time.Time {
	if ms == nil || *ms <= 0 {
		return fallback
	}
	return time.UnixMilli(*ms)
}
