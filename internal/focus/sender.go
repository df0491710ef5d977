package focus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types understood by the server mirror.
const (
	EventFocusUpdate          = "focus_update"
	EventNetworkIssueDetected = "network_issue_detected"
	EventNetworkIssueResolved = "network_issue_resolved"
	EventHeartbeat            = "heartbeat"
)

// Violation is one discrete violation occurrence. It is immutable once buffered.
type Violation struct {
	Type      ViolationKind `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	URL       string        `json:"url,omitempty"`
	Duration  float64       `json:"duration,omitempty"`
	Mode      CameraMode    `json:"mode,omitempty"`
}

// Event is the payload sent to the server mirror.
type Event struct {
	ParticipantID     string      `json:"participantId"`
	SessionID         string      `json:"sessionId"`
	EventType         string      `json:"eventType"`
	FocusScore        *float64    `json:"focusScore,omitempty"`
	IsLookingAtScreen *bool       `json:"isLookingAtScreen"`
	IsTabActive       *bool       `json:"isTabActive"`
	IsWindowVisible   *bool       `json:"isWindowVisible"`
	CurrentURL        *string     `json:"currentUrl"`
	NetworkStable     bool        `json:"networkStable"`
	CameraMode        CameraMode  `json:"cameraMode,omitempty"`
	Violations        []Violation `json:"violations"`
	Timestamp         time.Time   `json:"timestamp"`
}

// Sender delivers one event to the backend.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, ev Event) error

func (f SenderFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// BestEffort dispatches events without blocking the caller. Every dispatch runs on its
// own goroutine with a timeout; failures are logged at debug level and dropped. There
// is no retry: the next flush carries the current absolute score anyway.
type BestEffort struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewBestEffort wraps sender. A nil sender drops everything.
func NewBestEffort(sender Sender, timeout time.Duration, logger *zap.Logger) *BestEffort {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BestEffort{sender: sender, timeout: timeout, logger: logger}
}

// Dispatch sends ev in the background.
func (b *BestEffort) Dispatch(ev Event) {
	b.DispatchSeq(ev)
}

// DispatchSeq sends evs in order on one goroutine. Each event gets its own timeout and
// a failed send does not stop the ones after it.
func (b *BestEffort) DispatchSeq(evs ...Event) {
	if b.sender == nil || len(evs) == 0 {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, ev := range evs {
			b.send(ev)
		}
	}()
}

func (b *BestEffort) send(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.sender.Send(ctx, ev); err != nil {
		b.logger.Debug("focus event dropped",
			zap.String("event_type", ev.EventType),
			zap.Int("violations", len(ev.Violations)),
			zap.Error(err),
		)
	}
}

// Wait blocks until in-flight dispatches finish.
func (b *BestEffort) Wait() {
	b.wg.Wait()
}
