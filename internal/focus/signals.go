package focus

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// CameraMode is fixed once by the camera probe at monitoring start.
type CameraMode string

const (
	CameraOn  CameraMode = "ON"
	CameraOff CameraMode = "OFF"
)

// SignalName identifies a platform signal.
type SignalName string

const (
	SignalTabHidden     SignalName = "tab_hidden"
	SignalWindowBlurred SignalName = "window_blurred"
	SignalOnline        SignalName = "online"
	SignalCamera        SignalName = "camera_on"
	SignalLooking       SignalName = "looking_at_screen"
	SignalURL           SignalName = "url"
	SignalGeometry      SignalName = "geometry_split"
)

// Transition is an edge of a signal. Value carries the new host for SignalURL.
type Transition struct {
	Signal SignalName
	Active bool
	Value  string
	At     time.Time
}

// Signals holds the last known platform state. Setters are called from event callbacks
// and are safe to call repeatedly with an unchanged value; only real edges notify.
type Signals struct {
	mu            sync.RWMutex
	tabHidden     bool
	windowBlurred bool
	online        bool
	cameraMode    CameraMode
	cameraProbed  bool
	cameraOn      bool
	looking       bool
	urlHost       string
	windowWidth   int
	screenWidth   int
	splitRatio    float64
	onTransition  func(Transition)
}

// NewSignals returns signals in the "everything fine" state with camera mode OFF
// until ProbeCamera succeeds.
func NewSignals(splitRatio float64) *Signals {
	if splitRatio <= 0 {
		splitRatio = 0.8
	}
	return &Signals{
		online:     true,
		looking:    true,
		cameraMode: CameraOff,
		splitRatio: splitRatio,
	}
}

// OnTransition registers the edge callback. It runs outside the lock.
func (s *Signals) OnTransition(fn func(Transition)) {
	s.mu.Lock()
	s.onTransition = fn
	s.mu.Unlock()
}

// ProbeCamera runs the one-shot camera availability check. A nil probe or a probe
// error fixes the mode to OFF for the rest of the session. Later calls return the
// mode decided by the first call.
func (s *Signals) ProbeCamera(probe func() error) CameraMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cameraProbed {
		return s.cameraMode
	}
	s.cameraProbed = true
	if probe == nil || probe() != nil {
		s.cameraMode = CameraOff
		s.cameraOn = false
		return s.cameraMode
	}
	s.cameraMode = CameraOn
	s.cameraOn = true
	return s.cameraMode
}

func (s *Signals) SetTabHidden(v bool, at time.Time) bool {
	return s.setBool(&s.tabHidden, v, SignalTabHidden, at)
}

func (s *Signals) SetWindowBlurred(v bool, at time.Time) bool {
	return s.setBool(&s.windowBlurred, v, SignalWindowBlurred, at)
}

func (s *Signals) SetOnline(v bool, at time.Time) bool {
	return s.setBool(&s.online, v, SignalOnline, at)
}

func (s *Signals) SetLookingAtScreen(v bool, at time.Time) bool {
	return s.setBool(&s.looking, v, SignalLooking, at)
}

// SetCameraOn records a camera on/off event. It is ignored when the probe fixed the
// mode to OFF.
func (s *Signals) SetCameraOn(v bool, at time.Time) bool {
	s.mu.RLock()
	mode := s.cameraMode
	s.mu.RUnlock()
	if mode != CameraOn {
		return false
	}
	return s.setBool(&s.cameraOn, v, SignalCamera, at)
}

// SetURL records the page URL; only the host is kept.
func (s *Signals) SetURL(raw string, at time.Time) bool {
	host := hostOf(raw)
	s.mu.Lock()
	if s.urlHost == host {
		s.mu.Unlock()
		return false
	}
	s.urlHost = host
	fn := s.onTransition
	s.mu.Unlock()
	if fn != nil {
		fn(Transition{Signal: SignalURL, Active: host != "", Value: host, At: at})
	}
	return true
}

// SetGeometry records window and screen widths in pixels.
func (s *Signals) SetGeometry(windowWidth, screenWidth int, at time.Time) bool {
	s.mu.Lock()
	before := s.splitLocked()
	s.windowWidth, s.screenWidth = windowWidth, screenWidth
	after := s.splitLocked()
	fn := s.onTransition
	s.mu.Unlock()
	if before == after {
		return false
	}
	if fn != nil {
		fn(Transition{Signal: SignalGeometry, Active: after, At: at})
	}
	return true
}

func (s *Signals) setBool(field *bool, v bool, name SignalName, at time.Time) bool {
	s.mu.Lock()
	if *field == v {
		s.mu.Unlock()
		return false
	}
	*field = v
	fn := s.onTransition
	s.mu.Unlock()
	if fn != nil {
		fn(Transition{Signal: name, Active: v, At: at})
	}
	return true
}

func (s *Signals) IsTabHidden() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tabHidden
}

func (s *Signals) IsWindowBlurred() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windowBlurred
}

func (s *Signals) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

func (s *Signals) IsCameraOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cameraMode == CameraOn && s.cameraOn
}

func (s *Signals) IsLookingAtScreen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.looking
}

func (s *Signals) CameraMode() CameraMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cameraMode
}

func (s *Signals) CurrentURLHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.urlHost
}

func (s *Signals) IsGeometrySplit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.splitLocked()
}

// Unknown geometry (zero widths) is never split.
func (s *Signals) splitLocked() bool {
	if s.windowWidth <= 0 || s.screenWidth <= 0 {
		return false
	}
	return float64(s.windowWidth) < s.splitRatio*float64(s.screenWidth)
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// bare host such as "meet.example.com"
		if u2, err := url.Parse("//" + raw); err == nil {
			return strings.ToLower(u2.Hostname())
		}
		return ""
	}
	return strings.ToLower(u.Hostname())
}
