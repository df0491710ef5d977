package focus

import (
	"fmt"
	"math"
	"time"
)

// Warning is a user-facing popup for one violation kind. Countdown is display-only:
// it never changes tracker state.
type Warning struct {
	Kind      ViolationKind `json:"kind"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Countdown time.Duration `json:"countdown,omitempty"`
	ShownAt   time.Time     `json:"shownAt"`
}

// Status is what the floating widget shows.
type Status struct {
	Score      int        `json:"score"`
	CameraMode CameraMode `json:"cameraMode"`
	Violating  bool       `json:"violating"`
}

// Presenter renders warnings, the status widget and advisory banners. Implementations
// are best-effort UI and must not block.
type Presenter interface {
	ShowWarning(w Warning)
	DismissWarning(kind ViolationKind)
	ShowBanner(text string)
	UpdateStatus(s Status)
}

type warningCopy struct {
	title     string
	countdown string // formatted with whole seconds remaining
	sustained string
}

var copyByMode = map[Mode]map[ViolationKind]warningCopy{
	ModeStandard: {
		KindTabSwitch: {
			title:     "You left the meeting tab",
			countdown: "Please return to the meeting within %d seconds to keep your focus score.",
			sustained: "You have been away from the meeting tab for a while. Your focus score is decreasing.",
		},
		KindWindowMinimized: {
			title:     "Meeting window not in focus",
			sustained: "The meeting window is minimized or in the background. Bring it back to the front.",
		},
		KindSplitScreen: {
			title:     "Split screen detected",
			sustained: "Your meeting window is sharing the screen with something else. Maximize it to stay focused.",
		},
		KindEyeAway: {
			title:     "Looking away",
			sustained: "We can't see you looking at the screen. Please face the camera.",
		},
		KindUnauthorizedURL: {
			title:     "Site not allowed",
			countdown: "This site is not allowed during the session. Leave it within %d seconds.",
			sustained: "You are still on a site that is not allowed during the session.",
		},
		KindCameraOff: {
			title:     "Camera is off",
			sustained: "Your camera has been off for a while. Please turn it back on.",
		},
	},
	ModeExam: {
		KindTabSwitch: {
			title:     "Tab switch detected",
			countdown: "Return within %ds.",
			sustained: "Tab switch recorded. Penalty applied.",
		},
		KindWindowMinimized: {
			title:     "Window minimized",
			sustained: "Window minimized. Penalty applied.",
		},
		KindSplitScreen: {
			title:     "Split screen",
			sustained: "Split screen recorded. Penalty applied.",
		},
		KindEyeAway: {
			title:     "Eyes off screen",
			sustained: "Gaze away recorded. Penalty applied.",
		},
		KindUnauthorizedURL: {
			title:     "Unauthorized site",
			countdown: "Leave within %ds.",
			sustained: "Unauthorized site recorded. Penalty applied.",
		},
		KindCameraOff: {
			title:     "Camera off",
			sustained: "Camera off recorded. Penalty applied.",
		},
	},
}

// CameraUnavailableBanner is shown once when the camera probe fails.
const CameraUnavailableBanner = "Camera unavailable. Monitoring continues without camera checks."

// Dispatcher decides when warnings are shown and dismissed. At most one warning is on
// screen; a new one replaces whatever is displayed.
type Dispatcher struct {
	policy    Policy
	presenter Presenter
}

// NewDispatcher creates a dispatcher. A nil presenter discards all UI calls.
func NewDispatcher(policy Policy, presenter Presenter) *Dispatcher {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	return &Dispatcher{policy: policy, presenter: presenter}
}

// Request shows a warning for a past its warn threshold unless the kind was already
// warned in this episode.
func (d *Dispatcher) Request(st *SessionState, a Assessment, now time.Time) bool {
	if !a.Warn || st.Warnings[a.Kind] {
		return false
	}
	w := d.build(a, now)
	if st.Displayed != nil && st.Displayed.Kind != a.Kind {
		d.presenter.DismissWarning(st.Displayed.Kind)
	}
	st.Displayed = &w
	st.Warnings[a.Kind] = true
	d.presenter.ShowWarning(w)
	return true
}

// Expire auto-dismisses the displayed warning once it has been up for AutoDismiss
// (plus its countdown, if any). The kind becomes eligible for a new warning.
func (d *Dispatcher) Expire(st *SessionState, now time.Time) bool {
	w := st.Displayed
	if w == nil || d.policy.AutoDismiss <= 0 {
		return false
	}
	if now.Sub(w.ShownAt) < w.Countdown+d.policy.AutoDismiss {
		return false
	}
	st.Displayed = nil
	delete(st.Warnings, w.Kind)
	d.presenter.DismissWarning(w.Kind)
	return true
}

// Clear dismisses the warning of kind after its signal cleared.
func (d *Dispatcher) Clear(st *SessionState, kind ViolationKind) {
	delete(st.Warnings, kind)
	if st.Displayed != nil && st.Displayed.Kind == kind {
		st.Displayed = nil
		d.presenter.DismissWarning(kind)
	}
}

// Banner shows a persistent advisory.
func (d *Dispatcher) Banner(text string) {
	d.presenter.ShowBanner(text)
}

// Status pushes the widget state.
func (d *Dispatcher) Status(st *SessionState) {
	d.presenter.UpdateStatus(Status{Score: st.DisplayScore(), CameraMode: st.CameraMode, Violating: st.AnyActive()})
}

func (d *Dispatcher) build(a Assessment, now time.Time) Warning {
	mode := d.policy.Mode
	if _, ok := copyByMode[mode]; !ok {
		mode = ModeStandard
	}
	c := copyByMode[mode][a.Kind]
	kp := d.policy.For(a.Kind)
	w := Warning{Kind: a.Kind, Title: c.title, Message: c.sustained, ShownAt: now}
	if kp.Countdown && c.countdown != "" && a.Elapsed < kp.Grace {
		remaining := kp.Grace - a.Elapsed
		w.Countdown = remaining
		w.Message = fmt.Sprintf(c.countdown, int(math.Ceil(remaining.Seconds())))
	}
	return w
}

type nopPresenter struct{}

func (nopPresenter) ShowWarning(Warning)          {}
func (nopPresenter) DismissWarning(ViolationKind) {}
func (nopPresenter) ShowBanner(string)            {}
func (nopPresenter) UpdateStatus(Status)          {}
