package focus

import "time"

// Context carries the flags sent alongside every flush.
type Context struct {
	LookingAtScreen *bool
	TabActive       bool
	WindowVisible   bool
	URLHost         string
	Online          bool
}

// Reporter buffers violation occurrences and flushes aggregated updates.
type Reporter struct {
	out       *BestEffort
	fallback  time.Duration
	buf       []Violation
	lastFlush time.Time
}

// NewReporter creates a reporter. fallback is the longest quiet period between flushes;
// zero disables the periodic flush.
func NewReporter(out *BestEffort, fallback time.Duration) *Reporter {
	return &Reporter{out: out, fallback: fallback}
}

// Record buffers one occurrence.
func (r *Reporter) Record(v Violation) {
	r.buf = append(r.buf, v)
}

// Pending returns the number of buffered occurrences.
func (r *Reporter) Pending() int {
	return len(r.buf)
}

// MaybeFlush flushes when this tick produced a new violation or a deduction, or when the
// fallback interval has passed since the last flush.
func (r *Reporter) MaybeFlush(st *SessionState, c Context, newViolations bool, deduction float64, now time.Time) bool {
	due := r.fallback > 0 && !r.lastFlush.IsZero() && now.Sub(r.lastFlush) >= r.fallback
	if !newViolations && deduction <= 0 && !due {
		return false
	}
	r.Flush(st, c, now)
	return true
}

// Flush drains the buffer into one focus_update carrying the absolute score.
func (r *Reporter) Flush(st *SessionState, c Context, now time.Time) {
	ev := r.event(st, c, EventFocusUpdate, now)
	if len(r.buf) > 0 {
		ev.Violations = r.buf
	}
	r.buf = nil
	r.lastFlush = now
	r.dispatch(ev)
}

// Touch resets the fallback timer without sending.
func (r *Reporter) Touch(now time.Time) {
	r.lastFlush = now
}

// NetworkIssue reports an offline period after connectivity came back. The pair is
// sent in order so the server opens the log row before resolving it.
func (r *Reporter) NetworkIssue(st *SessionState, c Context, offlineAt, onlineAt time.Time) {
	detected := r.event(st, c, EventNetworkIssueDetected, offlineAt)
	detected.NetworkStable = false
	resolved := r.event(st, c, EventNetworkIssueResolved, onlineAt)
	if r.out != nil {
		r.out.DispatchSeq(detected, resolved)
	}
}

// Heartbeat sends a liveness ping with the current score.
func (r *Reporter) Heartbeat(st *SessionState, c Context, now time.Time) {
	r.dispatch(r.event(st, c, EventHeartbeat, now))
}

// Wait blocks until in-flight sends finish.
func (r *Reporter) Wait() {
	if r.out != nil {
		r.out.Wait()
	}
}

func (r *Reporter) dispatch(ev Event) {
	if r.out != nil {
		r.out.Dispatch(ev)
	}
}

func (r *Reporter) event(st *SessionState, c Context, eventType string, at time.Time) Event {
	score := st.WireScore()
	tabActive, windowVisible := c.TabActive, c.WindowVisible
	ev := Event{
		ParticipantID:     st.ParticipantID,
		SessionID:         st.SessionID,
		EventType:         eventType,
		FocusScore:        &score,
		IsLookingAtScreen: c.LookingAtScreen,
		IsTabActive:       &tabActive,
		IsWindowVisible:   &windowVisible,
		NetworkStable:     c.Online,
		CameraMode:        st.CameraMode,
		Violations:        []Violation{},
		Timestamp:         at,
	}
	if c.URLHost != "" {
		host := c.URLHost
		ev.CurrentURL = &host
	}
	return ev
}
