package focus

import "time"

// Assessment is the tracker's verdict for one active kind on one tick.
type Assessment struct {
	Kind      ViolationKind
	Elapsed   time.Duration
	Penalty   float64
	Penalized bool
	// Crossed is true only on the first penalized tick of an episode.
	Crossed bool
	Warn    bool
}

// Tracker keeps per-kind start timestamps in a SessionState and applies the grace and
// re-trigger rules.
type Tracker struct {
	policy Policy
}

// NewTracker creates a tracker for policy.
func NewTracker(policy Policy) *Tracker {
	return &Tracker{policy: policy}
}

// Raise records at as the start of kind if it is not already active. It reports
// whether a new episode started.
func (t *Tracker) Raise(st *SessionState, kind ViolationKind, at time.Time) bool {
	if _, ok := st.Violations[kind]; ok {
		return false
	}
	st.Violations[kind] = at
	return true
}

// Clear resets kind to not violating. Deductions already applied stay applied. It
// reports whether there was anything to clear.
func (t *Tracker) Clear(st *SessionState, kind ViolationKind) bool {
	if _, ok := st.Violations[kind]; !ok {
		return false
	}
	delete(st.Violations, kind)
	delete(st.crossed, kind)
	return true
}

// Assess evaluates every active kind at now. Kinds past their grace threshold are
// penalized on every call, so a sustained violation costs its penalty once per tick.
func (t *Tracker) Assess(st *SessionState, now time.Time) []Assessment {
	out := make([]Assessment, 0, len(st.Violations))
	for _, kind := range Kinds {
		start, ok := st.Violations[kind]
		if !ok {
			continue
		}
		kp := t.policy.For(kind)
		elapsed := now.Sub(start)
		if elapsed < 0 {
			elapsed = 0
		}
		a := Assessment{Kind: kind, Elapsed: elapsed, Warn: elapsed >= kp.WarnAfter}
		if elapsed >= kp.Grace {
			a.Penalized = true
			a.Penalty = kp.Penalty
			if !st.crossed[kind] {
				st.crossed[kind] = true
				a.Crossed = true
			}
		}
		out = append(out, a)
	}
	return out
}

// TotalDeduction sums the penalties of penalized assessments.
func TotalDeduction(as []Assessment) float64 {
	var total float64
	for _, a := range as {
		if a.Penalized {
			total += a.Penalty
		}
	}
	return total
}
