package focus

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options configures a Monitor.
type Options struct {
	ParticipantID string
	SessionID     string
	Policy        Policy
	Presenter     Presenter
	Sender        Sender
	SendTimeout   time.Duration
	Logger        *zap.Logger
}

// TickResult summarizes one evaluation.
type TickResult struct {
	Deduction     float64
	Delta         float64
	Score         float64
	NewViolations int
	Flushed       bool
}

// Monitor runs the focus engine for one participant in one session. Signal setters may
// be called from any goroutine; ticks are serialized with them under one mutex.
type Monitor struct {
	mu       sync.Mutex
	policy   Policy
	signals  *Signals
	state    *SessionState
	tracker  *Tracker
	score    *ScoreEngine
	warnings *Dispatcher
	reporter *Reporter
	logger   *zap.Logger

	started      bool
	closed       bool
	offlineSince time.Time
}

// NewMonitor wires the engine components around a fresh SessionState.
func NewMonitor(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := opts.Policy
	if policy.Kinds == nil {
		policy = DefaultPolicy()
	}
	m := &Monitor{
		policy:   policy,
		signals:  NewSignals(policy.SplitRatio),
		state:    NewSessionState(opts.ParticipantID, opts.SessionID),
		tracker:  NewTracker(policy),
		score:    NewScoreEngine(policy.RecoveryRate),
		warnings: NewDispatcher(policy, opts.Presenter),
		reporter: NewReporter(NewBestEffort(opts.Sender, opts.SendTimeout, logger), policy.FallbackFlush),
		logger:   logger.With(zap.String("participant_id", opts.ParticipantID), zap.String("session_id", opts.SessionID)),
	}
	m.signals.OnTransition(m.onTransition)
	return m
}

// Signals exposes the platform signal sink.
func (m *Monitor) Signals() *Signals {
	return m.signals
}

// Start begins monitoring at now. probe is the one-shot camera check; nil means no
// camera is available.
func (m *Monitor) Start(probe func() error, now time.Time) CameraMode {
	mode := m.signals.ProbeCamera(probe)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return m.state.CameraMode
	}
	m.started = true
	m.state.CameraMode = mode
	m.reporter.Touch(now)
	if mode == CameraOff {
		m.warnings.Banner(CameraUnavailableBanner)
	}
	m.syncKinds(now)
	m.warnings.Status(m.state)
	m.logger.Info("focus monitoring started", zap.String("camera_mode", string(mode)))
	return mode
}

// Evaluate runs one tick at now.
func (m *Monitor) Evaluate(now time.Time) TickResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.closed {
		return TickResult{Score: m.state.Score}
	}

	m.syncKinds(now)
	m.warnings.Expire(m.state, now)

	as := m.tracker.Assess(m.state, now)
	res := TickResult{Deduction: TotalDeduction(as)}
	res.Delta = m.score.ApplyTick(m.state, res.Deduction, now)
	res.Score = m.state.Score

	host := m.signals.CurrentURLHost()
	for _, a := range as {
		m.warnings.Request(m.state, a, now)
		if !a.Crossed {
			continue
		}
		v := Violation{
			Type:      a.Kind,
			Timestamp: m.state.Violations[a.Kind],
			Duration:  a.Elapsed.Seconds(),
			Mode:      m.state.CameraMode,
		}
		if a.Kind == KindUnauthorizedURL {
			v.URL = host
		}
		m.reporter.Record(v)
		res.NewViolations++
	}
	m.warnings.Status(m.state)

	res.Flushed = m.reporter.MaybeFlush(m.state, m.context(), res.NewViolations > 0, res.Deduction, now)
	if res.Deduction > 0 {
		m.logger.Debug("focus penalty applied",
			zap.Float64("deduction", res.Deduction),
			zap.Float64("score", res.Score),
		)
	}
	return res
}

// Run evaluates a tick for every value the scheduler delivers until ctx is done.
func (m *Monitor) Run(ctx context.Context, sched Scheduler) {
	defer sched.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-sched.C():
			m.Evaluate(t)
		}
	}
}

// Heartbeat sends a liveness event with the current score.
func (m *Monitor) Heartbeat(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.closed {
		return
	}
	m.reporter.Heartbeat(m.state, m.context(), now)
}

// Flush sends buffered violations and the current score immediately.
func (m *Monitor) Flush(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.closed {
		return
	}
	m.reporter.Flush(m.state, m.context(), now)
}

// Close sends a final snapshot and waits for in-flight sends.
func (m *Monitor) Close(now time.Time) {
	m.mu.Lock()
	if m.started && !m.closed {
		m.reporter.Flush(m.state, m.context(), now)
	}
	m.closed = true
	m.mu.Unlock()
	m.reporter.Wait()
	m.logger.Info("focus monitoring stopped")
}

// Snapshot returns a copy of the session state.
func (m *Monitor) Snapshot() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.state
	cp.Violations = make(map[ViolationKind]time.Time, len(m.state.Violations))
	for k, v := range m.state.Violations {
		cp.Violations[k] = v
	}
	cp.Warnings = make(map[ViolationKind]bool, len(m.state.Warnings))
	for k, v := range m.state.Warnings {
		cp.Warnings[k] = v
	}
	cp.crossed = nil
	if m.state.Displayed != nil {
		w := *m.state.Displayed
		cp.Displayed = &w
	}
	cp.History = append([]HistoryEntry(nil), m.state.History...)
	return cp
}

// Pending returns the number of buffered violations.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reporter.Pending()
}

func (m *Monitor) onTransition(tr Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.closed {
		return
	}
	m.syncKinds(tr.At)

	if tr.Signal != SignalOnline {
		return
	}
	if !tr.Active {
		m.offlineSince = tr.At
		m.logger.Info("network offline")
		return
	}
	if m.offlineSince.IsZero() {
		return
	}
	m.reporter.NetworkIssue(m.state, m.context(), m.offlineSince, tr.At)
	m.logger.Info("network restored", zap.Duration("offline", tr.At.Sub(m.offlineSince)))
	m.offlineSince = time.Time{}
}

// syncKinds raises kinds whose condition holds and clears the rest.
func (m *Monitor) syncKinds(at time.Time) {
	active := m.activeKinds()
	changed := false
	for _, kind := range Kinds {
		if active[kind] {
			if m.tracker.Raise(m.state, kind, at) {
				changed = true
			}
			continue
		}
		if m.tracker.Clear(m.state, kind) {
			m.warnings.Clear(m.state, kind)
			changed = true
		}
	}
	if changed {
		m.warnings.Status(m.state)
	}
}

func (m *Monitor) activeKinds() map[ViolationKind]bool {
	s := m.signals
	tabHidden := s.IsTabHidden()
	cameraOn := m.state.CameraMode == CameraOn && s.IsCameraOn()
	return map[ViolationKind]bool{
		KindTabSwitch:       tabHidden,
		KindWindowMinimized: !tabHidden && s.IsWindowBlurred(),
		KindSplitScreen:     s.IsGeometrySplit(),
		KindEyeAway:         cameraOn && !s.IsLookingAtScreen(),
		KindUnauthorizedURL: unauthorizedHost(s.CurrentURLHost(), m.policy.AllowedHosts, m.policy.BlockedHosts),
		KindCameraOff:       m.state.CameraMode == CameraOn && !s.IsCameraOn(),
	}
}

func (m *Monitor) context() Context {
	c := Context{
		TabActive:     !m.signals.IsTabHidden(),
		WindowVisible: !m.signals.IsWindowBlurred(),
		URLHost:       m.signals.CurrentURLHost(),
		Online:        m.signals.IsOnline(),
	}
	if m.state.CameraMode == CameraOn {
		looking := m.signals.IsLookingAtScreen()
		c.LookingAtScreen = &looking
	}
	return c
}

// unauthorizedHost applies the blocklist first, then the allowlist when one is set.
// An empty host is never a violation.
func unauthorizedHost(host string, allowed, blocked []string) bool {
	if host == "" {
		return false
	}
	for _, b := range blocked {
		if hostMatches(host, b) {
			return true
		}
	}
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if hostMatches(host, a) {
			return false
		}
	}
	return true
}

func hostMatches(host, rule string) bool {
	rule = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(rule), "*."))
	if rule == "" {
		return false
	}
	host = strings.ToLower(host)
	return host == rule || strings.HasSuffix(host, "."+rule)
}
