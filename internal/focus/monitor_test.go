package focus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPresenter struct {
	mu        sync.Mutex
	shown     []Warning
	dismissed []ViolationKind
	banners   []string
	status    Status
}

func (p *recordingPresenter) ShowWarning(w Warning) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, w)
}

func (p *recordingPresenter) DismissWarning(k ViolationKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = append(p.dismissed, k)
}

func (p *recordingPresenter) ShowBanner(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banners = append(p.banners, text)
}

func (p *recordingPresenter) UpdateStatus(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

func (p *recordingPresenter) shownKinds() []ViolationKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ViolationKind, 0, len(p.shown))
	for _, w := range p.shown {
		out = append(out, w.Kind)
	}
	return out
}

type recordingSender struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSender) Send(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSender) byType(eventType string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTestMonitor(t *testing.T, policy Policy) (*Monitor, *recordingPresenter, *recordingSender) {
	t.Helper()
	p := &recordingPresenter{}
	s := &recordingSender{}
	m := NewMonitor(Options{
		ParticipantID: "p1",
		SessionID:     "s1",
		Policy:        policy,
		Presenter:     p,
		Sender:        s,
	})
	return m, p, s
}

func TestTabSwitchPenaltyTimeline(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)
	m.Signals().SetTabHidden(true, t0)

	assert.Equal(t, 100.0, m.Evaluate(at(5)).Score)

	res := m.Evaluate(at(10))
	assert.Equal(t, 98.0, res.Score)
	assert.Equal(t, 1, res.NewViolations)
	assert.True(t, res.Flushed)

	res = m.Evaluate(at(15))
	assert.Equal(t, 96.0, res.Score)
	assert.Zero(t, res.NewViolations)
}

func TestCameraDeniedStaysOff(t *testing.T) {
	m, p, _ := newTestMonitor(t, DefaultPolicy())
	mode := m.Start(func() error { return errors.New("permission denied") }, t0)
	require.Equal(t, CameraOff, mode)
	assert.Equal(t, []string{CameraUnavailableBanner}, p.banners)

	assert.False(t, m.Signals().SetCameraOn(true, at(1)))
	assert.False(t, m.Signals().SetCameraOn(false, at(2)))
	assert.Equal(t, CameraOff, m.Signals().CameraMode())
	assert.Equal(t, CameraOff, m.Signals().ProbeCamera(func() error { return nil }))

	m.Signals().SetLookingAtScreen(false, at(3))
	res := m.Evaluate(at(60))
	assert.Zero(t, res.Deduction)
	assert.Empty(t, m.Snapshot().Violations)
}

func TestCameraOnTracksEyeAwayAndCameraOff(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultPolicy())
	require.Equal(t, CameraOn, m.Start(func() error { return nil }, t0))

	m.Signals().SetLookingAtScreen(false, t0)
	assert.Equal(t, 1.0, m.Evaluate(at(5)).Deduction)

	m.Signals().SetCameraOn(false, at(6))
	snap := m.Snapshot()
	assert.NotContains(t, snap.Violations, KindEyeAway)
	assert.Equal(t, at(6), snap.Violations[KindCameraOff])
}

func TestWindowBlurOnlyCountsWhileTabVisible(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)
	m.Signals().SetTabHidden(true, t0)
	m.Signals().SetWindowBlurred(true, t0)

	snap := m.Snapshot()
	assert.Contains(t, snap.Violations, KindTabSwitch)
	assert.NotContains(t, snap.Violations, KindWindowMinimized)

	m.Signals().SetTabHidden(false, at(3))
	snap = m.Snapshot()
	assert.NotContains(t, snap.Violations, KindTabSwitch)
	assert.Equal(t, at(3), snap.Violations[KindWindowMinimized])
}

func TestRecoveryBlockedDuringGrace(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)
	m.state.Score = 90
	m.Signals().SetGeometry(900, 1920, t0)

	res := m.Evaluate(at(5))
	assert.Zero(t, res.Deduction)
	assert.Equal(t, 90.0, res.Score)

	m.Signals().SetGeometry(1920, 1920, at(6))
	assert.Equal(t, 90.5, m.Evaluate(at(10)).Score)
}

func TestWarningShownOncePerEpisode(t *testing.T) {
	m, p, _ := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)
	m.Signals().SetTabHidden(true, t0)

	m.Evaluate(at(5))
	require.Len(t, p.shown, 1)
	assert.Equal(t, 5*time.Second, p.shown[0].Countdown)
	assert.Contains(t, p.shown[0].Message, "5 seconds")

	m.Evaluate(at(10))
	assert.Len(t, p.shown, 1)

	m.Signals().SetTabHidden(false, at(12))
	assert.Equal(t, []ViolationKind{KindTabSwitch}, p.dismissed)
	assert.Nil(t, m.Snapshot().Displayed)

	m.Signals().SetTabHidden(true, at(20))
	m.Evaluate(at(20))
	assert.Len(t, p.shown, 2)
}

func TestWarningReplacedByNewKind(t *testing.T) {
	policy := DefaultPolicy()
	policy.AutoDismiss = 0
	policy.Kinds[KindSplitScreen] = KindPolicy{Grace: 15 * time.Second, WarnAfter: 10 * time.Second, Penalty: 1}
	m, p, _ := newTestMonitor(t, policy)
	m.Start(nil, t0)
	m.Signals().SetTabHidden(true, t0)
	m.Signals().SetGeometry(800, 1920, t0)

	m.Evaluate(at(5))
	m.Evaluate(at(10))
	m.Evaluate(at(15))

	assert.Equal(t, []ViolationKind{KindTabSwitch, KindSplitScreen}, p.shownKinds())
	assert.Equal(t, []ViolationKind{KindTabSwitch}, p.dismissed)
	snap := m.Snapshot()
	require.NotNil(t, snap.Displayed)
	assert.Equal(t, KindSplitScreen, snap.Displayed.Kind)
	assert.True(t, snap.Warnings[KindTabSwitch])
}

func TestWarningAutoDismissAllowsRewarn(t *testing.T) {
	m, p, _ := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)
	m.Signals().SetTabHidden(true, t0)

	m.Evaluate(at(5))
	m.Evaluate(at(10))
	require.Len(t, p.shown, 1)

	// shown at 5 with a 5s countdown, auto-dismissed 5s after the countdown
	m.Evaluate(at(15))
	assert.Equal(t, []ViolationKind{KindTabSwitch}, p.dismissed)
	require.Len(t, p.shown, 2)
	assert.Zero(t, p.shown[1].Countdown)
}

func TestExamModeCopy(t *testing.T) {
	policy := DefaultPolicy()
	policy.Mode = ModeExam
	m, p, _ := newTestMonitor(t, policy)
	m.Start(nil, t0)
	m.Signals().SetTabHidden(true, t0)
	m.Evaluate(at(5))

	require.Len(t, p.shown, 1)
	assert.Equal(t, "Tab switch detected", p.shown[0].Title)
	assert.Equal(t, "Return within 5s.", p.shown[0].Message)
}

func TestFlushPolicy(t *testing.T) {
	m, _, s := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)

	for sec := 5.0; sec < 30; sec += 5 {
		assert.False(t, m.Evaluate(at(sec)).Flushed, "quiet tick at %vs", sec)
	}
	assert.True(t, m.Evaluate(at(30)).Flushed)

	m.Signals().SetURL("https://games.example.net/play", at(31))
	assert.False(t, m.Evaluate(at(35)).Flushed)

	m.Close(at(40))
	updates := s.byType(EventFocusUpdate)
	require.Len(t, updates, 2)
	for _, ev := range updates {
		require.NotNil(t, ev.FocusScore)
		assert.Equal(t, 100.0, *ev.FocusScore)
		assert.Empty(t, ev.Violations)
	}
}

func TestFlushCarriesCrossedViolationOnce(t *testing.T) {
	policy := DefaultPolicy()
	policy.BlockedHosts = []string{"games.example.net"}
	m, _, s := newTestMonitor(t, policy)
	m.Start(nil, t0)
	m.Signals().SetURL("https://www.games.example.net/lobby", t0)

	assert.False(t, m.Evaluate(at(3)).Flushed)
	assert.True(t, m.Evaluate(at(5)).Flushed)
	assert.True(t, m.Evaluate(at(10)).Flushed)
	assert.Zero(t, m.Pending())
	m.Close(at(11))

	var violations []Violation
	for _, ev := range s.byType(EventFocusUpdate) {
		violations = append(violations, ev.Violations...)
	}
	require.Len(t, violations, 1)
	assert.Equal(t, KindUnauthorizedURL, violations[0].Type)
	assert.Equal(t, "www.games.example.net", violations[0].URL)
	assert.Equal(t, t0, violations[0].Timestamp)
	assert.Equal(t, 94.0, m.Snapshot().Score)
}

func TestNetworkIssueEvents(t *testing.T) {
	m, _, s := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)

	m.Signals().SetOnline(false, at(1))
	m.Signals().SetOnline(false, at(2))
	m.Signals().SetOnline(true, at(4))
	m.Close(at(5))

	detected := s.byType(EventNetworkIssueDetected)
	resolved := s.byType(EventNetworkIssueResolved)
	require.Len(t, detected, 1)
	require.Len(t, resolved, 1)
	assert.Equal(t, at(1), detected[0].Timestamp)
	assert.False(t, detected[0].NetworkStable)
	assert.Equal(t, at(4), resolved[0].Timestamp)
	assert.True(t, resolved[0].NetworkStable)
}

func TestLookingFlagOnlyWithCamera(t *testing.T) {
	m, _, s := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)
	m.Close(at(1))

	updates := s.byType(EventFocusUpdate)
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].IsLookingAtScreen)
	assert.Equal(t, CameraOff, updates[0].CameraMode)
}

func TestRunEvaluatesScheduledTicks(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultPolicy())
	m.Start(nil, t0)
	m.Signals().SetTabHidden(true, t0)

	sched := NewManualScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, sched)
		close(done)
	}()

	for _, sec := range []float64{5, 10, 15, 20} {
		sched.Tick(at(sec))
	}
	cancel()
	<-done

	assert.Equal(t, 94.0, m.Snapshot().Score)
}

func TestTicksIgnoredBeforeStartAndAfterClose(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultPolicy())
	m.Signals().SetTabHidden(true, t0)
	assert.Equal(t, 100.0, m.Evaluate(at(30)).Score)

	m.Start(nil, at(30))
	assert.Equal(t, at(30), m.Snapshot().Violations[KindTabSwitch])

	m.Close(at(31))
	assert.Equal(t, 100.0, m.Evaluate(at(60)).Score)
}

func TestUnauthorizedHost(t *testing.T) {
	cases := []struct {
		host    string
		allowed []string
		blocked []string
		want    bool
	}{
		{"", nil, []string{"x.com"}, false},
		{"x.com", nil, []string{"x.com"}, true},
		{"m.x.com", nil, []string{"*.x.com"}, true},
		{"notx.com", nil, []string{"x.com"}, false},
		{"meet.example.org", []string{"example.org"}, nil, false},
		{"docs.other.org", []string{"example.org"}, nil, true},
		{"example.org", []string{"example.org"}, []string{"example.org"}, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, unauthorizedHost(c.host, c.allowed, c.blocked), c.host)
	}
}

func TestNetworkIssuePairSentInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	slowDetected := SenderFunc(func(_ context.Context, ev Event) error {
		if ev.EventType == EventNetworkIssueDetected {
			time.Sleep(30 * time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		order = append(order, ev.EventType)
		return nil
	})
	m := NewMonitor(Options{ParticipantID: "p1", SessionID: "s1", Policy: DefaultPolicy(), Sender: slowDetected})
	m.Start(nil, t0)
	m.Signals().SetOnline(false, at(1))
	m.Signals().SetOnline(true, at(4))
	m.Close(at(5))

	mu.Lock()
	defer mu.Unlock()
	var network []string
	for _, typ := range order {
		if typ != EventFocusUpdate {
			network = append(network, typ)
		}
	}
	assert.Equal(t, []string{EventNetworkIssueDetected, EventNetworkIssueResolved}, network)
}

func TestBestEffortSeqContinuesAfterFailure(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	b := NewBestEffort(SenderFunc(func(_ context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, ev.EventType)
		if ev.EventType == EventNetworkIssueDetected {
			return errors.New("connection refused")
		}
		return nil
	}), time.Second, nil)
	b.DispatchSeq(Event{EventType: EventNetworkIssueDetected}, Event{EventType: EventNetworkIssueResolved})
	b.Wait()
	assert.Equal(t, []string{EventNetworkIssueDetected, EventNetworkIssueResolved}, sent)
}
