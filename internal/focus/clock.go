package focus

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler delivers tick times. Run evaluates one tick per value received.
type Scheduler interface {
	C() <-chan time.Time
	Stop()
}

type tickerScheduler struct {
	t *time.Ticker
}

// NewTickerScheduler ticks every d on the wall clock.
func NewTickerScheduler(d time.Duration) Scheduler {
	return &tickerScheduler{t: time.NewTicker(d)}
}

func (s *tickerScheduler) C() <-chan time.Time { return s.t.C }
func (s *tickerScheduler) Stop()               { s.t.Stop() }

// ManualScheduler is driven by Tick. Tick blocks until the receiver takes the value.
type ManualScheduler struct {
	ch chan time.Time
}

// NewManualScheduler creates a scheduler driven by the caller.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{ch: make(chan time.Time)}
}

// Tick delivers one tick at t.
func (s *ManualScheduler) Tick(t time.Time) {
	s.ch <- t
}

func (s *ManualScheduler) C() <-chan time.Time { return s.ch }
func (s *ManualScheduler) Stop()               {}
