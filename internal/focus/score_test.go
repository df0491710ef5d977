package focus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryAfterQuietTicks(t *testing.T) {
	e := NewScoreEngine(0.5)
	st := NewSessionState("p1", "s1")
	st.Score = 40

	e.ApplyTick(st, 0, at(5))
	e.ApplyTick(st, 0, at(10))

	assert.Equal(t, 41.0, st.Score)
	assert.Equal(t, 41, st.DisplayScore())
	require.Len(t, st.History, 1)
	assert.Equal(t, HistoryRecovery, st.History[0].Type)
}

func TestRecoveryStopsAtMax(t *testing.T) {
	e := NewScoreEngine(0.5)
	st := NewSessionState("p1", "s1")
	st.Score = 99.8

	e.ApplyTick(st, 0, at(5))
	assert.Equal(t, MaxScore, st.Score)

	delta := e.ApplyTick(st, 0, at(10))
	assert.Zero(t, delta)
	assert.Equal(t, MaxScore, st.Score)
}

func TestPenaltyClampsAtMin(t *testing.T) {
	e := NewScoreEngine(0.5)
	st := NewSessionState("p1", "s1")
	st.Score = 1.5

	delta := e.ApplyTick(st, 3, at(5))
	assert.Equal(t, MinScore, st.Score)
	assert.Equal(t, -1.5, delta)
	require.Len(t, st.History, 1)
	assert.Equal(t, HistoryPenalty, st.History[0].Type)
	assert.Equal(t, 3.0, st.History[0].Magnitude)
}

func TestRecoverySuppressedWhileAnyKindActive(t *testing.T) {
	e := NewScoreEngine(0.5)
	st := NewSessionState("p1", "s1")
	st.Score = 80
	st.Violations[KindSplitScreen] = t0

	delta := e.ApplyTick(st, 0, at(5))
	assert.Zero(t, delta)
	assert.Equal(t, 80.0, st.Score)
	assert.Empty(t, st.History)
}

func TestOneAggregatePenaltyEntryPerTick(t *testing.T) {
	e := NewScoreEngine(0.5)
	st := NewSessionState("p1", "s1")

	e.ApplyTick(st, 2+1+3, at(5))
	require.Len(t, st.History, 1)
	assert.Equal(t, 100.0, st.History[0].OldScore)
	assert.Equal(t, 94.0, st.History[0].NewScore)
}

func TestZeroRateNeverRecovers(t *testing.T) {
	e := NewScoreEngine(0)
	st := NewSessionState("p1", "s1")
	st.Score = 50
	for i := 1; i <= 10; i++ {
		e.ApplyTick(st, 0, at(float64(5*i)))
	}
	assert.Equal(t, 50.0, st.Score)
}
