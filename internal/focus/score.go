package focus

import (
	"math"
	"time"
)

// ScoreEngine is the only writer of SessionState.Score.
type ScoreEngine struct {
	recoveryRate float64
}

// NewScoreEngine creates an engine recovering rate points per quiet tick.
func NewScoreEngine(rate float64) *ScoreEngine {
	if rate < 0 {
		rate = 0
	}
	return &ScoreEngine{recoveryRate: rate}
}

// ApplyTick applies one tick's total deduction. A positive deduction is subtracted and
// logged as PENALTY. With no deduction and no active kind the score recovers, and a
// RECOVERY entry is logged only when the displayed percentage changes. It returns the
// signed score change.
func (e *ScoreEngine) ApplyTick(st *SessionState, deduction float64, now time.Time) float64 {
	old := clampScore(st.Score)
	st.Score = old

	if deduction > 0 {
		st.Score = clampScore(old - deduction)
		st.History = append(st.History, HistoryEntry{
			Type:      HistoryPenalty,
			OldScore:  old,
			NewScore:  st.Score,
			Magnitude: deduction,
			Timestamp: now,
		})
		return st.Score - old
	}

	if st.AnyActive() || e.recoveryRate == 0 || old >= MaxScore {
		return 0
	}
	st.Score = clampScore(old + e.recoveryRate)
	if math.Round(st.Score) != math.Round(old) {
		st.History = append(st.History, HistoryEntry{
			Type:      HistoryRecovery,
			OldScore:  old,
			NewScore:  st.Score,
			Magnitude: st.Score - old,
			Timestamp: now,
		})
	}
	return st.Score - old
}
