package localstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aura-proctor/backend/internal/models"
	"github.com/aura-proctor/backend/internal/networklog"
)

// Open records the start of a connectivity loss.
func (s *Store) Open(ctx context.Context, participantID, sessionID uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO network_logs (id, participant_id, session_id, status, started_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New(), participantID, sessionID, models.NetworkStatusOffline, millis(at), millis(s.now()))
	return err
}

// ResolveLatest closes the most recent open entry of the participant and returns its
// duration. found is false when there was no open entry; nothing is written then.
func (s *Store) ResolveLatest(ctx context.Context, participantID uuid.UUID, at time.Time) (seconds float64, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		id      string
		started int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, started_at FROM network_logs WHERE participant_id = ? AND status = ?
		 ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		participantID, models.NetworkStatusOffline).Scan(&id, &started)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.Rollback()
		return 0, false, err
	}
	if err != nil {
		return 0, false, err
	}

	seconds = at.Sub(fromMillis(started)).Seconds()
	if seconds < 0 {
		seconds = 0
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE network_logs SET status = ?, resolved_at = ?, duration_seconds = ? WHERE id = ?`,
		models.NetworkStatusResolved, millis(at), seconds, id); err != nil {
		return 0, false, err
	}
	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return seconds, true, nil
}

// ListByParticipant returns a participant's network log, newest first.
func (s *Store) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.NetworkLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_id, session_id, status, started_at, resolved_at, duration_seconds, created_at
		 FROM network_logs WHERE participant_id = ? ORDER BY started_at DESC, rowid DESC`,
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.NetworkLog
	for rows.Next() {
		var (
			l                models.NetworkLog
			started, created int64
			resolved         sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.ParticipantID, &l.SessionID, &l.Status, &started, &resolved,
			&l.DurationSeconds, &created); err != nil {
			return nil, err
		}
		l.StartedAt = fromMillis(started)
		l.ResolvedAt = nullMillis(resolved)
		l.CreatedAt = fromMillis(created)
		list = append(list, l)
	}
	return list, rows.Err()
}

// SummarizeSession returns total resolved offline time, distinct affected participants
// and still-open entries for a session.
func (s *Store) SummarizeSession(ctx context.Context, sessionID uuid.UUID) (*networklog.Summary, error) {
	var sum networklog.Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_seconds), 0), COUNT(DISTINCT participant_id),
			COALESCE(SUM(CASE WHEN status = 'offline' THEN 1 ELSE 0 END), 0)
		 FROM network_logs WHERE session_id = ?`,
		sessionID).Scan(&sum.TotalOfflineSeconds, &sum.AffectedParticipants, &sum.OpenIssues)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
