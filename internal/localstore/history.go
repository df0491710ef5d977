package localstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aura-proctor/backend/internal/models"
)

// InsertFocusEvent appends one history row.
func (s *Store) InsertFocusEvent(ctx context.Context, e *models.FocusEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO focus_events (id, participant_id, session_id, event_type, focus_score,
			is_looking_at_screen, is_tab_active, is_window_visible, current_url, network_stable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ParticipantID, e.SessionID, e.EventType, e.FocusScore,
		e.IsLookingAtScreen, e.IsTabActive, e.IsWindowVisible, e.CurrentURL, e.NetworkStable, millis(e.CreatedAt))
	return err
}

// InsertViolations inserts one row per violation in a single transaction.
func (s *Store) InsertViolations(ctx context.Context, vs []models.Violation) error {
	if len(vs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO violations (id, participant_id, session_id, type, url, duration_seconds, camera_mode, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := millis(s.now())
	for i := range vs {
		v := &vs[i]
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, v.ID, v.ParticipantID, v.SessionID, v.Type, v.URL,
			v.DurationSeconds, v.CameraMode, millis(v.OccurredAt), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert violation %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListHistory returns a participant's focus events, oldest first.
func (s *Store) ListHistory(ctx context.Context, participantID uuid.UUID) ([]models.FocusEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_id, session_id, event_type, focus_score, is_looking_at_screen, is_tab_active,
			is_window_visible, current_url, network_stable, created_at
		 FROM focus_events WHERE participant_id = ? ORDER BY created_at ASC, rowid ASC`,
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.FocusEvent
	for rows.Next() {
		var (
			e       models.FocusEvent
			created int64
		)
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.SessionID, &e.EventType, &e.FocusScore, &e.IsLookingAtScreen,
			&e.IsTabActive, &e.IsWindowVisible, &e.CurrentURL, &e.NetworkStable, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMillis(created)
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListViolations returns a participant's violations, oldest first.
func (s *Store) ListViolations(ctx context.Context, participantID uuid.UUID) ([]models.Violation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_id, session_id, type, url, duration_seconds, camera_mode, occurred_at, created_at
		 FROM violations WHERE participant_id = ? ORDER BY occurred_at ASC, rowid ASC`,
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Violation
	for rows.Next() {
		var (
			v                 models.Violation
			occurred, created int64
		)
		if err := rows.Scan(&v.ID, &v.ParticipantID, &v.SessionID, &v.Type, &v.URL, &v.DurationSeconds,
			&v.CameraMode, &occurred, &created); err != nil {
			return nil, err
		}
		v.OccurredAt = fromMillis(occurred)
		v.CreatedAt = fromMillis(created)
		list = append(list, v)
	}
	return list, rows.Err()
}
