package focusevents

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-proctor/backend/internal/models"
)

// Repository handles focus_events and violations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a focus event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertFocusEvent appends one history row.
func (r *Repository) InsertFocusEvent(ctx context.Context, e *models.FocusEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	const q = `INSERT INTO focus_events (id, participant_id, session_id, event_type, focus_score,
		is_looking_at_screen, is_tab_active, is_window_visible, current_url, network_stable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.pool.Exec(ctx, q, e.ID, e.ParticipantID, e.SessionID, e.EventType, e.FocusScore,
		e.IsLookingAtScreen, e.IsTabActive, e.IsWindowVisible, e.CurrentURL, e.NetworkStable, e.CreatedAt)
	return err
}

// InsertViolations inserts one row per violation in a single batch.
func (r *Repository) InsertViolations(ctx context.Context, vs []models.Violation) error {
	if len(vs) == 0 {
		return nil
	}
	const q = `INSERT INTO violations (id, participant_id, session_id, type, url, duration_seconds, camera_mode, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	batch := &pgx.Batch{}
	for i := range vs {
		v := &vs[i]
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		batch.Queue(q, v.ID, v.ParticipantID, v.SessionID, v.Type, v.URL, v.DurationSeconds, v.CameraMode, v.OccurredAt)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// ListHistory returns a participant's focus events, oldest first.
func (r *Repository) ListHistory(ctx context.Context, participantID uuid.UUID) ([]models.FocusEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, participant_id, session_id, event_type, focus_score, is_looking_at_screen, is_tab_active,
			is_window_visible, current_url, network_stable, created_at
		 FROM focus_events WHERE participant_id = $1 ORDER BY created_at ASC`,
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.FocusEvent
	for rows.Next() {
		var e models.FocusEvent
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.SessionID, &e.EventType, &e.FocusScore, &e.IsLookingAtScreen,
			&e.IsTabActive, &e.IsWindowVisible, &e.CurrentURL, &e.NetworkStable, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListViolations returns a participant's violations, oldest first.
func (r *Repository) ListViolations(ctx context.Context, participantID uuid.UUID) ([]models.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, participant_id, session_id, type, url, duration_seconds, camera_mode, occurred_at, created_at
		 FROM violations WHERE participant_id = $1 ORDER BY occurred_at ASC`,
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Violation
	for rows.Next() {
		var v models.Violation
		if err := rows.Scan(&v.ID, &v.ParticipantID, &v.SessionID, &v.Type, &v.URL, &v.DurationSeconds,
			&v.CameraMode, &v.OccurredAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}
