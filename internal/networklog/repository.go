package networklog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-proctor/backend/internal/models"
)

// Summary aggregates offline time for a session.
type Summary struct {
	TotalOfflineSeconds  float64 `json:"total_offline_seconds"`
	AffectedParticipants int     `json:"affected_participants"`
	OpenIssues           int     `json:"open_issues"`
}

// Repository handles network_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a network log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Open records the start of a connectivity loss.
func (r *Repository) Open(ctx context.Context, participantID, sessionID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO network_logs (id, participant_id, session_id, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), participantID, sessionID, models.NetworkStatusOffline, at)
	return err
}

// ResolveLatest closes the most recent open entry of the participant and returns its
// duration. found is false when there was no open entry; nothing is written then.
func (r *Repository) ResolveLatest(ctx context.Context, participantID uuid.UUID, at time.Time) (seconds float64, found bool, err error) {
	err = r.pool.QueryRow(ctx,
		`UPDATE network_logs n SET status = $2, resolved_at = $3,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($3 - n.started_at)))::DOUBLE PRECISION
		 FROM (SELECT id FROM network_logs WHERE participant_id = $1 AND status = 'offline' ORDER BY started_at DESC LIMIT 1) AS sub
		 WHERE n.id = sub.id
		 RETURNING n.duration_seconds`,
		participantID, models.NetworkStatusResolved, at).Scan(&seconds)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seconds, true, nil
}

// ListByParticipant returns a participant's network log, newest first.
func (r *Repository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.NetworkLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, participant_id, session_id, status, started_at, resolved_at, duration_seconds, created_at
		 FROM network_logs WHERE participant_id = $1 ORDER BY started_at DESC`,
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.NetworkLog
	for rows.Next() {
		var l models.NetworkLog
		if err := rows.Scan(&l.ID, &l.ParticipantID, &l.SessionID, &l.Status, &l.StartedAt, &l.ResolvedAt,
			&l.DurationSeconds, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// SummarizeSession returns total resolved offline time, distinct affected participants
// and still-open entries for a session.
func (r *Repository) SummarizeSession(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	const q = `SELECT COALESCE(SUM(duration_seconds), 0), COUNT(DISTINCT participant_id),
		COUNT(*) FILTER (WHERE status = 'offline')
		FROM network_logs WHERE session_id = $1`
	var s Summary
	if err := r.pool.QueryRow(ctx, q, sessionID).Scan(&s.TotalOfflineSeconds, &s.AffectedParticipants, &s.OpenIssues); err != nil {
		return nil, err
	}
	return &s, nil
}
