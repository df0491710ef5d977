package participants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-proctor/backend/internal/models"
)

const columns = `id, session_id, user_id, full_name, roll_number, final_focus_score, violations_count,
	network_issue_seconds, last_heartbeat, created_at, updated_at`

// Repository handles participants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a participant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scan(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.FullName, &p.RollNumber, &p.FinalFocusScore,
		&p.ViolationsCount, &p.NetworkIssueSeconds, &p.LastHeartbeat, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create registers a participant in a session.
func (r *Repository) Create(ctx context.Context, p *models.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	const q = `INSERT INTO participants (id, session_id, user_id, full_name, roll_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING final_focus_score, violations_count, network_issue_seconds, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.ID, p.SessionID, p.UserID, p.FullName, p.RollNumber).
		Scan(&p.FinalFocusScore, &p.ViolationsCount, &p.NetworkIssueSeconds, &p.CreatedAt, &p.UpdatedAt)
}

// Get returns the participant in session, or nil if there is none.
func (r *Repository) Get(ctx context.Context, participantID, sessionID uuid.UUID) (*models.Participant, error) {
	q := `SELECT ` + columns + ` FROM participants WHERE id = $1 AND session_id = $2`
	return scan(r.pool.QueryRow(ctx, q, participantID, sessionID))
}

// UpdateFocusScore stores the absolute score and heartbeat. Returns nil if the
// participant does not exist in session.
func (r *Repository) UpdateFocusScore(ctx context.Context, participantID, sessionID uuid.UUID, score float64, at time.Time) (*models.Participant, error) {
	q := `UPDATE participants SET final_focus_score = $3, last_heartbeat = $4, updated_at = NOW()
		WHERE id = $1 AND session_id = $2 RETURNING ` + columns
	return scan(r.pool.QueryRow(ctx, q, participantID, sessionID, score, at))
}

// Touch updates only the heartbeat. Returns nil if the participant does not exist.
func (r *Repository) Touch(ctx context.Context, participantID, sessionID uuid.UUID, at time.Time) (*models.Participant, error) {
	q := `UPDATE participants SET last_heartbeat = $3, updated_at = NOW()
		WHERE id = $1 AND session_id = $2 RETURNING ` + columns
	return scan(r.pool.QueryRow(ctx, q, participantID, sessionID, at))
}

// IncrementViolations adds n to the violation counter.
func (r *Repository) IncrementViolations(ctx context.Context, participantID uuid.UUID, n int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants SET violations_count = violations_count + $2, updated_at = NOW() WHERE id = $1`,
		participantID, n)
	return err
}

// AddNetworkIssueSeconds accumulates offline time.
func (r *Repository) AddNetworkIssueSeconds(ctx context.Context, participantID uuid.UUID, seconds float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants SET network_issue_seconds = network_issue_seconds + $2, updated_at = NOW() WHERE id = $1`,
		participantID, seconds)
	return err
}

// ListBySession returns participants of a session, lowest score first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+columns+` FROM participants WHERE session_id = $1 ORDER BY final_focus_score ASC, full_name ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}
