package localstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aura-proctor/backend/internal/models"
)

const participantColumns = `id, session_id, user_id, full_name, roll_number, final_focus_score, violations_count,
	network_issue_seconds, last_heartbeat, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var (
		p                  models.Participant
		heartbeat          sql.NullInt64
		created, updatedAt int64
	)
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.FullName, &p.RollNumber, &p.FinalFocusScore,
		&p.ViolationsCount, &p.NetworkIssueSeconds, &heartbeat, &created, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.LastHeartbeat = nullMillis(heartbeat)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// Create registers a participant in a session.
func (s *Store) Create(ctx context.Context, p *models.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participants (id, session_id, user_id, full_name, roll_number, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.UserID, p.FullName, p.RollNumber, millis(now), millis(now))
	if err != nil {
		return err
	}
	p.FinalFocusScore = 100
	p.ViolationsCount = 0
	p.NetworkIssueSeconds = 0
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Get returns the participant in session, or nil if there is none.
func (s *Store) Get(ctx context.Context, participantID, sessionID uuid.UUID) (*models.Participant, error) {
	return scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ? AND session_id = ?`,
		participantID, sessionID))
}

// UpdateFocusScore stores the absolute score and heartbeat. Returns nil if the
// participant does not exist in session.
func (s *Store) UpdateFocusScore(ctx context.Context, participantID, sessionID uuid.UUID, score float64, at time.Time) (*models.Participant, error) {
	return scanParticipant(s.db.QueryRowContext(ctx,
		`UPDATE participants SET final_focus_score = ?, last_heartbeat = ?, updated_at = ?
		 WHERE id = ? AND session_id = ? RETURNING `+participantColumns,
		score, millis(at), millis(s.now()), participantID, sessionID))
}

// Touch updates only the heartbeat. Returns nil if the participant does not exist.
func (s *Store) Touch(ctx context.Context, participantID, sessionID uuid.UUID, at time.Time) (*models.Participant, error) {
	return scanParticipant(s.db.QueryRowContext(ctx,
		`UPDATE participants SET last_heartbeat = ?, updated_at = ?
		 WHERE id = ? AND session_id = ? RETURNING `+participantColumns,
		millis(at), millis(s.now()), participantID, sessionID))
}

// IncrementViolations adds n to the violation counter.
func (s *Store) IncrementViolations(ctx context.Context, participantID uuid.UUID, n int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE participants SET violations_count = violations_count + ?, updated_at = ? WHERE id = ?`,
		n, millis(s.now()), participantID)
	return err
}

// AddNetworkIssueSeconds accumulates offline time.
func (s *Store) AddNetworkIssueSeconds(ctx context.Context, participantID uuid.UUID, seconds float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE participants SET network_issue_seconds = network_issue_seconds + ?, updated_at = ? WHERE id = ?`,
		seconds, millis(s.now()), participantID)
	return err
}

// ListBySession returns participants of a session, lowest score first.
func (s *Store) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE session_id = ? ORDER BY final_focus_score ASC, full_name ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}
