package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-proctor/backend/internal/models"
)

// Errors returned by Process. Handlers map them to 400 and 404.
var (
	ErrInvalidRequest      = errors.New("invalid focus event")
	ErrParticipantNotFound = errors.New("participant not found")
)

// Broadcast events.
const (
	BroadcastFocusUpdated  = "focus:updated"
	BroadcastNetworkStatus = "network:status"
)

// ParticipantStore persists participant records. Methods returning a participant
// return nil when it does not exist in the session.
type ParticipantStore interface {
	UpdateFocusScore(ctx context.Context, participantID, sessionID uuid.UUID, score float64, at time.Time) (*models.Participant, error)
	Touch(ctx context.Context, participantID, sessionID uuid.UUID, at time.Time) (*models.Participant, error)
	IncrementViolations(ctx context.Context, participantID uuid.UUID, n int) error
	AddNetworkIssueSeconds(ctx context.Context, participantID uuid.UUID, seconds float64) error
}

// HistoryStore persists focus events and violation rows.
type HistoryStore interface {
	InsertFocusEvent(ctx context.Context, e *models.FocusEvent) error
	InsertViolations(ctx context.Context, vs []models.Violation) error
}

// NetworkLogStore persists the append-only network issue log.
type NetworkLogStore interface {
	Open(ctx context.Context, participantID, sessionID uuid.UUID, at time.Time) error
	ResolveLatest(ctx context.Context, participantID uuid.UUID, at time.Time) (seconds float64, found bool, err error)
}

// Broadcaster fans an event out to a session's observers.
type Broadcaster interface {
	PublishToSession(sessionID uuid.UUID, event string, payload interface{})
}

// EventSink receives every focus:updated payload, keyed by participant.
type EventSink interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

// Service applies agent focus events to the stores and notifies observers. Each store
// call is independent: a failure mid-event leaves earlier writes in place.
type Service struct {
	participants ParticipantStore
	history      HistoryStore
	network      NetworkLogStore
	hub          Broadcaster
	sink         EventSink
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a mirror service. hub may be nil.
func NewService(participants ParticipantStore, history HistoryStore, network NetworkLogStore, hub Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		participants: participants,
		history:      history,
		network:      network,
		hub:          hub,
		logger:       logger,
		now:          time.Now,
	}
}

// SetSink streams focus updates to sink in addition to the hub.
func (s *Service) SetSink(sink EventSink) {
	s.sink = sink
}

type ids struct {
	participant uuid.UUID
	session     uuid.UUID
}

func parseIDs(req *Request) (ids, error) {
	if req.ParticipantID == "" || req.SessionID == "" {
		return ids{}, fmt.Errorf("%w: participantId and sessionId are required", ErrInvalidRequest)
	}
	pid, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		return ids{}, fmt.Errorf("%w: invalid participantId", ErrInvalidRequest)
	}
	sid, err := uuid.Parse(req.SessionID)
	if err != nil {
		return ids{}, fmt.Errorf("%w: invalid sessionId", ErrInvalidRequest)
	}
	return ids{participant: pid, session: sid}, nil
}

// Process validates and applies one event.
func (s *Service) Process(ctx context.Context, req *Request) (*Result, error) {
	id, err := parseIDs(req)
	if err != nil {
		return nil, err
	}
	now := s.now()

	switch ParseEventType(req.EventType) {
	case EventFocusUpdate:
		return s.focusUpdate(ctx, id, req, now)
	case EventNetworkDetected:
		return s.networkDetected(ctx, id, req, now)
	case EventNetworkResolved:
		return s.networkResolved(ctx, id, req, now)
	default:
		return s.other(ctx, id, req, now)
	}
}

func (s *Service) focusUpdate(ctx context.Context, id ids, req *Request, now time.Time) (*Result, error) {
	if req.FocusScore == nil {
		return nil, fmt.Errorf("%w: focusScore is required for focus_update", ErrInvalidRequest)
	}
	score := NormalizeScore(*req.FocusScore)

	p, err := s.participants.UpdateFocusScore(ctx, id.participant, id.session, score, now)
	if err != nil {
		return nil, fmt.Errorf("update focus score: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}

	ev := &models.FocusEvent{
		ParticipantID:     id.participant,
		SessionID:         id.session,
		EventType:         EventFocusUpdate.String(),
		FocusScore:        score,
		IsLookingAtScreen: req.IsLookingAtScreen,
		IsTabActive:       req.IsTabActive,
		IsWindowVisible:   req.IsWindowVisible,
		CurrentURL:        req.CurrentURL,
		NetworkStable:     networkStable(req),
		CreatedAt:         req.Timestamp.or(now),
	}
	if err := s.history.InsertFocusEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("insert focus event: %w", err)
	}

	if len(req.Violations) > 0 {
		rows := violationRows(id, req.Violations, now)
		if err := s.history.InsertViolations(ctx, rows); err != nil {
			return nil, fmt.Errorf("insert violations: %w", err)
		}
		if err := s.participants.IncrementViolations(ctx, id.participant, len(rows)); err != nil {
			return nil, fmt.Errorf("increment violations: %w", err)
		}
	}

	s.publishFocus(ctx, p, req, score, now)
	return &Result{Success: true, FocusScore: score}, nil
}

func (s *Service) networkDetected(ctx context.Context, id ids, req *Request, now time.Time) (*Result, error) {
	p, err := s.participants.Touch(ctx, id.participant, id.session, now)
	if err != nil {
		return nil, fmt.Errorf("touch participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	at := req.Timestamp.or(now)
	if err := s.network.Open(ctx, id.participant, id.session, at); err != nil {
		return nil, fmt.Errorf("open network issue: %w", err)
	}

	s.publish(id.session, BroadcastNetworkStatus, NetworkStatus{
		ParticipantID: id.participant.String(),
		FullName:      p.FullName,
		NetworkStable: false,
		Timestamp:     at,
	})
	return &Result{Success: true, FocusScore: p.FinalFocusScore, NetworkIssue: true}, nil
}

func (s *Service) networkResolved(ctx context.Context, id ids, req *Request, now time.Time) (*Result, error) {
	p, err := s.participants.Touch(ctx, id.participant, id.session, now)
	if err != nil {
		return nil, fmt.Errorf("touch participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	at := req.Timestamp.or(now)
	seconds, found, err := s.network.ResolveLatest(ctx, id.participant, at)
	if err != nil {
		return nil, fmt.Errorf("resolve network issue: %w", err)
	}
	if found {
		if err := s.participants.AddNetworkIssueSeconds(ctx, id.participant, seconds); err != nil {
			return nil, fmt.Errorf("add network issue duration: %w", err)
		}
	} else {
		s.logger.Debug("network resolution without open issue",
			zap.String("participant_id", id.participant.String()))
	}

	s.publish(id.session, BroadcastNetworkStatus, NetworkStatus{
		ParticipantID:   id.participant.String(),
		FullName:        p.FullName,
		NetworkStable:   true,
		DurationSeconds: seconds,
		Timestamp:       at,
	})
	return &Result{Success: true, FocusScore: p.FinalFocusScore, NetworkRestored: true}, nil
}

// other covers heartbeats and unknown event types: score and heartbeat only, no history.
func (s *Service) other(ctx context.Context, id ids, req *Request, now time.Time) (*Result, error) {
	var (
		p   *models.Participant
		err error
	)
	if req.FocusScore != nil {
		p, err = s.participants.UpdateFocusScore(ctx, id.participant, id.session, NormalizeScore(*req.FocusScore), now)
	} else {
		p, err = s.participants.Touch(ctx, id.participant, id.session, now)
	}
	if err != nil {
		return nil, fmt.Errorf("update participant: %w", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	s.publishFocus(ctx, p, req, p.FinalFocusScore, now)
	return &Result{Success: true, FocusScore: p.FinalFocusScore}, nil
}

func (s *Service) publishFocus(ctx context.Context, p *models.Participant, req *Request, score float64, now time.Time) {
	violations := req.Violations
	if violations == nil {
		violations = []ViolationInput{}
	}
	msg := FocusUpdated{
		ParticipantID:     p.ID.String(),
		FullName:          p.FullName,
		RollNumber:        p.RollNumber,
		FocusScore:        score,
		RiskLevel:         DeriveRisk(score),
		Status:            DeriveStatus(score),
		IsLookingAtScreen: req.IsLookingAtScreen,
		IsTabActive:       req.IsTabActive,
		IsWindowVisible:   req.IsWindowVisible,
		NetworkStable:     networkStable(req),
		Violations:        violations,
		Timestamp:         now,
	}
	s.publish(p.SessionID, BroadcastFocusUpdated, msg)
	if s.sink != nil {
		if err := s.sink.Publish(ctx, p.ID.String(), msg); err != nil {
			s.logger.Warn("stream focus update", zap.String("participant_id", p.ID.String()), zap.Error(err))
		}
	}
}

func (s *Service) publish(sessionID uuid.UUID, event string, payload interface{}) {
	if s.hub != nil {
		s.hub.PublishToSession(sessionID, event, payload)
	}
}

func networkStable(req *Request) bool {
	return req.NetworkStable == nil || *req.NetworkStable
}

func violationRows(id ids, in []ViolationInput, now time.Time) []models.Violation {
	rows := make([]models.Violation, 0, len(in))
	for _, v := range in {
		rows = append(rows, models.Violation{
			ParticipantID:   id.participant,
			SessionID:       id.session,
			Type:            v.Type,
			URL:             v.URL,
			DurationSeconds: v.Duration,
			CameraMode:      v.Mode,
			OccurredAt:      v.Timestamp.or(now),
		})
	}
	return rows
}
