package participants

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-proctor/backend/internal/models"
	"github.com/aura-proctor/backend/internal/networklog"
	"github.com/aura-proctor/backend/pkg/response"
)

// Store is the participant persistence used by the dashboard.
type Store interface {
	Create(ctx context.Context, p *models.Participant) error
	Get(ctx context.Context, participantID, sessionID uuid.UUID) (*models.Participant, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
}

// HistoryReader reads focus events and violations.
type HistoryReader interface {
	ListHistory(ctx context.Context, participantID uuid.UUID) ([]models.FocusEvent, error)
	ListViolations(ctx context.Context, participantID uuid.UUID) ([]models.Violation, error)
}

// NetworkReader reads the network issue log.
type NetworkReader interface {
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.NetworkLog, error)
	SummarizeSession(ctx context.Context, sessionID uuid.UUID) (*networklog.Summary, error)
}

// CreateRequest is the body for POST /sessions/:id/participants.
type CreateRequest struct {
	FullName   string     `json:"full_name" binding:"required"`
	RollNumber string     `json:"roll_number"`
	UserID     *uuid.UUID `json:"user_id"`
}

// Handler serves the host dashboard reads.
type Handler struct {
	store   Store
	history HistoryReader
	network NetworkReader
	logger  *zap.Logger
}

// NewHandler creates a participant dashboard handler.
func NewHandler(store Store, history HistoryReader, network NetworkReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, history: history, network: network, logger: logger}
}

// Create handles POST /sessions/:id/participants (roster import by the host).
func (h *Handler) Create(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p := &models.Participant{SessionID: sessionID, UserID: req.UserID, FullName: req.FullName, RollNumber: req.RollNumber}
	if err := h.store.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("create participant", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to create participant")
		return
	}
	response.Created(c, p)
}

// List handles GET /sessions/:id/participants.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	ctx := c.Request.Context()
	list, err := h.store.ListBySession(ctx, sessionID)
	if err != nil {
		h.logger.Error("list participants", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to list participants")
		return
	}
	if list == nil {
		list = []models.Participant{}
	}
	summary, err := h.network.SummarizeSession(ctx, sessionID)
	if err != nil {
		h.logger.Error("summarize network log", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to summarize network issues")
		return
	}
	response.OK(c, gin.H{"participants": list, "network_summary": summary})
}

// Violations handles GET /sessions/:id/participants/:pid/violations.
func (h *Handler) Violations(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	list, err := h.history.ListViolations(c.Request.Context(), p.ID)
	if err != nil {
		h.logger.Error("list violations", zap.String("participant_id", p.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list violations")
		return
	}
	if list == nil {
		list = []models.Violation{}
	}
	response.OK(c, gin.H{"participant": p, "violations": list})
}

// History handles GET /sessions/:id/participants/:pid/history.
func (h *Handler) History(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	list, err := h.history.ListHistory(c.Request.Context(), p.ID)
	if err != nil {
		h.logger.Error("list history", zap.String("participant_id", p.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list history")
		return
	}
	if list == nil {
		list = []models.FocusEvent{}
	}
	response.OK(c, gin.H{"participant": p, "history": list})
}

// Network handles GET /sessions/:id/participants/:pid/network.
func (h *Handler) Network(c *gin.Context) {
	p, ok := h.participant(c)
	if !ok {
		return
	}
	list, err := h.network.ListByParticipant(c.Request.Context(), p.ID)
	if err != nil {
		h.logger.Error("list network log", zap.String("participant_id", p.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list network log")
		return
	}
	if list == nil {
		list = []models.NetworkLog{}
	}
	response.OK(c, gin.H{"participant": p, "network": list})
}

// participant resolves :id and :pid, writing the error response itself on failure.
func (h *Handler) participant(c *gin.Context) (*models.Participant, bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return nil, false
	}
	participantID, err := uuid.Parse(c.Param("pid"))
	if err != nil {
		response.BadRequest(c, "invalid participant id")
		return nil, false
	}
	p, err := h.store.Get(c.Request.Context(), participantID, sessionID)
	if err != nil {
		h.logger.Error("get participant", zap.String("participant_id", participantID.String()), zap.Error(err))
		response.Internal(c, "failed to load participant")
		return nil, false
	}
	if p == nil {
		response.NotFound(c, "participant not found")
		return nil, false
	}
	return p, true
}
