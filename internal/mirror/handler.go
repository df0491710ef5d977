package mirror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-proctor/backend/pkg/response"
)

// Handler handles POST /focus/events.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a focus event handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the agent-facing routes.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/focus/events", h.Receive)
}

// Receive handles POST /focus/events.
func (h *Handler) Receive(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	res, err := h.svc.Process(c.Request.Context(), &req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, ErrInvalidRequest):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrParticipantNotFound):
		response.NotFound(c, err.Error())
	default:
		h.logger.Error("process focus event",
			zap.String("participant_id", req.ParticipantID),
			zap.String("event_type", req.EventType),
			zap.Error(err),
		)
		response.Internal(c, "failed to process focus event")
	}
}
