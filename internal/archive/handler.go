package archive

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-proctor/backend/internal/middleware"
	"github.com/aura-proctor/backend/pkg/queue"
	"github.com/aura-proctor/backend/pkg/response"
	"github.com/aura-proctor/backend/pkg/storage"
)

// Enqueuer schedules archive jobs.
type Enqueuer interface {
	EnqueueArchive(ctx context.Context, payload queue.ArchivePayload) (string, error)
}

// Signer produces download links for stored archives.
type Signer interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Handler handles archive endpoints.
type Handler struct {
	queue  Enqueuer
	signer Signer
	logger *zap.Logger
}

// NewHandler creates an archive handler. Either dependency may be nil; the matching
// endpoint then answers 503.
func NewHandler(q Enqueuer, signer Signer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{queue: q, signer: signer, logger: logger}
}

// Enqueue handles POST /sessions/:id/archive.
func (h *Handler) Enqueue(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if h.queue == nil {
		response.ServiceUnavailable(c, "archiving is not configured")
		return
	}
	var requestedBy uuid.UUID
	if v, ok := c.Get(middleware.ContextUserID); ok {
		requestedBy, _ = v.(uuid.UUID)
	}
	jobID, err := h.queue.EnqueueArchive(c.Request.Context(), queue.ArchivePayload{SessionID: sessionID, RequestedBy: requestedBy})
	if err != nil {
		h.logger.Error("enqueue archive", zap.String("session_id", sessionID.String()), zap.Error(err))
		response.Internal(c, "failed to enqueue archive")
		return
	}
	response.Created(c, gin.H{"job_id": jobID})
}

// Download handles GET /sessions/:id/participants/:pid/archive.
func (h *Handler) Download(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	participantID, err := uuid.Parse(c.Param("pid"))
	if err != nil {
		response.BadRequest(c, "invalid participant id")
		return
	}
	if h.signer == nil {
		response.ServiceUnavailable(c, "archiving is not configured")
		return
	}
	key := storage.ArchiveKey(sessionID.String(), participantID.String())
	ok, err := h.signer.Exists(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("check archive", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to check archive")
		return
	}
	if !ok {
		response.NotFound(c, "archive not found")
		return
	}
	url, err := h.signer.PresignDownload(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("presign archive", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to sign archive url")
		return
	}
	response.OK(c, gin.H{"url": url, "key": key})
}
