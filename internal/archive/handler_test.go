package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-proctor/backend/internal/middleware"
	"github.com/aura-proctor/backend/pkg/queue"
	"github.com/aura-proctor/backend/pkg/storage"
)

type fakeQueue struct {
	payloads []queue.ArchivePayload
	err      error
}

func (q *fakeQueue) EnqueueArchive(_ context.Context, p queue.ArchivePayload) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.payloads = append(q.payloads, p)
	return "job-1", nil
}

type fakeSigner struct {
	keys map[string]bool
}

func (s fakeSigner) Exists(_ context.Context, key string) (bool, error) {
	return s.keys[key], nil
}

func (s fakeSigner) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://bucket.example/" + key + "?sig=1", nil
}

func router(h *Handler, user uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, user)
		c.Next()
	})
	r.POST("/sessions/:id/archive", h.Enqueue)
	r.GET("/sessions/:id/participants/:pid/archive", h.Download)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestEnqueueArchive(t *testing.T) {
	q := &fakeQueue{}
	host, session := uuid.New(), uuid.New()
	r := router(NewHandler(q, nil, nil), host)

	w := serve(r, http.MethodPost, "/sessions/"+session.String()+"/archive")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, queue.ArchivePayload{SessionID: session, RequestedBy: host}, q.payloads[0])

	q.err = errors.New("redis down")
	w = serve(r, http.MethodPost, "/sessions/"+session.String()+"/archive")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestArchiveNotConfigured(t *testing.T) {
	r := router(NewHandler(nil, nil, nil), uuid.New())
	w := serve(r, http.MethodPost, "/sessions/"+uuid.NewString()+"/archive")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = serve(r, http.MethodGet, "/sessions/"+uuid.NewString()+"/participants/"+uuid.NewString()+"/archive")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDownloadArchive(t *testing.T) {
	session, participant := uuid.New(), uuid.New()
	key := storage.ArchiveKey(session.String(), participant.String())
	r := router(NewHandler(nil, fakeSigner{keys: map[string]bool{key: true}}, nil), uuid.New())

	w := serve(r, http.MethodGet, "/sessions/"+session.String()+"/participants/"+participant.String()+"/archive")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://bucket.example/"+key)

	w = serve(r, http.MethodGet, "/sessions/"+session.String()+"/participants/"+uuid.NewString()+"/archive")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodGet, "/sessions/"+session.String()+"/participants/bad/archive")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
