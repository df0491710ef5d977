package participants

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-proctor/backend/internal/localstore"
	"github.com/aura-proctor/backend/internal/models"
)

func setup(t *testing.T) (*localstore.Store, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := localstore.Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, store, store, nil)
	r := gin.New()
	s := r.Group("/sessions/:id")
	s.POST("/participants", h.Create)
	s.GET("/participants", h.List)
	s.GET("/participants/:pid/violations", h.Violations)
	s.GET("/participants/:pid/history", h.History)
	s.GET("/participants/:pid/network", h.Network)
	return store, r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, into))
}

func TestCreateAndList(t *testing.T) {
	store, r := setup(t)
	session := uuid.New()
	base := "/sessions/" + session.String() + "/participants"

	w := do(r, http.MethodPost, base, `{"full_name":"Ada Lovelace","roll_number":"CS-1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Participant
	decode(t, w, &created)
	assert.Equal(t, 100.0, created.FinalFocusScore)
	assert.Equal(t, session, created.SessionID)

	w = do(r, http.MethodPost, base, `{"roll_number":"CS-2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ctx := context.Background()
	require.NoError(t, store.Open(ctx, created.ID, session, time.Now().Add(-time.Minute)))

	w = do(r, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Participants []models.Participant `json:"participants"`
		Summary      struct {
			AffectedParticipants int `json:"affected_participants"`
			OpenIssues           int `json:"open_issues"`
		} `json:"network_summary"`
	}
	decode(t, w, &list)
	require.Len(t, list.Participants, 1)
	assert.Equal(t, "Ada Lovelace", list.Participants[0].FullName)
	assert.Equal(t, 1, list.Summary.AffectedParticipants)
	assert.Equal(t, 1, list.Summary.OpenIssues)
}

func TestListEmptySession(t *testing.T) {
	_, r := setup(t)
	w := do(r, http.MethodGet, "/sessions/"+uuid.NewString()+"/participants", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"participants":[]`)

	w = do(r, http.MethodGet, "/sessions/not-a-uuid/participants", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParticipantDetailRoutes(t *testing.T) {
	store, r := setup(t)
	ctx := context.Background()
	p := &models.Participant{SessionID: uuid.New(), FullName: "Alan Turing"}
	require.NoError(t, store.Create(ctx, p))
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertViolations(ctx, []models.Violation{
		{ParticipantID: p.ID, SessionID: p.SessionID, Type: "camera_off", OccurredAt: at},
	}))
	require.NoError(t, store.InsertFocusEvent(ctx, &models.FocusEvent{
		ParticipantID: p.ID, SessionID: p.SessionID, EventType: "focus_update", FocusScore: 94, CreatedAt: at,
	}))
	prefix := "/sessions/" + p.SessionID.String() + "/participants/" + p.ID.String()

	w := do(r, http.MethodGet, prefix+"/violations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var violations struct {
		Violations []models.Violation `json:"violations"`
	}
	decode(t, w, &violations)
	require.Len(t, violations.Violations, 1)
	assert.Equal(t, "camera_off", violations.Violations[0].Type)

	w = do(r, http.MethodGet, prefix+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []models.FocusEvent `json:"history"`
	}
	decode(t, w, &history)
	require.Len(t, history.History, 1)
	assert.Equal(t, 94.0, history.History[0].FocusScore)

	w = do(r, http.MethodGet, prefix+"/network", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"network":[]`)
}

func TestParticipantNotInSession(t *testing.T) {
	store, r := setup(t)
	p := &models.Participant{SessionID: uuid.New(), FullName: "Ken"}
	require.NoError(t, store.Create(context.Background(), p))

	w := do(r, http.MethodGet, "/sessions/"+uuid.NewString()+"/participants/"+p.ID.String()+"/violations", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/sessions/"+p.SessionID.String()+"/participants/nope/history", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
