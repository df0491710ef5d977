package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-proctor/backend/internal/archive"
	"github.com/aura-proctor/backend/internal/localstore"
	"github.com/aura-proctor/backend/internal/models"
	"github.com/aura-proctor/backend/pkg/queue"
	"github.com/aura-proctor/backend/pkg/storage"
)

type memUploader struct {
	mu      sync.Mutex
	fail    bool
	objects map[string][]byte
	types   map[string]string
}

func (u *memUploader) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail {
		return "", errors.New("bucket unavailable")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if u.objects == nil {
		u.objects = make(map[string][]byte)
		u.types = make(map[string]string)
	}
	u.objects[key] = b
	u.types[key] = contentType
	return "s3://archives/" + key, nil
}

type chanQueue struct {
	jobs    chan *queue.Job
	retried chan *queue.Job
}

func (q *chanQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case j := <-q.jobs:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *chanQueue) Retry(_ context.Context, job *queue.Job) error {
	job.Attempt++
	q.retried <- job
	return nil
}

func archiveJob(t *testing.T, session uuid.UUID) *queue.Job {
	t.Helper()
	body, err := json.Marshal(queue.ArchivePayload{SessionID: session})
	require.NoError(t, err)
	return &queue.Job{ID: uuid.NewString(), Type: queue.JobTypeSessionArchive, Payload: body}
}

func seededBuilder(t *testing.T) (*archive.Builder, uuid.UUID, []models.Participant) {
	t.Helper()
	ctx := context.Background()
	store, err := localstore.Open(ctx, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	session := uuid.New()
	var list []models.Participant
	for _, name := range []string{"Ada", "Alan"} {
		p := &models.Participant{SessionID: session, FullName: name}
		require.NoError(t, store.Create(ctx, p))
		list = append(list, *p)
	}
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertFocusEvent(ctx, &models.FocusEvent{
		ParticipantID: list[0].ID, SessionID: session, EventType: "focus_update", FocusScore: 96, CreatedAt: at,
	}))
	require.NoError(t, store.InsertViolations(ctx, []models.Violation{
		{ParticipantID: list[0].ID, SessionID: session, Type: "tab_switch", OccurredAt: at},
	}))
	require.NoError(t, store.Open(ctx, list[0].ID, session, at))
	return archive.NewBuilder(store, store, store), session, list
}

func kinds(t *testing.T, body []byte) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var line struct {
			Kind string `json:"kind"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		out = append(out, line.Kind)
	}
	return out
}

func TestProcessUploadsOneArchivePerParticipant(t *testing.T) {
	builder, session, list := seededBuilder(t)
	up := &memUploader{}
	p := NewArchiveProcessor(builder, up, nil, nil)

	require.NoError(t, p.Process(context.Background(), archiveJob(t, session)))
	require.Len(t, up.objects, 2)

	first := storage.ArchiveKey(session.String(), list[0].ID.String())
	assert.Equal(t, storage.ContentTypeJSONLines, up.types[first])
	assert.Equal(t, []string{archive.KindParticipant, archive.KindFocusEvent, archive.KindViolation, archive.KindNetwork},
		kinds(t, up.objects[first]))

	second := storage.ArchiveKey(session.String(), list[1].ID.String())
	assert.Equal(t, []string{archive.KindParticipant}, kinds(t, up.objects[second]))
}

func TestProcessRejectsUnknownJob(t *testing.T) {
	builder, _, _ := seededBuilder(t)
	p := NewArchiveProcessor(builder, &memUploader{}, nil, nil)

	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "transcode"})
	assert.Error(t, err)

	err = p.Process(context.Background(), &queue.Job{ID: "y", Type: queue.JobTypeSessionArchive, Payload: json.RawMessage(`"oops"`)})
	assert.Error(t, err)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	builder, session, _ := seededBuilder(t)
	q := &chanQueue{jobs: make(chan *queue.Job, 1), retried: make(chan *queue.Job, 1)}
	p := NewArchiveProcessor(builder, &memUploader{fail: true}, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	q.jobs <- archiveJob(t, session)
	select {
	case job := <-q.retried:
		assert.Equal(t, 1, job.Attempt)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not retried")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
