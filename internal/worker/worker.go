package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aura-proctor/backend/internal/archive"
	"github.com/aura-proctor/backend/pkg/queue"
	"github.com/aura-proctor/backend/pkg/storage"
)

// JobQueue is the part of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Uploader stores archive objects.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// ArchiveProcessor processes session archive jobs: render every participant's history
// as JSON lines and upload one object per participant.
type ArchiveProcessor struct {
	builder *archive.Builder
	store   Uploader
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewArchiveProcessor creates a session archive processor.
func NewArchiveProcessor(builder *archive.Builder, store Uploader, q JobQueue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{builder: builder, store: store, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSessionArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	list, err := p.builder.Participants(ctx, payload.SessionID)
	if err != nil {
		return err
	}
	for _, participant := range list {
		body, err := p.builder.Render(ctx, participant)
		if err != nil {
			return fmt.Errorf("render %s: %w", participant.ID, err)
		}
		key := storage.ArchiveKey(payload.SessionID.String(), participant.ID.String())
		if _, err := p.store.Upload(ctx, key, storage.ContentTypeJSONLines, bytes.NewReader(body), int64(len(body))); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}

	p.logger.Info("session archive completed",
		zap.String("session_id", payload.SessionID.String()),
		zap.Int("participants", len(list)),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ArchiveProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
