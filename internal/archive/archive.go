package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/aura-proctor/backend/internal/models"
)

// Line kinds in an archive file.
const (
	KindParticipant = "participant"
	KindFocusEvent  = "focus_event"
	KindViolation   = "violation"
	KindNetwork     = "network"
)

// ParticipantLister lists the participants of a session.
type ParticipantLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
}

// HistoryReader reads a participant's focus history and violations.
type HistoryReader interface {
	ListHistory(ctx context.Context, participantID uuid.UUID) ([]models.FocusEvent, error)
	ListViolations(ctx context.Context, participantID uuid.UUID) ([]models.Violation, error)
}

// NetworkReader reads a participant's network log.
type NetworkReader interface {
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.NetworkLog, error)
}

// Line is one JSON object in an archive file.
type Line struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// Builder renders per-participant JSON-lines archives.
type Builder struct {
	participants ParticipantLister
	history      HistoryReader
	network      NetworkReader
}

// NewBuilder creates an archive builder.
func NewBuilder(participants ParticipantLister, history HistoryReader, network NetworkReader) *Builder {
	return &Builder{participants: participants, history: history, network: network}
}

// Participants returns the participants to archive for a session.
func (b *Builder) Participants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	list, err := b.participants.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return list, nil
}

// Render returns the archive of one participant: the participant record, then focus
// events, violations and network log entries in store order.
func (b *Builder) Render(ctx context.Context, p models.Participant) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Write(ctx, &buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the archive of one participant to w.
func (b *Builder) Write(ctx context.Context, w io.Writer, p models.Participant) error {
	events, err := b.history.ListHistory(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	violations, err := b.history.ListViolations(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list violations: %w", err)
	}
	logs, err := b.network.ListByParticipant(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list network log: %w", err)
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(Line{Kind: KindParticipant, Data: p}); err != nil {
		return err
	}
	for _, e := range events {
		if err := enc.Encode(Line{Kind: KindFocusEvent, Data: e}); err != nil {
			return err
		}
	}
	for _, v := range violations {
		if err := enc.Encode(Line{Kind: KindViolation, Data: v}); err != nil {
			return err
		}
	}
	for _, l := range logs {
		if err := enc.Encode(Line{Kind: KindNetwork, Data: l}); err != nil {
			return err
		}
	}
	return nil
}
