package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-proctor/backend/internal/focus"
	"github.com/aura-proctor/backend/internal/models"
)

// wireSender hands monitor events to the service as the HTTP handler would.
func wireSender(svc *Service, delay map[string]time.Duration) focus.Sender {
	return focus.SenderFunc(func(ctx context.Context, ev focus.Event) error {
		time.Sleep(delay[ev.EventType])
		body, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return err
		}
		_, err = svc.Process(ctx, &req)
		return err
	})
}

func TestMonitorOutageIsClosedOnServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := focus.NewMonitor(focus.Options{
		ParticipantID: f.participant.ID.String(),
		SessionID:     f.participant.SessionID.String(),
		Policy:        focus.DefaultPolicy(),
		Sender:        wireSender(f.svc, map[string]time.Duration{focus.EventNetworkIssueDetected: 50 * time.Millisecond}),
	})
	m.Start(nil, base.Add(-30*time.Second))
	m.Signals().SetOnline(false, base.Add(-20*time.Second))
	m.Signals().SetOnline(true, base.Add(-5*time.Second))
	m.Close(base)

	p := f.reload(t)
	assert.InDelta(t, 15.0, p.NetworkIssueSeconds, 0.001)

	logs, err := f.store.ListByParticipant(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.NetworkStatusResolved, logs[0].Status)
}
