package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-proctor/backend/internal/focus"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) messages(t *testing.T) []Message {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var m Message
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func types(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func find(msgs []Message, typ string) (Message, bool) {
	for _, m := range msgs {
		if m.Type == typ {
			return m, true
		}
	}
	return Message{}, false
}

type recordingSender struct {
	mu     sync.Mutex
	events []focus.Event
}

func (s *recordingSender) Send(_ context.Context, ev focus.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSender) all() []focus.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]focus.Event(nil), s.events...)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func manual(time.Duration) focus.Scheduler { return focus.NewManualScheduler() }

func msg(t *testing.T, typ string, payload interface{}) Message {
	t.Helper()
	m, err := NewMessage(typ, payload)
	require.NoError(t, err)
	return m
}

func ms(at time.Time) *int64 {
	v := at.UnixMilli()
	return &v
}

func TestNativeCodecFraming(t *testing.T) {
	var buf bytes.Buffer
	c := NewNativeCodec(&buf, &buf)
	require.NoError(t, c.Write(Message{Type: TypeStatus, Payload: json.RawMessage(`{"score":97}`)}))

	raw := buf.Bytes()
	n := binary.LittleEndian.Uint32(raw[:4])
	assert.Equal(t, int(n), len(raw)-4)
	assert.JSONEq(t, `{"type":"STATUS","payload":{"score":97}}`, string(raw[4:]))

	m, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, TypeStatus, m.Type)
	assert.JSONEq(t, `{"score":97}`, string(m.Payload))

	_, err = c.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func frame(body string) []byte {
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...)
}

func TestNativeCodecErrors(t *testing.T) {
	huge := make([]byte, 4)
	binary.LittleEndian.PutUint32(huge, MaxMessageSize+1)
	_, err := NewNativeCodec(bytes.NewReader(huge), io.Discard).Read()
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	truncated := frame(`{"type":"UNLOAD"}`)[:10]
	_, err = NewNativeCodec(bytes.NewReader(truncated), io.Discard).Read()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	in := append(frame(`{nope`), frame(`{"type":"UNLOAD"}`)...)
	c := NewNativeCodec(bytes.NewReader(in), io.Discard)
	_, err = c.Read()
	assert.ErrorIs(t, err, ErrBadMessage)
	m, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, TypeUnload, m.Type)
}

func TestLineCodecSkipsBlankLines(t *testing.T) {
	var out bytes.Buffer
	c := NewLineCodec(strings.NewReader("\n{\"type\":\"SEND_HEARTBEAT\"}\n\n"), &out)
	m, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, TypeSendHeartbeat, m.Type)
	_, err = c.Read()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, c.Write(Message{Type: TypeUnload}))
	assert.Equal(t, "{\"type\":\"UNLOAD\"}\n", out.String())
}

func TestHTTPSenderPostsEvents(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, EventsPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got["participantId"] == "missing" {
			http.Error(w, `{"success":false,"error":"participant not found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"focusScore":98}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL+"/", nil)
	score := 98.0
	err := s.Send(context.Background(), focus.Event{
		ParticipantID: "p1", SessionID: "s1", EventType: focus.EventFocusUpdate,
		FocusScore: &score, NetworkStable: true, Violations: []focus.Violation{}, Timestamp: t0,
	})
	require.NoError(t, err)
	assert.Equal(t, "focus_update", got["eventType"])
	assert.Equal(t, 98.0, got["focusScore"])

	err = s.Send(context.Background(), focus.Event{ParticipantID: "missing", SessionID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHostScoresSignals(t *testing.T) {
	out := &lockedBuffer{}
	sender := &recordingSender{}
	h := NewHost(NewLineCodec(strings.NewReader(""), out), Options{
		ParticipantID: "p1",
		SessionID:     "s1",
		Sender:        sender,
		Clock:         fixedClock{t0},
		NewScheduler:  manual,
	})
	ctx := context.Background()

	_, err := h.handle(ctx, msg(t, TypeSignal, Signal{Name: focus.SignalTabHidden, Active: true}))
	assert.ErrorIs(t, err, errNotStarted)

	_, err = h.handle(ctx, Message{Type: TypePermissionsGranted})
	require.NoError(t, err)
	_, err = h.handle(ctx, msg(t, TypeSignal, Signal{Name: focus.SignalTabHidden, Active: true, At: ms(t0)}))
	require.NoError(t, err)

	res := h.monitor.Evaluate(t0.Add(10 * time.Second))
	assert.Equal(t, 98.0, res.Score)
	assert.True(t, res.Flushed)

	_, err = h.handle(ctx, Message{Type: TypeSaveFocusScore})
	require.NoError(t, err)
	_, err = h.handle(ctx, msg(t, TypeSignal, Signal{Name: "battery_low", Active: true}))
	assert.Error(t, err)

	done, err := h.handle(ctx, Message{Type: TypeUnload})
	require.NoError(t, err)
	assert.True(t, done)
	h.stop()

	msgs := out.messages(t)
	assert.Subset(t, types(msgs), []string{TypeStarted, TypeBanner, TypeStatus, TypeShowWarning, TypeFocusScore})

	started, _ := find(msgs, TypeStarted)
	assert.JSONEq(t, `{"cameraMode":"OFF"}`, string(started.Payload))

	scoreMsg, ok := find(msgs, TypeFocusScore)
	require.True(t, ok)
	var fs FocusScore
	require.NoError(t, json.Unmarshal(scoreMsg.Payload, &fs))
	assert.Equal(t, 98.0, fs.Score)
	assert.Equal(t, 98, fs.DisplayScore)
	assert.True(t, fs.Violating)

	events := sender.all()
	require.Len(t, events, 2)
	var violations []focus.Violation
	for _, ev := range events {
		assert.Equal(t, 98.0, *ev.FocusScore)
		violations = append(violations, ev.Violations...)
	}
	require.Len(t, violations, 1)
	assert.Equal(t, focus.KindTabSwitch, violations[0].Type)
}

func TestHostRequiresIDs(t *testing.T) {
	out := &lockedBuffer{}
	h := NewHost(NewLineCodec(strings.NewReader(""), out), Options{Clock: fixedClock{t0}, NewScheduler: manual})
	_, err := h.handle(context.Background(), msg(t, TypePermissionsGranted, Permissions{Camera: true}))
	assert.ErrorIs(t, err, errMissingIDs)
	assert.Nil(t, h.monitor)
}

func TestServeSessionOverLines(t *testing.T) {
	in := strings.Join([]string{
		`{"type":"PERMISSIONS_GRANTED","payload":{"participantId":"p9","sessionId":"s9","camera":true}}`,
		`not json`,
		`{"type":"SIGNAL","payload":{"name":"url","value":"https://games.example.net/lobby"}}`,
		`{"type":"SEND_FOCUS_EVENT"}`,
		`{"type":"UNLOAD"}`,
		`{"type":"SEND_HEARTBEAT"}`,
	}, "\n")
	out := &lockedBuffer{}
	sender := &recordingSender{}
	h := NewHost(NewLineCodec(strings.NewReader(in), out), Options{
		Sender:       sender,
		Clock:        fixedClock{t0},
		NewScheduler: manual,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.Serve(ctx))

	events := sender.all()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, focus.EventFocusUpdate, ev.EventType)
		assert.Equal(t, "p9", ev.ParticipantID)
		assert.Equal(t, focus.CameraOn, ev.CameraMode)
		require.NotNil(t, ev.CurrentURL)
		assert.Equal(t, "games.example.net", *ev.CurrentURL)
		require.NotNil(t, ev.IsLookingAtScreen)
		assert.True(t, *ev.IsLookingAtScreen)
	}

	msgs := out.messages(t)
	assert.Contains(t, types(msgs), TypeError)
	started, ok := find(msgs, TypeStarted)
	require.True(t, ok)
	assert.JSONEq(t, `{"cameraMode":"ON"}`, string(started.Payload))
}

func TestServeReturnsOnEOF(t *testing.T) {
	sender := &recordingSender{}
	h := NewHost(NewLineCodec(strings.NewReader(`{"type":"PERMISSIONS_GRANTED","payload":{"participantId":"a","sessionId":"b"}}`), io.Discard), Options{
		Sender:       sender,
		Clock:        fixedClock{t0},
		NewScheduler: manual,
	})
	require.NoError(t, h.Serve(context.Background()))
	assert.Len(t, sender.all(), 1)
}

func TestTerminalPresenterPrintsChanges(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPresenter(&buf)
	p.UpdateStatus(focus.Status{Score: 100, CameraMode: focus.CameraOn})
	p.UpdateStatus(focus.Status{Score: 100, CameraMode: focus.CameraOn})
	p.ShowWarning(focus.Warning{Kind: focus.KindTabSwitch, Title: "You left the meeting tab", Message: "Come back."})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "focus 100%"))
	assert.Contains(t, out, "You left the meeting tab")
	assert.Contains(t, out, "Come back.")
}
