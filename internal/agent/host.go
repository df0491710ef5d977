package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-proctor/backend/internal/focus"
)

var (
	errNotStarted        = errors.New("monitoring has not started")
	errMissingIDs        = errors.New("participantId and sessionId are required")
	errCameraUnavailable = errors.New("camera unavailable")
)

// Options configures a Host.
type Options struct {
	ParticipantID string
	SessionID     string
	Policy        focus.Policy
	Sender        focus.Sender
	SendTimeout   time.Duration

	// Heartbeat sends a periodic liveness event when positive, in addition to the
	// extension's SEND_HEARTBEAT requests.
	Heartbeat time.Duration

	// Presenter receives UI calls in addition to the extension.
	Presenter focus.Presenter

	Clock        focus.Clock
	NewScheduler func(time.Duration) focus.Scheduler
	Logger       *zap.Logger
}

// Host runs one focus monitor for the lifetime of a native-messaging connection.
type Host struct {
	codec  Codec
	opts   Options
	logger *zap.Logger

	monitor *focus.Monitor
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewHost creates a host speaking codec.
func NewHost(codec Codec, opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = focus.SystemClock{}
	}
	if opts.NewScheduler == nil {
		opts.NewScheduler = focus.NewTickerScheduler
	}
	if opts.Policy.Kinds == nil {
		opts.Policy = focus.DefaultPolicy()
	}
	return &Host{codec: codec, opts: opts, logger: opts.Logger}
}

// Serve handles messages until the extension unloads, closes the pipe or ctx is done.
// The monitor is closed with a final flush before Serve returns.
func (h *Host) Serve(ctx context.Context) error {
	msgs := make(chan Message)
	errs := make(chan error, 1)
	go func() {
		for {
			m, err := h.codec.Read()
			if errors.Is(err, ErrBadMessage) {
				h.logger.Warn("malformed message", zap.Error(err))
				h.reply(TypeError, ErrorPayload{Error: err.Error()})
				continue
			}
			if err != nil {
				errs <- err
				return
			}
			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if errors.Is(err, io.EOF) {
				h.logger.Info("extension disconnected")
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		case m := <-msgs:
			done, err := h.handle(ctx, m)
			if err != nil {
				h.logger.Debug("message rejected", zap.String("type", m.Type), zap.Error(err))
				h.reply(TypeError, ErrorPayload{Request: m.Type, Error: err.Error()})
			}
			if done {
				return nil
			}
		}
	}
}

// handle applies one message. done reports that the extension is unloading.
func (h *Host) handle(ctx context.Context, m Message) (done bool, err error) {
	now := h.opts.Clock.Now()
	switch m.Type {
	case TypePermissionsGranted:
		var p Permissions
		if len(m.Payload) > 0 {
			if err := decode(m, &p); err != nil {
				return false, err
			}
		}
		return false, h.start(ctx, p, millisOr(p.At, now))
	case TypeSignal:
		var s Signal
		if err := decode(m, &s); err != nil {
			return false, err
		}
		if h.monitor == nil {
			return false, errNotStarted
		}
		return false, apply(h.monitor.Signals(), s, millisOr(s.At, now))
	case TypeSendFocusEvent:
		if h.monitor == nil {
			return false, errNotStarted
		}
		h.monitor.Flush(now)
	case TypeSaveFocusScore:
		if h.monitor == nil {
			return false, errNotStarted
		}
		st := h.monitor.Snapshot()
		h.reply(TypeFocusScore, FocusScore{
			ParticipantID: st.ParticipantID,
			SessionID:     st.SessionID,
			Score:         st.WireScore(),
			DisplayScore:  st.DisplayScore(),
			CameraMode:    st.CameraMode,
			Violating:     st.AnyActive(),
			Changes:       len(st.History),
		})
	case TypeSendHeartbeat:
		if h.monitor == nil {
			return false, errNotStarted
		}
		h.monitor.Heartbeat(now)
	case TypeUnload:
		return true, nil
	default:
		return false, fmt.Errorf("unknown message type %q", m.Type)
	}
	return false, nil
}

func (h *Host) start(ctx context.Context, p Permissions, now time.Time) error {
	if h.monitor != nil {
		h.reply(TypeStarted, Started{CameraMode: h.monitor.Snapshot().CameraMode})
		return nil
	}
	if p.ParticipantID == "" {
		p.ParticipantID = h.opts.ParticipantID
	}
	if p.SessionID == "" {
		p.SessionID = h.opts.SessionID
	}
	if p.ParticipantID == "" || p.SessionID == "" {
		return errMissingIDs
	}

	h.monitor = focus.NewMonitor(focus.Options{
		ParticipantID: p.ParticipantID,
		SessionID:     p.SessionID,
		Policy:        h.opts.Policy,
		Presenter:     MultiPresenter{NewNativePresenter(h.codec, h.logger), h.opts.Presenter},
		Sender:        h.opts.Sender,
		SendTimeout:   h.opts.SendTimeout,
		Logger:        h.logger,
	})
	probe := func() error {
		if !p.Camera {
			return errCameraUnavailable
		}
		return nil
	}
	mode := h.monitor.Start(probe, now)
	h.reply(TypeStarted, Started{CameraMode: mode})

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	sched := h.opts.NewScheduler(h.opts.Policy.TickInterval)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.monitor.Run(runCtx, sched)
	}()
	if h.opts.Heartbeat > 0 {
		beats := h.opts.NewScheduler(h.opts.Heartbeat)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			defer beats.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case t := <-beats.C():
					h.monitor.Heartbeat(t)
				}
			}
		}()
	}
	return nil
}

// stop ends the tick loops and closes the monitor with a final flush.
func (h *Host) stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	if h.monitor != nil {
		h.monitor.Close(h.opts.Clock.Now())
	}
}

func (h *Host) reply(t string, payload interface{}) {
	m, err := NewMessage(t, payload)
	if err == nil {
		err = h.codec.Write(m)
	}
	if err != nil {
		h.logger.Debug("reply dropped", zap.String("type", t), zap.Error(err))
	}
}

func decode(m Message, v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", m.Type, err)
	}
	return nil
}

// apply forwards one signal to the engine.
func apply(s *focus.Signals, sig Signal, at time.Time) error {
	switch sig.Name {
	case focus.SignalTabHidden:
		s.SetTabHidden(sig.Active, at)
	case focus.SignalWindowBlurred:
		s.SetWindowBlurred(sig.Active, at)
	case focus.SignalOnline:
		s.SetOnline(sig.Active, at)
	case focus.SignalCamera:
		s.SetCameraOn(sig.Active, at)
	case focus.SignalLooking:
		s.SetLookingAtScreen(sig.Active, at)
	case focus.SignalURL:
		s.SetURL(sig.Value, at)
	case focus.SignalGeometry:
		s.SetGeometry(sig.WindowWidth, sig.ScreenWidth, at)
	default:
		return fmt.Errorf("unknown signal %q", sig.Name)
	}
	return nil
}
