package agent

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/aura-proctor/backend/internal/focus"
)

// NativePresenter forwards UI calls to the extension, which renders them in the page.
// Write failures are logged and dropped.
type NativePresenter struct {
	codec  Codec
	logger *zap.Logger
}

// NewNativePresenter creates a presenter writing to codec.
func NewNativePresenter(codec Codec, logger *zap.Logger) *NativePresenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NativePresenter{codec: codec, logger: logger}
}

func (p *NativePresenter) ShowWarning(w focus.Warning) {
	p.send(TypeShowWarning, w)
}

func (p *NativePresenter) DismissWarning(kind focus.ViolationKind) {
	p.send(TypeDismissWarning, Dismiss{Kind: kind})
}

func (p *NativePresenter) ShowBanner(text string) {
	p.send(TypeBanner, Banner{Text: text})
}

func (p *NativePresenter) UpdateStatus(s focus.Status) {
	p.send(TypeStatus, s)
}

func (p *NativePresenter) send(t string, payload interface{}) {
	m, err := NewMessage(t, payload)
	if err == nil {
		err = p.codec.Write(m)
	}
	if err != nil {
		p.logger.Debug("presenter message dropped", zap.String("type", t), zap.Error(err))
	}
}

// MultiPresenter fans UI calls out to several presenters. Nil entries are skipped.
type MultiPresenter []focus.Presenter

func (m MultiPresenter) ShowWarning(w focus.Warning) {
	for _, p := range m {
		if p != nil {
			p.ShowWarning(w)
		}
	}
}

func (m MultiPresenter) DismissWarning(kind focus.ViolationKind) {
	for _, p := range m {
		if p != nil {
			p.DismissWarning(kind)
		}
	}
}

func (m MultiPresenter) ShowBanner(text string) {
	for _, p := range m {
		if p != nil {
			p.ShowBanner(text)
		}
	}
}

func (m MultiPresenter) UpdateStatus(s focus.Status) {
	for _, p := range m {
		if p != nil {
			p.UpdateStatus(s)
		}
	}
}

var (
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f38ba8"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8"))
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
)

// TerminalPresenter prints warnings and status changes for local debugging. Status is
// printed only when it changes.
type TerminalPresenter struct {
	mu   sync.Mutex
	w    io.Writer
	last *focus.Status
}

// NewTerminalPresenter creates a presenter writing to w (normally stderr).
func NewTerminalPresenter(w io.Writer) *TerminalPresenter {
	return &TerminalPresenter{w: w}
}

func (t *TerminalPresenter) ShowWarning(w focus.Warning) {
	t.printf("%s %s\n", warningStyle.Render("! "+w.Title), w.Message)
}

func (t *TerminalPresenter) DismissWarning(kind focus.ViolationKind) {
	t.printf("%s\n", mutedStyle.Render("dismissed "+string(kind)))
}

func (t *TerminalPresenter) ShowBanner(text string) {
	t.printf("%s\n", noticeStyle.Render(text))
}

func (t *TerminalPresenter) UpdateStatus(s focus.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last != nil && *t.last == s {
		return
	}
	t.last = &s
	fmt.Fprintf(t.w, "%s %s\n", scoreStyle(s.Score).Render(fmt.Sprintf("focus %d%%", s.Score)),
		mutedStyle.Render(fmt.Sprintf("camera %s violating=%t", s.CameraMode, s.Violating)))
}

func (t *TerminalPresenter) printf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, format, args...)
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 70:
		return goodStyle
	case score >= 50:
		return noticeStyle
	default:
		return warningStyle
	}
}
