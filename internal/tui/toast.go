package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ToastDuration is how long a toast remains visible.
const ToastDuration = 3 * time.Second

// ToastLevel selects the toast color.
type ToastLevel int

const (
	ToastInfo ToastLevel = iota
	ToastWarning
	ToastError
)

// toastTickMsg dismisses the toast shown at generation gen.
type toastTickMsg struct {
	gen uint64
}

// Toast renders ephemeral notifications. A newer Show supersedes the
// dismissal timer of an older one.
type Toast struct {
	styles     *Styles
	width      int
	message    string
	level      ToastLevel
	visible    bool
	generation uint64
}

// NewToast creates a new toast component.
func NewToast(styles *Styles) Toast {
	return Toast{styles: styles}
}

// Show displays a toast message and returns the dismissal tick.
func (t *Toast) Show(message string, level ToastLevel) tea.Cmd {
	t.generation++
	t.message = message
	t.level = level
	t.visible = true
	gen := t.generation
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return toastTickMsg{gen: gen}
	})
}

// Dismiss hides the toast immediately.
func (t *Toast) Dismiss() {
	t.generation++
	t.visible = false
	t.message = ""
}

// SetWidth sets the available width.
func (t *Toast) SetWidth(w int) {
	t.width = w
}

// Visible returns whether the toast is currently displayed.
func (t *Toast) Visible() bool {
	return t.visible
}

// Message returns the text currently shown.
func (t *Toast) Message() string {
	return t.message
}

// Update handles toast tick messages. Ticks from superseded toasts are ignored.
func (t *Toast) Update(msg tea.Msg) tea.Cmd {
	if tick, ok := msg.(toastTickMsg); ok && tick.gen == t.generation {
		t.visible = false
		t.message = ""
	}
	return nil
}

// View renders the toast.
func (t Toast) View() string {
	if !t.visible || t.message == "" {
		return ""
	}

	theme := t.styles.Theme()
	fg := theme.Success
	switch t.level {
	case ToastWarning:
		fg = theme.Warning
	case ToastError:
		fg = theme.Error
	}

	style := lipgloss.NewStyle().
		Foreground(fg).
		Align(lipgloss.Center)
	if t.width > 0 {
		style = style.Width(t.width)
	}

	return style.Render(t.message)
}
