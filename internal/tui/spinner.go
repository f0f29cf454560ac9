package tui

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// NewSpinnerModel returns the spinner used while pages load.
func NewSpinnerModel(styles *Styles) spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Cursor
	return s
}

// spinnerModel shows a spinner until the work it wraps reports back.
type spinnerModel struct {
	spinner  spinner.Model
	message  string
	styles   *Styles
	cancel   context.CancelFunc
	err      error
	done     bool
	quitting bool
}

type spinnerDoneMsg struct {
	err error
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done || m.quitting {
		return ""
	}
	return m.spinner.View() + " " + m.styles.Muted.Render(m.message) + "\n"
}

// Spinner runs a function while showing a spinner on stderr.
type Spinner struct {
	message string
	styles  *Styles
	out     io.Writer
}

// NewSpinner creates a spinner with a message.
func NewSpinner(message string, styles *Styles) *Spinner {
	return &Spinner{message: message, styles: styles, out: os.Stderr}
}

// Run executes fn while the spinner animates. Pressing q or ctrl+c cancels
// the context passed to fn and Run returns the context error.
func (s *Spinner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := spinnerModel{
		spinner: NewSpinnerModel(s.styles),
		message: s.message,
		styles:  s.styles,
		cancel:  cancel,
	}
	p := tea.NewProgram(m, tea.WithOutput(s.out), tea.WithContext(ctx))

	go func() {
		p.Send(spinnerDoneMsg{err: fn(ctx)})
	}()

	final, err := p.Run()
	if fm, ok := final.(spinnerModel); ok {
		if fm.quitting {
			return context.Canceled
		}
		if fm.done {
			return fm.err
		}
	}
	return err
}
