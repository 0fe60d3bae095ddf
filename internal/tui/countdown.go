// Package tui renders the TIME_WAIT countdown as an interactive progress
// display.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// tickMsg updates the seconds left in the countdown.
type tickMsg struct {
	remaining int
}

// doneMsg ends the countdown.
type doneMsg struct {
	available bool
}

// Model is the Bubble Tea model for the port countdown.
type Model struct {
	port      int
	budget    int
	remaining int
	available bool
	done      bool
	bar       progress.Model
	cancel    context.CancelFunc
}

// NewModel creates a countdown model for port with a linger budget in
// seconds. cancel is invoked when the user interrupts the wait.
func NewModel(port, budget int, cancel context.CancelFunc) Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return Model{
		port:      port,
		budget:    budget,
		remaining: budget,
		bar:       bar,
		cancel:    cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEscape {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.remaining = msg.remaining

	case doneMsg:
		m.done = true
		m.available = msg.available
		return m, tea.Quit
	}

	return m, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m Model) View() string {
	if m.done {
		if m.available {
			return okStyle.Render(fmt.Sprintf("  Port %d is now available!", m.port)) + "\n"
		}
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  Port %d is in TIME_WAIT from a recent login", m.port)))
	b.WriteString("\n\n")

	elapsed := 0.0
	if m.budget > 0 {
		elapsed = float64(m.budget-m.remaining) / float64(m.budget)
	}
	b.WriteString("  " + m.bar.ViewAs(elapsed) + "\n")
	b.WriteString(fmt.Sprintf("  %d seconds remaining\n\n", m.remaining))
	b.WriteString(hintStyle.Render("  ctrl+c: cancel and use a different port"))
	b.WriteString("\n")

	return b.String()
}

// teaRunner is the subset of *tea.Program the countdown needs. Swapped in
// tests.
type teaRunner interface {
	Run() (tea.Model, error)
	Send(tea.Msg)
}

var newProgram = func(m tea.Model, out io.Writer) teaRunner {
	return tea.NewProgram(m, tea.WithOutput(out))
}

// Countdown adapts the model to the port controller's WaitReporter. The
// program starts on Start and is shut down by Finish; a countdown that
// never starts costs nothing.
type Countdown struct {
	out     io.Writer
	cancel  context.CancelFunc
	program teaRunner
	done    chan struct{}
}

// NewCountdown renders countdown progress to out. cancel is invoked when
// the user interrupts the wait from inside the display.
func NewCountdown(out io.Writer, cancel context.CancelFunc) *Countdown {
	return &Countdown{out: out, cancel: cancel}
}

func (c *Countdown) Start(port, budget int) {
	c.program = newProgram(NewModel(port, budget, c.cancel), c.out)
	c.done = make(chan struct{})
	go func() {
		_, _ = c.program.Run()
		close(c.done)
	}()
}

func (c *Countdown) Tick(remaining int) {
	if c.program != nil {
		c.program.Send(tickMsg{remaining: remaining})
	}
}

func (c *Countdown) Finish(available bool) {
	if c.program == nil {
		return
	}
	c.program.Send(doneMsg{available: available})
	<-c.done
	c.program = nil
}
