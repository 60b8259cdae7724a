// Package console implements the diagnostic terminal: a live view of
// proxy state and call activity. It is a convenience for instrumentation
// sessions, not part of the forwarding engine; the proxy runs identically
// with the console closed.
package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/techiew/UltimateProxyDLL/internal/state"
	"github.com/techiew/UltimateProxyDLL/internal/trace"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	readyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	waitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC800"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	slotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFC800"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Console streams collector events into a terminal UI.
type Console struct {
	st        *state.State
	collector *trace.Collector
}

func New(st *state.State, collector *trace.Collector) *Console {
	return &Console{st: st, collector: collector}
}

// Run blocks until the user quits the terminal. Callers that must not
// block (the attach path) run it on its own goroutine.
func (c *Console) Run() error {
	events := c.collector.Subscribe()
	m := &model{
		st:      c.st,
		session: c.collector.Session(),
		events:  events,
		lines:   renderAll(c.collector.Snapshot()),
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type model struct {
	st      *state.State
	session string
	events  <-chan *trace.Event
	lines   []string
	vp      viewport.Model
	sized   bool
}

type eventMsg struct {
	e *trace.Event
}

func waitForEvent(events <-chan *trace.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return tea.Quit()
		}
		return eventMsg{e: e}
	}
}

func (m *model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		headerHeight := 3
		if !m.sized {
			m.vp = viewport.New(msg.Width, msg.Height-headerHeight)
			m.sized = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - headerHeight
		}
		m.vp.SetContent(strings.Join(m.lines, "\n"))
		m.vp.GotoBottom()

	case eventMsg:
		m.lines = append(m.lines, renderEvent(msg.e))
		if m.sized {
			m.vp.SetContent(strings.Join(m.lines, "\n"))
			m.vp.GotoBottom()
		}
		return m, waitForEvent(m.events)
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("UPD debug terminal"))
	b.WriteString(" ")
	b.WriteString(renderState(m.st.Observe()))
	b.WriteString(detailStyle.Render("  session " + m.session))
	b.WriteString("\n")
	if m.sized {
		b.WriteString(m.vp.View())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ scroll • q quit"))
	return b.String()
}

func renderState(t state.Tag) string {
	switch t {
	case state.Ready:
		return readyStyle.Render(t.String())
	case state.Failed:
		return failedStyle.Render(t.String())
	}
	return waitStyle.Render(t.String())
}

func renderEvent(e *trace.Event) string {
	var b strings.Builder
	b.WriteString(detailStyle.Render(e.Timestamp.Format("15:04:05.000")))
	b.WriteString("  ")
	b.WriteString(tagStyle.Render(fmt.Sprintf("%-10s", e.PrimaryTag())))
	if e.Slot != "" {
		b.WriteString(" ")
		b.WriteString(slotStyle.Render(e.Slot))
	}
	if e.Detail != "" {
		b.WriteString("  ")
		b.WriteString(detailStyle.Render(e.Detail))
	}
	for k, v := range e.Annotations {
		b.WriteString("  ")
		b.WriteString(detailStyle.Render(k + "=" + v))
	}
	return b.String()
}

func renderAll(events []*trace.Event) []string {
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = renderEvent(e)
	}
	return lines
}
