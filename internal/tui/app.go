// Package tui is the daemon's terminal view: the undo history with undo
// controls, live activity, and plan rendering for the CLI.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabgruppen/internal/dispatch"
	"github.com/lotas/tabgruppen/internal/types"
)

// maxLog is how many activity lines are kept.
const maxLog = 200

// Backend is what the view reads and controls.
type Backend interface {
	List(ctx context.Context) ([]types.GroupingAction, error)
	Undo(ctx context.Context, id string) (types.GroupingAction, error)
	Connected() bool
}

type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Undo     key.Binding
	UndoLast key.Binding
	Refresh  key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Undo:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo selected")),
	UndoLast: key.NewBinding(key.WithKeys("U"), key.WithHelp("U", "undo last")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
}

func (k keyMap) help() string {
	var parts []string
	for _, b := range []key.Binding{k.Up, k.Down, k.Undo, k.UndoLast, k.Refresh, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ") + " · pgup/pgdn scroll log"
}

// --- Messages ---

type historyLoadedMsg struct {
	actions []types.GroupingAction
	err     error
}

type undoDoneMsg struct {
	action types.GroupingAction
	err    error
}

type eventMsg struct{ ev dispatch.Event }

type eventsClosedMsg struct{}

type tickMsg time.Time

// --- Commands ---

func loadHistory(b Backend) tea.Cmd {
	return func() tea.Msg {
		actions, err := b.List(context.Background())
		return historyLoadedMsg{actions: actions, err: err}
	}
}

func undo(b Backend, id string) tea.Cmd {
	return func() tea.Msg {
		action, err := b.Undo(context.Background(), id)
		return undoDoneMsg{action: action, err: err}
	}
}

func waitForEvent(events <-chan dispatch.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// --- Model ---

type Model struct {
	backend Backend
	events  <-chan dispatch.Event
	port    int

	history   HistoryList
	log       []dispatch.Event
	logView   viewport.Model
	connected bool
	status    string
	err       error
	width     int
	height    int
}

func NewModel(b Backend, events <-chan dispatch.Event, port int) Model {
	return Model{backend: b, events: events, port: port, logView: viewport.New(0, 0)}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadHistory(m.backend), waitForEvent(m.events), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.history.Width = m.width - 4
		m.history.Height = max((m.height-8)/2, 3)
		m.logView.Width = max(m.width-4, 10)
		m.logView.Height = m.logHeight()
		m.logView.SetContent(m.renderLog())
		m.logView.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.history.MoveUp()
		case key.Matches(msg, keys.Down):
			m.history.MoveDown()
		case key.Matches(msg, keys.Undo):
			if a := m.history.Selected(); a != nil {
				m.status = fmt.Sprintf("undoing tab %d...", a.TabID)
				return m, undo(m.backend, a.ID)
			}
		case key.Matches(msg, keys.UndoLast):
			m.status = "undoing last action..."
			return m, undo(m.backend, "")
		case key.Matches(msg, keys.Refresh):
			return m, loadHistory(m.backend)
		default:
			var cmd tea.Cmd
			m.logView, cmd = m.logView.Update(msg)
			return m, cmd
		}
		return m, nil

	case historyLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.history.SetActions(msg.actions)
		}
		return m, nil

	case undoDoneMsg:
		if msg.err != nil {
			m.status = "undo: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("tab %d restored", msg.action.TabID)
		}
		return m, loadHistory(m.backend)

	case eventMsg:
		m.log = append(m.log, msg.ev)
		if len(m.log) > maxLog {
			m.log = m.log[len(m.log)-maxLog:]
		}
		atBottom := m.logView.AtBottom()
		m.logView.SetContent(m.renderLog())
		if atBottom {
			m.logView.GotoBottom()
		}
		return m, tea.Batch(waitForEvent(m.events), loadHistory(m.backend))

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case tickMsg:
		m.connected = m.backend.Connected()
		return m, tea.Batch(loadHistory(m.backend), tick())
	}
	return m, nil
}

func (m Model) logHeight() int {
	return max(m.height-m.history.Height-8, 3)
}

func (m Model) renderLog() string {
	if len(m.log) == 0 {
		return dimStyle.Render("No activity yet.")
	}
	width := max(m.logView.Width-2, 10)
	lines := make([]string, len(m.log))
	for i, ev := range m.log {
		lines[i] = truncate(fmt.Sprintf("%s %-8s %s", ev.Time.Format("15:04:05"), ev.Kind, ev.Detail), width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	topBarStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	state := fmt.Sprintf("○ waiting for extension on :%d", m.port)
	if m.connected {
		state = "● connected"
	}
	topBar := topBarStyle.Render(fmt.Sprintf("tabgruppen  %s  %d undoable", state, len(m.history.Actions)))

	paneWidth := max(m.width-2, 20)
	historyBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(paneWidth).
		Height(m.history.Height)
	logBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(paneWidth).
		Height(m.logHeight())

	historyContent := m.history.View()
	if m.err != nil {
		historyContent = fmt.Sprintf("Error: %v", m.err)
	}

	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	bottomText := keys.help()
	if m.status != "" {
		bottomText = m.status + "  ·  " + bottomText
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		topBar,
		historyBorder.Render(historyContent),
		logBorder.Render(m.logView.View()),
		bottomBarStyle.Render(bottomText),
	)
}
