// Package tui is the live bus monitor: a terminal view of the transaction
// stream decoded by a bridge tap.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cth-oso/x328/internal/bridge"
)

// maxRows bounds the scrollback kept in memory.
const maxRows = 1000

// eventMsg delivers one tap event to the model.
type eventMsg bridge.TapEvent

// clearStatusMsg clears the transient status line.
type clearStatusMsg struct{}

// Model is the monitor model.
type Model struct {
	events <-chan bridge.TapEvent
	styles Styles

	rows   []bridge.TapEvent
	cursor int
	follow bool
	paused bool

	width  int
	height int
	status string

	reads    int
	writes   int
	timeouts int
	faults   int
}

// NewModel builds a monitor fed by events.
func NewModel(events <-chan bridge.TapEvent, styles Styles) *Model {
	return &Model{
		events: events,
		styles: styles,
		follow: true,
		width:  100,
		height: 30,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events <-chan bridge.TapEvent) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-events)
	}
}

func clearStatusLater() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		if !m.paused {
			m.append(bridge.TapEvent(msg))
		}
		return m, waitForEvent(m.events)

	case clearStatusMsg:
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.follow = false

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.follow = m.cursor == len(m.rows)-1

	case "f":
		m.follow = true
		if len(m.rows) > 0 {
			m.cursor = len(m.rows) - 1
		}

	case "p":
		m.paused = !m.paused
		if m.paused {
			m.status = "paused"
		} else {
			m.status = ""
		}

	case "c":
		return m, m.copySelected()
	}
	return m, nil
}

func (m *Model) copySelected() tea.Cmd {
	if m.cursor >= len(m.rows) {
		return nil
	}
	hex := frameHex(m.rows[m.cursor].Raw)
	if hex == "" {
		m.status = "no frame bytes for this row"
		return clearStatusLater()
	}
	if err := clipboard.WriteAll(hex); err != nil {
		m.status = fmt.Sprintf("clipboard: %v", err)
	} else {
		m.status = "frame copied to clipboard"
	}
	return clearStatusLater()
}

func (m *Model) append(ev bridge.TapEvent) {
	m.rows = append(m.rows, ev)
	if len(m.rows) > maxRows {
		copy(m.rows, m.rows[len(m.rows)-maxRows:])
		m.rows = m.rows[:maxRows]
		if m.cursor > 0 {
			m.cursor--
		}
	}
	if m.follow {
		m.cursor = len(m.rows) - 1
	}

	switch ev.Kind {
	case "read":
		m.reads++
	case "write":
		m.writes++
	case "timeout":
		m.timeouts++
	}
	if ev.Err != "" && ev.Kind != "timeout" {
		m.faults++
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("x328 bus monitor"))
	b.WriteString("\n")
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("%-12s %-7s %4s %6s %9s  %s",
		"TIME", "KIND", "STN", "PARAM", "VALUE", "DETAIL")))
	b.WriteString("\n")

	visible := m.height - 5
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := start; i < end; i++ {
		line := m.renderRow(m.rows[i])
		if i == m.cursor {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m *Model) renderRow(ev bridge.TapEvent) string {
	value := ""
	if ev.Value != nil {
		value = fmt.Sprintf("%d", *ev.Value)
	}
	line := fmt.Sprintf("%-12s %-7s %4d   %04d %9s  %s",
		ev.Time.Format("15:04:05.000"), ev.Kind, ev.Station, ev.Parameter, value, ev.Err)
	return m.kindStyle(ev).Render(line)
}

func (m *Model) kindStyle(ev bridge.TapEvent) lipgloss.Style {
	if ev.Err != "" && ev.Kind != "timeout" {
		return m.styles.Fault
	}
	switch ev.Kind {
	case "read":
		return m.styles.Read
	case "write":
		return m.styles.Write
	case "timeout":
		return m.styles.Timeout
	default:
		return m.styles.Unexpected
	}
}

func (m *Model) statusLine() string {
	counts := fmt.Sprintf("%d reads  %d writes  %d timeouts  %d faults", m.reads, m.writes, m.timeouts, m.faults)
	help := "q quit  up/down select  f follow  p pause  c copy hex"
	line := counts + "   " + help
	if m.status != "" {
		line = m.status + "   " + line
	}
	return m.styles.Status.Render(line)
}

// frameHex renders frame bytes the way log output does, space-separated.
func frameHex(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	parts := make([]string, len(raw))
	for i, c := range raw {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, " ")
}
