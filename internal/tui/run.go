package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cth-oso/x328/internal/bridge"
)

// Run starts the monitor over a tap event stream and blocks until the user
// quits.
func Run(events <-chan bridge.TapEvent) error {
	model := NewModel(events, DefaultStyles)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
