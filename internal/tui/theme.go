package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the monitor color palette, Tokyo Night tones.
type Theme struct {
	BgPanel  lipgloss.Color
	BgAccent lipgloss.Color

	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color

	Border lipgloss.Color

	Accent  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

// DefaultTheme is the default dark theme.
var DefaultTheme = Theme{
	BgPanel:  lipgloss.Color("#24283b"),
	BgAccent: lipgloss.Color("#414868"),

	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),

	Border: lipgloss.Color("#414868"),

	Accent:  lipgloss.Color("#7aa2f7"),
	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7dcfff"),
}

// Styles holds the pre-configured lipgloss styles for the monitor.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Dim      lipgloss.Style
	Status   lipgloss.Style

	Read       lipgloss.Style
	Write      lipgloss.Style
	Timeout    lipgloss.Style
	Fault      lipgloss.Style
	Unexpected lipgloss.Style
}

// NewStyles builds the style set from a theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		Header:   lipgloss.NewStyle().Bold(true).Foreground(theme.TextDim).BorderBottom(true).BorderStyle(lipgloss.NormalBorder()).BorderForeground(theme.Border),
		Selected: lipgloss.NewStyle().Background(theme.BgAccent).Foreground(theme.TextPrimary),
		Dim:      lipgloss.NewStyle().Foreground(theme.TextDim),
		Status:   lipgloss.NewStyle().Foreground(theme.TextDim).Background(theme.BgPanel),

		Read:       lipgloss.NewStyle().Foreground(theme.Success),
		Write:      lipgloss.NewStyle().Foreground(theme.Warning),
		Timeout:    lipgloss.NewStyle().Foreground(theme.Error),
		Fault:      lipgloss.NewStyle().Foreground(theme.Error),
		Unexpected: lipgloss.NewStyle().Foreground(theme.Info),
	}
}

// DefaultStyles are the styles used by Run.
var DefaultStyles = NewStyles(DefaultTheme)
