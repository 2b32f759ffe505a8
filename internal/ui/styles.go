package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Primary = lipgloss.Color("#7C3AED")
	Success = lipgloss.Color("#10B981")
	Error   = lipgloss.Color("#EF4444")
	Warning = lipgloss.Color("#F59E0B")
	Muted   = lipgloss.Color("#6B7280")
	Info    = lipgloss.Color("#3B82F6")
)

var (
	Bold   = lipgloss.NewStyle().Bold(true)
	Subtle = lipgloss.NewStyle().Foreground(Muted)

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(Info)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error)

	// LabelStyle pads keys in key/value blocks.
	LabelStyle = lipgloss.NewStyle().Foreground(Muted).Width(18)
)

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconArrow   = "→"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
)

// stateStyle colors a circuit breaker state.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "open":
		return ErrorStyle
	case "half-open":
		return WarningStyle
	default:
		return SuccessStyle
	}
}
