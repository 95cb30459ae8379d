package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
)

// Color palette
var (
	Primary    = lipgloss.Color("#22d3ee")
	Secondary  = lipgloss.Color("#7C3AED")
	Success    = lipgloss.Color("#10B981")
	Warning    = lipgloss.Color("#F59E0B")
	Error      = lipgloss.Color("#EF4444")
	Muted      = lipgloss.Color("#6B7280")
	Foreground = lipgloss.Color("#F9FAFB")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Padding(0, 1).
			Bold(true)
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary).
				Align(lipgloss.Center)

	tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

	TableRowStyle = tableCellStyle.Foreground(lipgloss.Color("255"))

	TableRowAltStyle = tableCellStyle.Foreground(lipgloss.Color("245"))
)

var SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconCopy    = "📋"
	IconWeb     = "🌐"
	IconCall    = "📞"
	IconWaiting = "⏳"
)

// StatusBadge renders a call status with its color.
func StatusBadge(status mesh.CallStatus) string {
	color := Muted
	switch status {
	case mesh.StatusConnected:
		color = Success
	case mesh.StatusConnecting:
		color = Warning
	case mesh.StatusFailed:
		color = Error
	}
	return badgeStyle.Background(color).Render(string(status))
}

func stateStyle(state mesh.State) lipgloss.Style {
	switch state {
	case mesh.StateConnected:
		return SuccessStyle
	case mesh.StateFailed:
		return ErrorStyle
	case mesh.StateOfferSent, mesh.StateOfferReceived, mesh.StateStable:
		return WarningStyle
	default:
		return MutedStyle
	}
}

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}

func PrintInfo(msg string) {
	fmt.Printf("%s %s\n", IconInfo, msg)
}

func PrintInfof(format string, args ...any) {
	PrintInfo(fmt.Sprintf(format, args...))
}
