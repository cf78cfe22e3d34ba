package monitor

import "github.com/charmbracelet/lipgloss"

// Color palette for the monitor UI
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - open sessions
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - closing states
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

var (
	// TitleStyle is for the top bar ("websock monitor — ws://…").
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Bold(true).
			Padding(0, 1)

	// TotalsStyle is for the accepted/active counters line.
	TotalsStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			PaddingLeft(1)

	// TotalsLabelStyle is for counter labels.
	TotalsLabelStyle = lipgloss.NewStyle().
				Foreground(MutedColor)

	// ConnectingStyle is for the pre-connection spinner line.
	ConnectingStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(1)

	// ErrorStyle is for the error line after a lost connection.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			PaddingLeft(1)

	// TableBorderStyle wraps the session table.
	TableBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(PrimaryColor)

	// HelpStyle is for the bottom help line.
	HelpStyle = lipgloss.NewStyle().
			PaddingLeft(1)
)
