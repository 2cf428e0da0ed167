package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPurple    = lipgloss.Color("#7D56F4")
	colorGreen     = lipgloss.Color("#04B575")
	colorYellow    = lipgloss.Color("#FFC107")
	colorRed       = lipgloss.Color("#FF4141")
	colorGray      = lipgloss.Color("#626262")
	colorLightGray = lipgloss.Color("#9e9e9e")
	colorWhite     = lipgloss.Color("#FFFFFF")

	styleTitle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true).
			MarginBottom(1)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorLightGray).
			Bold(true)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple).
			Padding(0, 1)

	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarn    = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleDim     = lipgloss.NewStyle().Foreground(colorGray)
	styleNormal  = lipgloss.NewStyle().Foreground(colorWhite)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorGray).
			MarginTop(1)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "success", "completed":
		return styleSuccess
	case "mismatch", "running", "cancelled":
		return styleWarn
	case "failed":
		return styleError
	}
	return styleNormal
}
