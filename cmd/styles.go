package cmd

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#DBDBDB", Dark: "#383838"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorRed     = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F6D"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#F5C26B"}

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	itemTitleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	itemSourceStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	accentStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	gainStyle = lipgloss.NewStyle().Foreground(colorGreen)
	lossStyle = lipgloss.NewStyle().Foreground(colorRed)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarn)
)

// changeStyle colors a percentage change by sign.
func changeStyle(pct float64) lipgloss.Style {
	switch {
	case pct > 0:
		return gainStyle
	case pct < 0:
		return lossStyle
	default:
		return dimStyle
	}
}
