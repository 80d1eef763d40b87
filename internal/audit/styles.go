package audit

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = lipgloss.Color("39")  // bright blue
	colorDim    = lipgloss.Color("240") // gray
	colorMuted  = lipgloss.Color("245")
	colorText   = lipgloss.Color("252")
	colorBright = lipgloss.Color("15")
	colorSelect = lipgloss.Color("24") // dark blue
	colorBar    = lipgloss.Color("236")
	colorError  = lipgloss.Color("196")
)

var (
	paneStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder())

	paneTitleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(colorText).
			Background(colorBar)

	rowTitleStyle    = lipgloss.NewStyle().Bold(true)
	rowSubtitleStyle = lipgloss.NewStyle().Foreground(colorMuted)

	fieldLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(16)

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBright).MarginBottom(1)

	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	dividerStyle = lipgloss.NewStyle().Foreground(colorDim)
	bodyStyle    = lipgloss.NewStyle().Foreground(colorText)
)

// paneBorder returns the border style for a pane, highlighted when active.
func paneBorder(active bool, width int) lipgloss.Style {
	if active {
		return paneStyle.BorderForeground(colorAccent).Width(width)
	}
	return paneStyle.BorderForeground(colorDim).Width(width)
}

func paneTitle(active bool, title string) string {
	if active {
		return paneTitleStyle.Foreground(colorAccent).Render(title)
	}
	return paneTitleStyle.Foreground(colorDim).Render(title)
}

func rowStyles(selected bool) (title, subtitle lipgloss.Style) {
	if selected {
		return rowTitleStyle.Foreground(colorBright).Background(colorSelect),
			rowSubtitleStyle.Foreground(colorText).Background(colorSelect)
	}
	return rowTitleStyle, rowSubtitleStyle
}
