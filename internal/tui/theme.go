package tui

import "github.com/charmbracelet/lipgloss"

// ---------------------------------------------------------------------------
// Catppuccin Mocha palette
// https://catppuccin.com/palette
// ---------------------------------------------------------------------------

const (
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorLavender lipgloss.Color = "#b4befe"
	colorPink     lipgloss.Color = "#f5c2e7"

	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay0 lipgloss.Color = "#6c7086"
	colorSurface1 lipgloss.Color = "#45475a"
	colorSurface0 lipgloss.Color = "#313244"
	colorBase     lipgloss.Color = "#1e1e2e"
)

const (
	colorBrand   = colorPink
	colorFocus   = colorLavender
	colorSuccess = colorGreen
	colorError   = colorRed
	colorWarning = colorYellow
	colorInfo    = colorTeal
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
	labelStyle = lipgloss.NewStyle().Foreground(colorSubtext0)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)
	focusedBoxStyle = boxStyle.BorderForeground(colorFocus)

	padKeyStyle = lipgloss.NewStyle().
			Width(5).
			Align(lipgloss.Center).
			Foreground(colorText).
			Background(colorSurface0)
	padCursorStyle = padKeyStyle.
			Bold(true).
			Foreground(colorBase).
			Background(colorFocus)

	buttonStyle = lipgloss.NewStyle().
			Width(17).
			Align(lipgloss.Center).
			Bold(true).
			Foreground(colorBase)
	callButtonStyle     = buttonStyle.Background(colorSuccess)
	hangUpButtonStyle   = buttonStyle.Background(colorError)
	pendingButtonStyle  = buttonStyle.Background(colorPeach)
	disabledButtonStyle = buttonStyle.Bold(false).Foreground(colorOverlay0).Background(colorSurface0)

	statusStyle      = lipgloss.NewStyle().Foreground(colorInfo)
	statusWarnStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	statusErrorStyle = lipgloss.NewStyle().Foreground(colorError)
)
