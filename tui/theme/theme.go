// Package theme holds the shared lipgloss styles for terminal output.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const defaultThemeName = "kanagawa"

// --- Kanagawa Dragon palette ---
const (
	kanagawaGreen     = "#98BB6C"
	kanagawaYellow    = "#FF9E3B"
	kanagawaRed       = "#FF5D62"
	kanagawaCyan      = "#7E9CD8"
	kanagawaViolet    = "#957FB8"
	kanagawaLightText = "#DCD7BA"
	kanagawaMutedText = "#727169"
	kanagawaBorder    = "#363646"
)

// --- Terminal (ANSI-friendly) palette ---
const (
	terminalGreen     = "2"
	terminalYellow    = "3"
	terminalRed       = "1"
	terminalCyan      = "6"
	terminalViolet    = "5"
	terminalLightText = "7"
	terminalMutedText = "8"
	terminalBorder    = "8"
)

// Colors is the palette a theme is built from.
type Colors struct {
	Green     lipgloss.TerminalColor
	Yellow    lipgloss.TerminalColor
	Red       lipgloss.TerminalColor
	Cyan      lipgloss.TerminalColor
	Violet    lipgloss.TerminalColor
	LightText lipgloss.TerminalColor
	MutedText lipgloss.TerminalColor
	Border    lipgloss.TerminalColor
}

// Theme is the set of styles used by the CLI, the log formatter and the
// progress view.
type Theme struct {
	Colors Colors

	Accent  lipgloss.Style
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Normal  lipgloss.Style
	Box     lipgloss.Style

	// Gradient endpoints for progress bars.
	BarStart string
	BarEnd   string
}

// Status icons.
const (
	IconSuccess = "✓"
	IconWarning = "⚠"
	IconError   = "✗"
	IconRunning = "●"
	IconIdle    = "○"
)

// DefaultTheme is selected from RAGSYNC_THEME at startup.
var DefaultTheme = New(themeFromEnv())

func themeFromEnv() string {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("RAGSYNC_THEME")))
	if name == "" {
		return defaultThemeName
	}
	return name
}

// New builds a theme by name. Unknown names fall back to kanagawa.
func New(name string) *Theme {
	var colors Colors
	switch name {
	case "terminal":
		colors = Colors{
			Green:     lipgloss.Color(terminalGreen),
			Yellow:    lipgloss.Color(terminalYellow),
			Red:       lipgloss.Color(terminalRed),
			Cyan:      lipgloss.Color(terminalCyan),
			Violet:    lipgloss.Color(terminalViolet),
			LightText: lipgloss.Color(terminalLightText),
			MutedText: lipgloss.Color(terminalMutedText),
			Border:    lipgloss.Color(terminalBorder),
		}
	default:
		colors = Colors{
			Green:     lipgloss.Color(kanagawaGreen),
			Yellow:    lipgloss.Color(kanagawaYellow),
			Red:       lipgloss.Color(kanagawaRed),
			Cyan:      lipgloss.Color(kanagawaCyan),
			Violet:    lipgloss.Color(kanagawaViolet),
			LightText: lipgloss.Color(kanagawaLightText),
			MutedText: lipgloss.Color(kanagawaMutedText),
			Border:    lipgloss.Color(kanagawaBorder),
		}
	}

	t := &Theme{
		Colors:   colors,
		Accent:   lipgloss.NewStyle().Foreground(colors.Violet),
		Header:   lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true),
		Success:  lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Warning:  lipgloss.NewStyle().Foreground(colors.Yellow),
		Error:    lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(colors.MutedText),
		Normal:   lipgloss.NewStyle().Foreground(colors.LightText),
		Box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colors.Border).Padding(0, 1),
		BarStart: kanagawaCyan,
		BarEnd:   kanagawaGreen,
	}
	return t
}
