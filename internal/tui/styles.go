package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ------- styling (Lip Gloss) -------
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	brandStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("55")).Padding(0, 1)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("141"))

	bubbleStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(1, 3).
			Align(lipgloss.Center)
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("214")).
			Foreground(lipgloss.Color("214")).
			PaddingLeft(1)

	// markdown
	mdHeadingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mdStrongStyle  = lipgloss.NewStyle().Bold(true)
	mdEmStyle      = lipgloss.NewStyle().Italic(true)
	mdCodeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	mdQuoteStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
	mdLinkStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("12"))

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

// panelString frames a whole screen.
func panelString(inner string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1)
	return border.Render(inner)
}

func header(right string) string {
	h := brandStyle.Render("ChatConcierge")
	if right != "" {
		h += "  " + mutedStyle.Render(right)
	}
	return h
}

// sentence upper-cases the first letter of an error message for display.
func sentence(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
