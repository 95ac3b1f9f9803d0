package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/concierge/internal/session"
)

var (
	startKey = key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "sign up / login"))
	quitKey  = key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit"))
)

type landingModel struct{}

func newLandingModel() landingModel { return landingModel{} }

func (m landingModel) Update(msg tea.Msg) (landingModel, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, startKey):
			return m, navigate(session.RouteLogin, nil)
		case key.Matches(k, quitKey):
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m landingModel) View() string {
	lines := []string{
		header(""),
		"",
		titleStyle.Render("Connect, Talk, and Journey"),
		titleStyle.Render("with us - anywhere, anytime"),
		"",
		accentStyle.Render("Pick your friends, save the places you love,"),
		accentStyle.Render("and we'll find the trip you all share."),
		"",
		helpStyle.Render("enter: sign up now!  •  q: quit"),
	}
	return panelString(strings.Join(lines, "\n"))
}
