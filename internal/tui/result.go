package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/concierge/internal/model"
	"github.com/idilsaglam/concierge/internal/session"
)

// Suggestion texts the backend sends when it has nothing real to say.
var placeholderSuggestions = map[string]bool{
	"":                             true,
	"n/a":                          true,
	"none":                         true,
	"null":                         true,
	"ai suggestion unavailable":    true,
	"ai suggestion not available.": true,
}

// HasSuggestion reports whether s is worth showing instead of the plain
// attraction list.
func HasSuggestion(s string) bool {
	return !placeholderSuggestions[strings.ToLower(strings.TrimSpace(s))]
}

var (
	backKey     = key.NewBinding(key.WithKeys("enter", "b", "esc"), key.WithHelp("enter", "back to plan"))
	resultsQuit = key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit"))
)

// resultModel shows one trip. The payload is handed over once, when the
// view is built; a nil payload is a dead end with a single way back.
type resultModel struct {
	payload *model.TripPayload
}

func newResultModel(p *model.TripPayload) resultModel {
	return resultModel{payload: p}
}

func (m resultModel) Update(msg tea.Msg) (resultModel, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, backKey):
			return m, navigate(session.RouteHome, nil)
		case key.Matches(k, resultsQuit):
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m resultModel) View(width int) string {
	body := RenderResult(m.payload, width-4)
	help := "enter: back to planning  •  q: quit"
	if m.payload != nil {
		help = "enter: plan another trip  •  b: back to plan  •  q: quit"
	}
	return panelString(header("") + "\n\n" + body + "\n\n" + helpStyle.Render(help))
}

// RenderResult lays out a trip result. It is shared with the
// non-interactive `trip` command.
func RenderResult(p *model.TripPayload, width int) string {
	if p == nil {
		return errorStyle.Render("No trip data found. Failed to load results.") + "\n" +
			mutedStyle.Render("Go back to planning and request a trip again.")
	}
	r := p.Result

	var parts []string
	if !r.CommonLocationFound && strings.TrimSpace(r.FallbackMessage) != "" {
		parts = append(parts, bannerStyle.Render("⚠ "+r.FallbackMessage))
	}
	parts = append(parts,
		titleStyle.Render("Your Vacation Destination Will Be......"),
		bubbleStyle.Render(`"`+r.Destination+`"!!!`+"\n"+"Here are some attractions there you may enjoy :)"),
	)
	if len(p.Friends) > 0 {
		names := make([]string, len(p.Friends))
		for i, f := range p.Friends {
			names[i] = f.Name
		}
		parts = append(parts, mutedStyle.Render("Travelling with: "+strings.Join(names, ", ")))
	}

	if HasSuggestion(r.AISuggestion) {
		parts = append(parts, RenderMarkdown(r.AISuggestion, width))
	} else {
		lines := []string{accentStyle.Render("Fun Attractions:")}
		if len(r.Attractions) == 0 {
			lines = append(lines, mutedStyle.Render("(none)"))
		}
		for _, a := range r.Attractions {
			ln := "- " + a.Name
			if a.Description != "" {
				ln += mutedStyle.Render(": " + a.Description)
			}
			lines = append(lines, ln)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}
