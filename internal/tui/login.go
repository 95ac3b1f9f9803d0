package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/concierge/internal/api"
	"github.com/idilsaglam/concierge/internal/model"
	"github.com/idilsaglam/concierge/internal/session"
)

// Authenticator is what the login form needs from the session controller.
type Authenticator interface {
	Login(ctx context.Context, cred model.Credentials) error
	Register(ctx context.Context, cred model.Credentials) error
}

const (
	fieldUsername = iota
	fieldPassword
	fieldConfirm
)

type authDoneMsg struct {
	register bool
	err      error
}

// loginModel is one form with a login/register toggle.
type loginModel struct {
	auth       Authenticator
	inputs     []textinput.Model
	focus      int
	register   bool
	submitting bool
	err        string
}

func newLoginModel(auth Authenticator) loginModel {
	mk := func(placeholder string, secret bool) textinput.Model {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Placeholder = placeholder
		ti.CharLimit = 80
		if secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		return ti
	}
	m := loginModel{
		auth: auth,
		inputs: []textinput.Model{
			mk("Username", false),
			mk("Password", true),
			mk("Confirm Password", true),
		},
	}
	m.inputs[fieldUsername].Focus()
	return m
}

func (m loginModel) Init() tea.Cmd { return textinput.Blink }

// fields returns how many inputs the current mode shows.
func (m loginModel) fields() int {
	if m.register {
		return 3
	}
	return 2
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		m.submitting = false
		if msg.err != nil {
			fallback := "Login failed. Please try again."
			if msg.register {
				fallback = "Registration failed. Please try again."
			}
			m.err = api.Message(msg.err, fallback)
		}
		// on success the controller navigates away
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, navigate(session.RouteLanding, nil)
		case "ctrl+r":
			m.register = !m.register
			m.err = ""
			if !m.register && m.focus == fieldConfirm {
				m.setFocus(fieldPassword)
			}
			return m, nil
		case "tab", "down":
			m.setFocus((m.focus + 1) % m.fields())
			return m, nil
		case "shift+tab", "up":
			m.setFocus((m.focus + m.fields() - 1) % m.fields())
			return m, nil
		case "enter":
			if m.focus < m.fields()-1 {
				m.setFocus(m.focus + 1)
				return m, nil
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *loginModel) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

func (m loginModel) credentials() model.Credentials {
	return model.Credentials{
		Username: strings.TrimSpace(m.inputs[fieldUsername].Value()),
		Password: m.inputs[fieldPassword].Value(),
	}
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	m.err = ""
	cred := m.credentials()
	var confirm *string
	if m.register {
		c := m.inputs[fieldConfirm].Value()
		confirm = &c
	}
	if err := session.ValidateCredentials(cred, confirm); err != nil {
		m.err = sentence(err.Error())
		return m, nil
	}

	m.submitting = true
	register := m.register
	auth := m.auth
	return m, func() tea.Msg {
		var err error
		if register {
			err = auth.Register(context.Background(), cred)
		} else {
			err = auth.Login(context.Background(), cred)
		}
		return authDoneMsg{register: register, err: err}
	}
}

func (m loginModel) View() string {
	title := "Login"
	toggle := "Need an account? ctrl+r to register"
	if m.register {
		title = "Register"
		toggle = "Already have an account? ctrl+r to login"
	}

	labels := []string{"Username", "Password", "Confirm Password"}
	lines := []string{header(""), "", titleStyle.Render("Login or Register"), ""}
	for i := 0; i < m.fields(); i++ {
		lines = append(lines, accentStyle.Render(labels[i]), m.inputs[i].View(), "")
	}
	if m.err != "" {
		lines = append(lines, errorStyle.Render(m.err), "")
	}
	button := selectedStyle.Render(" " + title + " ")
	if m.submitting {
		button = pendingStyle.Render(title + "...")
	}
	lines = append(lines,
		button,
		"",
		mutedStyle.Render(toggle),
		helpStyle.Render("tab: next field  •  enter: submit  •  esc: back"),
	)
	return panelString(strings.Join(lines, "\n"))
}
