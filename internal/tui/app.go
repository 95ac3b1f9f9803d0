package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/concierge/internal/model"
	"github.com/idilsaglam/concierge/internal/session"
)

// PlanningAPI is the part of the HTTP gateway the views call.
type PlanningAPI interface {
	Friends(ctx context.Context, userID int) ([]model.Friend, error)
	AddFriend(ctx context.Context, userID int, username string) (model.Friend, error)
	RemoveFriend(ctx context.Context, userID, friendID int) error
	Locations(ctx context.Context, userID int) ([]model.Location, error)
	AddLocation(ctx context.Context, userID int, name string) (model.Location, error)
	RemoveLocation(ctx context.Context, userID, locationID int) error
	TripResults(ctx context.Context, userID int, req model.TripRequest) (model.TripResult, error)
}

// navigateMsg switches views. trip is only set for the results route and is
// consumed by the result view when it mounts.
type navigateMsg struct {
	to   session.Route
	trip *model.TripPayload

	fromNavigator bool
}

type sessionResolvedMsg struct{}

func navigate(to session.Route, trip *model.TripPayload) tea.Cmd {
	return func() tea.Msg { return navigateMsg{to: to, trip: trip} }
}

// Navigator lets the session controller drive the program's views. Its
// messages are picked up by App.
type Navigator struct {
	ch chan navigateMsg
}

func NewNavigator() *Navigator {
	return &Navigator{ch: make(chan navigateMsg, 16)}
}

func (n *Navigator) Navigate(to session.Route) {
	n.ch <- navigateMsg{to: to, fromNavigator: true}
}

func (n *Navigator) listen() tea.Cmd {
	return func() tea.Msg { return <-n.ch }
}

// App routes between the landing, login, planning and result views.
type App struct {
	ctrl *session.Controller
	api  PlanningAPI
	nav  *Navigator

	route   session.Route
	mounted bool
	trip    *model.TripPayload // waiting for the result view to mount

	landing  landingModel
	login    loginModel
	planning planningModel
	result   resultModel
	spinner  spinner.Model

	width, height int
}

func NewApp(ctrl *session.Controller, api PlanningAPI, nav *Navigator) *App {
	if nav == nil {
		nav = NewNavigator()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	a := &App{ctrl: ctrl, api: api, nav: nav, spinner: sp, width: 80, height: 24}
	a.route = session.RouteLanding
	if ctrl.State().Authenticated() {
		a.route = session.RouteHome
	}
	return a
}

// Route reports the active view.
func (a *App) Route() session.Route { return a.route }

func (a *App) Init() tea.Cmd {
	resolve := func() tea.Msg {
		a.ctrl.Resolve()
		return sessionResolvedMsg{}
	}
	return tea.Batch(resolve, a.nav.listen(), a.spinner.Tick, a.mountPublic())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case sessionResolvedMsg:
		return a, a.settle()
	case navigateMsg:
		if msg.fromNavigator {
			cmds = append(cmds, a.nav.listen())
		}
		cmds = append(cmds, a.goTo(msg.to, msg.trip))
		return a, tea.Batch(cmds...)
	}

	cmds = append(cmds, a.updateView(msg))
	cmds = append(cmds, a.settle())
	return a, tea.Batch(cmds...)
}

func (a *App) updateView(msg tea.Msg) tea.Cmd {
	if !a.mounted {
		return nil
	}
	var cmd tea.Cmd
	switch a.route {
	case session.RouteLanding:
		a.landing, cmd = a.landing.Update(msg)
	case session.RouteLogin:
		a.login, cmd = a.login.Update(msg)
	case session.RouteHome:
		a.planning, cmd = a.planning.Update(msg)
	case session.RouteResults:
		a.result, cmd = a.result.Update(msg)
	}
	return cmd
}

func (a *App) goTo(to session.Route, trip *model.TripPayload) tea.Cmd {
	switch to {
	case session.RouteLanding, session.RouteLogin, session.RouteHome, session.RouteResults:
	default:
		to = session.RouteLanding
	}
	a.route = to
	a.trip = trip
	a.mounted = false
	if cmd := a.mountPublic(); cmd != nil || a.mounted {
		return cmd
	}
	return a.settle()
}

// mountPublic mounts views that need no session.
func (a *App) mountPublic() tea.Cmd {
	switch a.route {
	case session.RouteLanding:
		a.landing = newLandingModel()
		a.mounted = true
		return nil
	case session.RouteLogin:
		a.login = newLoginModel(a.ctrl)
		a.mounted = true
		return a.login.Init()
	}
	return nil
}

// settle applies the route guard to the active view.
func (a *App) settle() tea.Cmd {
	if !a.route.Protected() {
		return nil
	}
	switch session.Guard(a.ctrl.State()) {
	case session.RedirectToLogin:
		a.route = session.RouteLogin
		a.trip = nil
		a.mounted = false
		return a.mountPublic()
	case session.Admit:
		if a.mounted {
			return nil
		}
		a.mounted = true
		if a.route == session.RouteResults {
			a.result = newResultModel(a.trip)
			a.trip = nil
			return nil
		}
		a.planning = newPlanningModel(a.api, a.ctrl, a.ctrl.Current())
		a.planning.setSize(a.width, a.height)
		return a.planning.Init()
	}
	return nil
}

func (a *App) View() string {
	if a.route.Protected() && session.Guard(a.ctrl.State()) != session.Admit {
		return panelString(a.spinner.View() + " Loading...")
	}
	if !a.mounted {
		return ""
	}
	switch a.route {
	case session.RouteLanding:
		return a.landing.View()
	case session.RouteLogin:
		return a.login.View()
	case session.RouteHome:
		return a.planning.View()
	case session.RouteResults:
		return a.result.View(a.width)
	}
	return ""
}

// Run starts the interactive program and blocks until it exits.
func Run(app *App) error {
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
