package tui

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/concierge/internal/api"
	"github.com/idilsaglam/concierge/internal/model"
	"github.com/idilsaglam/concierge/internal/session"
)

// logouter is the slice of the session controller the planning view uses.
type logouter interface {
	Logout()
}

type pane int

const (
	paneFriends pane = iota
	paneLocations
)

// User-facing messages.
const (
	msgLoadFailed       = "Failed to load your friends and locations."
	msgAddFriendFailed  = "Failed to add friend."
	msgAddLocFailed     = "Failed to add location."
	msgRemoveFriendFail = "Failed to remove friend."
	msgRemoveLocFail    = "Failed to remove location."
	msgTripFailed       = "Failed to get trip results. Please try again."
	msgNoFriendSelected = "Please select at least one friend."
	msgNotLoggedIn      = "You must be logged in."
	msgBlankFriend      = "Please enter a friend's username."
	msgBlankLocation    = "Please enter a location name."
)

// ---- messages ----

type listsLoadedMsg struct {
	userID    int
	friends   []model.Friend
	locations []model.Location
	err       error
}

type friendAddedMsg struct {
	friend model.Friend
	err    error
}

type locationAddedMsg struct {
	location model.Location
	err      error
}

// The removal messages carry the list as it was before the optimistic
// removal; on failure it is put back verbatim.
type friendRemovedMsg struct {
	snapshot []model.Friend
	err      error
}

type locationRemovedMsg struct {
	snapshot []model.Location
	err      error
}

type tripResultMsg struct {
	result  model.TripResult
	friends []model.FriendRef
	err     error
}

// ---- key map ----

type planningKeys struct {
	Switch, Toggle, Add, Remove, Submit, Reload, Logout, Quit key.Binding
}

func (k planningKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.Toggle, k.Add, k.Remove, k.Submit, k.Logout, k.Quit}
}

func (k planningKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Reload}}
}

var planKeys = planningKeys{
	Switch: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch list")),
	Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
	Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Remove: key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "remove")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "results")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Logout: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "logout")),
	Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
}

// ---- list items ----

type friendItem struct{ model.Friend }

func (i friendItem) FilterValue() string { return i.Name }

type locationItem struct {
	model.Location
	n int
}

func (i locationItem) FilterValue() string { return i.Name }

// rowDelegate draws one line per row.
type rowDelegate struct{}

func (d rowDelegate) Height() int                               { return 1 }
func (d rowDelegate) Spacing() int                              { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	var line string
	switch it := item.(type) {
	case friendItem:
		box := mutedStyle.Render(boxUnchecked)
		if it.Selected {
			box = successStyle.Render(boxChecked)
		}
		line = box + " " + it.Name
	case locationItem:
		line = mutedStyle.Render(fmt.Sprintf("L%d:", it.n)) + " " + it.Name
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

func newPane(title string) list.Model {
	l := list.New(nil, rowDelegate{}, 36, 10)
	l.Title = title
	l.Styles.Title = titleStyle
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.SetStatusBarItemName("item", "items")
	return l
}

// ---- model ----

// planningModel holds the friends and locations of one session. It is built
// fresh every time the home view mounts.
type planningModel struct {
	api     PlanningAPI
	auth    logouter
	session *model.Session

	friends   []model.Friend
	locations []model.Location

	friendList   list.Model
	locationList list.Model
	focus        pane

	adding     bool
	addPending bool
	input      textinput.Model

	loading    bool
	submitting bool
	err        string
	notice     string

	spinner spinner.Model
	help    help.Model
}

func newPlanningModel(a PlanningAPI, auth logouter, sess *model.Session) planningModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 120

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	return planningModel{
		api:          a,
		auth:         auth,
		session:      sess,
		friendList:   newPane("Contacts"),
		locationList: newPane("Locations"),
		input:        ti,
		spinner:      sp,
		help:         help.New(),
	}
}

func (m *planningModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

func (m *planningModel) setSize(w, h int) {
	paneW := (w - 8) / 2
	if paneW < 20 {
		paneW = 20
	}
	paneH := h - 12
	if paneH < 5 {
		paneH = 5
	}
	m.friendList.SetSize(paneW, paneH)
	m.locationList.SetSize(paneW, paneH)
	m.help.Width = w
}

// load fetches both lists at once. Either failing empties both.
func (m *planningModel) load() tea.Cmd {
	if m.session == nil {
		m.err = msgNotLoggedIn
		return nil
	}
	m.loading = true
	m.err = ""
	userID := m.session.ID
	client := m.api
	return func() tea.Msg {
		var friends []model.Friend
		var locations []model.Location
		g, ctx := errgroup.WithContext(context.Background())
		g.Go(func() error {
			var err error
			friends, err = client.Friends(ctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			locations, err = client.Locations(ctx, userID)
			return err
		})
		err := g.Wait()
		return listsLoadedMsg{userID: userID, friends: friends, locations: locations, err: err}
	}
}

func (m planningModel) Update(msg tea.Msg) (planningModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case listsLoadedMsg:
		if m.session == nil || msg.userID != m.session.ID {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = api.Message(msg.err, msgLoadFailed)
			m.friends, m.locations = nil, nil
		} else {
			m.friends = make([]model.Friend, 0, len(msg.friends))
			for _, f := range msg.friends {
				f.Selected = false
				m.friends = append(m.friends, f)
			}
			m.locations = slices.Clone(msg.locations)
		}
		m.syncLists()
		return m, nil

	case friendAddedMsg:
		m.addPending = false
		if msg.err != nil {
			m.err = api.Message(msg.err, msgAddFriendFailed)
			return m, nil
		}
		msg.friend.Selected = false
		if !slices.ContainsFunc(m.friends, func(f model.Friend) bool { return f.ID == msg.friend.ID }) {
			m.friends = append(slices.Clone(m.friends), msg.friend)
		}
		m.notice = "Added " + msg.friend.Name
		m.closeInput()
		m.syncLists()
		return m, nil

	case locationAddedMsg:
		m.addPending = false
		if msg.err != nil {
			m.err = api.Message(msg.err, msgAddLocFailed)
			return m, nil
		}
		if !slices.ContainsFunc(m.locations, func(l model.Location) bool { return l.ID == msg.location.ID }) {
			m.locations = append(slices.Clone(m.locations), msg.location)
		}
		m.notice = "Added " + msg.location.Name
		m.closeInput()
		m.syncLists()
		return m, nil

	case friendRemovedMsg:
		if msg.err != nil {
			m.friends = msg.snapshot
			m.err = api.Message(msg.err, msgRemoveFriendFail)
			m.syncLists()
		}
		return m, nil

	case locationRemovedMsg:
		if msg.err != nil {
			m.locations = msg.snapshot
			m.err = api.Message(msg.err, msgRemoveLocFail)
			m.syncLists()
		}
		return m, nil

	case tripResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = api.Message(msg.err, msgTripFailed)
			return m, nil
		}
		payload := &model.TripPayload{Result: msg.result, Friends: msg.friends}
		return m, navigate(session.RouteResults, payload)

	case tea.KeyMsg:
		if m.adding {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m planningModel) handleKey(k tea.KeyMsg) (planningModel, tea.Cmd) {
	switch {
	case key.Matches(k, planKeys.Quit):
		return m, tea.Quit
	case key.Matches(k, planKeys.Logout):
		m.auth.Logout()
		return m, nil
	case key.Matches(k, planKeys.Switch):
		if m.focus == paneFriends {
			m.focus = paneLocations
		} else {
			m.focus = paneFriends
		}
		return m, nil
	case key.Matches(k, planKeys.Toggle):
		m.toggleSelected()
		return m, nil
	case key.Matches(k, planKeys.Add):
		m.openInput()
		return m, textinput.Blink
	case key.Matches(k, planKeys.Remove):
		return m.remove()
	case key.Matches(k, planKeys.Submit):
		return m.submit()
	case key.Matches(k, planKeys.Reload):
		cmd := m.load()
		return m, cmd
	}

	var cmd tea.Cmd
	if m.focus == paneFriends {
		m.friendList, cmd = m.friendList.Update(k)
	} else {
		m.locationList, cmd = m.locationList.Update(k)
	}
	return m, cmd
}

func (m *planningModel) toggleSelected() {
	if m.focus != paneFriends {
		return
	}
	i := m.friendList.Index()
	if i < 0 || i >= len(m.friends) {
		return
	}
	m.friends = slices.Clone(m.friends)
	m.friends[i].Selected = !m.friends[i].Selected
	m.syncLists()
}

func (m *planningModel) openInput() {
	m.adding = true
	m.err, m.notice = "", ""
	m.input.SetValue("")
	if m.focus == paneFriends {
		m.input.Placeholder = "Add new friend"
	} else {
		m.input.Placeholder = "Enter location"
	}
	m.input.Focus()
}

func (m *planningModel) closeInput() {
	m.adding = false
	m.input.SetValue("")
	m.input.Blur()
}

func (m planningModel) updateInput(k tea.KeyMsg) (planningModel, tea.Cmd) {
	switch k.String() {
	case "esc":
		m.closeInput()
		m.err = ""
		return m, nil
	case "enter":
		return m.add()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

// add validates locally, then asks the server. The list only changes once
// the server answers; on failure the input keeps its text. One add is in
// flight at a time.
func (m planningModel) add() (planningModel, tea.Cmd) {
	if m.addPending {
		return m, nil
	}
	value := strings.TrimSpace(m.input.Value())
	m.err, m.notice = "", ""
	if value == "" {
		if m.focus == paneFriends {
			m.err = msgBlankFriend
		} else {
			m.err = msgBlankLocation
		}
		return m, nil
	}
	if m.session == nil {
		m.err = msgNotLoggedIn
		return m, nil
	}
	userID, client := m.session.ID, m.api
	m.addPending = true
	if m.focus == paneFriends {
		return m, func() tea.Msg {
			f, err := client.AddFriend(context.Background(), userID, value)
			return friendAddedMsg{friend: f, err: err}
		}
	}
	return m, func() tea.Msg {
		l, err := client.AddLocation(context.Background(), userID, value)
		return locationAddedMsg{location: l, err: err}
	}
}

// remove drops the focused row right away and then tells the server.
func (m planningModel) remove() (planningModel, tea.Cmd) {
	if m.session == nil {
		m.err = msgNotLoggedIn
		return m, nil
	}
	m.err, m.notice = "", ""
	userID, client := m.session.ID, m.api

	if m.focus == paneFriends {
		i := m.friendList.Index()
		if i < 0 || i >= len(m.friends) {
			return m, nil
		}
		snapshot := m.friends
		target := snapshot[i]
		m.friends = slices.Delete(slices.Clone(snapshot), i, i+1)
		m.syncLists()
		return m, func() tea.Msg {
			err := client.RemoveFriend(context.Background(), userID, target.ID)
			return friendRemovedMsg{snapshot: snapshot, err: err}
		}
	}

	i := m.locationList.Index()
	if i < 0 || i >= len(m.locations) {
		return m, nil
	}
	snapshot := m.locations
	target := snapshot[i]
	m.locations = slices.Delete(slices.Clone(snapshot), i, i+1)
	m.syncLists()
	return m, func() tea.Msg {
		err := client.RemoveLocation(context.Background(), userID, target.ID)
		return locationRemovedMsg{snapshot: snapshot, err: err}
	}
}

func (m planningModel) submit() (planningModel, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	m.err, m.notice = "", ""
	selected := model.SelectedFriends(m.friends)
	if len(selected) == 0 {
		m.err = msgNoFriendSelected
		return m, nil
	}
	if m.session == nil {
		m.err = msgNotLoggedIn
		return m, nil
	}

	req := model.TripRequest{FriendIDs: make([]int, 0, len(selected))}
	refs := make([]model.FriendRef, 0, len(selected))
	for _, f := range selected {
		req.FriendIDs = append(req.FriendIDs, f.ID)
		refs = append(refs, model.FriendRef{ID: f.ID, Name: f.Name})
	}
	m.submitting = true
	userID, client := m.session.ID, m.api
	return m, func() tea.Msg {
		res, err := client.TripResults(context.Background(), userID, req)
		return tripResultMsg{result: res, friends: refs, err: err}
	}
}

// syncLists pushes the slices into the list widgets, keeping the cursor.
func (m *planningModel) syncLists() {
	fi := make([]list.Item, len(m.friends))
	for i, f := range m.friends {
		fi[i] = friendItem{f}
	}
	li := make([]list.Item, len(m.locations))
	for i, l := range m.locations {
		li[i] = locationItem{Location: l, n: i + 1}
	}
	fIdx, lIdx := m.friendList.Index(), m.locationList.Index()
	m.friendList.SetItems(fi)
	m.locationList.SetItems(li)
	m.friendList.Select(clamp(fIdx, len(fi)))
	m.locationList.Select(clamp(lIdx, len(li)))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (m planningModel) View() string {
	who := ""
	if m.session != nil {
		who = "logged in as " + m.session.Username
	}
	lines := []string{header(who), "", titleStyle.Render("Plan Yo Twip"), ""}

	if m.loading {
		lines = append(lines, m.spinner.View()+" Loading your friends and locations...")
	} else {
		left, right := paneStyle, paneStyle
		if m.focus == paneFriends {
			left = focusedPaneStyle
		} else {
			right = focusedPaneStyle
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			left.Render(m.paneView(m.friendList, "no friends yet")),
			" ",
			right.Render(m.paneView(m.locationList, "no saved locations")),
		))
	}

	if m.adding {
		title := "Add new friend"
		if m.focus == paneLocations {
			title = "Add location"
		}
		lines = append(lines, "", accentStyle.Render(title), m.input.View())
		if m.addPending {
			lines = append(lines, m.spinner.View()+" Saving...")
		}
	}
	if m.err != "" {
		lines = append(lines, "", errorStyle.Render(m.err))
	}
	if m.notice != "" {
		lines = append(lines, "", successStyle.Render("✔ "+m.notice))
	}

	button := selectedStyle.Render(" Click for Results! ")
	if m.submitting {
		button = m.spinner.View() + " Loading..."
	}
	lines = append(lines, "", button, "", m.help.View(planKeys))
	return panelString(strings.Join(lines, "\n"))
}

func (m planningModel) paneView(l list.Model, empty string) string {
	if len(l.Items()) == 0 {
		return titleStyle.Render(l.Title) + "\n\n" + mutedStyle.Render(empty)
	}
	return l.View()
}
