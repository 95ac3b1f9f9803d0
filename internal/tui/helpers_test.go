package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/concierge/internal/model"
)

// fakeAPI is a PlanningAPI with canned answers. Safe for the concurrent
// list load.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int
	last  map[string]any

	friends      []model.Friend
	locations    []model.Location
	friendsErr   error
	locationsErr error

	addFriendResult   model.Friend
	addFriendErr      error
	addLocationResult model.Location
	addLocationErr    error
	removeFriendErr   error
	removeLocationErr error

	tripResult model.TripResult
	tripErr    error
}

func (f *fakeAPI) record(name string, arg any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
		f.last = map[string]any{}
	}
	f.calls[name]++
	f.last[name] = arg
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) lastArg(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[name]
}

func (f *fakeAPI) Friends(_ context.Context, userID int) ([]model.Friend, error) {
	f.record("Friends", userID)
	if f.friendsErr != nil {
		return nil, f.friendsErr
	}
	return append([]model.Friend(nil), f.friends...), nil
}

func (f *fakeAPI) AddFriend(_ context.Context, _ int, username string) (model.Friend, error) {
	f.record("AddFriend", username)
	return f.addFriendResult, f.addFriendErr
}

func (f *fakeAPI) RemoveFriend(_ context.Context, _ int, friendID int) error {
	f.record("RemoveFriend", friendID)
	return f.removeFriendErr
}

func (f *fakeAPI) Locations(_ context.Context, userID int) ([]model.Location, error) {
	f.record("Locations", userID)
	if f.locationsErr != nil {
		return nil, f.locationsErr
	}
	return append([]model.Location(nil), f.locations...), nil
}

func (f *fakeAPI) AddLocation(_ context.Context, _ int, name string) (model.Location, error) {
	f.record("AddLocation", name)
	return f.addLocationResult, f.addLocationErr
}

func (f *fakeAPI) RemoveLocation(_ context.Context, _ int, locationID int) error {
	f.record("RemoveLocation", locationID)
	return f.removeLocationErr
}

func (f *fakeAPI) TripResults(_ context.Context, _ int, req model.TripRequest) (model.TripResult, error) {
	f.record("TripResults", req)
	return f.tripResult, f.tripErr
}

type fakeLogout struct{ calls int }

func (f *fakeLogout) Logout() { f.calls++ }

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and returns its message, failing on a nil cmd.
func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return cmd()
}
