package session

import (
	"context"
	"errors"
	"testing"

	"github.com/idilsaglam/concierge/internal/model"
	"github.com/idilsaglam/concierge/internal/store/jsonstore"
)

// countingKV records writes and removes on top of a MemStore.
type countingKV struct {
	*jsonstore.MemStore
	writes  int
	removes int
}

func newCountingKV() *countingKV { return &countingKV{MemStore: jsonstore.NewMemStore()} }

func (c *countingKV) Write(key string, v []byte) error {
	c.writes++
	return c.MemStore.Write(key, v)
}

func (c *countingKV) Remove(key string) error {
	c.removes++
	return c.MemStore.Remove(key)
}

type fakeAuth struct {
	loginFunc    func(model.Credentials) (model.Session, error)
	registerFunc func(model.Credentials) (model.Session, error)
}

func (f *fakeAuth) Login(_ context.Context, c model.Credentials) (model.Session, error) {
	return f.loginFunc(c)
}

func (f *fakeAuth) Register(_ context.Context, c model.Credentials) (model.Session, error) {
	return f.registerFunc(c)
}

type navRecorder struct{ routes []Route }

func (n *navRecorder) Navigate(to Route) { n.routes = append(n.routes, to) }

var alice = model.Session{ID: 1, Username: "alice"}

func TestStoreLoadMalformed(t *testing.T) {
	for _, raw := range []string{"{", "not json", "null", `{"id":0,"username":"x"}`, `{"id":3,"username":""}`, `[1,2]`} {
		t.Run(raw, func(t *testing.T) {
			kv := jsonstore.NewMemStore()
			_ = kv.Write(SlotKey, []byte(raw))
			s := NewStore(kv)

			for i := 0; i < 2; i++ {
				got, err := s.Load()
				if err != nil {
					t.Fatalf("Load #%d: %v", i, err)
				}
				if got != nil {
					t.Fatalf("Load #%d = %+v, want nil", i, got)
				}
			}
			if _, err := kv.Read(SlotKey); !errors.Is(err, jsonstore.ErrNotFound) {
				t.Errorf("slot not cleared: %v", err)
			}
		})
	}
}

func TestStoreLoadAbsent(t *testing.T) {
	got, err := NewStore(jsonstore.NewMemStore()).Load()
	if err != nil || got != nil {
		t.Errorf("Load = %+v, %v; want nil, nil", got, err)
	}
}

func TestStoreSaveOverwritesAndClears(t *testing.T) {
	kv := jsonstore.NewMemStore()
	s := NewStore(kv)
	if err := s.Save(&alice); err != nil {
		t.Fatal(err)
	}
	bob := model.Session{ID: 2, Username: "bob"}
	if err := s.Save(&bob); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load()
	if err != nil || got == nil || *got != bob {
		t.Fatalf("Load = %+v, %v; want bob", got, err)
	}
	if err := s.Save(nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Load(); got != nil {
		t.Errorf("Load after Save(nil) = %+v", got)
	}
}

func TestControllerStartsFromStore(t *testing.T) {
	kv := jsonstore.NewMemStore()
	_ = NewStore(kv).Save(&alice)

	c := NewController(NewStore(kv), &fakeAuth{}, nil)
	st := c.State()
	if !st.Loading {
		t.Error("controller should be loading before Resolve")
	}
	if Guard(st) != Pending {
		t.Errorf("Guard while loading = %v", Guard(st))
	}
	c.Resolve()
	if !c.IsAuthenticated() || c.Current().Username != "alice" {
		t.Errorf("state after Resolve = %+v", c.State())
	}
	if Guard(c.State()) != Admit {
		t.Errorf("Guard = %v, want admit", Guard(c.State()))
	}
}

func TestLoginSuccess(t *testing.T) {
	kv := newCountingKV()
	nav := &navRecorder{}
	auth := &fakeAuth{loginFunc: func(c model.Credentials) (model.Session, error) {
		if c.Username != "alice" || c.Password != "pw" {
			t.Errorf("credentials = %+v", c)
		}
		return alice, nil
	}}
	c := NewController(NewStore(kv), auth, nav)
	c.Resolve()

	if err := c.Login(context.Background(), model.Credentials{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if kv.writes != 1 {
		t.Errorf("store writes = %d, want 1", kv.writes)
	}
	if !c.IsAuthenticated() {
		t.Error("not authenticated after login")
	}
	if len(nav.routes) != 1 || nav.routes[0] != RouteHome {
		t.Errorf("navigation = %v, want [%s]", nav.routes, RouteHome)
	}
	stored, _ := NewStore(kv).Load()
	if stored == nil || *stored != alice {
		t.Errorf("persisted = %+v", stored)
	}
}

func TestRegisterSuccess(t *testing.T) {
	kv := newCountingKV()
	nav := &navRecorder{}
	auth := &fakeAuth{registerFunc: func(model.Credentials) (model.Session, error) { return alice, nil }}
	c := NewController(NewStore(kv), auth, nav)

	if err := c.Register(context.Background(), model.Credentials{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if kv.writes != 1 || !c.IsAuthenticated() || len(nav.routes) != 1 {
		t.Errorf("writes=%d auth=%v nav=%v", kv.writes, c.IsAuthenticated(), nav.routes)
	}
}

func TestAuthFailureClearsSession(t *testing.T) {
	boom := errors.New("401")
	tests := []struct {
		name string
		call func(*Controller) error
		auth *fakeAuth
	}{
		{
			name: "login error",
			call: func(c *Controller) error { return c.Login(context.Background(), model.Credentials{Username: "a", Password: "b"}) },
			auth: &fakeAuth{loginFunc: func(model.Credentials) (model.Session, error) { return model.Session{}, boom }},
		},
		{
			name: "register error",
			call: func(c *Controller) error { return c.Register(context.Background(), model.Credentials{Username: "a", Password: "b"}) },
			auth: &fakeAuth{registerFunc: func(model.Credentials) (model.Session, error) { return model.Session{}, boom }},
		},
		{
			name: "incomplete session",
			call: func(c *Controller) error { return c.Login(context.Background(), model.Credentials{Username: "a", Password: "b"}) },
			auth: &fakeAuth{loginFunc: func(model.Credentials) (model.Session, error) { return model.Session{ID: 0}, nil }},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := jsonstore.NewMemStore()
			store := NewStore(kv)
			_ = store.Save(&alice)
			nav := &navRecorder{}
			c := NewController(store, tt.auth, nav)
			c.Resolve()
			if !c.IsAuthenticated() {
				t.Fatal("precondition: should start authenticated")
			}

			err := tt.call(c)
			if err == nil {
				t.Fatal("expected error")
			}
			if c.Current() != nil {
				t.Errorf("in-memory session = %+v, want nil", c.Current())
			}
			if got, _ := store.Load(); got != nil {
				t.Errorf("persisted session = %+v, want nil", got)
			}
			if len(nav.routes) != 0 {
				t.Errorf("navigated on failure: %v", nav.routes)
			}
			if Guard(c.State()) != RedirectToLogin {
				t.Errorf("Guard = %v, want redirect", Guard(c.State()))
			}
		})
	}
}

func TestLoginErrorIsPropagated(t *testing.T) {
	boom := errors.New("boom")
	c := NewController(NewStore(jsonstore.NewMemStore()),
		&fakeAuth{loginFunc: func(model.Credentials) (model.Session, error) { return model.Session{}, boom }}, nil)
	if err := c.Login(context.Background(), model.Credentials{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapping boom", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	kv := jsonstore.NewMemStore()
	store := NewStore(kv)
	_ = store.Save(&alice)
	nav := &navRecorder{}
	c := NewController(store, &fakeAuth{}, nav)
	c.Resolve()

	c.Logout()
	c.Logout()

	if c.IsAuthenticated() {
		t.Error("still authenticated")
	}
	if got, _ := store.Load(); got != nil {
		t.Errorf("persisted = %+v", got)
	}
	if len(nav.routes) != 2 || nav.routes[0] != RouteLogin || nav.routes[1] != RouteLogin {
		t.Errorf("navigation = %v", nav.routes)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	kv := jsonstore.NewMemStore()
	_ = NewStore(kv).Save(&alice)
	c := NewController(NewStore(kv), &fakeAuth{}, nil)
	c.Current().Username = "mallory"
	if c.Current().Username != "alice" {
		t.Error("Current exposed internal state")
	}
}

func TestGuard(t *testing.T) {
	tests := []struct {
		state State
		want  Decision
	}{
		{State{Loading: true}, Pending},
		{State{Loading: true, Session: &alice}, Pending},
		{State{Session: &alice}, Admit},
		{State{}, RedirectToLogin},
	}
	for _, tt := range tests {
		if got := Guard(tt.state); got != tt.want {
			t.Errorf("Guard(%+v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	pw := "pw"
	other := "other"
	tests := []struct {
		name    string
		cred    model.Credentials
		confirm *string
		want    error
	}{
		{"ok login", model.Credentials{Username: "a", Password: "pw"}, nil, nil},
		{"blank username", model.Credentials{Username: "  ", Password: "pw"}, nil, ErrMissingFields},
		{"blank password", model.Credentials{Username: "a"}, nil, ErrMissingFields},
		{"ok register", model.Credentials{Username: "a", Password: "pw"}, &pw, nil},
		{"mismatch", model.Credentials{Username: "a", Password: "pw"}, &other, ErrPasswordMismatch},
	}
	for _, tt := range tests {
		if got := ValidateCredentials(tt.cred, tt.confirm); !errors.Is(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRouteProtected(t *testing.T) {
	if !RouteHome.Protected() || !RouteResults.Protected() {
		t.Error("home and results must be protected")
	}
	if RouteLogin.Protected() || RouteLanding.Protected() {
		t.Error("login and landing must be public")
	}
}
