package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/idilsaglam/concierge/internal/model"
)

// Route names a view of the client.
type Route string

const (
	RouteLanding Route = "/"
	RouteLogin   Route = "/login"
	RouteHome    Route = "/home"
	RouteResults Route = "/results"
)

// Protected reports whether r requires a session.
func (r Route) Protected() bool { return r == RouteHome || r == RouteResults }

// Navigator switches the visible view.
type Navigator interface {
	Navigate(to Route)
}

// NavigatorFunc adapts a plain func to Navigator.
type NavigatorFunc func(to Route)

func (f NavigatorFunc) Navigate(to Route) { f(to) }

// Authenticator is the slice of the HTTP gateway the controller needs.
type Authenticator interface {
	Login(ctx context.Context, cred model.Credentials) (model.Session, error)
	Register(ctx context.Context, cred model.Credentials) (model.Session, error)
}

var (
	ErrMissingFields    = errors.New("please fill in all fields")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// ValidateCredentials runs the local form checks. confirm is only checked
// when non-nil (register mode).
func ValidateCredentials(cred model.Credentials, confirm *string) error {
	if strings.TrimSpace(cred.Username) == "" || cred.Password == "" {
		return ErrMissingFields
	}
	if confirm != nil && *confirm != cred.Password {
		return ErrPasswordMismatch
	}
	return nil
}

// State is a snapshot of the controller.
type State struct {
	Session *model.Session
	Loading bool
}

func (s State) Authenticated() bool { return s.Session != nil }

// Controller owns the in-memory session and is the only writer of the
// persisted slot. Calls are not serialized against each other: if two
// logins overlap, whichever finishes last wins.
type Controller struct {
	store *Store
	auth  Authenticator
	nav   Navigator

	mu      sync.RWMutex
	session *model.Session
	loading bool
}

// NewController reads the persisted session synchronously. The controller
// stays Loading until Resolve is called.
func NewController(store *Store, auth Authenticator, nav Navigator) *Controller {
	sess, err := store.Load()
	if err != nil {
		log.Printf("session: %v", err)
		sess = nil
	}
	if nav == nil {
		nav = NavigatorFunc(func(Route) {})
	}
	return &Controller{store: store, auth: auth, nav: nav, session: sess, loading: true}
}

// Resolve ends the loading phase. There is no server round-trip; the stored
// session is trusted as-is.
func (c *Controller) Resolve() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{Session: copySession(c.session), Loading: c.loading}
}

// Current returns a copy of the session, or nil.
func (c *Controller) Current() *model.Session {
	return c.State().Session
}

func (c *Controller) IsAuthenticated() bool {
	return c.State().Authenticated()
}

func (c *Controller) Login(ctx context.Context, cred model.Credentials) error {
	return c.authenticate(ctx, "login", cred, c.auth.Login)
}

func (c *Controller) Register(ctx context.Context, cred model.Credentials) error {
	return c.authenticate(ctx, "register", cred, c.auth.Register)
}

func (c *Controller) authenticate(ctx context.Context, op string, cred model.Credentials,
	call func(context.Context, model.Credentials) (model.Session, error)) error {
	sess, err := call(ctx, cred)
	if err == nil && !sess.Valid() {
		err = fmt.Errorf("server returned an incomplete session")
	}
	if err == nil {
		if saveErr := c.store.Save(&sess); saveErr != nil {
			err = saveErr
		}
	}
	if err != nil {
		log.Printf("session: %s failed for %q: %v", op, cred.Username, err)
		c.drop()
		return fmt.Errorf("%s: %w", op, err)
	}

	c.set(&sess)
	log.Printf("session: %s ok, user %d (%s)", op, sess.ID, sess.Username)
	c.nav.Navigate(RouteHome)
	return nil
}

// Logout clears both copies of the session and goes to the login view.
// Calling it with no session is fine.
func (c *Controller) Logout() {
	c.drop()
	log.Printf("session: logged out")
	c.nav.Navigate(RouteLogin)
}

func (c *Controller) drop() {
	if err := c.store.Save(nil); err != nil {
		log.Printf("session: %v", err)
	}
	c.set(nil)
}

func (c *Controller) set(sess *model.Session) {
	c.mu.Lock()
	c.session = copySession(sess)
	c.mu.Unlock()
}

func copySession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
