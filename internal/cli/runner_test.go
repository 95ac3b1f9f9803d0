package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/idilsaglam/concierge/internal/config"
	"github.com/idilsaglam/concierge/internal/stubapi"
	"github.com/idilsaglam/concierge/internal/ui"
)

type result struct {
	code           int
	stdout, stderr string
}

// user is one CLI installation: its own data dir against a shared backend.
type user struct {
	t   *testing.T
	cfg *config.Config
}

func newBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(stubapi.NewFast().Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func newUser(t *testing.T, apiURL string) *user {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = apiURL
	cfg.DataDir = t.TempDir()
	cfg.RateLimit = 0
	return &user{t: t, cfg: cfg}
}

func (u *user) run(stdin string, args ...string) result {
	u.t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), args, Env{
		Config: u.cfg,
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errOut,
	})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func (u *user) must(stdin string, args ...string) string {
	u.t.Helper()
	r := u.run(stdin, args...)
	if r.code != 0 {
		u.t.Fatalf("%v: exit %d\nstdout: %s\nstderr: %s", args, r.code, r.stdout, r.stderr)
	}
	return r.stdout
}

func TestMain(m *testing.M) {
	ui.SetColorForcing(false, true)
	m.Run()
}

func TestTripPlanningFlow(t *testing.T) {
	backend := newBackend(t)
	alice := newUser(t, backend)
	bob := newUser(t, backend)

	if out := alice.must("pw\npw\n", "register", "alice"); !strings.Contains(out, "logged in as alice") {
		t.Errorf("register output = %q", out)
	}
	bob.must("pw2\npw2\n", "register", "bob")

	if out := alice.must("", "whoami"); !strings.Contains(out, "alice") {
		t.Errorf("whoami = %q", out)
	}

	alice.must("", "friends", "add", "bob")
	if out := alice.must("", "friends", "ls"); !strings.Contains(out, " 1. bob") {
		t.Errorf("friends ls = %q", out)
	}

	alice.must("", "locations", "add", "New", "York")
	alice.must("", "locations", "add", "Paris")
	bob.must("", "locations", "add", "paris")
	if out := alice.must("", "locations", "ls"); !strings.Contains(out, " 1. New York") || !strings.Contains(out, " 2. Paris") {
		t.Errorf("locations ls = %q", out)
	}

	out := alice.must("", "trip", "1")
	for _, want := range []string{"Paris", "bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("trip output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "No common location") {
		t.Errorf("unexpected fallback banner:\n%s", out)
	}

	alice.must("", "locations", "rm", "2")
	out = alice.must("", "trip", "1")
	if !strings.Contains(out, "No common location") || !strings.Contains(out, "New York") {
		t.Errorf("expected fallback to New York:\n%s", out)
	}

	alice.must("", "friends", "rm", "1")
	if out := alice.must("", "friends", "ls"); !strings.Contains(out, "no friends yet") {
		t.Errorf("friends ls after rm = %q", out)
	}
}

func TestLoginFailureClearsSession(t *testing.T) {
	backend := newBackend(t)
	alice := newUser(t, backend)
	alice.must("pw\npw\n", "register", "alice")

	r := alice.run("wrong\n", "login", "alice")
	if r.code != 1 {
		t.Fatalf("exit = %d", r.code)
	}
	if !strings.Contains(r.stderr, "Invalid username or password") {
		t.Errorf("stderr = %q", r.stderr)
	}
	if r := alice.run("", "whoami"); r.code != 1 || !strings.Contains(r.stderr, msgNotLoggedIn) {
		t.Errorf("whoami after failed login: %+v", r)
	}

	alice.must("pw\n", "login", "alice")
	alice.must("", "logout")
	if r := alice.run("", "friends", "ls"); r.code != 1 {
		t.Errorf("friends ls after logout exit = %d", r.code)
	}
}

func TestRegisterValidation(t *testing.T) {
	u := newUser(t, newBackend(t))
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"mismatch", "pw\nother\n", []string{"register", "carol"}, "Passwords do not match"},
		{"empty password", "\n", []string{"login", "carol"}, "Please fill in all fields"},
		{"blank username", "pw\n", []string{"login", "  "}, "Please fill in all fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := u.run(tt.stdin, tt.args...)
			if r.code != 2 || !strings.Contains(r.stderr, tt.want) {
				t.Errorf("got %+v, want exit 2 with %q", r, tt.want)
			}
		})
	}

	u.must("pw\npw\n", "register", "carol")
	r := u.run("pw\npw\n", "register", "carol")
	if r.code != 1 || !strings.Contains(r.stderr, "Username already exists") {
		t.Errorf("duplicate register: %+v", r)
	}
}

func TestUsageErrors(t *testing.T) {
	u := newUser(t, newBackend(t))
	u.must("pw\npw\n", "register", "dave")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"bogus"}, "unknown subcommand"},
		{[]string{"login"}, "usage: concierge login"},
		{[]string{"friends"}, "usage: concierge friends"},
		{[]string{"friends", "rm", "x"}, "not a number"},
		{[]string{"friends", "rm", "3"}, "index out of range"},
		{[]string{"friends", "add"}, "Please enter a friend's username."},
		{[]string{"locations", "add", " "}, "Please enter a location name."},
		{[]string{"locations", "fly"}, "unknown locations command"},
		{[]string{"trip"}, msgNoFriendSelected},
		{[]string{"trip", "1"}, "index out of range"},
	}
	for _, tt := range tests {
		r := u.run("", tt.args...)
		if r.code != 2 || !strings.Contains(r.stderr, tt.want) {
			t.Errorf("%v: got %+v, want exit 2 with %q", tt.args, r, tt.want)
		}
	}
}

func TestServerErrorsAreShown(t *testing.T) {
	u := newUser(t, newBackend(t))
	u.must("pw\npw\n", "register", "erin")
	r := u.run("", "friends", "add", "nobody")
	if r.code != 1 || !strings.Contains(r.stderr, "User not found") {
		t.Errorf("got %+v", r)
	}
}

func TestHelp(t *testing.T) {
	u := newUser(t, "http://localhost:1/api")
	out := u.must("", "help")
	for _, want := range []string{"stub-server", "trip <index...>", "-data-dir"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestStubServerStopsWithContext(t *testing.T) {
	u := newUser(t, "http://localhost:1/api")
	u.cfg.StubAddr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out, errOut bytes.Buffer
	code := Run(ctx, []string{"stub-server"}, Env{Config: u.cfg, Stdout: &out, Stderr: &errOut})
	if code != 0 {
		t.Errorf("exit = %d, stderr = %s", code, errOut.String())
	}
}
