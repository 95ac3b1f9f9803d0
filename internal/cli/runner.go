package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/concierge/internal/api"
	"github.com/idilsaglam/concierge/internal/config"
	"github.com/idilsaglam/concierge/internal/model"
	"github.com/idilsaglam/concierge/internal/session"
	"github.com/idilsaglam/concierge/internal/store/jsonstore"
	"github.com/idilsaglam/concierge/internal/stubapi"
	"github.com/idilsaglam/concierge/internal/tui"
	"github.com/idilsaglam/concierge/internal/ui"
)

const (
	msgNotLoggedIn      = "You must be logged in."
	msgNoFriendSelected = "Please select at least one friend."
)

// Env is everything a command touches outside the process.
type Env struct {
	Config *config.Config
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
// With no arguments it starts the interactive client.
func Run(ctx context.Context, args []string, env Env) int {
	if len(args) == 0 {
		args = []string{"tui"}
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(env.Stdout)
		return 0
	case "tui":
		return runTUI(env)
	case "login", "register":
		if len(a) != 1 {
			ui.Fail(env.Stderr, "usage: concierge "+cmd+" <username>")
			return 2
		}
		return doAuth(ctx, env, cmd == "register", a[0])
	case "logout":
		return doLogout(env)
	case "whoami":
		return doWhoami(env)
	case "friends":
		return doFriends(ctx, env, a)
	case "locations":
		return doLocations(ctx, env, a)
	case "trip":
		return doTrip(ctx, env, a)
	case "stub-server":
		return doStubServer(ctx, env)
	}

	ui.Fail(env.Stderr, "unknown subcommand: "+cmd)
	fmt.Fprintln(env.Stderr)
	PrintHelp(env.Stderr)
	return 2
}

func PrintHelp(w io.Writer) {
	fmt.Fprint(w, `concierge - plan a trip with your friends

Usage:
  concierge [flags] [subcommand] [args]

Subcommands:
  tui                       Interactive client (default)
  register <username>       Create an account; reads password and confirmation from stdin
  login <username>          Log in; reads the password from stdin
  logout                    Forget the stored session
  whoami                    Show the stored session
  friends ls                List your friends
  friends add <username>    Add a friend by username
  friends rm <index>        Remove the friend at 1-based index
  locations ls              List your saved locations
  locations add <name...>   Save a location
  locations rm <index>      Remove the location at 1-based index
  trip <index...>           Plan a trip with the friends at the given indexes
  stub-server               Serve an in-memory backend for local testing

Flags:
  -api <url>        backend base URL
  -data-dir <dir>   where the session and config.yaml live
  -log <file>       write debug logs to file
  -theme <name>     classic, neon or mono

Examples:
  concierge stub-server &
  printf 'secret\nsecret\n' | concierge register alice
  concierge friends add bob
  concierge trip 1
`)
}

// ---------------- wiring ----------------

func newClient(cfg *config.Config) *api.Client {
	return api.NewClient(cfg.APIURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)
}

func newSessionStore(cfg *config.Config) *session.Store {
	return session.NewStore(jsonstore.NewFileStore(cfg.DataDir))
}

func runTUI(env Env) int {
	client := newClient(env.Config)
	nav := tui.NewNavigator()
	ctrl := session.NewController(newSessionStore(env.Config), client, nav)
	if err := tui.Run(tui.NewApp(ctrl, client, nav)); err != nil {
		ui.Fail(env.Stderr, "tui: "+err.Error())
		return 1
	}
	return 0
}

// requireSession loads the stored session or explains how to get one.
func requireSession(env Env) (*model.Session, bool) {
	sess, err := newSessionStore(env.Config).Load()
	if err != nil {
		ui.Fail(env.Stderr, "session: "+err.Error())
		return nil, false
	}
	if sess == nil {
		ui.Fail(env.Stderr, msgNotLoggedIn)
		ui.Hint(env.Stderr, "run `concierge login <username>`")
		return nil, false
	}
	return sess, true
}

// ---------------- auth ----------------

func doAuth(ctx context.Context, env Env, register bool, username string) int {
	in := bufio.NewReader(env.Stdin)
	prompt := isTerminal(env.Stdin)

	pw, err := readSecret(in, env.Stderr, prompt, "Password: ")
	if err != nil {
		ui.Fail(env.Stderr, "read password: "+err.Error())
		return 1
	}
	cred := model.Credentials{Username: strings.TrimSpace(username), Password: pw}

	var confirm *string
	if register {
		c, err := readSecret(in, env.Stderr, prompt, "Confirm Password: ")
		if err != nil {
			ui.Fail(env.Stderr, "read confirmation: "+err.Error())
			return 1
		}
		confirm = &c
	}
	if err := session.ValidateCredentials(cred, confirm); err != nil {
		ui.Fail(env.Stderr, capitalize(err.Error()))
		return 2
	}

	ctrl := session.NewController(newSessionStore(env.Config), newClient(env.Config), nil)
	ctrl.Resolve()
	if register {
		err = ctrl.Register(ctx, cred)
	} else {
		err = ctrl.Login(ctx, cred)
	}
	if err != nil {
		fallback := "Login failed. Please try again."
		if register {
			fallback = "Registration failed. Please try again."
		}
		ui.Fail(env.Stderr, api.Message(err, fallback))
		return 1
	}
	ui.OK(env.Stdout, "logged in as "+ctrl.Current().Username)
	return 0
}

func doLogout(env Env) int {
	ctrl := session.NewController(newSessionStore(env.Config), newClient(env.Config), nil)
	ctrl.Resolve()
	ctrl.Logout()
	ui.OK(env.Stdout, "logged out")
	return 0
}

func doWhoami(env Env) int {
	sess, ok := requireSession(env)
	if !ok {
		return 1
	}
	t := ui.Current()
	ui.Panel(env.Stdout, []string{
		ui.C(t.Title, sess.Username),
		ui.C(t.Muted, "user id "+strconv.Itoa(sess.ID)),
		ui.C(t.Muted, "backend "+env.Config.APIURL),
	})
	return 0
}

// readSecret reads one line. The prompt only shows on a terminal.
func readSecret(r *bufio.Reader, prompt io.Writer, show bool, label string) (string, error) {
	if show {
		fmt.Fprint(prompt, label)
	}
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ---------------- friends / locations ----------------

func doFriends(ctx context.Context, env Env, a []string) int {
	if len(a) == 0 {
		ui.Fail(env.Stderr, "usage: concierge friends ls|add <username>|rm <index>")
		return 2
	}
	sess, ok := requireSession(env)
	if !ok {
		return 1
	}
	client := newClient(env.Config)

	switch a[0] {
	case "ls":
		friends, err := client.Friends(ctx, sess.ID)
		if err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to load your friends."))
			return 1
		}
		names := make([]string, len(friends))
		for i, f := range friends {
			names[i] = f.Name
		}
		listPanel(env.Stdout, "Contacts", names, "no friends yet")
		return 0

	case "add":
		name := strings.TrimSpace(strings.Join(a[1:], " "))
		if name == "" {
			ui.Fail(env.Stderr, "Please enter a friend's username.")
			return 2
		}
		f, err := client.AddFriend(ctx, sess.ID, name)
		if err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to add friend."))
			return 1
		}
		ui.OK(env.Stdout, "added "+f.Name)
		return 0

	case "rm":
		if len(a) != 2 {
			ui.Fail(env.Stderr, "usage: concierge friends rm <index>")
			return 2
		}
		n, err := strconv.Atoi(a[1])
		if err != nil {
			ui.Fail(env.Stderr, "rm: not a number: "+a[1])
			return 2
		}
		friends, err := client.Friends(ctx, sess.ID)
		if err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to load your friends."))
			return 1
		}
		if !inRange(env, n, len(friends), "friends ls") {
			return 2
		}
		target := friends[n-1]
		if err := client.RemoveFriend(ctx, sess.ID, target.ID); err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to remove friend."))
			return 1
		}
		ui.OK(env.Stdout, "removed "+target.Name)
		return 0
	}

	ui.Fail(env.Stderr, "unknown friends command: "+a[0])
	return 2
}

func doLocations(ctx context.Context, env Env, a []string) int {
	if len(a) == 0 {
		ui.Fail(env.Stderr, "usage: concierge locations ls|add <name...>|rm <index>")
		return 2
	}
	sess, ok := requireSession(env)
	if !ok {
		return 1
	}
	client := newClient(env.Config)

	switch a[0] {
	case "ls":
		locs, err := client.Locations(ctx, sess.ID)
		if err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to load your locations."))
			return 1
		}
		names := make([]string, len(locs))
		for i, l := range locs {
			names[i] = l.Name
		}
		listPanel(env.Stdout, "Locations", names, "no saved locations")
		return 0

	case "add":
		name := strings.TrimSpace(strings.Join(a[1:], " "))
		if name == "" {
			ui.Fail(env.Stderr, "Please enter a location name.")
			return 2
		}
		l, err := client.AddLocation(ctx, sess.ID, name)
		if err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to add location."))
			return 1
		}
		ui.OK(env.Stdout, "saved "+l.Name)
		return 0

	case "rm":
		if len(a) != 2 {
			ui.Fail(env.Stderr, "usage: concierge locations rm <index>")
			return 2
		}
		n, err := strconv.Atoi(a[1])
		if err != nil {
			ui.Fail(env.Stderr, "rm: not a number: "+a[1])
			return 2
		}
		locs, err := client.Locations(ctx, sess.ID)
		if err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to load your locations."))
			return 1
		}
		if !inRange(env, n, len(locs), "locations ls") {
			return 2
		}
		target := locs[n-1]
		if err := client.RemoveLocation(ctx, sess.ID, target.ID); err != nil {
			ui.Fail(env.Stderr, api.Message(err, "Failed to remove location."))
			return 1
		}
		ui.OK(env.Stdout, "removed "+target.Name)
		return 0
	}

	ui.Fail(env.Stderr, "unknown locations command: "+a[0])
	return 2
}

func inRange(env Env, userIndex, n int, lsCmd string) bool {
	if userIndex >= 1 && userIndex <= n {
		return true
	}
	ui.Fail(env.Stderr, fmt.Sprintf("index out of range: have %d, got %d", n, userIndex))
	ui.Hint(env.Stderr, "run `concierge "+lsCmd+"` to see valid indexes")
	return false
}

func listPanel(w io.Writer, title string, names []string, empty string) {
	t := ui.Current()
	lines := []string{
		fmt.Sprintf("%s  %s %d", ui.C(t.Title, title), ui.C(t.Accent, "Total"), len(names)),
		"",
	}
	lines = append(lines, ui.Numbered(names, empty)...)
	ui.Panel(w, lines)
}

// ---------------- trip ----------------

func doTrip(ctx context.Context, env Env, a []string) int {
	if len(a) == 0 {
		ui.Fail(env.Stderr, msgNoFriendSelected)
		ui.Hint(env.Stderr, "usage: concierge trip <index...>")
		return 2
	}
	sess, ok := requireSession(env)
	if !ok {
		return 1
	}
	client := newClient(env.Config)

	friends, err := client.Friends(ctx, sess.ID)
	if err != nil {
		ui.Fail(env.Stderr, api.Message(err, "Failed to load your friends."))
		return 1
	}
	for _, arg := range a {
		n, err := strconv.Atoi(arg)
		if err != nil {
			ui.Fail(env.Stderr, "trip: not a number: "+arg)
			return 2
		}
		if !inRange(env, n, len(friends), "friends ls") {
			return 2
		}
		friends[n-1].Selected = true
	}

	selected := model.SelectedFriends(friends)
	req := model.TripRequest{FriendIDs: make([]int, 0, len(selected))}
	payload := &model.TripPayload{Friends: make([]model.FriendRef, 0, len(selected))}
	for _, f := range selected {
		req.FriendIDs = append(req.FriendIDs, f.ID)
		payload.Friends = append(payload.Friends, model.FriendRef{ID: f.ID, Name: f.Name})
	}
	payload.Result, err = client.TripResults(ctx, sess.ID, req)
	if err != nil {
		ui.Fail(env.Stderr, api.Message(err, "Failed to get trip results. Please try again."))
		return 1
	}
	fmt.Fprintln(env.Stdout, tui.RenderResult(payload, 76))
	return 0
}

// ---------------- stub backend ----------------

func doStubServer(ctx context.Context, env Env) int {
	srv := &http.Server{
		Addr:              env.Config.StubAddr,
		Handler:           stubapi.New().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	ui.OK(env.Stdout, "stub backend on "+env.Config.StubAddr+" (api under /api)")
	log.Printf("stub-server: listening on %s", env.Config.StubAddr)
	if err := g.Wait(); err != nil {
		ui.Fail(env.Stderr, "stub-server: "+err.Error())
		return 1
	}
	return 0
}
