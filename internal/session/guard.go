package session

// Decision is what a protected view should do right now.
type Decision int

const (
	// Pending: session state not resolved yet, show a placeholder.
	Pending Decision = iota
	Admit
	RedirectToLogin
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Admit:
		return "admit"
	case RedirectToLogin:
		return "redirect"
	}
	return "unknown"
}

// Guard decides access to a protected view. It is recomputed on every
// render; nothing is cached.
func Guard(s State) Decision {
	switch {
	case s.Loading:
		return Pending
	case s.Authenticated():
		return Admit
	default:
		return RedirectToLogin
	}
}
