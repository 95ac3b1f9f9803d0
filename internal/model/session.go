package model

// Session is the logged-in user's identity as returned by /login and /register.
type Session struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Valid reports whether s carries a usable identity.
func (s Session) Valid() bool { return s.ID > 0 && s.Username != "" }

// Credentials is the body of both auth calls.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
