// Package stubapi is an in-memory implementation of the trip-planning REST
// backend. It backs the gateway tests and `concierge stub-server`.
package stubapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/idilsaglam/concierge/internal/model"
)

// MysteryDestination is used when the requester has no saved locations.
const MysteryDestination = "Mystery Destination"

const fallbackMessage = "No common location found among the selected friends. Here is a pick from your saved locations instead."

type user struct {
	id       int
	username string
	hash     []byte
	friends  []int // ids, insertion order
	locs     []model.Location
}

// Server holds all state behind a single mutex.
type Server struct {
	mu       sync.Mutex
	users    map[int]*user
	byName   map[string]int
	nextUser int
	nextLoc  int
	cost     int
}

func New() *Server {
	return &Server{
		users:    map[int]*user{},
		byName:   map[string]int{},
		nextUser: 1,
		nextLoc:  1,
		cost:     bcrypt.DefaultCost,
	}
}

// NewFast returns a Server with the minimum bcrypt cost, for tests.
func NewFast() *Server {
	s := New()
	s.cost = bcrypt.MinCost
	return s
}

// Handler serves the API under /api, the same prefix the real backend uses.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}/friends", s.listFriends).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/friends", s.addFriend).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}/friends/{fid:[0-9]+}", s.removeFriend).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id:[0-9]+}/locations", s.listLocations).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/locations", s.addLocation).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}/locations/{lid:[0-9]+}", s.removeLocation).Methods(http.MethodDelete)
	api.HandleFunc("/users/{id:[0-9]+}/results", s.results).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("stubapi: %s %s req=%s (%s)", r.Method, r.URL.Path, id, time.Since(start).Round(time.Microsecond))
	})
}

// ---------------- auth ----------------

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var cred model.Credentials
	if !decode(w, r, &cred) {
		return
	}
	name := strings.TrimSpace(cred.Username)
	if name == "" || cred.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cred.Password), s.cost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not store password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, taken := s.byName[key]; taken {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	u := &user{id: s.nextUser, username: name, hash: hash}
	s.nextUser++
	s.users[u.id] = u
	s.byName[key] = u.id
	writeJSON(w, http.StatusCreated, model.Session{ID: u.id, Username: u.username})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var cred model.Credentials
	if !decode(w, r, &cred) {
		return
	}
	s.mu.Lock()
	id, ok := s.byName[strings.ToLower(strings.TrimSpace(cred.Username))]
	var u *user
	if ok {
		u = s.users[id]
	}
	s.mu.Unlock()

	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(cred.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, model.Session{ID: u.id, Username: u.username})
}

// ---------------- friends ----------------

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userFrom(w, r)
	if u == nil {
		return
	}
	out := make([]model.FriendRef, 0, len(u.friends))
	for _, fid := range u.friends {
		if f := s.users[fid]; f != nil {
			out = append(out, model.FriendRef{ID: f.id, Name: f.username})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addFriend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userFrom(w, r)
	if u == nil {
		return
	}
	name := strings.TrimSpace(body.Username)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	fid, ok := s.byName[strings.ToLower(name)]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if fid == u.id {
		writeError(w, http.StatusBadRequest, "You cannot add yourself as a friend")
		return
	}
	if contains(u.friends, fid) {
		writeError(w, http.StatusConflict, "Already friends")
		return
	}
	f := s.users[fid]
	// friendships are mutual
	u.friends = append(u.friends, fid)
	if !contains(f.friends, u.id) {
		f.friends = append(f.friends, u.id)
	}
	writeJSON(w, http.StatusCreated, model.FriendRef{ID: f.id, Name: f.username})
}

func (s *Server) removeFriend(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userFrom(w, r)
	if u == nil {
		return
	}
	fid, _ := strconv.Atoi(mux.Vars(r)["fid"])
	if !contains(u.friends, fid) {
		writeError(w, http.StatusNotFound, "Friend not found")
		return
	}
	u.friends = without(u.friends, fid)
	if f := s.users[fid]; f != nil {
		f.friends = without(f.friends, u.id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- locations ----------------

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userFrom(w, r)
	if u == nil {
		return
	}
	out := append([]model.Location{}, u.locs...)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) addLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userFrom(w, r)
	if u == nil {
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Location name is required")
		return
	}
	loc := model.Location{ID: s.nextLoc, Name: name}
	s.nextLoc++
	u.locs = append(u.locs, loc)
	writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) removeLocation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userFrom(w, r)
	if u == nil {
		return
	}
	lid, _ := strconv.Atoi(mux.Vars(r)["lid"])
	for i, l := range u.locs {
		if l.ID == lid {
			u.locs = append(u.locs[:i:i], u.locs[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Location not found")
}

// ---------------- results ----------------

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	var req model.TripRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userFrom(w, r)
	if u == nil {
		return
	}
	if len(req.FriendIDs) == 0 {
		writeError(w, http.StatusBadRequest, "Select at least one friend")
		return
	}
	group := []*user{u}
	for _, fid := range req.FriendIDs {
		if !contains(u.friends, fid) {
			writeError(w, http.StatusBadRequest, "Not a friend: "+strconv.Itoa(fid))
			return
		}
		group = append(group, s.users[fid])
	}
	writeJSON(w, http.StatusOK, planTrip(group))
}

// planTrip picks the first of the requester's locations that every member
// of the group has also saved.
func planTrip(group []*user) model.TripResult {
	owner := group[0]
	for _, l := range owner.locs {
		if sharedByAll(group[1:], l.Name) {
			return model.TripResult{
				Destination:         l.Name,
				Attractions:         attractions(l.Name),
				AISuggestion:        suggestion(l.Name, len(group)),
				CommonLocationFound: true,
			}
		}
	}
	dest := MysteryDestination
	if len(owner.locs) > 0 {
		dest = owner.locs[0].Name
	}
	return model.TripResult{
		Destination:         dest,
		Attractions:         attractions(dest),
		CommonLocationFound: false,
		FallbackMessage:     fallbackMessage,
	}
}

func sharedByAll(members []*user, name string) bool {
	for _, m := range members {
		found := false
		for _, l := range m.locs {
			if strings.EqualFold(strings.TrimSpace(l.Name), strings.TrimSpace(name)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func attractions(dest string) []model.Attraction {
	return []model.Attraction{
		{Name: dest + " Adventure Park"},
		{Name: dest + " Historical Museum"},
		{Name: dest + " Culinary Tour"},
	}
}

func suggestion(dest string, travellers int) string {
	return "## " + dest + "\n\n" +
		"Everyone in your group of " + strconv.Itoa(travellers) + " has **" + dest + "** on their list.\n\n" +
		"- Start at the *" + dest + " Adventure Park*\n" +
		"- Spend an afternoon in the " + dest + " Historical Museum\n" +
		"- Finish with the " + dest + " Culinary Tour\n"
}

// ---------------- helpers ----------------

// userFrom resolves {id}; it writes a 404 and returns nil when unknown.
// Callers hold s.mu.
func (s *Server) userFrom(w http.ResponseWriter, r *http.Request) *user {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	u := s.users[id]
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found")
	}
	return u
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func contains(ids []int, id int) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func without(ids []int, id int) []int {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
