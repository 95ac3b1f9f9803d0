package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/idilsaglam/concierge/internal/model"
	"github.com/idilsaglam/concierge/internal/store/jsonstore"
)

// SlotKey is the single key the session lives under.
const SlotKey = "session"

// Store persists the logged-in identity so it survives restarts.
// No expiry, no schema versioning.
type Store struct {
	kv jsonstore.Store
}

func NewStore(kv jsonstore.Store) *Store {
	return &Store{kv: kv}
}

// Load returns the stored session, or nil when none is stored. Malformed
// data counts as absent and the slot is cleared. Only failures of the
// underlying surface are returned as errors.
func (s *Store) Load() (*model.Session, error) {
	b, err := s.kv.Read(SlotKey)
	if errors.Is(err, jsonstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess *model.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		log.Printf("session: discarding malformed stored session: %v", err)
		return nil, s.clear()
	}
	if sess == nil || !sess.Valid() {
		log.Printf("session: discarding incomplete stored session")
		return nil, s.clear()
	}
	return sess, nil
}

// Save overwrites the slot with sess, or clears it when sess is nil.
func (s *Store) Save(sess *model.Session) error {
	if sess == nil {
		return s.clear()
	}
	if err := jsonstore.WriteJSON(s.kv, SlotKey, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) clear() error {
	if err := s.kv.Remove(SlotKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
