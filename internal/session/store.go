package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/pylab/internal/storage/local"
)

const collectionSessions = "sessions"

var (
	ErrNotFound = errors.New("session not found")
)

// Store handles session persistence
type Store struct {
	store *local.Store
}

// NewStore creates a new session store
func NewStore(basePath string) (*Store, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &Store{store: store}, nil
}

// NewStoreFrom shares an existing local store
func NewStoreFrom(store *local.Store) *Store {
	return &Store{store: store}
}

// Save persists a session
func (s *Store) Save(session *Session) error {
	return s.store.Save(collectionSessions, session.ID, session)
}

// Get retrieves a session by ID
func (s *Store) Get(id string) (*Session, error) {
	var session Session
	if err := s.store.Load(collectionSessions, id, &session); err != nil {
		if errors.Is(err, local.ErrNotFound) || errors.Is(err, local.ErrInvalidID) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Delete removes a session
func (s *Store) Delete(id string) error {
	if err := s.store.Delete(collectionSessions, id); err != nil {
		if errors.Is(err, local.ErrNotFound) || errors.Is(err, local.ErrInvalidID) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// List returns all session IDs
func (s *Store) List() ([]string, error) {
	return s.store.List(collectionSessions)
}

// ListAll returns every session, most recently updated first
func (s *Store) ListAll() ([]*Session, error) {
	ids, err := s.store.List(collectionSessions)
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// Exists checks if a session exists
func (s *Store) Exists(id string) bool {
	return s.store.Exists(collectionSessions, id)
}
