package session

import (
	"context"

	"github.com/felixgeelhaar/pylab/internal/domain"
	"github.com/felixgeelhaar/pylab/internal/runner"
)

// SessionService defines the interface for session management operations
// used by the daemon handlers and the MCP server
type SessionService interface {
	// Open starts a new session on a mission
	Open(ctx context.Context, missionID string) (*Session, error)

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*Session, error)

	// List returns all sessions
	List(ctx context.Context) ([]*Session, error)

	// Delete removes a session
	Delete(ctx context.Context, id string) error

	// SetCode replaces the code buffer
	SetCode(ctx context.Context, id, code string) (*Session, error)

	// Reset restores the mission defaults
	Reset(ctx context.Context, id string) (*Session, error)

	// NextHint reveals the next hint
	NextHint(ctx context.Context, id string) (*Session, domain.Hint, error)

	// Run executes code and validates the outcome
	Run(ctx context.Context, id, code string) (*RunReport, error)

	// Submit validates a run that was executed elsewhere
	Submit(ctx context.Context, id, code string, res runner.Result) (*RunReport, error)
}

// Ensure Service implements SessionService
var _ SessionService = (*Service)(nil)

// SessionStore defines the persistence interface for sessions
type SessionStore interface {
	Save(session *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error
	ListAll() ([]*Session, error)
}

// Ensure Store (JSON) implements SessionStore
var _ SessionStore = (*Store)(nil)

// MissionCatalog resolves missions for sessions
type MissionCatalog interface {
	Get(id string) (*domain.Mission, error)
	Next(id string) (*domain.Mission, error)
}
