package progress

import (
	"context"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// Store defines the persistence interface for progress records.
// Both the JSON file store and the SQLite store implement this.
type Store interface {
	Get(ctx context.Context, missionID string) (domain.ProgressRecord, bool, error)
	Put(ctx context.Context, rec domain.ProgressRecord) error
	List(ctx context.Context) ([]domain.ProgressRecord, error)
	Reset(ctx context.Context) error
}

// AttemptLog keeps the history of validated submissions
type AttemptLog interface {
	Record(ctx context.Context, a domain.Attempt) error
	Attempts(ctx context.Context, missionID string) ([]domain.Attempt, error)
}

// Catalog is the read side of the mission registry that progress needs
// to know how many missions a module declares
type Catalog interface {
	Get(id string) (*domain.Mission, error)
	ByModule(module int) []*domain.Mission
	Modules() []domain.ModuleInfo
}

// ProgressService defines the progress operations used by the session
// service, the daemon and the MCP server
type ProgressService interface {
	MarkComplete(ctx context.Context, missionID string, score domain.Score) (domain.ProgressRecord, error)
	GetMissionProgress(ctx context.Context, missionID string) (domain.ProgressRecord, bool, error)
	GetModuleProgress(ctx context.Context, module int) (domain.ModuleProgress, error)
	Overview(ctx context.Context) ([]domain.ModuleProgress, error)
	RecordAttempt(ctx context.Context, a domain.Attempt) error
	AttemptStats(ctx context.Context, missionID string) (domain.AttemptStats, error)
	Reset(ctx context.Context) error
}

// Ensure Service implements ProgressService
var _ ProgressService = (*Service)(nil)
