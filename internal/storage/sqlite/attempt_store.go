package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// AttemptStore records every validated submission.
type AttemptStore struct {
	db *DB
}

// NewAttemptStore creates a new SQLite-backed attempt log.
func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Record appends an attempt.
func (s *AttemptStore) Record(ctx context.Context, a domain.Attempt) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query, args, err := sqlBuilder.Insert("attempts").
		Columns("mission_id", "session_id", "passed", "score", "errors", "created_at").
		Values(a.MissionID, a.SessionID, a.Passed, int(a.Score), a.Errors, createdAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record attempt %s: %w", a.MissionID, err)
	}
	return nil
}

// Attempts returns the attempts for missionID, oldest first. An empty
// missionID returns every attempt.
func (s *AttemptStore) Attempts(ctx context.Context, missionID string) ([]domain.Attempt, error) {
	q := sqlBuilder.Select("mission_id", "session_id", "passed", "score", "errors", "created_at").
		From("attempts").
		OrderBy("created_at ASC", "id ASC")
	if missionID != "" {
		q = q.Where(squirrel.Eq{"mission_id": missionID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.Attempt{}
	for rows.Next() {
		var (
			a     domain.Attempt
			score int
		)
		if err := rows.Scan(&a.MissionID, &a.SessionID, &a.Passed, &score, &a.Errors, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Score = domain.Score(score)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
