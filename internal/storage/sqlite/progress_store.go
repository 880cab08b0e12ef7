package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// upsertProgress keeps both completed and score monotonic inside the database
const upsertProgress = `ON CONFLICT(mission_id) DO UPDATE SET
	completed    = MAX(progress.completed, excluded.completed),
	score        = MAX(progress.score, excluded.score),
	completed_at = COALESCE(progress.completed_at, excluded.completed_at),
	updated_at   = excluded.updated_at`

var progressColumns = []string{"mission_id", "completed", "score", "completed_at", "updated_at"}

// ProgressStore implements progress persistence backed by SQLite.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a new SQLite-backed progress store.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Get retrieves the record for missionID; ok is false when none exists.
func (s *ProgressStore) Get(ctx context.Context, missionID string) (domain.ProgressRecord, bool, error) {
	query, args, err := sqlBuilder.Select(progressColumns...).
		From("progress").
		Where(squirrel.Eq{"mission_id": missionID}).
		ToSql()
	if err != nil {
		return domain.ProgressRecord{}, false, fmt.Errorf("build query: %w", err)
	}

	rec, err := scanProgress(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProgressRecord{}, false, nil
	}
	if err != nil {
		return domain.ProgressRecord{}, false, fmt.Errorf("get progress %s: %w", missionID, err)
	}
	return rec, true, nil
}

// Put inserts or merges the record. Existing rows never lose completion
// or score.
func (s *ProgressStore) Put(ctx context.Context, rec domain.ProgressRecord) error {
	var completedAt sql.NullTime
	if rec.Completed && !rec.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: rec.CompletedAt.UTC(), Valid: true}
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query, args, err := sqlBuilder.Insert("progress").
		Columns(progressColumns...).
		Values(rec.MissionID, rec.Completed, int(rec.Score), completedAt, updatedAt.UTC()).
		Suffix(upsertProgress).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert progress %s: %w", rec.MissionID, err)
	}
	return nil
}

// List returns every stored record ordered by mission id.
func (s *ProgressStore) List(ctx context.Context) ([]domain.ProgressRecord, error) {
	query, args, err := sqlBuilder.Select(progressColumns...).
		From("progress").
		OrderBy("mission_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	records := []domain.ProgressRecord{}
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Reset removes all progress.
func (s *ProgressStore) Reset(ctx context.Context) error {
	query, args, err := sqlBuilder.Delete("progress").ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (domain.ProgressRecord, error) {
	var (
		rec         domain.ProgressRecord
		score       int
		completedAt sql.NullTime
	)
	if err := row.Scan(&rec.MissionID, &rec.Completed, &score, &completedAt, &rec.UpdatedAt); err != nil {
		return domain.ProgressRecord{}, err
	}
	rec.Score = domain.Score(score)
	if completedAt.Valid {
		rec.CompletedAt = completedAt.Time
	}
	return rec, nil
}
