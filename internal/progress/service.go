// Package progress tracks the best result a learner achieved per mission
// and aggregates it per skill-tree module.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

// Service handles progress business logic
type Service struct {
	store    Store
	catalog  Catalog
	attempts AttemptLog
	logger   *slog.Logger
	now      func() time.Time

	// mu makes each MarkComplete a single read-modify-write
	mu sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithAttemptLog enables attempt history
func WithAttemptLog(log AttemptLog) Option {
	return func(s *Service) { s.attempts = log }
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new progress service
func NewService(store Store, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		catalog: catalog,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkComplete records a passing score. Completion is never cleared and
// the stored score only rises.
func (s *Service) MarkComplete(ctx context.Context, missionID string, score domain.Score) (domain.ProgressRecord, error) {
	if !score.Valid() {
		return domain.ProgressRecord{}, fmt.Errorf("%w: got %d", domain.ErrInvalidScore, score)
	}
	if s.catalog != nil {
		if _, err := s.catalog.Get(missionID); err != nil {
			return domain.ProgressRecord{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.store.Get(ctx, missionID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}

	now := s.now()
	if !ok {
		rec = domain.ProgressRecord{MissionID: missionID}
	}
	firstCompletion := !rec.Completed
	if !rec.Merge(score) {
		return rec, nil
	}
	if firstCompletion {
		rec.CompletedAt = now
	}
	rec.UpdatedAt = now

	if err := s.store.Put(ctx, rec); err != nil {
		return domain.ProgressRecord{}, err
	}

	s.logger.Info("progress updated", "mission_id", missionID, "score", int(rec.Score), "first_completion", firstCompletion)
	return rec, nil
}

// GetMissionProgress returns the record for missionID. A mission never
// completed is reported with ok == false, not as an error.
func (s *Service) GetMissionProgress(ctx context.Context, missionID string) (domain.ProgressRecord, bool, error) {
	return s.store.Get(ctx, missionID)
}

// GetModuleProgress aggregates progress over the missions the catalog
// declares for module
func (s *Service) GetModuleProgress(ctx context.Context, module int) (domain.ModuleProgress, error) {
	if !s.hasModule(module) {
		return domain.ModuleProgress{}, fmt.Errorf("%w: %d", domain.ErrModuleNotFound, module)
	}

	records, err := s.records(ctx)
	if err != nil {
		return domain.ModuleProgress{}, err
	}
	return s.aggregate(module, records), nil
}

// Overview aggregates progress for every module in catalog order
func (s *Service) Overview(ctx context.Context) ([]domain.ModuleProgress, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}

	modules := s.catalog.Modules()
	out := make([]domain.ModuleProgress, 0, len(modules))
	for _, m := range modules {
		out = append(out, s.aggregate(m.ID, records))
	}
	return out, nil
}

// RecordAttempt appends to the attempt history when one is configured
func (s *Service) RecordAttempt(ctx context.Context, a domain.Attempt) error {
	if s.attempts == nil {
		return nil
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	return s.attempts.Record(ctx, a)
}

// AttemptStats summarizes the attempt history of missionID. Without an
// attempt log the stats are empty.
func (s *Service) AttemptStats(ctx context.Context, missionID string) (domain.AttemptStats, error) {
	out := domain.AttemptStats{MissionID: missionID}
	if s.attempts == nil {
		return out, nil
	}

	attempts, err := s.attempts.Attempts(ctx, missionID)
	if err != nil {
		return out, err
	}

	var scores []float64
	for _, a := range attempts {
		out.Attempts++
		if a.Passed {
			out.Passes++
			scores = append(scores, float64(a.Score))
		}
	}
	out.MeanScore = mean(scores)
	return out, nil
}

// Reset forgets all progress
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.logger.Info("progress reset")
	return nil
}

func (s *Service) hasModule(module int) bool {
	for _, m := range s.catalog.Modules() {
		if m.ID == module {
			return true
		}
	}
	return false
}

func (s *Service) records(ctx context.Context) (map[string]domain.ProgressRecord, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.ProgressRecord, len(list))
	for _, r := range list {
		byID[r.MissionID] = r
	}
	return byID, nil
}

func (s *Service) aggregate(module int, records map[string]domain.ProgressRecord) domain.ModuleProgress {
	missions := s.catalog.ByModule(module)
	mp := domain.ModuleProgress{
		Module:   module,
		Total:    len(missions),
		MaxStars: len(missions) * int(domain.MaxScore),
	}

	var scores []float64
	for _, m := range missions {
		rec, ok := records[m.ID]
		if !ok || !rec.Completed {
			continue
		}
		mp.Completed++
		mp.Stars += int(rec.Score)
		scores = append(scores, float64(rec.Score))
	}
	mp.AverageScore = mean(scores)
	return mp
}

// mean is zero for an empty sample
func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	return m
}
