package local

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

const progressCollection = "progress"

// ProgressStore keeps one JSON file per mission under <base>/progress
type ProgressStore struct {
	store *Store
}

// NewProgressStore creates a progress store on top of a JSON store
func NewProgressStore(store *Store) *ProgressStore {
	return &ProgressStore{store: store}
}

// Get returns the record for missionID; ok is false when none exists
func (p *ProgressStore) Get(_ context.Context, missionID string) (domain.ProgressRecord, bool, error) {
	var rec domain.ProgressRecord
	err := p.store.Load(progressCollection, missionID, &rec)
	if errors.Is(err, ErrNotFound) {
		return domain.ProgressRecord{}, false, nil
	}
	if err != nil {
		return domain.ProgressRecord{}, false, fmt.Errorf("load progress %s: %w", missionID, err)
	}
	return rec, true, nil
}

// Put replaces the record for rec.MissionID
func (p *ProgressStore) Put(_ context.Context, rec domain.ProgressRecord) error {
	if err := p.store.Save(progressCollection, rec.MissionID, rec); err != nil {
		return fmt.Errorf("save progress %s: %w", rec.MissionID, err)
	}
	return nil
}

// List returns every stored record ordered by mission id
func (p *ProgressStore) List(ctx context.Context) ([]domain.ProgressRecord, error) {
	ids, err := p.store.List(progressCollection)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	sort.Strings(ids)

	records := make([]domain.ProgressRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := p.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Reset removes all progress
func (p *ProgressStore) Reset(_ context.Context) error {
	ids, err := p.store.List(progressCollection)
	if err != nil {
		return fmt.Errorf("list progress: %w", err)
	}
	for _, id := range ids {
		if err := p.store.Delete(progressCollection, id); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete progress %s: %w", id, err)
		}
	}
	return nil
}
