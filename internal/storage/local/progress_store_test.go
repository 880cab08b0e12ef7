package local

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/pylab/internal/domain"
)

func TestProgressStore_GetMissing(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	ps := NewProgressStore(store)

	rec, ok, err := ps.Get(context.Background(), "1_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Errorf("Get() ok = true for a mission never attempted, rec = %+v", rec)
	}
}

func TestProgressStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(t.TempDir())
	ps := NewProgressStore(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.ProgressRecord{
		{MissionID: "5-1-1", Completed: true, Score: domain.ScoreOne, CompletedAt: now, UpdatedAt: now},
		{MissionID: "1_1", Completed: true, Score: domain.ScoreThree, CompletedAt: now, UpdatedAt: now},
	}
	for _, r := range records {
		if err := ps.Put(ctx, r); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	got, ok, err := ps.Get(ctx, "1_1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Score != domain.ScoreThree || !got.CompletedAt.Equal(now) {
		t.Errorf("Get() = %+v", got)
	}

	list, err := ps.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].MissionID != "1_1" || list[1].MissionID != "5-1-1" {
		t.Errorf("List() = %+v, want records ordered by mission id", list)
	}

	// A fresh store over the same directory sees the same data
	reopened, _ := NewStore(store.Path())
	if _, ok, _ := NewProgressStore(reopened).Get(ctx, "5-1-1"); !ok {
		t.Error("progress did not survive reopening the store")
	}

	if err := ps.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	list, _ = ps.List(ctx)
	if len(list) != 0 {
		t.Errorf("List() after Reset() = %+v", list)
	}
}
