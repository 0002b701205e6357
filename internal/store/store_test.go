package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/factopia/internal/kv"
	"github.com/verte-zerg/factopia/internal/model"
	"github.com/verte-zerg/factopia/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "factopia.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if _, ok, err := st.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := st.Set(ctx, "k", []byte(`1`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Set(ctx, "k", []byte(`2`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := st.Get(ctx, "k")
	if err != nil || !ok || string(v) != "2" {
		t.Fatalf("expected latest value 2, got %q ok=%v err=%v", v, ok, err)
	}
	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestLedgerPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "factopia.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var _ kv.Store = st
	l := progress.Load(ctx, st)
	l.RecordLevelResult(ctx, "cars", "1", 80, 90)
	l.MergeMistakes(ctx, "cars", []string{"q1"})
	l.ToggleFavorite(ctx, "cars", "q2")
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = st.Close() }()
	l = progress.Load(ctx, st)
	if l.Degraded() != nil {
		t.Fatalf("unexpected degraded ledger: %v", l.Degraded())
	}
	if p, ok := l.Level("cars", "1"); !ok || p.Score != 80 {
		t.Fatalf("expected persisted level, got %+v", p)
	}
	if len(l.Mistakes()) != 1 || !l.IsFavorite("cars", "q2") {
		t.Fatalf("expected persisted mistakes and favorites")
	}
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	base := time.Unix(1_700_000_000, 0)
	for i, cat := range []string{"cars", "flags", "cars"} {
		start := base.Add(time.Duration(i) * time.Minute)
		id, err := st.InsertRun(ctx, model.RunRecord{
			CategoryID: cat,
			LevelID:    "1",
			Score:      10 * (i + 1),
			Accuracy:   50 + i*10,
			Answered:   10,
			Correct:    5 + i,
			StartedAt:  start,
			EndedAt:    start.Add(30 * time.Second),
		})
		if err != nil {
			t.Fatalf("insert run: %v", err)
		}
		if id == "" {
			t.Fatalf("expected generated id")
		}
	}

	runs, err := st.ListRuns(ctx, model.StatsConfig{CategoryID: "cars"})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].Score != 10 || runs[1].Score != 30 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	since := base.Add(90 * time.Second)
	runs, err = st.ListRuns(ctx, model.StatsConfig{Since: &since})
	if err != nil {
		t.Fatalf("list runs since: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs since cutoff, got %d", len(runs))
	}

	aggs, err := st.ListCategoryAggregates(ctx)
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if len(aggs) != 2 || aggs[0].CategoryID != "cars" || aggs[0].Runs != 2 || aggs[0].BestScore != 30 || aggs[0].Correct != 12 {
		t.Fatalf("unexpected aggregates: %+v", aggs)
	}
}
