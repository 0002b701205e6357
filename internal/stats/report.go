package stats

import (
	"context"

	"github.com/verte-zerg/factopia/internal/model"
	"github.com/verte-zerg/factopia/internal/progress"
	"github.com/verte-zerg/factopia/internal/store"
)

// RunSource provides run history. Backends without history pass nil.
type RunSource interface {
	ListRuns(ctx context.Context, cfg model.StatsConfig) ([]model.RunRecord, error)
	ListCategoryAggregates(ctx context.Context) ([]store.CategoryAggregate, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Progress   progress.Snapshot
	Runs       []model.RunRecord
	WindowRuns []model.RunRecord
	Categories []store.CategoryAggregate
}

// BuildReport combines the ledger snapshot with stored run history.
func BuildReport(ctx context.Context, runs RunSource, ledger *progress.Ledger, cfg model.StatsConfig) (Report, error) {
	report := Report{Progress: ledger.Snapshot()}
	if runs == nil {
		return report, nil
	}
	list, err := runs.ListRuns(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(list) > cfg.Last {
		list = list[len(list)-cfg.Last:]
	}
	report.Runs = list
	report.WindowRuns = list
	if cfg.CurveWindow > 0 && len(list) > cfg.CurveWindow {
		report.WindowRuns = list[len(list)-cfg.CurveWindow:]
	}
	if report.Categories, err = runs.ListCategoryAggregates(ctx); err != nil {
		return Report{}, err
	}
	return report, nil
}
