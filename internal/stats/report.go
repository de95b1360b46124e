package stats

import (
	"context"
	"io"

	"github.com/verte-zerg/shadowshield/internal/model"
)

// Source loads history. The SQLite store implements it.
type Source interface {
	ListAttempts(ctx context.Context, cfg model.HistoryConfig) ([]model.AttemptRecord, error)
	CountOutcomes(ctx context.Context, cfg model.HistoryConfig) ([]model.OutcomeAggregate, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Records  []model.AttemptRecord
	Outcomes []model.OutcomeAggregate
	Summary  Summary
}

// BuildReport loads and prepares data for history rendering.
func BuildReport(ctx context.Context, src Source, cfg model.HistoryConfig) (Report, error) {
	records, err := src.ListAttempts(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	outcomes, err := src.CountOutcomes(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Records:  records,
		Outcomes: outcomes,
		Summary:  Summarize(records),
	}, nil
}

// Render writes the full plain-text report.
func (r Report) Render(w io.Writer) error {
	if err := RenderSummary(w, r.Records); err != nil {
		return err
	}
	if len(r.Records) == 0 {
		return nil
	}
	if err := RenderOutcomeTable(w, r.Outcomes); err != nil {
		return err
	}
	return RenderHistoryTable(w, r.Records)
}
