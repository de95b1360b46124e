package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/shadowshield/internal/model"
	"github.com/verte-zerg/shadowshield/internal/store"
)

func record(at time.Time, cycle string, kind model.EventKind, status model.OutcomeStatus) model.AttemptRecord {
	return model.AttemptRecord{
		ID:          uuid.NewString(),
		CycleID:     cycle,
		At:          at,
		Kind:        kind,
		Status:      status,
		Username:    "alice",
		VectorValid: kind == model.EventLogin,
	}
}

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	inputs := []model.AttemptRecord{
		record(base, "c1", model.EventLogin, model.OutcomeFailed),
		record(base.Add(time.Minute), "c1", model.EventLogin, model.OutcomeAnomaly),
		record(base.Add(2*time.Minute), "c1", model.EventLogin, model.OutcomeFailed),
		record(base.Add(2*time.Minute), "c1", model.EventLockout, ""),
		record(base.Add(3*time.Minute), "c1", model.EventUnlock, ""),
		record(base.Add(4*time.Minute), "c2", model.EventLogin, model.OutcomeSuccess),
	}
	for _, r := range inputs {
		if err := st.Record(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.HistoryConfig{Last: 3})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(report.Records))
	}
	if report.Records[2].Status != model.OutcomeSuccess {
		t.Fatalf("expected newest record last, got %+v", report.Records[2])
	}
	if len(report.Outcomes) == 0 {
		t.Fatalf("expected outcome aggregates")
	}

	var buf bytes.Buffer
	if err := report.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Summary", "Outcomes", "Events", "lockout", "unlock"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := Summarize([]model.AttemptRecord{
		record(base, "c1", model.EventLogin, model.OutcomeFailed),
		record(base, "c1", model.EventLogin, model.OutcomeAnomaly),
		record(base, "c1", model.EventLogin, model.OutcomeFailed),
		record(base, "c1", model.EventLockout, ""),
		record(base, "c1", model.EventPasscode, ""),
		record(base, "c1", model.EventBypass, ""),
		record(base, "c2", model.EventLogin, model.OutcomeSuccess),
	})
	if s.Logins != 4 || s.Failures != 2 || s.Anomalies != 1 || s.Successes != 1 {
		t.Fatalf("unexpected login counts: %+v", s)
	}
	if s.Lockouts != 1 || s.Mismatch != 1 || s.Bypasses != 1 || s.Cycles != 2 {
		t.Fatalf("unexpected event counts: %+v", s)
	}
	if rate := s.RejectionRate(); rate != 0.75 {
		t.Fatalf("expected rejection rate 0.75, got %v", rate)
	}
	if (Summary{}).RejectionRate() != 0 {
		t.Fatalf("expected zero rate without logins")
	}
}

func TestDailyRejectionsAndSparkline(t *testing.T) {
	day1 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)
	day2 := day1.Add(24 * time.Hour)
	daily := DailyRejections([]model.AttemptRecord{
		record(day1, "c1", model.EventLogin, model.OutcomeFailed),
		record(day1, "c1", model.EventLogin, model.OutcomeSuccess),
		record(day2, "c2", model.EventLogin, model.OutcomeFailed),
		record(day2, "c2", model.EventLogin, model.OutcomeAnomaly),
		record(day2, "c2", model.EventLockout, ""),
	})
	if len(daily) != 2 || daily[0] != 1 || daily[1] != 2 {
		t.Fatalf("unexpected daily rejections: %v", daily)
	}
	if got := Sparkline(daily); got != " @" {
		t.Fatalf("unexpected sparkline: %q", got)
	}
	if got := Sparkline([]float64{2, 2}); got != "++" {
		t.Fatalf("unexpected flat sparkline: %q", got)
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := (Report{}).Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No history found.\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
