package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/shadowshield/internal/model"
)

const sparkChars = " .:-=+*#%@"

const timeFormat = "2006-01-02 15:04:05"

// Summary counts history entries by outcome.
type Summary struct {
	Logins    int
	Successes int
	Anomalies int
	Failures  int
	Lockouts  int
	Unlocks   int
	Bypasses  int
	Mismatch  int
	Cycles    int
}

// Summarize tallies records.
func Summarize(records []model.AttemptRecord) Summary {
	var s Summary
	cycles := map[string]struct{}{}
	for _, r := range records {
		if r.CycleID != "" {
			cycles[r.CycleID] = struct{}{}
		}
		switch r.Kind {
		case model.EventLogin:
			s.Logins++
			switch r.Status {
			case model.OutcomeSuccess:
				s.Successes++
			case model.OutcomeAnomaly:
				s.Anomalies++
			default:
				s.Failures++
			}
		case model.EventLockout:
			s.Lockouts++
		case model.EventUnlock:
			s.Unlocks++
		case model.EventBypass:
			s.Bypasses++
		case model.EventPasscode:
			s.Mismatch++
		}
	}
	s.Cycles = len(cycles)
	return s
}

// RejectionRate is the share of logins that did not succeed.
func (s Summary) RejectionRate() float64 {
	if s.Logins == 0 {
		return 0
	}
	return float64(s.Anomalies+s.Failures) / float64(s.Logins)
}

// DailyRejections counts rejected logins per calendar day, oldest first.
// Records must be sorted by time.
func DailyRejections(records []model.AttemptRecord) []float64 {
	var out []float64
	lastDay := ""
	for _, r := range records {
		day := r.At.Local().Format("2006-01-02")
		if day != lastDay {
			out = append(out, 0)
			lastDay = day
		}
		if r.Kind == model.EventLogin && r.Status != model.OutcomeSuccess {
			out[len(out)-1]++
		}
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints summary counts for records.
func RenderSummary(w io.Writer, records []model.AttemptRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No history found.")
		return err
	}
	s := Summarize(records)
	lines := []string{
		"Summary",
		fmt.Sprintf("Cycles: %d", s.Cycles),
		fmt.Sprintf("Logins: %d (success %d, anomaly %d, failed %d)", s.Logins, s.Successes, s.Anomalies, s.Failures),
		fmt.Sprintf("Rejection rate: %.2f%%", s.RejectionRate()*100),
		fmt.Sprintf("Lockouts: %d", s.Lockouts),
		fmt.Sprintf("Unlocks: %d", s.Unlocks),
		fmt.Sprintf("Bypasses: %d", s.Bypasses),
		fmt.Sprintf("Passcode mismatches: %d", s.Mismatch),
	}
	if daily := DailyRejections(records); len(daily) > 1 {
		lines = append(lines, fmt.Sprintf("Rejections/day: [%s]", Sparkline(daily)))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// HistoryRows formats records as table cells.
func HistoryRows(records []model.AttemptRecord) (headers []string, rows [][]string) {
	for _, c := range eventColumns {
		headers = append(headers, c.header)
	}
	rows = make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.At.Local().Format(timeFormat),
			string(r.Kind),
			dash(string(r.Status)),
			dash(r.Username),
			fmt.Sprintf("%d", r.AttemptsRemaining),
			vectorLabel(r),
		})
	}
	return headers, rows
}

// RenderHistoryTable prints one row per record.
func RenderHistoryTable(w io.Writer, records []model.AttemptRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No history found.")
		return err
	}
	_, rows := HistoryRows(records)
	return writeTable(w, "Events", eventColumns, rows)
}

// RenderOutcomeTable prints aggregate counts per kind and status.
func RenderOutcomeTable(w io.Writer, aggs []model.OutcomeAggregate) error {
	if len(aggs) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, []string{string(a.Kind), dash(string(a.Status)), fmt.Sprintf("%d", a.Count)})
	}
	return writeTable(w, "Outcomes", outcomeColumns, rows)
}

func vectorLabel(r model.AttemptRecord) string {
	if r.Kind != model.EventLogin {
		return "-"
	}
	if r.VectorValid {
		return "full"
	}
	return "empty"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
