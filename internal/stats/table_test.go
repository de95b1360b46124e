package stats

import (
	"strings"
	"testing"
)

func TestLayoutTableAlignsColumns(t *testing.T) {
	rows := [][]string{
		{"login", "failed", "12"},
		{"passcode-mismatch", "-", "3"},
	}
	lines := layoutTable(outcomeColumns, rows)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Event             Status Count" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "login             failed    12" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "passcode-mismatch -          3" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestLayoutTableWideRunes(t *testing.T) {
	cols := []column{{header: "User"}, {header: "N"}}
	lines := layoutTable(cols, [][]string{{"日本", "1"}, {"bob", "2"}})
	if lines[1] != "日本 1" {
		t.Fatalf("unexpected wide row: %q", lines[1])
	}
	if lines[2] != "bob  2" {
		t.Fatalf("unexpected narrow row: %q", lines[2])
	}
}

func TestLayoutTableClipsLongCells(t *testing.T) {
	cols := []column{{header: "User", max: 6}, {header: "Left", right: true}}
	lines := layoutTable(cols, [][]string{{"administrator", "2"}})
	if lines[1] != "admin…    2" {
		t.Fatalf("unexpected clipped row: %q", lines[1])
	}
}

func TestLayoutTableTrimsTrailingPadding(t *testing.T) {
	cols := []column{{header: "Event"}, {header: "Status"}}
	lines := layoutTable(cols, [][]string{{"lockout", ""}})
	if strings.HasSuffix(lines[1], " ") {
		t.Fatalf("unexpected trailing space: %q", lines[1])
	}
}

func TestLayoutTableNoColumns(t *testing.T) {
	if lines := layoutTable(nil, [][]string{{"x"}}); lines != nil {
		t.Fatalf("expected nil, got %v", lines)
	}
}
