package historyui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/shadowshield/internal/model"
)

const dateLayout = "2006-01-02"

const (
	filterSince = iota
	filterLast
)

// filterForm edits the history filters in place.
type filterForm struct {
	active bool
	inputs []textinput.Model
	index  int
	err    string
	keys   filterKeyMap
}

func newFilterForm() filterForm {
	f := filterForm{keys: newFilterKeys()}
	f.inputs = make([]textinput.Model, 2)
	f.inputs[filterSince] = newFilterInput("Since (YYYY-MM-DD): ")
	f.inputs[filterLast] = newFilterInput("Last: ")
	return f
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// open shows the form prefilled from cfg.
func (f *filterForm) open(cfg model.HistoryConfig) tea.Cmd {
	f.active = true
	f.err = ""
	f.inputs[filterSince].SetValue("")
	if cfg.Since != nil {
		f.inputs[filterSince].SetValue(cfg.Since.Format(dateLayout))
	}
	f.inputs[filterLast].SetValue("")
	if cfg.Last > 0 {
		f.inputs[filterLast].SetValue(strconv.Itoa(cfg.Last))
	}
	return f.focus(filterSince)
}

func (f *filterForm) close() {
	f.active = false
	f.err = ""
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

// update handles a key while the form is open. applied is true when the user
// confirmed a valid filter, which is then returned in cfg.
func (f *filterForm) update(msg tea.KeyMsg) (cfg model.HistoryConfig, applied bool, cmd tea.Cmd) {
	switch {
	case key.Matches(msg, f.keys.Cancel):
		f.close()
		return cfg, false, nil
	case key.Matches(msg, f.keys.Apply):
		parsed, err := f.parse()
		if err != nil {
			f.err = err.Error()
			return cfg, false, nil
		}
		f.close()
		return parsed, true, nil
	case key.Matches(msg, f.keys.Next):
		return cfg, false, f.focus(f.index + 1)
	case key.Matches(msg, f.keys.Prev):
		return cfg, false, f.focus(f.index - 1)
	}
	f.inputs[f.index], cmd = f.inputs[f.index].Update(msg)
	return cfg, false, cmd
}

func (f *filterForm) focus(idx int) tea.Cmd {
	n := len(f.inputs)
	f.index = (idx%n + n) % n
	var cmd tea.Cmd
	for i := range f.inputs {
		if i == f.index {
			cmd = f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

func (f *filterForm) parse() (model.HistoryConfig, error) {
	var cfg model.HistoryConfig
	if v := strings.TrimSpace(f.inputs[filterSince].Value()); v != "" {
		since, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			return cfg, fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		cfg.Since = &since
	}
	if v := strings.TrimSpace(f.inputs[filterLast].Value()); v != "" {
		last, err := strconv.Atoi(v)
		if err != nil || last < 0 {
			return cfg, fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		cfg.Last = last
	}
	return cfg, nil
}

func (f *filterForm) setWidth(width int) {
	for i := range f.inputs {
		f.inputs[i].Width = max(10, width-lipgloss.Width(f.inputs[i].Prompt)-2)
	}
}

func (f *filterForm) view() string {
	lines := []string{"Filters"}
	for _, input := range f.inputs {
		lines = append(lines, input.View())
	}
	if f.err != "" {
		lines = append(lines, errorStyle.Render(f.err))
	}
	return strings.Join(lines, "\n")
}

func describeFilter(cfg model.HistoryConfig, events int) string {
	since := "any"
	if cfg.Since != nil {
		since = cfg.Since.Format(dateLayout)
	}
	last := "all"
	if cfg.Last > 0 {
		last = strconv.Itoa(cfg.Last)
	}
	return fmt.Sprintf("Filters: since=%s  last=%s  events=%d", since, last, events)
}
