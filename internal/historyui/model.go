// Package historyui provides the Bubble Tea history browser.
package historyui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/shadowshield/internal/model"
	"github.com/verte-zerg/shadowshield/internal/stats"
)

const (
	tabOverview = iota
	tabEvents
)

var tabNames = []string{"Overview", "Events"}

// Widths of the event table columns, in stats.HistoryRows order.
var eventWidths = []int{19, 17, 7, 16, 4, 6}

var (
	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true)
	activeTabStyle = tabStyle.
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveTabStyle = tabStyle.
				Foreground(lipgloss.Color("#B0B0B0")).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle  = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Model implements the Bubble Tea history browser.
type Model struct {
	source stats.Source
	cfg    model.HistoryConfig

	report  stats.Report
	loadErr error

	tab      int
	overview viewport.Model
	events   table.Model
	filter   filterForm

	keys browseKeyMap
	help help.Model

	width  int
	height int
}

// NewModel loads the first report from src using cfg.
func NewModel(src stats.Source, cfg model.HistoryConfig) *Model {
	m := &Model{
		source:   src,
		cfg:      cfg,
		overview: viewport.New(0, 0),
		events:   newEventsTable(),
		filter:   newFilterForm(),
		keys:     newBrowseKeys(),
		help:     help.New(),
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filter.active {
			cfg, applied, cmd := m.filter.update(msg)
			if applied {
				m.cfg = cfg
				m.reload()
			}
			return m, cmd
		}
		return m.browse(msg)
	}
	return m, nil
}

func (m *Model) browse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.switchTab(-1)
		return m, tea.ClearScreen
	case key.Matches(msg, m.keys.Right):
		m.switchTab(1)
		return m, tea.ClearScreen
	case key.Matches(msg, m.keys.Filter):
		return m, m.filter.open(m.cfg)
	case key.Matches(msg, m.keys.Reload):
		m.reload()
		return m, nil
	case key.Matches(msg, m.keys.Top):
		if m.tab == tabEvents {
			m.events.GotoTop()
		} else {
			m.overview.GotoTop()
		}
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		if m.tab == tabEvents {
			m.events.GotoBottom()
		} else {
			m.overview.GotoBottom()
		}
		return m, nil
	}
	var cmd tea.Cmd
	if m.tab == tabEvents {
		m.events, cmd = m.events.Update(msg)
	} else {
		m.overview, cmd = m.overview.Update(msg)
	}
	return m, cmd
}

func (m *Model) switchTab(delta int) {
	n := len(tabNames)
	m.tab = ((m.tab+delta)%n + n) % n
	if m.tab == tabEvents {
		m.events.Focus()
	} else {
		m.events.Blur()
	}
}

// reload queries the source with the current filter.
func (m *Model) reload() {
	report, err := stats.BuildReport(context.Background(), m.source, m.cfg)
	if err != nil {
		m.loadErr = err
		m.overview.SetContent("Failed to load history.")
		m.resize()
		return
	}
	m.loadErr = nil
	m.report = report
	_, rows := stats.HistoryRows(report.Records)
	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row(r)
	}
	m.events.SetRows(tableRows)
	m.events.GotoBottom()
	m.overview.SetContent(renderOverview(m.report, m.contentWidth()))
	m.resize()
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	h := max(1, m.height-lipgloss.Height(m.renderHeader())-lipgloss.Height(m.renderFooter()))
	m.overview.Width = m.width
	m.overview.Height = h
	m.events.SetWidth(m.width)
	m.events.SetHeight(max(1, h-1))
	m.filter.setWidth(m.width)
	if m.loadErr == nil {
		m.overview.SetContent(renderOverview(m.report, m.width))
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := max(1, m.height-lipgloss.Height(header)-lipgloss.Height(footer))
	body := fit(m.renderBody(), m.width, bodyHeight)
	return lipgloss.JoinVertical(lipgloss.Left, fit(header, m.width, lipgloss.Height(header)), body, footer)
}

func (m *Model) renderHeader() string {
	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if i == m.tab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}
	summary := describeFilter(m.cfg, len(m.report.Records))
	if m.width > 0 {
		summary = runewidth.Truncate(summary, m.width, "...")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n" + mutedStyle.Render(summary)
}

func (m *Model) renderFooter() string {
	if m.filter.active {
		return m.help.View(m.filter.keys)
	}
	footer := m.help.View(m.keys)
	if m.loadErr != nil {
		footer += "\n" + errorStyle.Render(m.loadErr.Error())
	}
	return footer
}

func (m *Model) renderBody() string {
	switch {
	case m.filter.active:
		return m.filter.view()
	case m.tab == tabEvents && len(m.report.Records) == 0:
		return "No history found."
	case m.tab == tabEvents:
		return m.events.View()
	}
	return m.overview.View()
}

func renderOverview(r stats.Report, width int) string {
	if len(r.Records) == 0 {
		return "No history found."
	}
	s := r.Summary
	rejected := cardValueStyle
	if s.Logins > 0 && s.RejectionRate() >= 0.5 {
		rejected = cardValueStyle.Foreground(lipgloss.Color("#FF3333"))
	}
	cards := []string{
		card("Cycles", cardValueStyle.Render(strconv.Itoa(s.Cycles))),
		card("Logins", cardValueStyle.Render(strconv.Itoa(s.Logins))),
		card("Rejected", rejected.Render(fmt.Sprintf("%.1f%%", s.RejectionRate()*100))),
		card("Lockouts", cardValueStyle.Render(strconv.Itoa(s.Lockouts))),
		card("Unlocks", cardValueStyle.Render(strconv.Itoa(s.Unlocks))),
		card("Bypasses", cardValueStyle.Render(strconv.Itoa(s.Bypasses))),
	}
	var grid string
	if width < 80 {
		grid = lipgloss.JoinVertical(lipgloss.Left, cards...)
	} else {
		grid = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, cards[:3]...),
			lipgloss.JoinHorizontal(lipgloss.Top, cards[3:]...),
		)
	}

	var b strings.Builder
	b.WriteString(grid + "\n\n")
	if daily := stats.DailyRejections(r.Records); len(daily) > 1 {
		b.WriteString(mutedStyle.Render("Rejections per day") + "\n" + stats.Sparkline(daily) + "\n\n")
	}
	b.WriteString(mutedStyle.Render("Outcomes"))
	for _, a := range r.Outcomes {
		status := string(a.Status)
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(&b, "\n%-18s %-8s %d", a.Kind, status, a.Count)
	}
	return b.String()
}

func card(label, value string) string {
	return cardStyle.Render(cardLabelStyle.Render(label) + "\n" + value)
}

func newEventsTable() table.Model {
	headers, _ := stats.HistoryRows(nil)
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		columns[i] = table.Column{Title: h, Width: eventWidths[i]}
	}
	t := table.New(table.WithColumns(columns), table.WithHeight(1))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1, 0, 0)
	styles.Cell = styles.Cell.Padding(0, 1, 0, 0)
	styles.Selected = styles.Cell.Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	t.SetStyles(styles)
	return t
}

// fit pads or cuts s to exactly width columns and height rows.
func fit(s string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).MaxWidth(width).
		Height(height).MaxHeight(height).
		Render(s)
}
