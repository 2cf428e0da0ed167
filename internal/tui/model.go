// Package tui is a terminal dashboard over the sync state store. It
// shows recent runs and drills into per-table results, refreshing while
// a run is in flight.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/johndauphine/colsync/internal/state"
)

const (
	runHistoryDepth = 15
	refreshInterval = 2 * time.Second
)

// TickMsg drives the periodic state-store refresh.
type TickMsg time.Time

type refreshMsg struct {
	runs    []state.Run
	results map[string][]state.TableResult
	err     error
}

// Model is the dashboard model. It owns no database handles beyond the
// state store, so it can watch a run driven by another process.
type Model struct {
	store    state.Store
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	runs     []state.Run
	results  map[string][]state.TableResult
	selected int
	err      error
}

// New builds a dashboard over the given state store.
func New(store state.Store) *Model {
	return &Model{store: store, results: make(map[string][]state.TableResult)}
}

// Run starts the event loop and blocks until the user quits.
func Run(store state.Store) error {
	p := tea.NewProgram(New(store), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// refresh reads the run history off the event loop.
func (m *Model) refresh() tea.Msg {
	runs, err := m.store.ListRuns(runHistoryDepth)
	if err != nil {
		return refreshMsg{err: err}
	}
	results := make(map[string][]state.TableResult, len(runs))
	for _, r := range runs {
		trs, err := m.store.ListTableResults(r.ID)
		if err != nil {
			return refreshMsg{err: err}
		}
		results[r.ID] = trs
	}
	return refreshMsg{runs: runs, results: results}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.runs)-1 {
				m.selected++
			}
		case "r":
			return m, m.refresh
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - 6
		}

	case TickMsg:
		return m, tea.Batch(m.refresh, tick())

	case refreshMsg:
		m.err = msg.err
		if msg.err == nil {
			m.runs = msg.runs
			m.results = msg.results
			if m.selected >= len(m.runs) {
				m.selected = 0
			}
		}
	}

	if m.ready {
		m.viewport.SetContent(m.content())
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	title := styleTitle.Render("colsync")
	help := styleHelp.Render("↑/↓ select run · r refresh · q quit")
	return lipgloss.JoinVertical(lipgloss.Left, title, stylePanel.Render(m.viewport.View()), help)
}

func (m *Model) content() string {
	if m.err != nil {
		return styleError.Render(fmt.Sprintf("state store error: %v", m.err))
	}
	if len(m.runs) == 0 {
		return styleDim.Render("no sync runs recorded yet")
	}

	var b strings.Builder
	b.WriteString(styleHeader.Render(fmt.Sprintf("  %-10s %-20s %-10s %-8s %s",
		"RUN", "STARTED", "STATUS", "TABLES", "DESTINATION")))
	b.WriteString("\n")
	for i, r := range m.runs {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-10s %-20s %-10s %-8d %s",
			cursor, r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			runStatus(r),
			len(m.results[r.ID]),
			r.Destination)
		if i == m.selected {
			b.WriteString(styleNormal.Bold(true).Render(line))
		} else {
			b.WriteString(statusStyle(runStatus(r)).Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.tablePanel())
	return b.String()
}

// tablePanel renders the selected run's per-table results.
func (m *Model) tablePanel() string {
	if m.selected >= len(m.runs) {
		return ""
	}
	run := m.runs[m.selected]
	trs := m.results[run.ID]
	if len(trs) == 0 {
		return styleDim.Render("  no table results for this run yet")
	}

	var b strings.Builder
	b.WriteString(styleHeader.Render(fmt.Sprintf("  %-30s %-10s %-12s %-12s %-10s %s",
		"TABLE", "STRATEGY", "ROWS", "SOURCE/DEST", "STATUS", "DURATION")))
	b.WriteString("\n")
	var total int64
	for _, tr := range trs {
		counts := fmt.Sprintf("%d/%d", tr.SourceRows, tr.DestRows)
		line := fmt.Sprintf("  %-30s %-10s %-12d %-12s %-10s %s",
			tr.Table, tr.Strategy, tr.Rows, counts, tr.Status,
			tr.Duration.Round(time.Millisecond))
		b.WriteString(statusStyle(tr.Status).Render(line))
		b.WriteString("\n")
		if tr.Error != "" {
			b.WriteString(styleError.Render("      " + truncate(tr.Error, 100)))
			b.WriteString("\n")
		}
		total += tr.Rows
	}
	b.WriteString(styleDim.Render(fmt.Sprintf("  %d tables, %d rows", len(trs), total)))
	return b.String()
}

func runStatus(r state.Run) string {
	if r.Status == "" && r.CompletedAt == nil {
		return "running"
	}
	return r.Status
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
