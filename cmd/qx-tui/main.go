// Copyright (c) 2026 Quanta Exchange Contributors
//
// qx-tui is a read-only status dashboard, polling cmd/qx-gateway's
// /stats endpoint the same way the teacher's dbn-go-tui polls
// Databento's hist HTTP API rather than sharing process memory with
// another running binary. Shape (a single bubbletea Program over an
// AppModel with a header/body/footer) follows internal/tui/main.go,
// trimmed from its four-tab job/download/dataset/publisher layout down
// to one table, since there is only one kind of thing to show here.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quantaex/qx-store/storage"
)

var statsURL string

var rootCmd = &cobra.Command{
	Use:   "qx-tui",
	Short: "qx-tui is a terminal dashboard for a running qx-gateway.",
	Run: func(cmd *cobra.Command, args []string) {
		p := tea.NewProgram(newModel(statsURL), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func main() {
	cobra.OnInitialize()
	rootCmd.Flags().StringVarP(&statsURL, "url", "u", "http://127.0.0.1:7071/stats", "qx-gateway stats endpoint to poll")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

// statsSnapshot mirrors cmd/qx-gateway's statsResponse wire shape. Kept
// as its own type rather than a shared import, since the two are
// separate main packages polling over HTTP, not linked binaries.
type statsSnapshot struct {
	Store        storage.Stats `json:"store"`
	QueueDepths  [4]int        `json:"queue_depths"`
	SessionCount int           `json:"session_count"`
}

type pollResultMsg struct {
	snap statsSnapshot
	err  error
}

func pollStats(url string) tea.Cmd {
	return func() tea.Msg {
		client := http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return pollResultMsg{err: err}
		}
		defer resp.Body.Close()
		var snap statsSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return pollResultMsg{err: err}
		}
		return pollResultMsg{snap: snap}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return t
	})
}

type model struct {
	url        string
	snap       statsSnapshot
	lastErr    error
	lastPolled time.Time
	width      int
	height     int
	tbl        table.Model
}

func newModel(url string) model {
	t := table.New(table.WithColumns([]table.Column{
		{Title: "Metric", Width: 28},
		{Title: "Value", Width: 20},
	}), table.WithStyles(tableStyles), table.WithHeight(12))
	return model{url: url, tbl: t}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(pollStats(m.url), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		}
	case time.Time:
		return m, tea.Batch(pollStats(m.url), tick())
	case pollResultMsg:
		m.lastPolled = time.Now()
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.snap = msg.snap
			m.lastErr = nil
		}
		m.tbl.SetRows(m.rows())
	}
	return m, nil
}

func (m model) rows() []table.Row {
	s := m.snap.Store
	rows := []table.Row{
		{"Sessions connected", fmt.Sprintf("%d", m.snap.SessionCount)},
		{"OLTP live entries", fmt.Sprintf("%d", s.OLTPLiveEntries)},
		{"OLTP live bytes", fmt.Sprintf("%d", s.OLTPLiveBytes)},
		{"OLTP frozen runs", fmt.Sprintf("%d", s.OLTPFrozenRuns)},
		{"OLAP live rows", fmt.Sprintf("%d", s.OLAPLiveRows)},
		{"WAL written seq", fmt.Sprintf("%d", s.WALWrittenSeq)},
		{"WAL flushed seq", fmt.Sprintf("%d", s.WALFlushedSeq)},
		{"Notify P0/P1/P2/P3", fmt.Sprintf("%d/%d/%d/%d",
			m.snap.QueueDepths[0], m.snap.QueueDepths[1], m.snap.QueueDepths[2], m.snap.QueueDepths[3])},
	}
	for i, count := range s.LevelRunCounts {
		rows = append(rows, table.Row{fmt.Sprintf("L%d runs", i), fmt.Sprintf("%d", count)})
	}
	return rows
}

func (m model) View() string {
	header := headerStyle.Render(fmt.Sprintf(" qx-tui  %s ", m.url))
	status := statusOKStyle.Render("polling ok")
	if m.lastErr != nil {
		status = statusErrStyle.Render("poll failed: " + m.lastErr.Error())
	}
	if !m.lastPolled.IsZero() {
		status += fmt.Sprintf("  (last poll %s)", m.lastPolled.Format("15:04:05"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, borderStyle.Render(m.tbl.View()), status)
}
