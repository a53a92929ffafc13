package ui

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/trgui-ng/trgui/internal/bus"
	"github.com/trgui-ng/trgui/internal/models"
	"github.com/trgui-ng/trgui/internal/state"
)

const refreshInterval = time.Second

// Model is the root bubbletea model of the terminal window.
type Model struct {
	env   *env
	label string
	title string

	table   table.Model
	prefs   Prefs
	snap    state.Snapshot
	synced  bool
	notice  string
	err     error
	width   int
	height  int
	flushed int
}

func newModel(e *env, label, title string, prefs Prefs) Model {
	t := table.New(
		table.WithColumns(columns(80, prefs.ShowSpeeds)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	return Model{env: e, label: label, title: title, table: t, prefs: prefs}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle(m.title), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update processes messages and returns an updated model and commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width, m.prefs.ShowSpeeds))
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(3, msg.Height-3))
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case exitRequestedMsg:
		m.flush()
		m.env.bus.EmitTo(m.label, bus.TopicFrontendDone, msg.Attempt)
		return m, nil

	case openTorrentsMsg:
		accepted, failed := m.env.ingest(msg.Batch)
		m.prefs.remember(accepted)
		switch {
		case len(failed) > 0:
			m.err = fmt.Errorf("%d of %d files rejected: %w", len(failed), len(msg.Batch), failed[0])
		case len(accepted) > 0:
			m.err = nil
			m.notice = fmt.Sprintf("Received %d torrent file(s)", len(accepted))
		}
		return m, nil

	case setTitleMsg:
		m.title = msg.Title
		return m, tea.SetWindowTitle(msg.Title)

	case focusMsg:
		m.refresh()
		return m, nil

	case errorMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.env.bus.EmitTo(m.label, bus.TopicCloseRequested, nil)
			return m, nil
		case key.Matches(msg, keys.Hide):
			m.env.bus.EmitTo(m.label, bus.TopicHideRequested, nil)
			return m, nil
		case key.Matches(msg, keys.Open):
			return m, m.openWebUI()
		case key.Matches(msg, keys.Speeds):
			m.prefs.ShowSpeeds = !m.prefs.ShowSpeeds
			m.table.SetRows(nil)
			m.table.SetColumns(columns(max(m.width, 80), m.prefs.ShowSpeeds))
			m.table.SetRows(rows(m.snap.Torrents, m.prefs.ShowSpeeds))
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	if m.env.store == nil {
		return
	}
	m.snap = m.env.store.Snapshot()
	m.table.SetRows(rows(m.snap.Torrents, m.prefs.ShowSpeeds))
	if !m.synced && m.snap.HasData {
		m.synced = true
		for i, t := range m.snap.Torrents {
			if t.ID == m.prefs.SelectedID {
				m.table.SetCursor(i)
				break
			}
		}
	}
}

// flush writes the window preferences. Failures are logged; the handshake
// still completes.
func (m *Model) flush() {
	if row := m.table.SelectedRow(); len(row) > 0 {
		if id, err := strconv.Atoi(row[0]); err == nil {
			m.prefs.SelectedID = id
		}
	}
	if err := SavePrefs(m.env.prefsPath, m.prefs); err != nil {
		m.env.logger.Warn("flush prefs failed", zap.Error(err))
		return
	}
	m.flushed++
}

func (m Model) openWebUI() tea.Cmd {
	target := webURL(m.snap.Config.URL)
	cmds := m.env.cmds
	return func() tea.Msg {
		if cmds == nil || target == "" {
			return errorMsg{Err: fmt.Errorf("no daemon address configured")}
		}
		if err := cmds.ShellOpen(context.Background(), target); err != nil {
			return errorMsg{Err: err}
		}
		return nil
	}
}

// webURL maps the RPC endpoint to the daemon's built-in web interface.
func webURL(rpc string) string {
	u, err := url.Parse(rpc)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/rpc") + "/web/"
	u.User = nil
	return u.String()
}

// View renders the window.
func (m Model) View() string {
	width := max(m.width, 40)
	var b strings.Builder
	b.WriteString(m.renderHeader(width))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar(width))
	return b.String()
}

func (m Model) renderHeader(width int) string {
	indicator := onlineStyle.Render("● online")
	switch {
	case !m.snap.HasData && m.snap.LastError == nil:
		indicator = dimStyle.Render("○ connecting")
	case m.snap.IsOffline():
		indicator = offlineStyle.Render("⚠ offline")
	}
	title := headerStyle.Render(ansi.Truncate(m.title, width-lipgloss.Width(indicator)-2, "…"))
	gap := max(1, width-lipgloss.Width(title)-lipgloss.Width(indicator))
	return title + strings.Repeat(" ", gap) + indicator
}

func (m Model) renderStatusBar(width int) string {
	if m.err != nil {
		return errorBarStyle.Render(ansi.Truncate(" "+m.err.Error(), width, "…"))
	}
	right := fmt.Sprintf("%d torrents  ↓ %s  ↑ %s ",
		m.snap.Stats.TorrentCount, formatSpeed(m.snap.Stats.DownloadSpeed), formatSpeed(m.snap.Stats.UploadSpeed))
	left := " " + keyHints()
	if m.notice != "" {
		left = " " + noticeStyle.Render(m.notice)
	}
	left = ansi.Truncate(left, max(0, width-lipgloss.Width(right)-1), "…")
	gap := max(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	return statusBarStyle.Render(left + strings.Repeat(" ", gap) + right)
}

func columns(width int, speeds bool) []table.Column {
	fixed := 6 + 16 + 8
	if speeds {
		fixed += 12 + 12
	}
	name := max(10, width-fixed-8)
	cols := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Name", Width: name},
		{Title: "Status", Width: 16},
		{Title: "Done", Width: 8},
	}
	if speeds {
		cols = append(cols,
			table.Column{Title: "Down", Width: 12},
			table.Column{Title: "Up", Width: 12})
	}
	return cols
}

func rows(torrents []models.Torrent, speeds bool) []table.Row {
	out := make([]table.Row, 0, len(torrents))
	for _, t := range torrents {
		status := t.Status.String()
		if t.Error != 0 {
			status = "Error"
		}
		row := table.Row{
			strconv.Itoa(t.ID),
			t.Name,
			status,
			fmt.Sprintf("%.1f%%", t.PercentDone*100),
		}
		if speeds {
			row = append(row, formatSpeed(t.RateDownload), formatSpeed(t.RateUpload))
		}
		out = append(out, row)
	}
	return out
}

func formatSpeed(bps int64) string {
	const unit = 1024
	if bps < unit {
		return fmt.Sprintf("%d B/s", bps)
	}
	div, exp := int64(unit), 0
	for n := bps / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB/s", float64(bps)/float64(div), "KMGTPE"[exp])
}
