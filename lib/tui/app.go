// Package tui provides an interactive terminal dashboard for a running
// pool. It uses BubbleTea for the application framework and polls the
// pooled client for statistics and store latency.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-i2p/redispool/lib/pool"
)

// Client is the view of a pooled client the dashboard needs.
// *client.Client satisfies it; tests substitute a fake.
type Client interface {
	// Name returns the pool identifier.
	Name() string
	// Stats returns a snapshot of the pool's statistics.
	Stats() pool.Stats
	// Ping checks that the backing store answers through a pooled
	// connection.
	Ping(ctx context.Context) error
}

// Config holds TUI configuration.
type Config struct {
	// RefreshInterval is how often to refresh pool statistics.
	RefreshInterval time.Duration
}

// Model is the main TUI application model.
type Model struct {
	client  Client
	refresh time.Duration

	// Current state
	width       int
	height      int
	ready       bool
	err         error
	lastRefresh time.Time

	// Data from the client
	stats     pool.Stats
	haveStats bool
	latency   time.Duration

	// Sub-models
	spinner    spinner.Model
	statusView StatusModel
}

// New creates a new TUI model watching the given client.
func New(c Client, cfg Config) *Model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 2 * time.Second
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Model{
		client:     c,
		refresh:    cfg.RefreshInterval,
		spinner:    s,
		statusView: NewStatusModel(),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.refreshData,
		tea.SetWindowTitle("redispool"),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			cmds = append(cmds, m.refreshData)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.statusView.SetDimensions(m.width, m.height-4)

	case refreshMsg:
		m.stats = msg.stats
		m.haveStats = true
		m.latency = msg.latency
		m.err = msg.pingErr
		m.lastRefresh = time.Now()
		m.statusView.SetData(msg.stats, msg.latency, msg.pingErr)
		// Schedule next refresh
		cmds = append(cmds, tea.Tick(m.refresh, func(t time.Time) tea.Msg {
			return tickMsg(t)
		}))

	case tickMsg:
		cmds = append(cmds, m.refreshData)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready || !m.haveStats {
		return fmt.Sprintf("%s Loading...", m.spinner.View())
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.statusView.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title bar.
func (m Model) renderHeader() string {
	title := styles.Title.Render("redispool")
	name := styles.Muted.Render("pool " + m.client.Name())
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", name)
}

// renderFooter renders the help text and refresh status.
func (m Model) renderFooter() string {
	help := strings.Join([]string{"r refresh", "q quit"}, " • ")

	var statusInfo string
	if !m.lastRefresh.IsZero() {
		statusInfo = fmt.Sprintf("refreshed %s", m.lastRefresh.Format("15:04:05"))
	}
	if m.err != nil {
		statusInfo = styles.Error.Render(m.err.Error())
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		styles.HelpText.Render(help),
		strings.Repeat(" ", max(0, m.width-lipgloss.Width(help)-lipgloss.Width(statusInfo)-2)),
		styles.StatusText.Render(statusInfo),
	)
}

// refreshData polls the client for fresh statistics and store latency.
func (m Model) refreshData() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msg refreshMsg

	start := time.Now()
	msg.pingErr = m.client.Ping(ctx)
	if msg.pingErr == nil {
		msg.latency = time.Since(start)
	}
	msg.stats = m.client.Stats()

	return msg
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
