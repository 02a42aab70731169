package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-i2p/redispool/lib/pool"
)

// StatusModel is the model for the pool status view.
type StatusModel struct {
	stats   pool.Stats
	latency time.Duration
	pingErr error
	have    bool
	width   int
	height  int
}

// NewStatusModel creates a new status view model.
func NewStatusModel() StatusModel {
	return StatusModel{}
}

// SetData updates the status data.
func (m *StatusModel) SetData(stats pool.Stats, latency time.Duration, pingErr error) {
	m.stats = stats
	m.latency = latency
	m.pingErr = pingErr
	m.have = true
}

// SetDimensions sets the view dimensions.
func (m *StatusModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
}

// View renders the status view.
func (m StatusModel) View() string {
	if !m.have {
		return styles.Muted.Render("Loading status...")
	}

	var b strings.Builder

	// Pool box
	poolBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(1, 2).
		Width(60)

	poolContent := lipgloss.JoinVertical(lipgloss.Left,
		styles.BoxTitle.Render("Pool"),
		"",
		m.statusRow("State", PoolStateStyle(m.stats.State).Render(m.stats.State.String())),
		m.statusRow("Connections", fmt.Sprintf("%d / %d open", m.stats.NumOpen, m.stats.MaxSize)),
		m.statusRow("Idle", fmt.Sprintf("%d", m.stats.NumIdle)),
		m.statusRow("In use", m.gaugeRow(m.stats.NumInUse, m.stats.MaxSize)),
	)

	b.WriteString(poolBox.Render(poolContent))
	b.WriteString("\n\n")

	// Activity box
	activityBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(1, 2).
		Width(60)

	activityContent := lipgloss.JoinVertical(lipgloss.Left,
		styles.BoxTitle.Render("Activity"),
		"",
		m.statusRow("Acquires", fmt.Sprintf("%d (%d failed)", m.stats.AcquireCount, m.stats.AcquireFailed)),
		m.statusRow("Releases", fmt.Sprintf("%d", m.stats.ReleaseCount)),
		m.statusRow("Health fails", fmt.Sprintf("%d", m.stats.HealthCheckFails)),
		m.statusRow("Store ping", m.formatLatency()),
	)

	b.WriteString(activityBox.Render(activityContent))

	return b.String()
}

// statusRow formats a status row with label and value.
func (m StatusModel) statusRow(label, value string) string {
	labelStyle := styles.Muted.Width(15)
	return labelStyle.Render(label+":") + " " + value
}

// gaugeRow renders an in-use count with a proportional bar.
func (m StatusModel) gaugeRow(inUse, maxSize int) string {
	const width = 20
	filled := 0
	if maxSize > 0 {
		filled = inUse * width / maxSize
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	barStyle := styles.Success
	if maxSize > 0 && inUse == maxSize {
		barStyle = styles.Warning
	}
	return fmt.Sprintf("%d  %s", inUse, barStyle.Render(bar))
}

// formatLatency formats the last store round-trip.
func (m StatusModel) formatLatency() string {
	if m.pingErr != nil {
		return styles.Error.Render("unreachable")
	}
	if m.latency <= 0 {
		return styles.Muted.Render("(pending)")
	}
	return m.latency.Round(time.Microsecond).String()
}
