package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/go-i2p/redispool/lib/pool"
)

// Styles holds all the styles for the TUI.
var styles = struct {
	Title      lipgloss.Style
	HelpText   lipgloss.Style
	StatusText lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Muted      lipgloss.Style
	Bold       lipgloss.Style
	Box        lipgloss.Style
	BoxTitle   lipgloss.Style
}{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Padding(0, 1),

	HelpText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")),

	StatusText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("244")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true),

	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")).
		Bold(true),

	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")),

	Bold: lipgloss.NewStyle().
		Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(1, 2),

	BoxTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")),
}

// PoolStateStyle returns the style for a pool lifecycle state.
func PoolStateStyle(state pool.State) lipgloss.Style {
	switch state {
	case pool.StateReady:
		return styles.Success
	case pool.StateInitializing, pool.StateDraining:
		return styles.Warning
	case pool.StateClosed:
		return styles.Error
	default:
		return styles.Muted
	}
}
