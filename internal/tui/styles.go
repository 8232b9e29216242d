package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by every widget.
type Styles struct {
	Panel      lipgloss.Style
	Title      lipgloss.Style
	Muted      lipgloss.Style
	Error      lipgloss.Style
	Up         lipgloss.Style
	Down       lipgloss.Style
	Clock      lipgloss.Style
	Notice     lipgloss.Style
	Help       lipgloss.Style
	Focused    lipgloss.Style
	Spinner    lipgloss.Style
	PanelWidth int
}

func DefaultStyles() Styles {
	primary := lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#60a5fa"}
	muted := lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	return Styles{
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),
		Muted: lipgloss.NewStyle().Foreground(muted),
		Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
		Up:    lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e")),
		Down:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
		Clock: lipgloss.NewStyle().Bold(true),
		Notice: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#b91c1c")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(muted),
		Focused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1),
		Spinner:    lipgloss.NewStyle().Foreground(primary),
		PanelWidth: 36,
	}
}
