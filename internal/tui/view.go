package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/dashboard"
	"github.com/kjstillabower/glancecast/internal/models"
)

const helpLine = "r refresh • b brief • s settings • t start/pause timer • x reset timer • q quit"

func (m Model) View() string {
	snap := m.board.Snapshot()

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		m.panel("Weather", m.weatherBody(snap.Weather)),
		m.panel("Daily Brief", m.briefBody(snap.Brief)),
		m.panel("Clock", m.clockBody(snap.Settings.Location)),
	)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top,
		m.panel("News", m.newsBody(snap.News)),
		m.panel("Stocks", m.stocksBody(snap.Stocks)),
		m.panel("Playlist", m.playlistBody(snap.EmbedURL, snap.PlaylistLoaded)),
	)

	rows := []string{top, bottom}
	if m.settingsOpen {
		rows = append(rows, m.settingsBody())
	}
	if m.notice != nil {
		rows = append(rows, m.styles.Notice.Render(m.notice.Title+": "+m.notice.Description))
	}
	rows = append(rows, m.styles.Help.Render(helpLine))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) panel(title, body string) string {
	return m.styles.Panel.Width(m.styles.PanelWidth).Render(
		m.styles.Title.Render(title) + "\n" + body)
}

// pending renders the non-Loaded states shared by every feed panel.
func (m Model) pending(status dashboard.Status, idle string) string {
	switch status {
	case dashboard.Loading:
		return m.spinner.View() + " Loading..."
	case dashboard.Failed:
		return m.styles.Error.Render("Unavailable")
	}
	return m.styles.Muted.Render(idle)
}

func (m Model) weatherBody(p dashboard.Panel[models.WeatherReading]) string {
	if p.Status != dashboard.Loaded {
		return m.pending(p.Status, "No data")
	}
	w := p.Data
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s\n\n", w.Location, m.styles.Clock.Render(temperature(w.Temperature, w.Unit)), w.Condition)
	for _, h := range w.Hourly {
		fmt.Fprintf(&b, "%-6s %6s  %s\n", h.Time, temperature(h.Temperature, w.Unit), h.Condition)
	}
	return strings.TrimRight(b.String(), "\n")
}

func temperature(v float64, unit string) string {
	return fmt.Sprintf("%.0f°%s", v, unit)
}

func (m Model) briefBody(p dashboard.Panel[string]) string {
	if p.Status != dashboard.Loaded {
		return m.pending(p.Status, "Press b to generate a brief")
	}
	return m.markdown(p.Data)
}

// markdown renders the brief once per distinct text.
func (m Model) markdown(src string) string {
	if m.renderer == nil {
		return src
	}
	if m.rendered.src == src && m.rendered.out != "" {
		return m.rendered.out
	}
	out, err := m.renderer.Render(src)
	if err != nil {
		m.logger.Debug("markdown render failed", zap.Error(err))
		return src
	}
	out = strings.Trim(out, "\n")
	m.rendered.src, m.rendered.out = src, out
	return out
}

func (m Model) clockBody(location string) string {
	face := dashboard.ReadClock(m.now, location)
	timer := m.timer.Display()
	switch {
	case m.timer.Active():
		timer += " running"
	case m.timer.Counting():
		timer += " paused"
	}
	return strings.Join([]string{
		face.Label,
		m.styles.Clock.Render(face.Time),
		face.Date,
		m.styles.Muted.Render(dashboard.SecondaryClockLocation + " " + face.Secondary),
		"",
		"Timer " + timer,
	}, "\n")
}

func (m Model) newsBody(p dashboard.Panel[[]models.NewsItem]) string {
	if p.Status != dashboard.Loaded {
		return m.pending(p.Status, "No headlines")
	}
	if len(p.Data) == 0 {
		return m.styles.Muted.Render("No headlines")
	}
	lines := make([]string, 0, len(p.Data)*2)
	for _, item := range p.Data {
		lines = append(lines,
			"• "+truncate(item.Title, m.styles.PanelWidth-6),
			"  "+m.styles.Muted.Render(truncate(item.Source+" · "+item.Time, m.styles.PanelWidth-6)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) stocksBody(p dashboard.Panel[models.StocksReport]) string {
	if p.Status != dashboard.Loaded {
		return m.pending(p.Status, "No quotes")
	}
	cat, ok := p.Data.First()
	if !ok {
		return m.styles.Muted.Render("No quotes")
	}
	lines := []string{m.styles.Muted.Render(cat.Category)}
	if len(cat.Stocks) == 0 {
		lines = append(lines, m.styles.Muted.Render("Watch list is empty"))
	}
	for _, q := range cat.Stocks {
		change := m.styles.Up
		if q.ChangeValue < 0 {
			change = m.styles.Down
		}
		lines = append(lines, fmt.Sprintf("%-6s %9.2f %s %s %s",
			q.Symbol, q.Price, q.Currency, change.Render(q.Change), sparkline(q.Trend)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) playlistBody(embed string, loaded bool) string {
	if !loaded {
		return m.styles.Muted.Render("No playlist loaded")
	}
	return "▶ " + embed
}

func (m Model) settingsBody() string {
	lines := []string{m.styles.Title.Render("Settings"), ""}
	for i, in := range m.inputs {
		label := fieldLabels[i]
		if i == m.focus {
			label = m.styles.Title.Render(label)
		}
		lines = append(lines, label, in.View())
	}
	lines = append(lines, "", m.styles.Help.Render("tab next field • enter save • esc close"))
	return m.styles.Focused.Render(strings.Join(lines, "\n"))
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline scales values onto eight block heights. A flat series sits mid-height.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := len(sparkLevels) / 2
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkLevels)-1)))
		}
		out[i] = sparkLevels[idx]
	}
	return string(out)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
