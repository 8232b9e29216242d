// Package tui renders the dashboard board as a Bubble Tea program. Fetches run
// as tea.Cmds and come back as messages carrying board Updates.
package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/kjstillabower/glancecast/internal/dashboard"
)

// Settings fields in tab order.
const (
	fieldLocation = iota
	fieldStocks
	fieldPlaylist
	fieldTimer
	fieldCount
)

var fieldLabels = [fieldCount]string{"Location", "Stocks", "Playlist URL", "Timer (h:m:s)"}

type (
	startedMsg struct{ jobs []dashboard.Job }
	updateMsg  struct{ update dashboard.Update }
	savedMsg   struct {
		jobs []dashboard.Job
		err  error
	}
	tickMsg time.Time
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	board  *dashboard.Board
	logger *zap.Logger
	styles Styles

	spinner  spinner.Model
	renderer *glamour.TermRenderer
	rendered *renderCache

	timer *dashboard.Timer
	now   time.Time

	settingsOpen bool
	focus        int
	inputs       [fieldCount]textinput.Model

	notice *dashboard.Notice
	width  int
}

type renderCache struct {
	src string
	out string
}

// New builds the model. ctx bounds every fetch the program starts.
func New(ctx context.Context, board *dashboard.Board, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	styles := DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(styles.PanelWidth-4),
	)
	if err != nil {
		logger.Warn("markdown renderer unavailable, showing plain text", zap.Error(err))
		renderer = nil
	}

	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Cursor.SetMode(cursor.CursorStatic)
		ti.Prompt = "│ "
		ti.CharLimit = 256
		ti.Width = styles.PanelWidth * 2
		inputs[i] = ti
	}
	inputs[fieldStocks].Placeholder = "AAPL, GOOGL, TSLA"
	inputs[fieldTimer].Placeholder = "0:05:00"

	return Model{
		ctx:      ctx,
		board:    board,
		logger:   logger,
		styles:   styles,
		spinner:  sp,
		renderer: renderer,
		rendered: &renderCache{},
		timer:    dashboard.NewTimer(),
		now:      time.Now(),
		inputs:   inputs,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(), m.start())
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{jobs: m.board.Start(m.ctx)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// runJobs turns board jobs into commands. Nil jobs are dropped.
func (m Model) runJobs(jobs ...dashboard.Job) tea.Cmd {
	var cmds []tea.Cmd
	for _, job := range jobs {
		if job == nil {
			continue
		}
		cmds = append(cmds, func() tea.Msg { return updateMsg{update: job(m.ctx)} })
	}
	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.notice = nil
		if m.settingsOpen {
			return m.updateSettings(msg)
		}
		return m.updateDashboard(msg)

	case startedMsg:
		m.fillInputs()
		m.takeNotices()
		return m, m.runJobs(msg.jobs...)

	case updateMsg:
		m.board.Apply(msg.update)
		m.takeNotices()
		return m, nil

	case savedMsg:
		m.takeNotices()
		if msg.err != nil {
			if m.notice == nil {
				m.notice = &dashboard.Notice{Title: dashboard.SettingsErrorTitle, Description: msg.err.Error()}
			}
			return m, nil
		}
		return m, m.runJobs(msg.jobs...)

	case tickMsg:
		m.now = time.Time(msg)
		if m.timer.Tick() {
			m.notice = &dashboard.Notice{Title: "Timer", Description: "Time's up!"}
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		return m, m.runJobs(m.board.Refresh()...)
	case "b":
		job := m.board.GenerateBrief()
		m.takeNotices()
		return m, m.runJobs(job)
	case "s":
		m.settingsOpen = true
		m.fillInputs()
		cmd := m.focusField(fieldLocation)
		return m, cmd
	case "t":
		if m.timer.Counting() {
			m.timer.Toggle()
		} else {
			m.timer.Start()
		}
	case "x":
		m.timer.Reset()
	}
	return m, nil
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.settingsOpen = false
		m.inputs[m.focus].Blur()
		return m, nil
	case "tab", "down":
		cmd := m.focusField((m.focus + 1) % fieldCount)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	case "enter":
		return m.save()
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[i].Focus()
}

// save stores the focused field. The timer preset is local; the rest go
// through the board, which persists them off the UI goroutine.
func (m Model) save() (tea.Model, tea.Cmd) {
	value := m.inputs[m.focus].Value()
	board, ctx := m.board, m.ctx
	switch m.focus {
	case fieldLocation:
		return m, func() tea.Msg {
			jobs, err := board.SaveLocation(ctx, value)
			return savedMsg{jobs: jobs, err: err}
		}
	case fieldStocks:
		return m, func() tea.Msg {
			jobs, err := board.SaveStocks(ctx, value)
			return savedMsg{jobs: jobs, err: err}
		}
	case fieldPlaylist:
		return m, func() tea.Msg {
			return savedMsg{err: board.SaveSpotifyURL(ctx, strings.TrimSpace(value))}
		}
	case fieldTimer:
		h, mins, s, err := parsePreset(value)
		if err != nil {
			m.notice = &dashboard.Notice{Title: "Timer", Description: err.Error()}
			return m, nil
		}
		m.timer.SetPreset(h, mins, s)
		m.timer.Reset()
	}
	return m, nil
}

// fillInputs copies the saved settings into the settings fields.
func (m *Model) fillInputs() {
	s := m.board.Snapshot().Settings
	m.inputs[fieldLocation].SetValue(s.Location)
	m.inputs[fieldStocks].SetValue(strings.Join(s.Stocks, ", "))
	m.inputs[fieldPlaylist].SetValue(s.SpotifyURL)
	m.inputs[fieldTimer].SetValue(m.timer.Display())
}

// takeNotices shows the most recent board notice and logs the rest.
func (m *Model) takeNotices() {
	notices := m.board.TakeNotices()
	for _, n := range notices {
		m.logger.Info("notice", zap.String("title", n.Title), zap.String("description", n.Description))
	}
	if len(notices) > 0 {
		n := notices[len(notices)-1]
		m.notice = &n
	}
}

var errPreset = errors.New("timer must be h:m:s, m:s or minutes")

// parsePreset reads "m", "m:s" or "h:m:s".
func parsePreset(v string) (h, m, s int, err error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) > 3 || parts[0] == "" {
		return 0, 0, 0, errPreset
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, 0, 0, errPreset
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		return 0, nums[0], 0, nil
	case 2:
		return 0, nums[0], nums[1], nil
	}
	return nums[0], nums[1], nums[2], nil
}
