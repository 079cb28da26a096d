package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/sqlquest/internal/account"
	"github.com/verte-zerg/sqlquest/internal/catalog"
	"github.com/verte-zerg/sqlquest/internal/events"
	"github.com/verte-zerg/sqlquest/internal/grading"
	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
	"github.com/verte-zerg/sqlquest/internal/reminder"
)

type screen int

const (
	screenLessons screen = iota
	screenExercise
)

// Deps are the collaborators the player drives. Account and Alerts are optional.
type Deps struct {
	Engine  *grading.Engine
	Catalog *catalog.Catalog
	Tracker *progress.Tracker
	Account *account.Service
	Alerts  <-chan reminder.Alert
}

// Model implements the Bubble Tea lesson player.
type Model struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	profile     model.Profile
	profileCh   <-chan model.Profile
	unsubscribe func()
	logs        *events.Queue[string]

	width  int
	height int
	screen screen

	lessons     []model.Lesson
	lessonTable table.Model

	sel      grading.Selection
	editor   textarea.Model
	showHint bool
	preview  model.ExecutionResult
	outcome  *grading.Outcome
	tried    *model.ExecutionResult

	status string
	notice string
}

type profileMsg model.Profile

type noticeMsg struct {
	text  string
	queue *events.Queue[string]
}

type alertMsg reminder.Alert

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	codeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#D0D0D0"))
	keywordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	literalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB07F"))
	noticeStyle   = accentStyle
	exampleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4A4A4A")).
			Padding(0, 1)
)

// NewModel constructs the player. Call Close when the program exits.
func NewModel(d Deps) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		deps:   d,
		ctx:    ctx,
		cancel: cancel,
		logs:   events.NewQueue[string](),
	}
	if d.Catalog != nil {
		m.lessons = d.Catalog.All()
	}
	if d.Account != nil {
		m.profile = d.Account.Profile.Get()
		m.profileCh, m.unsubscribe = d.Account.Profile.Subscribe()
	} else {
		m.profile = model.Profile{Username: account.GuestName}
	}
	m.editor = newEditor()
	m.refreshLessonTable()
	return m
}

func newEditor() textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Write your SQL here"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(5)
	ta.SetWidth(60)
	return ta
}

// LogWriter returns a writer whose lines show up as notices. Pass it to
// logx.SetOutput while the alt screen is active.
func (m *Model) LogWriter() *QueueWriter {
	return &QueueWriter{queue: m.logs}
}

// Close releases subscriptions and stops pending waits.
func (m *Model) Close() {
	m.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitNotice(m.logs)}
	if m.profileCh != nil {
		cmds = append(cmds, waitProfile(m.profileCh))
	}
	if m.deps.Account != nil {
		cmds = append(cmds, m.waitNotice(m.deps.Account.Messages))
	}
	if m.deps.Alerts != nil {
		cmds = append(cmds, waitAlert(m.deps.Alerts))
	}
	return tea.Batch(cmds...)
}

func waitProfile(ch <-chan model.Profile) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return profileMsg(p)
	}
}

func (m *Model) waitNotice(q *events.Queue[string]) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		text, err := q.Take(ctx)
		if err != nil {
			return nil
		}
		return noticeMsg{text: text, queue: q}
	}
}

func waitAlert(ch <-chan reminder.Alert) tea.Cmd {
	return func() tea.Msg {
		a, ok := <-ch
		if !ok {
			return nil
		}
		return alertMsg(a)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case profileMsg:
		m.profile = model.Profile(msg)
		if m.screen == screenLessons {
			m.refreshLessonTable()
		}
		return m, waitProfile(m.profileCh)
	case noticeMsg:
		m.notice = msg.text
		return m, m.waitNotice(msg.queue)
	case alertMsg:
		m.notice = strings.TrimSpace(msg.Title + " " + msg.Body)
		return m, waitAlert(m.deps.Alerts)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenExercise {
			return m.updateExercise(msg)
		}
		return m.updateLessons(msg)
	default:
		if m.screen == screenExercise {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m *Model) resize() {
	if m.width > 0 {
		m.editor.SetWidth(max(20, m.contentWidth()))
	}
	m.refreshLessonTable()
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(1, int(float64(m.width)*0.85))
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	if m.screen == screenExercise {
		body = m.renderExercise()
	} else {
		body = m.renderLessons()
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return body + "\n" + footer
	}
	width := m.contentWidth()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Top, fitLines(body, width, m.height))
	}
	bodyHeight := m.height - 1
	content := fitLines(body, width, bodyHeight)
	top := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Top, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, lipgloss.NewStyle().MaxWidth(m.width).Render(footer))
	return top + "\n" + footerLine
}

func (m *Model) renderFooter() string {
	name := m.profile.Username
	if name == "" {
		name = account.GuestName
	}
	segments := []string{
		name,
		fmt.Sprintf("Crystals %d", m.deps.Tracker.RewardBalance()),
		fmt.Sprintf("XP %d", m.deps.Tracker.ExperienceBalance()),
		fmt.Sprintf("Streak %d", m.profile.Streak),
	}
	if m.screen == screenExercise {
		_, _, percent := m.deps.Tracker.LessonProgress(m.sel.Lesson)
		segments = append(segments, fmt.Sprintf("Lesson %d%%", percent))
	}
	line := footerStyle.Render(strings.Join(segments, "  "))
	if m.notice != "" {
		line += "  " + noticeStyle.Render(m.notice)
	}
	return line
}

// QueueWriter turns written lines into player notices.
type QueueWriter struct {
	queue *events.Queue[string]
}

func (w *QueueWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.queue.Push(line)
		}
	}
	return len(p), nil
}

// Run starts the player on the alt screen. Log output is shown as notices
// while it runs.
func Run(d Deps) error {
	m := NewModel(d)
	defer m.Close()
	prev := logx.SetOutput(m.LogWriter())
	defer logx.SetOutput(prev)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
