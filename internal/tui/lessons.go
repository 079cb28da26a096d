package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/sqlquest/internal/model"
)

func (m *Model) lessonStatus(l model.Lesson) string {
	switch {
	case m.deps.Tracker.IsLessonComplete(l):
		return "complete"
	case !m.deps.Tracker.IsLessonUnlocked(l):
		return fmt.Sprintf("needs %d XP", l.RequiredReward)
	default:
		return "open"
	}
}

// refreshLessonTable rebuilds the table so row data and columns always agree.
func (m *Model) refreshLessonTable() {
	cursor := m.lessonTable.Cursor()
	titleWidth := 10
	for _, l := range m.lessons {
		titleWidth = max(titleWidth, len([]rune(l.Title)))
	}
	titleWidth = min(titleWidth, 36)
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Lesson", Width: titleWidth},
		{Title: "Progress", Width: 14},
		{Title: "Status", Width: 14},
	}
	rows := make([]table.Row, len(m.lessons))
	for i, l := range m.lessons {
		done, total, percent := m.deps.Tracker.LessonProgress(l)
		rows[i] = table.Row{
			strconv.Itoa(i + 1),
			truncateLine(l.Title, titleWidth),
			fmt.Sprintf("%d/%d (%d%%)", done, total, percent),
			m.lessonStatus(l),
		}
	}
	height := len(rows) + 2
	if m.height > 0 {
		height = max(3, min(height, m.height-6))
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(height),
		table.WithFocused(true),
	)
	t.SetStyles(tableStyles())
	if cursor > 0 && cursor < len(rows) {
		t.SetCursor(cursor)
	}
	m.lessonTable = t
}

func (m *Model) updateLessons(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "enter":
		idx := m.lessonTable.Cursor()
		if idx >= 0 && idx < len(m.lessons) {
			return m, m.openLesson(m.lessons[idx])
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.lessonTable, cmd = m.lessonTable.Update(msg)
	return m, cmd
}

// openLesson starts at the first exercise not completed yet, or at the
// beginning of a finished lesson.
func (m *Model) openLesson(l model.Lesson) tea.Cmd {
	if !m.deps.Tracker.IsLessonUnlocked(l) {
		m.status = fmt.Sprintf("%q needs %d XP, you have %d.", l.Title, l.RequiredReward, m.deps.Tracker.ExperienceBalance())
		return nil
	}
	if len(l.Exercises) == 0 {
		m.status = fmt.Sprintf("%q has no exercises.", l.Title)
		return nil
	}
	target := l.Exercises[0].ID
	for _, ex := range l.Exercises {
		if !m.deps.Tracker.IsExerciseComplete(ex.ID) {
			target = ex.ID
			break
		}
	}
	return m.openExercise(target)
}

func (m *Model) backToLessons() {
	m.screen = screenLessons
	m.editor.Blur()
	m.outcome = nil
	m.tried = nil
	m.refreshLessonTable()
}

func (m *Model) renderLessons() string {
	width := m.contentWidth()
	var b strings.Builder
	b.WriteString(titleStyle.Render("SQL Quest"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Pick a lesson. Lessons unlock as you earn experience."))
	b.WriteString("\n\n")
	if len(m.lessons) == 0 {
		b.WriteString(mutedStyle.Render("No lessons found."))
	} else {
		b.WriteString(m.lessonTable.View())
	}
	if m.status != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(wrapPlain(m.status, width)))
	}
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("up/down: move  enter: open  q: quit"))
	return b.String()
}
