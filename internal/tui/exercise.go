package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/sqlquest/internal/grading"
	"github.com/verte-zerg/sqlquest/internal/model"
)

func (m *Model) openExercise(id int) tea.Cmd {
	sel, err := m.deps.Engine.Select(m.ctx, id)
	if err != nil {
		m.status = err.Error()
		return nil
	}
	m.loadSelection(sel)
	if sel.Exercise.Kind != model.KindPractice {
		m.editor.Blur()
		return nil
	}
	return m.editor.Focus()
}

func (m *Model) loadSelection(sel grading.Selection) {
	m.sel = sel
	m.screen = screenExercise
	m.status = ""
	m.showHint = false
	m.outcome = nil
	m.tried = nil
	m.preview = model.ExecutionResult{}
	m.editor.SetValue(sel.Exercise.Starter)
	if sel.Exercise.Kind == model.KindPractice && !sel.Blocked && sel.Exercise.Target != "" {
		m.preview = m.deps.Engine.Preview(m.ctx)
	}
}

func (m *Model) updateExercise(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	theory := m.sel.Exercise.Kind == model.KindTheory
	switch msg.String() {
	case "esc":
		m.backToLessons()
		return m, nil
	case "ctrl+s":
		m.submit()
		return m, nil
	case "enter":
		if theory {
			m.submit()
			return m, nil
		}
	case "ctrl+r":
		if !theory {
			res := m.deps.Engine.Try(m.ctx, m.editor.Value())
			m.tried = &res
			m.outcome = nil
		}
		return m, nil
	case "ctrl+n":
		return m, m.advance()
	case "ctrl+h":
		m.showHint = !m.showHint
		return m, nil
	}
	if theory {
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *Model) submit() {
	var out grading.Outcome
	if m.sel.Exercise.Kind == model.KindTheory {
		out = m.deps.Engine.Acknowledge(m.ctx)
	} else {
		out = m.deps.Engine.Submit(m.ctx, m.editor.Value())
	}
	m.outcome = &out
	m.tried = nil
	m.status = ""
	if out.Err != nil {
		m.status = out.Err.Error()
	}
}

func (m *Model) advance() tea.Cmd {
	next, err := m.deps.Engine.Advance(m.ctx)
	if err != nil {
		m.status = err.Error()
		return nil
	}
	if next.Done() {
		if next.LessonComplete {
			m.notice = fmt.Sprintf("Lesson %q complete!", m.sel.Lesson.Title)
		}
		m.backToLessons()
		return nil
	}
	sel, ok := m.deps.Engine.Current()
	if !ok {
		m.backToLessons()
		return nil
	}
	m.loadSelection(sel)
	if sel.Exercise.Kind != model.KindPractice {
		m.editor.Blur()
		return nil
	}
	return m.editor.Focus()
}

func (m *Model) renderExercise() string {
	width := m.contentWidth()
	ex := m.sel.Exercise
	var sections []string

	header := fmt.Sprintf("%s  ·  Exercise %d/%d  ·  %s",
		m.sel.Lesson.Title, m.sel.Position+1, len(m.sel.Lesson.Exercises), ex.Kind)
	sections = append(sections, mutedStyle.Render(truncateLine(header, width)))
	if ex.Prompt != "" {
		sections = append(sections, titleStyle.Render(wrapPlain(ex.Prompt, width)))
	}

	if ex.Kind == model.KindTheory {
		if ex.Theory != "" {
			sections = append(sections, wrapText(ex.Theory, width, textStyle))
		}
		if ex.Example != "" {
			sections = append(sections, exampleBorder.Render(wrapSQL(ex.Example, max(1, width-4))))
		}
	} else {
		if m.sel.Blocked {
			sections = append(sections, errorStyle.Render(grading.ContentErrorMessage))
		} else if ex.Target != "" {
			sections = append(sections, mutedStyle.Render("Table "+ex.Target+":")+"\n"+renderResult(m.preview, width, maxPreviewRows))
		}
		sections = append(sections, m.editor.View())
	}

	if m.showHint && ex.Hint != "" {
		sections = append(sections, accentStyle.Render(wrapPlain("Hint: "+ex.Hint, width)))
	}
	if banner := m.renderOutcome(width); banner != "" {
		sections = append(sections, banner)
	}
	if m.tried != nil {
		sections = append(sections, mutedStyle.Render("Result (not graded):")+"\n"+renderResult(*m.tried, width, maxResultRows))
	}
	if m.status != "" {
		sections = append(sections, errorStyle.Render(wrapPlain(m.status, width)))
	}
	sections = append(sections, footerStyle.Render(m.helpLine()))
	return strings.Join(sections, "\n\n")
}

func (m *Model) helpLine() string {
	if m.sel.Exercise.Kind == model.KindTheory {
		return "enter/ctrl+s: got it  ctrl+n: next  ctrl+h: hint  esc: lessons"
	}
	return "ctrl+s: submit  ctrl+r: run  ctrl+n: next  ctrl+h: hint  esc: lessons"
}

func (m *Model) renderOutcome(width int) string {
	if m.outcome == nil {
		return ""
	}
	out := m.outcome
	var lines []string
	switch out.Kind {
	case grading.OutcomeMatch:
		msg := out.Message
		if out.NewlyCompleted && out.Reward > 0 {
			msg += fmt.Sprintf(" +%d crystals", out.Reward)
		}
		lines = append(lines, successStyle.Render(msg))
		switch {
		case out.Next.LessonComplete:
			lines = append(lines, mutedStyle.Render("Lesson complete. Press ctrl+n to return to the lessons."))
		case !out.Next.Done():
			lines = append(lines, mutedStyle.Render("Press ctrl+n for the next exercise."))
		}
		if out.Result.Kind == model.ResultRows {
			lines = append(lines, renderResult(out.Result, width, maxResultRows))
		}
	case grading.OutcomeMismatch:
		lines = append(lines, errorStyle.Render(wrapPlain(out.Message, width)))
		if out.Diff != "" {
			lines = append(lines, accentStyle.Render(wrapPlain(out.Diff, width)))
		}
		lines = append(lines, mutedStyle.Render("Your result:"), renderResult(out.Result, width, maxResultRows))
	case grading.OutcomeLearnerError:
		lines = append(lines, errorStyle.Render(wrapPlain(out.Message, width)))
		if out.Hint != "" {
			lines = append(lines, mutedStyle.Render(wrapPlain("Hint: "+out.Hint, width)))
		}
	case grading.OutcomeContentError:
		lines = append(lines, errorStyle.Bold(true).Render(wrapPlain(out.Message, width)))
	case grading.OutcomeEnvironmentError:
		lines = append(lines, accentStyle.Render(wrapPlain(out.Message, width)))
	case grading.OutcomeTheory:
		lines = append(lines, mutedStyle.Render(wrapPlain(out.Message, width)))
	}
	return strings.Join(lines, "\n")
}
