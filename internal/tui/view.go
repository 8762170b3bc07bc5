package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rgehrsitz/nrtax/internal/domain"
	"github.com/rgehrsitz/nrtax/internal/output"
)

// View renders the current state of the viewer
func (m Model) View() string {
	switch {
	case m.err != nil:
		return m.renderApp(ErrorStyle.Render(fmt.Sprintf("Error: %s\n\nPress q to quit.", m.err)))
	case m.loading:
		return m.renderApp(BorderStyle.Render("Computing " + m.inputPath + "..."))
	case len(m.sections) == 0:
		return m.renderApp(BorderStyle.Render("No result to display."))
	}
	return m.renderApp(lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.viewport.View()))
}

func (m Model) renderApp(content string) string {
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTitleBar(), content, m.renderStatusBar())
}

func (m Model) renderTitleBar() string {
	title := TitleStyle.Render("NRTAX - Non-Resident Tax Computation")
	if m.report == nil || m.report.Result == nil {
		return title
	}
	r := m.report.Result
	title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", settlementBadge(r.Final))
	sub := SubtitleStyle.Render(fmt.Sprintf("%s / tax year %d / ruleset %s", m.report.Name, r.TaxYear, r.RulesetVersion))
	return lipgloss.JoinVertical(lipgloss.Left, title, sub)
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(m.sections))
	for i, s := range m.sections {
		label := fmt.Sprintf("%d %s", i+1, s.Title)
		if i == m.active {
			tabs[i] = ActiveTabStyle.Render(label)
		} else {
			tabs[i] = InactiveTabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderStatusBar() string {
	shortcuts := []string{
		formatShortcut(m.keys.Next.Help().Key, m.keys.Next.Help().Desc),
		formatShortcut(m.keys.Prev.Help().Key, m.keys.Prev.Help().Desc),
		formatShortcut(m.keys.Jump.Help().Key, m.keys.Jump.Help().Desc),
		formatShortcut("↑/↓", "scroll"),
		formatShortcut(m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc),
	}
	return StatusBarStyle.Width(m.width).Render(strings.Join(shortcuts, " • "))
}

func formatShortcut(key, desc string) string {
	return StatusKeyStyle.Render(key) + " " + desc
}

func settlementBadge(f domain.FinalComputation) string {
	if f.RefundOrOwed == domain.Refund {
		return RefundStyle.Render("Refund " + output.FormatCurrency(f.Amount))
	}
	return OwedStyle.Render("Owed " + output.FormatCurrency(f.Amount))
}
