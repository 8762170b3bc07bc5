package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/nrtax/internal/output"
)

// Update handles all messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(1, msg.Height-chrome)
		return m, nil

	case ReportLoadedMsg:
		m.loading = false
		m.report = msg.Report
		m.sections = nil
		if msg.Report != nil && msg.Report.Result != nil {
			m.sections = output.Sections(msg.Report.Result)
		}
		m.setActive(0)
		return m, nil

	case ErrorMsg:
		m.loading = false
		m.err = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case m.err != nil || m.loading:
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.setActive(m.active + 1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.setActive(m.active - 1)
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Jump):
		if i := int(msg.String()[0] - '1'); i < len(m.sections) {
			m.setActive(i)
		}
		return m, nil
	}

	// Arrow and page keys scroll the section body
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}
