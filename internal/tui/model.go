// Package tui is a read-only terminal viewer for one computed return.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgehrsitz/nrtax/internal/batch"
	"github.com/rgehrsitz/nrtax/internal/config"
	"github.com/rgehrsitz/nrtax/internal/output"
)

// chrome is the number of lines taken by the title, tabs and status bar.
const chrome = 6

type keyMap struct {
	Next key.Binding
	Prev key.Binding
	Top  key.Binding
	Quit key.Binding
	Jump key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Next: key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next")),
		Prev: key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "prev")),
		Top:  key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Jump: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "section")),
	}
}

// Model represents the viewer state
type Model struct {
	inputPath string
	pipeline  *batch.Pipeline

	report   *batch.Report
	sections []output.Section
	active   int

	viewport viewport.Model
	keys     keyMap

	width  int
	height int

	err     error
	loading bool
}

// NewModel creates a viewer that computes inputPath through p on start.
func NewModel(inputPath string, p *batch.Pipeline) Model {
	return Model{
		inputPath: inputPath,
		pipeline:  p,
		viewport:  viewport.New(80, 24-chrome),
		keys:      defaultKeys(),
		width:     80,
		height:    24,
		loading:   true,
	}
}

// Init starts the computation (required by tea.Model interface)
func (m Model) Init() tea.Cmd {
	return computeCmd(m.inputPath, m.pipeline)
}

func computeCmd(path string, p *batch.Pipeline) tea.Cmd {
	return func() tea.Msg {
		in, err := config.NewInputParser().LoadFromFile(path)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		report, err := p.Compute(context.Background(), in)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return ReportLoadedMsg{Report: report}
	}
}

// ActiveSection returns the title of the displayed section, or "" before a
// result has loaded.
func (m Model) ActiveSection() string {
	if m.active < len(m.sections) {
		return m.sections[m.active].Title
	}
	return ""
}

// Err returns the load or computation error, if any.
func (m Model) Err() error { return m.err }

func (m *Model) setActive(i int) {
	if len(m.sections) == 0 {
		return
	}
	n := len(m.sections)
	m.active = ((i % n) + n) % n
	m.viewport.SetContent(m.sections[m.active].Body)
	m.viewport.GotoTop()
}
