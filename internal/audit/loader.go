package audit

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var errCancelled = errors.New("cancelled")

type loadDoneMsg struct {
	run Run
	err error
}

type loaderModel struct {
	label   string
	load    func() (Run, error)
	spinner spinner.Model
	result  Run
	err     error
	done    bool
}

func newLoaderModel(label string, load func() (Run, error)) loaderModel {
	return loaderModel{
		label: label,
		load:  load,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("33"))),
		),
	}
}

func (m loaderModel) Init() tea.Cmd {
	load := m.load
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		run, err := load()
		return loadDoneMsg{run: run, err: err}
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadDoneMsg:
		m.result, m.err, m.done = msg.run, msg.err, true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err, m.done = errCancelled, true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Loading %s...\n", m.spinner.View(), m.label)
}

// RunLoader shows a spinner while a stored run is read. It renders inline (no alt screen).
func RunLoader(label string, load func() (Run, error)) (Run, error) {
	result, err := tea.NewProgram(newLoaderModel(label, load)).Run()
	if err != nil {
		return Run{}, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
