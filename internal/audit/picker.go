package audit

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/boardfeed/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(1, 0, 1, 2)
	pickerRowStyle   = lipgloss.NewStyle().Padding(0, 0, 0, 4)
	pickerCurStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 0, 0, 2)
	pickerHelpStyle  = lipgloss.NewStyle().Padding(1, 0, 0, 2)
)

type pickerModel struct {
	runs   []model.RunSummary
	cursor int
	chosen bool
	help   help.Model
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(k, keys.Quit), key.Matches(k, keys.Back):
		return m, tea.Quit
	case key.Matches(k, keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(k, keys.Down):
		m.cursor = clamp(m.cursor+1, 0, max(len(m.runs)-1, 0))
	case key.Matches(k, keys.Open):
		if len(m.runs) > 0 {
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitleStyle.Render("Run Audit: select a run") + "\n")

	if len(m.runs) == 0 {
		b.WriteString(pickerRowStyle.Render("(no runs recorded)") + "\n")
	}
	for i, r := range m.runs {
		label := runLabel(r)
		if r.Fatal != "" {
			label += " " + errorStyle.Render("aborted")
		}
		if i == m.cursor {
			b.WriteString(pickerCurStyle.Render("> "+label) + "\n")
			continue
		}
		b.WriteString(pickerRowStyle.Render(label) + "\n")
	}

	b.WriteString(pickerHelpStyle.Render(m.help.ShortHelpView([]key.Binding{keys.Up, keys.Down, keys.Open, keys.Quit})))
	return b.String()
}

func runLabel(r model.RunSummary) string {
	return fmt.Sprintf("#%d  %s  %d jobs, %d without description, %d failures",
		r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Discovered, r.FetchFailures, r.FailureCount)
}

// RunPicker lists stored runs and lets the user choose one.
// ok is false when the user quit without choosing.
func RunPicker(runs []model.RunSummary) (summary model.RunSummary, ok bool, err error) {
	result, err := tea.NewProgram(pickerModel{runs: runs, help: help.New()}).Run()
	if err != nil {
		return model.RunSummary{}, false, err
	}
	final := result.(pickerModel)
	if !final.chosen {
		return model.RunSummary{}, false, nil
	}
	return runs[final.cursor], true, nil
}
