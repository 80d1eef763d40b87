package audit

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/boardfeed/internal/model"
)

// rowHeight is the number of lines one entry takes in a pane.
const rowHeight = 3

type screen int

const (
	screenList screen = iota
	screenDetail
)

type pane int

const (
	paneJobs pane = iota
	paneFailures
)

// listPane is one scrollable column with its own cursor.
type listPane struct {
	vp     viewport.Model
	cursor int
	size   int
}

func (p *listPane) move(delta int) {
	p.cursor = clamp(p.cursor+delta, 0, max(p.size-1, 0))
	top := p.cursor * rowHeight
	bottom := top + rowHeight - 1
	switch {
	case top < p.vp.YOffset:
		p.vp.SetYOffset(top)
	case bottom >= p.vp.YOffset+p.vp.Height:
		p.vp.SetYOffset(bottom - p.vp.Height + 1)
	}
}

type auditModel struct {
	run    Run
	panes  [2]listPane
	active pane
	width  int
	height int
	ready  bool
	help   help.Model

	screen  screen
	job     model.EnrichedJob
	detail  viewport.Model
	showRaw bool

	wantQuit bool
}

func newAuditModel(run Run) auditModel {
	m := auditModel{run: run, help: help.New()}
	m.panes[paneJobs].size = len(run.Jobs)
	m.panes[paneFailures].size = len(run.Failures)
	return m
}

func (m auditModel) Init() tea.Cmd {
	return nil
}

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		if m.screen == screenDetail {
			m.detail.Width, m.detail.Height = m.width-4, m.height-4
			m.detail.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.wantQuit = true
			return m, tea.Quit
		}
		if m.screen == screenDetail {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m auditModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		return m, tea.Quit
	case key.Matches(msg, keys.Switch):
		m.active = 1 - m.active
	case key.Matches(msg, keys.Up):
		m.panes[m.active].move(-1)
	case key.Matches(msg, keys.Down):
		m.panes[m.active].move(1)
	case key.Matches(msg, keys.Open):
		return m.openDetail(), nil
	default:
		// pgup/pgdn/home/end scroll the active pane.
		var cmd tea.Cmd
		m.panes[m.active].vp, cmd = m.panes[m.active].vp.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

func (m auditModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		m.screen = screenList
		return m, nil
	case key.Matches(msg, keys.OpenLink):
		if link := m.job.DetailLink; link != "" && link != model.Sentinel {
			openURL(link)
		}
		return m, nil
	case key.Matches(msg, keys.ToggleRaw):
		if m.job.DescriptionRaw != "" {
			m.showRaw = !m.showRaw
			m.detail.SetContent(m.renderDetail())
			m.detail.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// openDetail shows the selected job. On the failures pane that is the job
// the failure was recorded against, when the run kept one with that id.
func (m auditModel) openDetail() auditModel {
	job, ok := m.selectedJob()
	if !ok {
		return m
	}
	m.screen = screenDetail
	m.job = job
	m.showRaw = false
	m.detail = viewport.New(m.width-4, m.height-4)
	m.detail.SetContent(m.renderDetail())
	return m
}

func (m auditModel) selectedJob() (model.EnrichedJob, bool) {
	cursor := m.panes[m.active].cursor
	if m.active == paneJobs {
		if cursor >= len(m.run.Jobs) {
			return model.EnrichedJob{}, false
		}
		return m.run.Jobs[cursor], true
	}
	if cursor >= len(m.run.Failures) {
		return model.EnrichedJob{}, false
	}
	id := m.run.Failures[cursor].JobID
	if id == "" || id == model.Sentinel {
		return model.EnrichedJob{}, false
	}
	for _, j := range m.run.Jobs {
		if j.JobID == id {
			return j, true
		}
	}
	return model.EnrichedJob{}, false
}

func (m *auditModel) layout() {
	// Two bordered panes side by side with a one-column gap; a title row
	// above and a status row below.
	w := max((m.width-5)/2, 20)
	h := max(m.height-4, 5)
	for i := range m.panes {
		if !m.ready {
			m.panes[i].vp = viewport.New(w, h)
			continue
		}
		m.panes[i].vp.Width, m.panes[i].vp.Height = w, h
	}
	m.ready = true
	m.help.Width = m.width
	m.refresh()
}

func (m *auditModel) refresh() {
	jobs, failures := &m.panes[paneJobs], &m.panes[paneFailures]
	jobs.vp.SetContent(renderJobs(m.run.Jobs, jobs.cursor, m.active == paneJobs))
	failures.vp.SetContent(renderFailures(m.run.Failures, failures.cursor, m.active == paneFailures))
}

func (m auditModel) View() string {
	switch {
	case !m.ready:
		return "Initializing..."
	case m.screen == screenDetail:
		return m.viewDetail()
	default:
		return m.viewList()
	}
}

func (m auditModel) viewList() string {
	w := m.panes[paneJobs].vp.Width
	titles := [2]string{
		fmt.Sprintf(" Jobs (%d)", len(m.run.Jobs)),
		fmt.Sprintf(" Failures (%d)", len(m.run.Failures)),
	}

	var header, body []string
	for i := range m.panes {
		active := pane(i) == m.active
		if i > 0 {
			header, body = append(header, " "), append(body, " ")
		}
		header = append(header, lipgloss.NewStyle().Width(w+2).Render(paneTitle(active, titles[i])))
		body = append(body, paneBorder(active, w).Render(m.panes[i].vp.View()))
	}

	s := m.run.Summary
	summary := fmt.Sprintf("run #%d · %d enriched · %d without description", s.ID, s.Enriched, s.FetchFailures)
	if s.Fatal != "" {
		summary += " · aborted"
	}
	status := statusStyle.Width(m.width).Render(summary + "   " + m.help.ShortHelpView(keys.listHelp()))

	return lipgloss.JoinHorizontal(lipgloss.Top, header...) + "\n" +
		lipgloss.JoinHorizontal(lipgloss.Top, body...) + "\n" + status
}

func (m auditModel) viewDetail() string {
	box := paneBorder(true, m.width-2).Render(m.detail.View())
	status := statusStyle.Width(m.width).Render(m.help.ShortHelpView(keys.detailHelp(m.job.DescriptionRaw != "")))
	return headingStyle.Render("Job Details") + "\n" + box + "\n" + status
}

func (m auditModel) renderDetail() string {
	j := m.job
	var b strings.Builder

	for _, f := range [][2]string{
		{"Title", j.Title},
		{"Job ID", j.JobID},
		{"Location", j.Location},
		{"Time Type", j.EmploymentType},
		{"Posted", j.PostedLabel},
		{"Position", fmt.Sprintf("%d", j.Position+1)},
		{"Link", j.DetailLink},
	} {
		if f[1] != "" {
			b.WriteString(fieldLabelStyle.Render(f[0]) + f[1] + "\n")
		}
	}

	if j.FetchErr != "" {
		b.WriteString("\n" + errorStyle.Render("⚠ fetch failed: "+j.FetchErr) + "\n")
	}
	for _, f := range failuresFor(m.run.Failures, j.JobID) {
		if f.Stage == model.StageDetail {
			continue // shown above as the fetch error
		}
		b.WriteString(errorStyle.Render(fmt.Sprintf("⚠ %s %s: %s", f.Stage, f.Field, f.Message)) + "\n")
	}

	width := max(m.width-8, 20)
	desc, label := j.DescriptionNormalized, "── Description "
	if m.showRaw {
		desc, label = j.DescriptionRaw, "── Raw Description "
	}
	if desc != "" {
		rule := label + strings.Repeat("─", max(width-lipgloss.Width(label), 3))
		b.WriteString("\n" + dividerStyle.Render(rule) + "\n\n")
		b.WriteString(bodyStyle.Width(width).Render(desc) + "\n")
	}
	return b.String()
}

func renderJobs(jobs []model.EnrichedJob, cursor int, active bool) string {
	if len(jobs) == 0 {
		return "  (no jobs)"
	}
	rows := make([]string, len(jobs))
	for i, j := range jobs {
		sub := fmt.Sprintf("%s · %s · %s", j.JobID, j.Location, j.PostedLabel)
		if j.FetchErr != "" {
			sub += " · no description"
		}
		rows[i] = renderRow(j.Title, sub, active && i == cursor)
	}
	return strings.Join(rows, "\n")
}

func renderFailures(failures []model.Failure, cursor int, active bool) string {
	if len(failures) == 0 {
		return "  (no failures)"
	}
	rows := make([]string, len(failures))
	for i, f := range failures {
		parts := []string{string(f.Stage)}
		if f.Field != "" {
			parts = append(parts, f.Field)
		}
		if f.JobID != "" {
			parts = append(parts, f.JobID)
		}
		rows[i] = renderRow(strings.Join(parts, " · "), f.Message, active && i == cursor)
	}
	return strings.Join(rows, "\n")
}

// renderRow renders a two-line entry followed by a newline.
func renderRow(title, subtitle string, selected bool) string {
	titleStyle, subStyle := rowStyles(selected)
	marker := "  "
	if selected {
		marker = "> "
	}
	return marker + titleStyle.Render(title) + "\n" + marker + subStyle.Render(subtitle) + "\n"
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// openURL hands url to the desktop's default browser without waiting.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunAuditTUI shows one stored run in the split-pane view. It reports
// whether the user asked to quit (q) rather than go back to the picker (esc).
func RunAuditTUI(run Run) (bool, error) {
	result, err := tea.NewProgram(newAuditModel(run), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	return result.(auditModel).wantQuit, nil
}
