package panel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/compozy/autorelease/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9B59B6")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(14)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F39C12"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1)
	sectionStyle = lipgloss.NewStyle().MarginTop(1)
)

// StatusFunc loads the release status shown by the panel.
type StatusFunc func(ctx context.Context) (*domain.StatusReport, error)

type statusLoadedMsg struct {
	report *domain.StatusReport
	err    error
}

// Model is the bubbletea model of the status panel.
type Model struct {
	ctx          context.Context
	load         StatusFunc
	spinner      spinner.Model
	report       *domain.StatusReport
	err          error
	loading      bool
	startRelease bool
}

// New creates a panel model that loads its status with load.
func New(ctx context.Context, load StatusFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle
	return Model{ctx: ctx, load: load, spinner: s, loading: true}
}

// StartRelease reports whether the operator asked to start a release before quitting.
func (m Model) StartRelease() bool {
	return m.startRelease
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		report, err := m.load(m.ctx)
		return statusLoadedMsg{report: report, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		case "enter":
			if m.loading || m.report == nil || !m.report.ReadyToRelease() {
				return m, nil
			}
			m.startRelease = true
			return m, tea.Quit
		}
	case statusLoadedMsg:
		m.loading = false
		m.report = msg.report
		m.err = msg.err
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📦 autorelease"))
	b.WriteString("\n")
	switch {
	case m.loading:
		fmt.Fprintf(&b, "\n%s Loading release status...\n", m.spinner.View())
	case m.err != nil:
		b.WriteString(sectionStyle.Render(failStyle.Render("❌ " + m.err.Error())))
		b.WriteString("\n")
	case m.report != nil:
		b.WriteString(renderReport(m.report))
	}
	help := "r refresh • q quit"
	if !m.loading && m.report != nil && m.report.ReadyToRelease() {
		help = "enter release • " + help
	}
	b.WriteString(helpStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}

func renderReport(r *domain.StatusReport) string {
	var lines []string
	row := func(label, value string) {
		lines = append(lines, labelStyle.Render(label)+value)
	}
	row("Branch", fmt.Sprintf("%s → %s", r.Branch, r.BaseBranch))
	if r.Dirty {
		row("Working tree", warnStyle.Render("uncommitted changes"))
	} else {
		row("Working tree", okStyle.Render("clean"))
	}
	if r.Version != "" {
		tag := r.Tag
		if r.TagExists {
			tag += warnStyle.Render(" (already released)")
		}
		row("Version", tag)
	}
	if r.PullRequest != nil {
		row("Pull request", fmt.Sprintf("#%d %s %s", r.PullRequest.Number, r.PullRequest.State, r.PullRequest.URL))
		if r.PullRequest.HasConflicts() {
			row("Mergeable", failStyle.Render(string(r.PullRequest.Mergeable)))
		}
	} else {
		row("Pull request", "none")
	}
	if len(r.Checks) > 0 {
		row("Checks", bucketStyle(r.CheckState).Render(fmt.Sprintf("%s (%d)", r.CheckState, len(r.Checks))))
	}
	for _, w := range r.Warnings {
		lines = append(lines, warnStyle.Render("⚠ "+w))
	}
	return sectionStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func bucketStyle(b domain.CheckBucket) lipgloss.Style {
	switch b {
	case domain.BucketPass:
		return okStyle
	case domain.BucketFail, domain.BucketCancel:
		return failStyle
	default:
		return warnStyle
	}
}

// Run shows the panel until the operator quits and reports whether a release was requested.
func Run(ctx context.Context, load StatusFunc, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(New(ctx, load), tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("panel failed: %w", err)
	}
	m, ok := final.(Model)
	return ok && m.StartRelease(), nil
}
