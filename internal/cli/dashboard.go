package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/internal/observability"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// Dashboard panel indices.
const (
	panelTasks = iota
	panelMetrics
	panelAlerts
	panelCount
)

const dashboardRefresh = time.Second

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	filter int
	cursor int

	// Data.
	now         time.Time
	tasks       []models.Task
	metricsData *metricsSnapshot
	alerts      []observability.Alert

	// State.
	loading bool
	notice  string
	err     error
}

type metricsSnapshot struct {
	tasksCreated   int
	tasksCompleted int
	tasksExpired   int
	completionRate float64
	eventCount     int
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	now     time.Time
	tasks   []models.Task
	metrics *metricsSnapshot
	alerts  []observability.Alert
	err     error
}

// tickMsg redraws the countdowns.
type tickMsg time.Time

// actionDoneMsg reports the outcome of a complete, delete or sweep.
type actionDoneMsg struct {
	notice string
	err    error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	urgencyRelaxed  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	urgencyModerate = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	urgencyElevated = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	urgencyCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	urgencyOverdue  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusDone      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusExpired   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)

	cursorStyle = lipgloss.NewStyle().Reverse(true)

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelTasks,
		loading:     true,
	}
}

func (m dashboardModel) currentFilter() core.Filter {
	return core.Filters[m.filter%len(core.Filters)]
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(loadData(m.currentFilter()), tick())
}

func tick() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "f":
			m.filter = (m.filter + 1) % len(core.Filters)
			m.cursor = 0
			return m, loadData(m.currentFilter())
		case "F":
			m.filter = (m.filter - 1 + len(core.Filters)) % len(core.Filters)
			m.cursor = 0
			return m, loadData(m.currentFilter())
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.tasks)-1 {
				m.cursor++
			}
			return m, nil
		case "c":
			if t, ok := m.selected(); ok {
				return m, completeTask(t)
			}
			return m, nil
		case "x":
			if t, ok := m.selected(); ok {
				return m, deleteTask(t)
			}
			return m, nil
		case "s":
			return m, sweepTasks
		case "r":
			m.loading = true
			return m, loadData(m.currentFilter())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(loadData(m.currentFilter()), tick())

	case actionDoneMsg:
		if msg.err != nil {
			m.notice = "Error: " + msg.err.Error()
		} else {
			m.notice = msg.notice
		}
		return m, loadData(m.currentFilter())

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.now = msg.now
		m.tasks = msg.tasks
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		if m.cursor >= len(m.tasks) {
			m.cursor = max(len(m.tasks)-1, 0)
		}
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) selected() (models.Task, bool) {
	if m.activePanel != panelTasks || m.cursor < 0 || m.cursor >= len(m.tasks) {
		return models.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" taskclock ")
	help := helpStyle.Render("j/k: move | c: complete | x: delete | f/F: filter | s: sweep | tab: panel | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	tasksPanel := m.renderTasksPanel()
	metricsPanel := m.renderMetricsPanel()
	alertsPanel := m.renderAlertsPanel()

	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Tasks take two thirds, metrics and alerts stack in the rest.
		side := availableWidth / 3
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, availableWidth-side-8)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, side-4)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, side-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, tasksPanel,
			lipgloss.JoinVertical(lipgloss.Left, metricsPanel, alertsPanel))
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		tasksPanel = m.applyPanelStyle(panelTasks, tasksPanel, panelWidth)
		metricsPanel = m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth)
		alertsPanel = m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, tasksPanel, metricsPanel, alertsPanel)
	}

	footer := help
	if m.notice != "" {
		footer = noticeStyle.Render(m.notice) + "\n" + help
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, footer)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Tasks [%s]", m.currentFilter())))
	b.WriteString("\n")

	if len(m.tasks) == 0 {
		b.WriteString("  No tasks found.")
		return b.String()
	}

	for i, t := range m.tasks {
		line := fmt.Sprintf("%-20s %-6s %s", core.TimeLeft(t, m.now), t.Priority, t.Title)
		line = styleForTask(t, m.now).Render(line)
		if i == m.cursor && m.activePanel == panelTasks {
			line = cursorStyle.Render(line)
		}
		b.WriteString("  " + line + "\n")
	}

	pending := 0
	for _, t := range m.tasks {
		if t.Status == models.StatusPending {
			pending++
		}
	}
	b.WriteString(fmt.Sprintf("\n  %d shown, %d pending", len(m.tasks), pending))

	return b.String()
}

func (m dashboardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (7d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Events", md.eventCount))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Created", md.tasksCreated))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Completed", md.tasksCompleted))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Expired", md.tasksExpired))
	b.WriteString(fmt.Sprintf("  %-14s %.0f%%\n", "Completion", md.completionRate*100))

	return b.String()
}

func (m dashboardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.Severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(string(a.Severity))))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.Message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForTask(t models.Task, now time.Time) lipgloss.Style {
	switch t.Status {
	case models.StatusCompleted:
		return statusDone
	case models.StatusExpired:
		return statusExpired
	}
	switch core.UrgencyOf(t, now) {
	case core.UrgencyRelaxed:
		return urgencyRelaxed
	case core.UrgencyModerate:
		return urgencyModerate
	case core.UrgencyElevated:
		return urgencyElevated
	case core.UrgencyCritical:
		return urgencyCritical
	case core.UrgencyOverdue:
		return urgencyOverdue
	}
	return lipgloss.NewStyle()
}

func styleForSeverity(severity observability.AlertSeverity) lipgloss.Style {
	switch severity {
	case observability.SeverityHigh:
		return severityHigh
	case observability.SeverityMedium:
		return severityMedium
	case observability.SeverityLow:
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData(filter core.Filter) tea.Cmd {
	return func() tea.Msg {
		result := dataLoadedMsg{now: Clock.Now()}

		if TaskStore == nil {
			result.err = fmt.Errorf("task store not initialized")
			return result
		}
		if err := TaskStore.LastError(); err != nil {
			result.err = fmt.Errorf("loading tasks: %w", err)
			return result
		}
		result.tasks = TaskStore.Filter(filter)

		if MetricsCalc != nil {
			metrics, err := MetricsCalc.Calculate(result.now.UTC().AddDate(0, 0, -7))
			if err != nil {
				result.err = fmt.Errorf("loading metrics: %w", err)
				return result
			}
			result.metrics = &metricsSnapshot{
				tasksCreated:   metrics.TasksCreated,
				tasksCompleted: metrics.TasksCompleted,
				tasksExpired:   metrics.TasksExpired,
				completionRate: metrics.CompletionRate,
				eventCount:     metrics.EventCount,
			}
		}

		if AlertEngine != nil {
			result.alerts = AlertEngine.Evaluate(TaskStore.Tasks(), result.now)
		}

		return result
	}
}

func completeTask(t models.Task) tea.Cmd {
	return func() tea.Msg {
		if _, err := TaskStore.Complete(context.Background(), t.ID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{notice: fmt.Sprintf("Completed %q", t.Title)}
	}
}

func deleteTask(t models.Task) tea.Cmd {
	return func() tea.Msg {
		if err := TaskStore.Delete(context.Background(), t.ID); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{notice: fmt.Sprintf("Deleted %q", t.Title)}
	}
}

func sweepTasks() tea.Msg {
	n, err := TaskStore.Sweep(context.Background())
	if err != nil {
		return actionDoneMsg{err: err}
	}
	return actionDoneMsg{notice: fmt.Sprintf("Expired %d overdue task(s)", n)}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive countdown view of your tasks",
	Long: `Launch an interactive terminal dashboard listing tasks with live
countdowns coloured by urgency, alongside metrics and alerts.

Move with j/k, complete with c, delete with x, cycle filters with f,
sweep with s, switch panels with Tab, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
