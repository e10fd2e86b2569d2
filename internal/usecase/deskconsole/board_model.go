package deskconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"repairdesk/internal/bootstrap/logging"
	"repairdesk/internal/domain/incident"
	"repairdesk/internal/usecase/servicedesk"
)

const maxShownEvents = 6
const maxAuditLines = 8

// BoardService is the part of the service desk the board drives.
type BoardService interface {
	ListIncidents(ctx context.Context, input servicedesk.ListIncidentsInput) ([]incident.Incident, error)
	GetIncidentDetail(ctx context.Context, incidentID string) (servicedesk.IncidentDetail, error)
	BuildAuditTimeline(ctx context.Context, input servicedesk.TimelineInput) (servicedesk.Timeline, error)
	AdmitIncident(ctx context.Context, input servicedesk.TransitionInput) (incident.Incident, error)
	StartDiagnosis(ctx context.Context, input servicedesk.TransitionInput) (incident.Incident, error)
	ScheduleDelivery(ctx context.Context, input servicedesk.ScheduleDeliveryInput) (incident.Incident, error)
	MarkDelivered(ctx context.Context, input servicedesk.TransitionInput) (incident.Incident, error)
	ResolveChangeRequest(ctx context.Context, input servicedesk.ResolveChangeRequestInput) (servicedesk.ChangeRequestResolution, error)
}

type BoardOptions struct {
	Actor           string
	CustomerID      string
	StatusFilter    string
	Limit           int
	RefreshInterval time.Duration
}

type boardModel struct {
	ctx             context.Context
	service         BoardService
	actor           string
	customerFilter  string
	statusFilter    string
	limit           int
	refreshInterval time.Duration

	incidents     []incident.Incident
	selectedIndex int
	detail        servicedesk.IncidentDetail
	hasDetail     bool
	timeline      servicedesk.Timeline
	showTimeline  bool
	status        string
	auditLogs     []string
}

type incidentsLoadedMsg struct {
	items []incident.Incident
	err   error
}

type detailLoadedMsg struct {
	incidentID string
	detail     servicedesk.IncidentDetail
	timeline   servicedesk.Timeline
	err        error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action string
	code   string
	result string
	err    error
}

func NewBoardModel(ctx context.Context, service BoardService, options BoardOptions) tea.Model {
	actor := strings.TrimSpace(options.Actor)
	if actor == "" {
		actor = "console"
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	limit := options.Limit
	if limit <= 0 {
		limit = 50
	}

	return &boardModel{
		ctx:             logging.WithAttrs(ctx, slog.String("component", "deskconsole.board")),
		service:         service,
		actor:           actor,
		customerFilter:  strings.TrimSpace(options.CustomerID),
		statusFilter:    strings.TrimSpace(options.StatusFilter),
		limit:           limit,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadIncidentsCmd(), m.tickCmd())
}

func (m *boardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadIncidentsCmd(), m.tickCmd())
	case incidentsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.incidents = msg.items
		if len(m.incidents) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "queue is empty"
			return m, nil
		}
		if m.selectedIndex >= len(m.incidents) {
			m.selectedIndex = len(m.incidents) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d incident(s)", len(m.incidents))
		return m, m.loadSelectedDetailCmd()
	case detailLoadedMsg:
		selected, ok := m.selectedIncident()
		if !ok || selected.ID != msg.incidentID {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.timeline = msg.timeline
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.code, "failed")
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.code, msg.result)
		}
		return m, m.loadIncidentsCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadIncidentsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.incidents)-1 {
				m.selectedIndex++
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "t":
			m.showTimeline = !m.showTimeline
			return m, nil
		case "n":
			return m, m.advanceCmd()
		case "v":
			return m, m.resolvePendingCmd("approved")
		case "x":
			return m, m.resolvePendingCmd("rejected")
		}
	}
	return m, nil
}

func (m *boardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Repair desk board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"actor=%s customer=%s status=%s refresh=%s",
		m.actor,
		firstNonEmpty(m.customerFilter, "all"),
		firstNonEmpty(m.statusFilter, "all"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Queue"))
	builder.WriteString("\n")
	if len(m.incidents) == 0 {
		builder.WriteString(dimStyle.Render("- no incidents"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.incidents {
			line := fmt.Sprintf("%s [%s] customer=%s next=%s",
				item.Code,
				item.Status,
				item.CustomerID,
				firstNonEmpty(nextStep(item.Status), "-"),
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		inc := m.detail.Incident
		builder.WriteString(fmt.Sprintf("Incident: %s (%s) v%d\n", inc.Code, inc.ID, inc.Version))
		builder.WriteString(fmt.Sprintf("Problem: %s\n", inc.ProblemDescription))
		builder.WriteString(fmt.Sprintf("Warranty: %t\n", inc.WarrantyCoverage))
		if diag := m.detail.CurrentDiagnostic; diag != nil {
			builder.WriteString(fmt.Sprintf("Diagnostic: v%d %s %s\n", diag.Version, diag.State, firstNonEmpty(string(diag.Resolution), "-")))
		}
		if cr := m.detail.PendingChangeRequest; cr != nil {
			builder.WriteString(fmt.Sprintf("Pending approval: %s %s by %s\n", cr.ID, cr.Kind, cr.RequesterID))
		}
		if m.showTimeline {
			builder.WriteString("\nTimeline:\n")
			events := m.timeline.Events
			if len(events) == 0 {
				builder.WriteString("- none\n")
			}
			if len(events) > maxShownEvents {
				events = events[:maxShownEvents]
			}
			for _, event := range events {
				stamp := "--"
				if event.Timestamp != nil {
					stamp = event.Timestamp.Format("2006-01-02 15:04")
				}
				builder.WriteString(fmt.Sprintf("- %s %s %s\n", stamp, event.Kind, event.Title))
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: up/k down/j move  g refresh  n next step  v/x approve/reject  t timeline  q quit"))
	return builder.String()
}

func (m *boardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *boardModel) loadIncidentsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListIncidents(m.ctx, servicedesk.ListIncidentsInput{
			CustomerID: m.customerFilter,
			Status:     m.statusFilter,
			Limit:      m.limit,
		})
		return incidentsLoadedMsg{items: items, err: err}
	}
}

func (m *boardModel) loadSelectedDetailCmd() tea.Cmd {
	selected, ok := m.selectedIncident()
	if !ok {
		return nil
	}

	return func() tea.Msg {
		detail, err := m.service.GetIncidentDetail(m.ctx, selected.ID)
		if err != nil {
			return detailLoadedMsg{incidentID: selected.ID, err: err}
		}
		timeline, err := m.service.BuildAuditTimeline(m.ctx, servicedesk.TimelineInput{IncidentID: selected.ID})
		if err != nil {
			return detailLoadedMsg{incidentID: selected.ID, err: err}
		}
		return detailLoadedMsg{incidentID: selected.ID, detail: detail, timeline: timeline}
	}
}

// advanceCmd runs the next lifecycle step of the selected incident, guarded by
// the version shown on the board.
func (m *boardModel) advanceCmd() tea.Cmd {
	selected, ok := m.selectedIncident()
	if !ok {
		m.status = "no incident selected"
		return nil
	}
	step := nextStep(selected.Status)
	if step == "" {
		m.status = fmt.Sprintf("%s has no board action in %s", selected.Code, selected.Status)
		return nil
	}
	m.status = step + " running"

	return func() tea.Msg {
		input := servicedesk.TransitionInput{IncidentID: selected.ID, Actor: m.actor, ExpectedVersion: selected.Version}
		var (
			updated incident.Incident
			err     error
		)
		switch step {
		case stepAdmit:
			updated, err = m.service.AdmitIncident(m.ctx, input)
		case stepStart:
			updated, err = m.service.StartDiagnosis(m.ctx, input)
		case stepSchedule:
			updated, err = m.service.ScheduleDelivery(m.ctx, servicedesk.ScheduleDeliveryInput{
				IncidentID:      selected.ID,
				Actor:           m.actor,
				ExpectedVersion: selected.Version,
			})
		case stepDeliver:
			updated, err = m.service.MarkDelivered(m.ctx, input)
		}
		if err != nil {
			return actionDoneMsg{action: step, code: selected.Code, err: err}
		}
		return actionDoneMsg{action: step, code: selected.Code, result: string(updated.Status)}
	}
}

func (m *boardModel) resolvePendingCmd(outcome string) tea.Cmd {
	if !m.hasDetail || m.detail.PendingChangeRequest == nil {
		m.status = "no pending approval on the selected incident"
		return nil
	}
	pending := *m.detail.PendingChangeRequest
	code := m.detail.Incident.Code
	m.status = "resolving " + pending.ID

	return func() tea.Msg {
		result, err := m.service.ResolveChangeRequest(m.ctx, servicedesk.ResolveChangeRequestInput{
			ChangeRequestID: pending.ID,
			Outcome:         outcome,
			ResolvedBy:      m.actor,
			Note:            "resolved from board",
		})
		if err != nil {
			return actionDoneMsg{action: outcome, code: code, err: err}
		}
		return actionDoneMsg{action: string(result.ChangeRequest.Status), code: code, result: string(result.Incident.Status)}
	}
}

func (m *boardModel) selectedIncident() (incident.Incident, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.incidents) {
		return incident.Incident{}, false
	}
	return m.incidents[m.selectedIndex], true
}

func (m *boardModel) appendAuditLog(action string, code string, result string) {
	line := fmt.Sprintf("%s %s %s -> %s", time.Now().Format("15:04:05"), action, code, result)
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}
	logging.Info(m.ctx, "board action", slog.String("action", action), slog.String("incident", code), slog.String("result", result))
}

const (
	stepAdmit    = "admit"
	stepStart    = "start"
	stepSchedule = "schedule"
	stepDeliver  = "deliver"
)

// nextStep is the board shortcut for status. Diagnosis and parts waits have
// none; they need the diagnose and parts commands.
func nextStep(status incident.Status) string {
	switch status {
	case incident.StatusRegistered:
		return stepAdmit
	case incident.StatusPendingDiagnosis:
		return stepStart
	case incident.StatusRepaired, incident.StatusEstimate, incident.StatusPercentageDiscount, incident.StatusWarrantyExchange:
		return stepSchedule
	case incident.StatusCreditNote, incident.StatusPendingDelivery, incident.StatusLogisticsShipment:
		return stepDeliver
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
