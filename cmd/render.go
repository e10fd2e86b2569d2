package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"repairdesk/internal/domain/incident"
	"repairdesk/internal/usecase/servicedesk"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62")).Padding(0, 1)
)

const timestampLayout = "2006-01-02 15:04"

func formatTimestamp(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "--"
	}
	return ts.Format(timestampLayout)
}

func renderIncidentLine(inc incident.Incident) string {
	return fmt.Sprintf("%s  %s  customer=%s  v%d  %s",
		titleStyle.Render(inc.Code),
		statusStyle.Render(string(inc.Status)),
		inc.CustomerID,
		inc.Version,
		dimStyle.Render(inc.ID),
	)
}

func writeIncident(w io.Writer, inc incident.Incident) error {
	_, err := fmt.Fprintln(w, renderIncidentLine(inc))
	return err
}

func renderDetail(detail servicedesk.IncidentDetail) string {
	inc := detail.Incident

	var b strings.Builder
	b.WriteString(renderIncidentLine(inc))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  channel: %s  warranty: %t\n", inc.EntryChannel, inc.WarrantyCoverage)
	fmt.Fprintf(&b, "  problem: %s\n", inc.ProblemDescription)
	if inc.OriginIncidentID != nil {
		fmt.Fprintf(&b, "  origin:  %s\n", *inc.OriginIncidentID)
	}
	if inc.DeliveredAt != nil {
		fmt.Fprintf(&b, "  delivered: %s\n", formatTimestamp(inc.DeliveredAt))
	}

	if diag := detail.CurrentDiagnostic; diag != nil {
		b.WriteString(sectionStyle.Render("Diagnostic"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "  v%d %s by %s", diag.Version, diag.State, diag.TechnicianID)
		if diag.Resolution != "" {
			fmt.Fprintf(&b, "  resolution=%s", diag.Resolution)
		}
		b.WriteString("\n")
		if len(diag.Faults) > 0 {
			fmt.Fprintf(&b, "  faults: %s\n", strings.Join(diag.Faults, "; "))
		}
		if len(diag.Causes) > 0 {
			fmt.Fprintf(&b, "  causes: %s\n", strings.Join(diag.Causes, "; "))
		}
		for _, part := range diag.Parts {
			b.WriteString("  " + renderPart(part) + "\n")
		}
	}

	if cr := detail.PendingChangeRequest; cr != nil {
		b.WriteString(sectionStyle.Render("Pending approval"))
		b.WriteString("\n")
		fmt.Fprintf(&b, "  %s %s requested by %s\n", cr.ID, cr.Kind, cr.RequesterID)
	}

	if len(detail.PartsRequests) > 0 {
		b.WriteString(sectionStyle.Render("Parts requests"))
		b.WriteString("\n")
		for _, req := range detail.PartsRequests {
			fmt.Fprintf(&b, "  %s %s items=%d\n", req.ID, req.Status, len(req.Items))
		}
	}

	if len(detail.Verifications) > 0 {
		b.WriteString(sectionStyle.Render("Recurrence checks"))
		b.WriteString("\n")
		for _, v := range detail.Verifications {
			fmt.Fprintf(&b, "  %s approved=%t days=%d by %s\n", v.ID, v.Approved(), v.DaysSinceRepair, v.VerifierID)
		}
	}

	if strings.TrimSpace(inc.ObservationLog) != "" {
		b.WriteString(sectionStyle.Render("Observations"))
		b.WriteString("\n")
		for _, line := range strings.Split(strings.TrimRight(inc.ObservationLog, "\n"), "\n") {
			b.WriteString("  " + dimStyle.Render(line) + "\n")
		}
	}
	return b.String()
}

func renderPart(part incident.SelectedPart) string {
	line := fmt.Sprintf("%s x%d %s", part.Code, part.Quantity, part.Description)
	if part.OriginalCode != "" {
		line += dimStyle.Render(" (requested " + part.OriginalCode + ")")
	}
	return line
}

func renderTimeline(tl servicedesk.Timeline) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(tl.Incident.Code + " timeline"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  (%s, %d events)", tl.Order, len(tl.Events))))
	b.WriteString("\n")

	for _, event := range tl.Events {
		fmt.Fprintf(&b, "%s  %s  %s",
			dimStyle.Render(fmt.Sprintf("%-16s", formatTimestamp(event.Timestamp))),
			sectionStyle.Render(fmt.Sprintf("%-13s", event.Kind)),
			event.Title,
		)
		if event.Actor != "" {
			b.WriteString(dimStyle.Render(" by " + event.Actor))
		}
		b.WriteString("\n")
		if event.Description != "" {
			b.WriteString("    " + event.Description + "\n")
		}
	}

	for _, obs := range tl.Malformed {
		b.WriteString(warnStyle.Render(fmt.Sprintf("unreadable timestamp on observation line %d: %s", obs.Line, obs.Raw)))
		b.WriteString("\n")
	}
	return b.String()
}
