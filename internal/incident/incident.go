// Package incident decides when a scored event warrants an incident and
// synthesizes the incident record.
package incident

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sentinelir/pkg/models"
)

// Thresholds for opening an incident.
const (
	MinIncidentScore = 40
)

// ReporterSystem is the actor recorded on system-generated timeline entries.
const ReporterSystem = "Security System"

// EscalationStep is prepended to critical recommendations.
const EscalationStep = "Immediate escalation to security team"

var defaultActions = map[string][]string{
	models.EventMalware: {
		"Isolate affected systems",
		"Scan affected systems for malware",
		"Block malicious file hashes",
		"Notify security team",
	},
	models.EventPhishing: {
		"Block sender domain",
		"Scan mailboxes for related messages",
		"Reset affected credentials",
		"Notify affected users",
	},
	models.EventDDoS: {
		"Block attacking IP addresses",
		"Enable upstream rate limiting",
		"Notify infrastructure team",
	},
	models.EventDataBreach: {
		"Isolate compromised systems",
		"Preserve evidence",
		"Scan for exfiltration channels",
		"Notify data protection officer",
	},
	models.EventSuspiciousActivity: {
		"Monitor account activity",
		"Scan affected account for compromise",
		"Notify security team",
	},
	models.EventFailedLogin: {
		"Block source IP address",
		"Enforce account lockout",
		"Notify account owner",
	},
	models.EventUnauthorizedAccess: {
		"Block source IP address",
		"Revoke active sessions",
		"Isolate affected account",
		"Notify security team",
	},
}

var fallbackActions = []string{
	"Investigate event details",
	"Notify security team",
}

// ShouldCreateIncident reports whether the analysis warrants an incident.
func ShouldCreateIncident(riskScore float64, severity models.Severity) bool {
	return riskScore >= MinIncidentScore || severity == models.SeverityHigh || severity == models.SeverityCritical
}

// RecommendedActions returns the default response for a threat type.
func RecommendedActions(threatType string, severity models.Severity) []string {
	base, ok := defaultActions[threatType]
	if !ok {
		base = fallbackActions
	}
	return withEscalation(base, severity)
}

// PlaybookActions returns playbook steps with the critical escalation prefix.
func PlaybookActions(pb models.Playbook, severity models.Severity) []string {
	return withEscalation(pb.Steps, severity)
}

func withEscalation(steps []string, severity models.Severity) []string {
	out := make([]string, 0, len(steps)+1)
	if severity == models.SeverityCritical {
		out = append(out, EscalationStep)
	}
	return append(out, steps...)
}

// PriorityFor maps a severity to an incident priority.
func PriorityFor(severity models.Severity) models.Priority {
	switch severity {
	case models.SeverityCritical:
		return models.PriorityP1
	case models.SeverityHigh:
		return models.PriorityP2
	case models.SeverityMedium:
		return models.PriorityP3
	default:
		return models.PriorityP4
	}
}

// YearPrefix returns the incident ID prefix for a year.
func YearPrefix(year int) string {
	return fmt.Sprintf("INC-%04d", year)
}

// FormatIncidentID renders INC-<year>-<seq>.
func FormatIncidentID(year, seq int) string {
	return fmt.Sprintf("%s-%03d", YearPrefix(year), seq)
}

// ParseIncidentID splits an incident ID into year and sequence.
func ParseIncidentID(id string) (year, seq int, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != "INC" || len(parts[1]) != 4 || len(parts[2]) < 3 {
		return 0, 0, fmt.Errorf("malformed incident id %q", id)
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("parse incident year %q: %w", id, err)
	}
	if seq, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, fmt.Errorf("parse incident sequence %q: %w", id, err)
	}
	return year, seq, nil
}

// BuildIncident assembles a new incident from an analyzed event. seq is the
// per-year sequence number the caller minted.
func BuildIncident(event *models.SecurityEvent, analysis *models.SecurityEventAnalysis, reportedBy string, seq int, now time.Time) *models.SecurityIncident {
	if reportedBy == "" {
		reportedBy = ReporterSystem
	}
	detectedAt := event.CreatedAt
	if detectedAt.IsZero() {
		detectedAt = now
	}

	return &models.SecurityIncident{
		IncidentID:      FormatIncidentID(now.Year(), seq),
		Title:           buildTitle(event, analysis),
		Description:     buildDescription(event, analysis),
		Type:            analysis.ThreatType,
		Severity:        analysis.Severity,
		Status:          models.StatusOpen,
		Priority:        PriorityFor(analysis.Severity),
		RiskScore:       analysis.RiskScore,
		AffectedSystems: affectedSystems(event, analysis.ThreatType),
		Indicators:      append([]string{}, analysis.Indicators...),
		Timeline: []models.TimelineEntry{{
			Timestamp: now,
			Action:    "Incident Created",
			Actor:     ReporterSystem,
			Details:   fmt.Sprintf("Incident created from security event %s with risk score %.1f", event.ID, analysis.RiskScore),
		}},
		Evidence:      []string{},
		Actions:       append([]string{}, analysis.RecommendedActions...),
		ReportedBy:    reportedBy,
		SourceEventID: event.ID,
		PlaybookID:    analysis.PlaybookID,
		DetectedAt:    detectedAt,
	}
}

func buildTitle(event *models.SecurityEvent, analysis *models.SecurityEventAnalysis) string {
	title := fmt.Sprintf("%s %s", strings.ToUpper(string(analysis.Severity)), humanize(analysis.ThreatType))
	if event.IPAddress != "" {
		return title + " from " + event.IPAddress
	}
	if event.UserEmail != "" {
		return title + " involving " + event.UserEmail
	}
	return title
}

func buildDescription(event *models.SecurityEvent, analysis *models.SecurityEventAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Security event %s of type %s (reported severity %s) scored %.1f/100 with %.0f%% confidence.",
		event.ID, event.Type, event.Severity, analysis.RiskScore, analysis.Confidence)
	if analysis.KnownThreat {
		b.WriteString(" Source IP matches an active threat indicator.")
	}
	if event.Details != "" {
		b.WriteString(" Details: ")
		b.WriteString(event.Details)
	}
	if len(analysis.Indicators) > 0 {
		b.WriteString(" Indicators: ")
		b.WriteString(strings.Join(analysis.Indicators, ", "))
	}
	return b.String()
}

func affectedSystems(event *models.SecurityEvent, threatType string) []string {
	systems := []string{"web-application"}
	if event.UserEmail != "" {
		systems = append(systems, "user-accounts")
	}
	switch threatType {
	case models.EventDataBreach, models.EventUnauthorizedAccess:
		systems = append(systems, "database")
	case models.EventDDoS:
		systems = append(systems, "network")
	case models.EventMalware:
		systems = append(systems, "file-storage")
	case models.EventPhishing:
		systems = append(systems, "email")
	}
	if host := event.MetadataString("host"); host != "" {
		systems = append(systems, host)
	}
	return systems
}

func humanize(threatType string) string {
	if threatType == "" {
		threatType = "unknown"
	}
	words := strings.Split(threatType, "_")
	for i, w := range words {
		if w == "ddos" {
			words[i] = "DDoS"
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
