// Package notify delivers incident notifications raised by the Notify
// response executor.
package notify

import (
	"context"
	"time"

	"sentinelir/internal/logger"
	"sentinelir/pkg/models"
)

// Notification is the payload sent for one Notify step.
type Notification struct {
	IncidentID string          `json:"incident_id"`
	Title      string          `json:"title"`
	Type       string          `json:"type"`
	Severity   models.Severity `json:"severity"`
	Priority   models.Priority `json:"priority"`
	RiskScore  float64         `json:"risk_score"`
	Action     string          `json:"action"`
	Timestamp  time.Time       `json:"timestamp"`
}

// FromIncident builds a notification for action on inc.
func FromIncident(inc *models.SecurityIncident, action string, now time.Time) Notification {
	return Notification{
		IncidentID: inc.IncidentID,
		Title:      inc.Title,
		Type:       inc.Type,
		Severity:   inc.Severity,
		Priority:   inc.Priority,
		RiskScore:  inc.RiskScore,
		Action:     action,
		Timestamp:  now,
	}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger.Infof("notification: incident=%s severity=%s action=%q", n.IncidentID, n.Severity, n.Action)
	return nil
}

// Close implements Notifier.
func (LogNotifier) Close() error { return nil }
