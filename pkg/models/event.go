package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is a five-level severity tier.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity normalizes a severity string. Unknown values map to info.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Event types reported by the ingestion side.
const (
	EventFailedLogin        = "failed_login"
	EventSuspiciousActivity = "suspicious_activity"
	EventUnauthorizedAccess = "unauthorized_access"
	EventDataBreach         = "data_breach"
	EventMalware            = "malware"
	EventPhishing           = "phishing"
	EventDDoS               = "ddos"
)

// SecurityEvent is a security event as recorded by the ingestion collaborator.
type SecurityEvent struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Severity   Severity               `json:"severity"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	UserEmail  string                 `json:"user_email,omitempty"`
	Location   string                 `json:"location,omitempty"`
	Details    string                 `json:"details,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	IncidentID string                 `json:"incident_id,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// MetadataString returns a metadata value rendered as a string.
func (e *SecurityEvent) MetadataString(key string) string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	v, ok := e.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
