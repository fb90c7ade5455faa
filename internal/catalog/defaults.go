package catalog

import "sentinelir/pkg/models"

// DefaultIndicators is the built-in threat indicator table used when the
// threat-intel store cannot be read.
func DefaultIndicators() []models.ThreatIndicatorEntry {
	return []models.ThreatIndicatorEntry{
		{Kind: models.IndicatorIP, Value: "203.0.113.10", ThreatType: models.EventFailedLogin, Severity: models.SeverityHigh, Confidence: 85, IsActive: true},
		{Kind: models.IndicatorIP, Value: "203.0.113.66", ThreatType: models.EventDDoS, Severity: models.SeverityCritical, Confidence: 90, IsActive: true},
		{Kind: models.IndicatorIP, Value: "198.51.100.23", ThreatType: models.EventSuspiciousActivity, Severity: models.SeverityMedium, Confidence: 70, IsActive: true},
		{Kind: models.IndicatorDomain, Value: "login-verify-account.example", ThreatType: models.EventPhishing, Severity: models.SeverityHigh, Confidence: 80, IsActive: true},
		{Kind: models.IndicatorEmail, Value: "billing@login-verify-account.example", ThreatType: models.EventPhishing, Severity: models.SeverityHigh, Confidence: 75, IsActive: true},
		{Kind: models.IndicatorHash, Value: "44d88612fea8a8f36de82e1278abb02f", ThreatType: models.EventMalware, Severity: models.SeverityCritical, Confidence: 95, IsActive: true},
	}
}

// DefaultPlaybooks is the built-in playbook table used when the playbook
// store cannot be read.
func DefaultPlaybooks() []models.Playbook {
	return []models.Playbook{
		{
			Category: models.EventMalware,
			Severity: models.SeverityCritical,
			Name:     "Malware containment",
			Steps: []string{
				"Isolate infected hosts",
				"Block malicious file hashes",
				"Scan file storage for related samples",
				"Notify security team",
			},
			IsActive: true,
		},
		{
			Category: models.EventDDoS,
			Severity: models.SeverityCritical,
			Name:     "DDoS mitigation",
			Steps: []string{
				"Block attacking IP ranges",
				"Notify infrastructure provider",
				"Scan edge logs for secondary vectors",
			},
			IsActive: true,
		},
		{
			Category: models.EventDataBreach,
			Severity: models.SeverityCritical,
			Name:     "Data breach response",
			Steps: []string{
				"Isolate compromised systems",
				"Preserve evidence",
				"Notify data protection officer",
				"Scan for exfiltration channels",
			},
			IsActive: true,
		},
		{
			Category: models.EventPhishing,
			Severity: models.SeverityHigh,
			Name:     "Phishing takedown",
			Steps: []string{
				"Block sender domain",
				"Scan mailboxes for related messages",
				"Notify affected users",
			},
			IsActive: true,
		},
	}
}

// Defaults returns a degraded snapshot built only from the built-in tables.
func Defaults() *Snapshot {
	s := NewSnapshot(DefaultIndicators(), DefaultPlaybooks())
	s.degraded = true
	return s
}
