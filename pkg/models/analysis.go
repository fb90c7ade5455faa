package models

// SecurityEventAnalysis is the scoring result for one event.
type SecurityEventAnalysis struct {
	EventID              string   `json:"event_id,omitempty"`
	RiskScore            float64  `json:"risk_score"`
	Severity             Severity `json:"severity"`
	ReportedSeverity     Severity `json:"reported_severity"`
	ThreatType           string   `json:"threat_type"`
	Indicators           []string `json:"indicators"`
	RecommendedActions   []string `json:"recommended_actions"`
	PlaybookID           string   `json:"playbook_id,omitempty"`
	MatchedRules         []string `json:"matched_rules,omitempty"`
	KnownThreat          bool     `json:"known_threat"`
	ShouldCreateIncident bool     `json:"should_create_incident"`
	Confidence           float64  `json:"confidence"`
}
