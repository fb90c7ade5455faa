package scorer

import (
	"math"
	"strings"
	"time"

	"sentinelir/internal/catalog"
	"sentinelir/pkg/models"
)

// ThreatUnknown is the classification when no keyword matches.
const ThreatUnknown = "unknown"

var baseScores = map[string]float64{
	models.EventFailedLogin:        20,
	models.EventSuspiciousActivity: 40,
	models.EventUnauthorizedAccess: 60,
	models.EventDataBreach:         80,
	models.EventMalware:            90,
	models.EventPhishing:           70,
	models.EventDDoS:               85,
}

const unknownTypeScore = 10

var severityMultipliers = map[models.Severity]float64{
	models.SeverityCritical: 1.5,
	models.SeverityHigh:     1.2,
	models.SeverityMedium:   1.0,
	models.SeverityLow:      0.8,
	models.SeverityInfo:     0.5,
}

var suspiciousAgents = []string{"bot", "crawler", "scanner", "hack", "exploit", "sqlmap", "nikto", "nmap", "masscan"}

type threatKeywords struct {
	category string
	keywords []string
}

// Declaration order is match priority.
var threatTable = []threatKeywords{
	{models.EventMalware, []string{"malware", "virus", "trojan", "ransomware"}},
	{models.EventPhishing, []string{"phishing", "spoof", "fake", "credential"}},
	{models.EventDDoS, []string{"ddos", "flood", "overload", "attack"}},
	{models.EventDataBreach, []string{"breach", "leak", "exfiltrat", "unauthorized_access"}},
	{models.EventSuspiciousActivity, []string{"suspicious", "anomaly", "unusual", "strange"}},
	{models.EventFailedLogin, []string{"failed_login", "brute_force", "password"}},
	{models.EventUnauthorizedAccess, []string{"unauthorized", "privilege", "escalation"}},
}

var metadataIndicators = []struct {
	key   string
	label string
}{
	{"url", "URL"},
	{"domain", "Domain"},
	{"hash", "Hash"},
}

const (
	knownThreatBoost  = 30
	suspiciousUABoost = 15
	geoAnomalyBoost   = 20
	offHoursBoost     = 10

	businessStartHour = 6
	businessEndHour   = 22
)

// Config controls scorer heuristics.
type Config struct {
	// KnownRegions is the allow-list of expected locations. An empty list
	// disables the geographic anomaly boost.
	KnownRegions []string
	// Location is the time zone for the off-hours check. Defaults to time.Local.
	Location *time.Location
}

// Result is the scoring output for one event.
type Result struct {
	RiskScore   float64
	Severity    models.Severity
	ThreatType  string
	Indicators  []string
	Confidence  float64
	KnownThreat bool
}

// Scorer computes heuristic risk scores for security events. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	regions  map[string]struct{}
	location *time.Location
}

// New creates a scorer.
func New(cfg Config) *Scorer {
	regions := make(map[string]struct{}, len(cfg.KnownRegions))
	for _, r := range cfg.KnownRegions {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			regions[r] = struct{}{}
		}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Scorer{regions: regions, location: loc}
}

// Score scores event against the catalog snapshot.
func (s *Scorer) Score(event *models.SecurityEvent, snap *catalog.Snapshot) Result {
	knownThreat := snap.IsKnownThreatIP(event.IPAddress)

	score := baseScore(event.Type) * severityMultiplier(event.Severity)
	if knownThreat {
		score += knownThreatBoost
	}
	if IsSuspiciousUserAgent(event.UserAgent) {
		score += suspiciousUABoost
	}
	if s.isGeoAnomaly(event.Location) {
		score += geoAnomalyBoost
	}
	if s.isOffHours(event.CreatedAt) {
		score += offHoursBoost
	}
	score = clamp(score, 0, 100)

	tier := SeverityForScore(score)
	indicators := ExtractIndicators(event)

	return Result{
		RiskScore:   score,
		Severity:    tier,
		ThreatType:  ClassifyThreat(event.Type, event.Details),
		Indicators:  indicators,
		Confidence:  confidence(len(indicators), knownThreat, tier),
		KnownThreat: knownThreat,
	}
}

func baseScore(eventType string) float64 {
	if v, ok := baseScores[strings.ToLower(strings.TrimSpace(eventType))]; ok {
		return v
	}
	return unknownTypeScore
}

func severityMultiplier(sev models.Severity) float64 {
	return severityMultipliers[models.ParseSeverity(string(sev))]
}

// IsSuspiciousUserAgent reports whether ua contains a scanner or bot marker.
func IsSuspiciousUserAgent(ua string) bool {
	lower := strings.ToLower(ua)
	if lower == "" {
		return false
	}
	for _, marker := range suspiciousAgents {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (s *Scorer) isGeoAnomaly(location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" || len(s.regions) == 0 {
		return false
	}
	_, known := s.regions[loc]
	return !known
}

func (s *Scorer) isOffHours(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	hour := ts.In(s.location).Hour()
	return hour < businessStartHour || hour >= businessEndHour
}

// SeverityForScore maps a 0-100 score to its tier.
func SeverityForScore(score float64) models.Severity {
	switch {
	case score >= 80:
		return models.SeverityCritical
	case score >= 60:
		return models.SeverityHigh
	case score >= 40:
		return models.SeverityMedium
	case score >= 20:
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}

// ClassifyThreat returns the first threat category whose keywords occur in
// the event type or details.
func ClassifyThreat(eventType, details string) string {
	text := strings.ToLower(eventType + " " + details)
	for _, entry := range threatTable {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.category
			}
		}
	}
	return ThreatUnknown
}

// ExtractIndicators lists the observable values carried by the event in a
// fixed field order.
func ExtractIndicators(event *models.SecurityEvent) []string {
	out := make([]string, 0, 7)
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			out = append(out, label+":"+value)
		}
	}
	add("IP", event.IPAddress)
	add("UserAgent", event.UserAgent)
	add("Email", event.UserEmail)
	add("Location", event.Location)
	for _, m := range metadataIndicators {
		add(m.label, event.MetadataString(m.key))
	}
	return out
}

func confidence(indicators int, knownThreat bool, tier models.Severity) float64 {
	c := 50 + 5*float64(indicators)
	if knownThreat {
		c += 20
	}
	if tier == models.SeverityLow || tier == models.SeverityInfo {
		c -= 20
	}
	return clamp(c, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
