package models

// Indicator kinds.
const (
	IndicatorIP     = "ip"
	IndicatorDomain = "domain"
	IndicatorEmail  = "email"
	IndicatorHash   = "hash"
)

// ThreatIndicatorEntry is a known-bad value with its classification.
type ThreatIndicatorEntry struct {
	Kind       string   `json:"kind" yaml:"kind"`
	Value      string   `json:"value" yaml:"value"`
	ThreatType string   `json:"threat_type" yaml:"threat_type"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	IsActive   bool     `json:"is_active" yaml:"is_active"`
}

// Key returns the catalog key kind:value.
func (t ThreatIndicatorEntry) Key() string {
	return IndicatorKey(t.Kind, t.Value)
}

// IndicatorKey builds the catalog key for a kind and value.
func IndicatorKey(kind, value string) string {
	return kind + ":" + value
}

// Playbook is an ordered remediation procedure for a category and severity.
type Playbook struct {
	Category string   `json:"category" yaml:"category"`
	Severity Severity `json:"severity" yaml:"severity"`
	Name     string   `json:"name" yaml:"name"`
	Steps    []string `json:"steps" yaml:"steps"`
	IsActive bool     `json:"is_active" yaml:"is_active"`
}

// Key returns the catalog key category:severity.
func (p Playbook) Key() string {
	return PlaybookKey(p.Category, p.Severity)
}

// PlaybookKey builds the catalog key for a category and severity.
func PlaybookKey(category string, severity Severity) string {
	return category + ":" + string(severity)
}
