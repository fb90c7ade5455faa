package rules

import (
	"strings"

	"sentinelir/pkg/models"
)

// Engine tags security events with matching detection rule titles.
type Engine interface {
	Apply(event *models.SecurityEvent) []string
}

// NoopEngine returns no matches.
type NoopEngine struct{}

// Apply returns an empty match list.
func (n *NoopEngine) Apply(event *models.SecurityEvent) []string {
	return nil
}

var levelRanks = map[string]int{
	"informational": 1,
	"low":           2,
	"medium":        3,
	"high":          4,
	"critical":      5,
}

// LevelRank orders Sigma levels from informational (1) to critical (5).
// Unknown levels rank 0.
func LevelRank(level string) int {
	return levelRanks[strings.ToLower(strings.TrimSpace(level))]
}
