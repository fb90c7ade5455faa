// Package decision decides whether a proposed remediation action may run
// without a human.
package decision

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"sentinelir/internal/logger"
	"sentinelir/pkg/models"
)

// Dispositions reported in DecisionResult.ActionTaken.
const (
	TakenAutonomous = "Approved for autonomous execution"
	TakenQueued     = "Queued for admin approval"
)

const (
	baseActionRisk      = 0.5
	mediumRiskThreshold = 0.6

	confidenceApprovalGate = 1.0
	confidenceHighPriority = 0.95
	confidenceMediumRisk   = 0.85
	confidenceLowRisk      = 0.7
	confidenceUnknown      = 0.5
)

var typeRiskIncrements = []struct {
	keyword string
	delta   float64
}{
	{"ip_block", 0.3},
	{"user_suspension", 0.4},
	{"threat_detection", 0.2},
	{"brute_force", 0.4},
	{"ddos", 0.5},
}

var detailRiskFlags = []struct {
	key   string
	delta float64
}{
	{"multipleAttempts", 0.2},
	{"suspiciousPattern", 0.3},
	{"knownThreat", 0.4},
}

// Engine applies the two-tier authorization model. It is stateless and safe
// for concurrent use.
type Engine struct{}

// NewEngine creates a decision engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Decide classifies a proposed action. Only autonomous-scope types can ever
// be approved; within that scope approval depends on priority and risk.
func (e *Engine) Decide(action *models.SecurityAction) models.DecisionResult {
	class := Classify(action.Type)
	logger.Debugf("Action %s type %q classified as %s (%s)", action.ID, action.Type, class.Name(), class.Scope)

	switch class.Scope {
	case ScopeApprovalRequired:
		return models.DecisionResult{
			Approved:              false,
			Reason:                "System configuration change requires admin approval",
			Confidence:            confidenceApprovalGate,
			RequiresHumanApproval: true,
			ActionTaken:           TakenQueued,
		}
	case ScopeAutonomous:
		return decideAutonomous(action, ActionRisk(action))
	default:
		return models.DecisionResult{
			Approved:              false,
			Reason:                "Unknown action type",
			Confidence:            confidenceUnknown,
			RequiresHumanApproval: true,
			ActionTaken:           TakenQueued,
		}
	}
}

func decideAutonomous(action *models.SecurityAction, risk float64) models.DecisionResult {
	priority := models.ParseActionPriority(string(action.Priority))

	switch {
	case priority == models.ActionPriorityHigh || priority == models.ActionPriorityCritical:
		return models.DecisionResult{
			Approved:    true,
			Reason:      fmt.Sprintf("%s priority security action within autonomous scope (risk %.2f): autonomous approval granted", priority, risk),
			Confidence:  confidenceHighPriority,
			ActionTaken: TakenAutonomous,
		}
	case priority == models.ActionPriorityMedium && risk >= mediumRiskThreshold:
		return models.DecisionResult{
			Approved:    true,
			Reason:      fmt.Sprintf("medium priority security action with elevated risk %.2f: autonomous approval granted", risk),
			Confidence:  confidenceMediumRisk,
			ActionTaken: TakenAutonomous,
		}
	default:
		return models.DecisionResult{
			Approved:              false,
			Reason:                fmt.Sprintf("Low priority or low risk (%.2f) security action requires admin approval", risk),
			Confidence:            confidenceLowRisk,
			RequiresHumanApproval: true,
			ActionTaken:           TakenQueued,
		}
	}
}

// ActionRisk scores a proposed action on [0, 1].
func ActionRisk(action *models.SecurityAction) float64 {
	t := strings.ToLower(action.Type)
	risk := baseActionRisk
	for _, inc := range typeRiskIncrements {
		if strings.Contains(t, inc.keyword) {
			risk += inc.delta
		}
	}

	if v, ok := numberDetail(action.Details, "riskScore"); ok {
		risk = math.Max(risk, v/100)
	}
	for _, flag := range detailRiskFlags {
		if boolDetail(action.Details, flag.key) {
			risk += flag.delta
		}
	}

	if math.IsNaN(risk) {
		return baseActionRisk
	}
	return math.Max(0, math.Min(1, risk))
}

func numberDetail(details map[string]interface{}, key string) (float64, bool) {
	v, ok := details[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boolDetail(details map[string]interface{}, key string) bool {
	v, ok := details[key]
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}
