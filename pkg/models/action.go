package models

import (
	"strings"
	"time"
)

// ActionPriority is the urgency attached to a proposed action.
type ActionPriority string

const (
	ActionPriorityLow      ActionPriority = "low"
	ActionPriorityMedium   ActionPriority = "medium"
	ActionPriorityHigh     ActionPriority = "high"
	ActionPriorityCritical ActionPriority = "critical"
)

// ParseActionPriority normalizes a priority string. Unknown values map to low.
func ParseActionPriority(s string) ActionPriority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return ActionPriorityCritical
	case "high":
		return ActionPriorityHigh
	case "medium":
		return ActionPriorityMedium
	default:
		return ActionPriorityLow
	}
}

// SecurityAction is a proposed remediation step awaiting a decision.
type SecurityAction struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Priority    ActionPriority         `json:"priority"`
	Timestamp   time.Time              `json:"timestamp"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// DecisionResult is the disposition of a proposed action.
type DecisionResult struct {
	Approved              bool    `json:"approved"`
	Reason                string  `json:"reason"`
	Confidence            float64 `json:"confidence"`
	RequiresHumanApproval bool    `json:"requires_human_approval"`
	ActionTaken           string  `json:"action_taken"`
}
