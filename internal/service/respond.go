package service

import (
	"context"
	"fmt"

	"sentinelir/internal/lifecycle"
	"sentinelir/pkg/models"
)

// ResponseSummary is the outcome of Respond.
type ResponseSummary struct {
	Decisions map[string]models.DecisionResult
	Executed  []string
	Pending   []string
	Skipped   []string
	Failed    []*lifecycle.ActionExecutionError
}

// Respond decides every recommended step of inc, executes the approved ones
// and records the rest as pending approval on the timeline.
func (s *Service) Respond(ctx context.Context, inc *models.SecurityIncident, knownThreat bool) (*ResponseSummary, error) {
	summary := &ResponseSummary{Decisions: make(map[string]models.DecisionResult)}

	var approved []string
	for _, action := range lifecycle.ProposeActions(inc, knownThreat, s.now()) {
		res, err := s.DecideAction(ctx, action)
		if err != nil {
			return summary, err
		}
		summary.Decisions[action.Description] = res
		if res.Approved {
			approved = append(approved, action.Description)
			continue
		}
		summary.Pending = append(summary.Pending, action.Description)
		if err := s.lifecycle.RecordAction(ctx, inc.IncidentID, "Pending Approval: "+action.Description, res.Reason, s.actor); err != nil {
			s.metrics.IncPersistenceError("append_timeline")
			return summary, &PersistenceError{Op: "append_timeline", Incident: inc, Stored: true, Err: err}
		}
	}

	report := s.lifecycle.ExecuteAutomatedResponse(ctx, inc, approved, s.executors, s.actor)
	summary.Executed = report.Executed
	summary.Skipped = report.Skipped
	summary.Failed = report.Failed
	for _, step := range report.Executed {
		s.metrics.IncAction(lifecycle.CategoryFor(step).String(), "ok")
	}
	for _, f := range report.Failed {
		s.metrics.IncAction(f.Category.String(), "error")
	}
	return summary, nil
}

// String renders a one-line summary for logs.
func (r *ResponseSummary) String() string {
	return fmt.Sprintf("executed=%d pending=%d skipped=%d failed=%d", len(r.Executed), len(r.Pending), len(r.Skipped), len(r.Failed))
}
