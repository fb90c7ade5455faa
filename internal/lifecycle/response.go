package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinelir/internal/decision"
	"sentinelir/internal/logger"
	"sentinelir/internal/notify"
	"sentinelir/internal/store"
	"sentinelir/pkg/models"
)

// Category is the executor family a recommended step dispatches to.
type Category int

const (
	CategoryNone Category = iota
	CategoryBlock
	CategoryIsolate
	CategoryScan
	CategoryNotify
)

var categoryKeywords = []struct {
	keyword  string
	category Category
}{
	{"block", CategoryBlock},
	{"isolate", CategoryIsolate},
	{"scan", CategoryScan},
	{"notify", CategoryNotify},
}

func (c Category) String() string {
	switch c {
	case CategoryBlock:
		return "block"
	case CategoryIsolate:
		return "isolate"
	case CategoryScan:
		return "scan"
	case CategoryNotify:
		return "notify"
	default:
		return "none"
	}
}

// CategoryFor returns the executor category of a step. First keyword wins.
func CategoryFor(step string) Category {
	s := strings.ToLower(step)
	for _, k := range categoryKeywords {
		if strings.Contains(s, k.keyword) {
			return k.category
		}
	}
	return CategoryNone
}

// ManualStepType is the action type of steps no executor handles.
const ManualStepType = "manual_step"

// ActionTypeFor maps a step to the SecurityAction type the decision engine
// classifies.
func ActionTypeFor(step string) string {
	switch CategoryFor(step) {
	case CategoryBlock:
		return decision.IPBlock.String()
	case CategoryIsolate:
		return decision.AccessControlUpdate.String()
	case CategoryScan:
		return decision.ThreatDetection.String()
	case CategoryNotify:
		return decision.SuspiciousActivityResponse.String()
	default:
		return ManualStepType
	}
}

// ActionPriorityFor maps an incident priority to an action priority.
func ActionPriorityFor(p models.Priority) models.ActionPriority {
	switch p {
	case models.PriorityP1:
		return models.ActionPriorityCritical
	case models.PriorityP2:
		return models.ActionPriorityHigh
	case models.PriorityP3:
		return models.ActionPriorityMedium
	default:
		return models.ActionPriorityLow
	}
}

// ProposeActions turns the incident's recommended steps into actions for
// the decision engine.
func ProposeActions(inc *models.SecurityIncident, knownThreat bool, now time.Time) []*models.SecurityAction {
	out := make([]*models.SecurityAction, 0, len(inc.Actions))
	for _, step := range inc.Actions {
		out = append(out, &models.SecurityAction{
			ID:          uuid.NewString(),
			Type:        ActionTypeFor(step),
			Description: step,
			Priority:    ActionPriorityFor(inc.Priority),
			Timestamp:   now,
			Details: map[string]interface{}{
				"riskScore":   inc.RiskScore,
				"knownThreat": knownThreat,
				"incidentId":  inc.IncidentID,
			},
		})
	}
	return out
}

// Executor performs one category of response step.
type Executor interface {
	Execute(ctx context.Context, inc *models.SecurityIncident, step string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, inc *models.SecurityIncident, step string) error

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, inc *models.SecurityIncident, step string) error {
	return f(ctx, inc, step)
}

// Executors holds one executor per category. Nil entries make the step fail.
type Executors struct {
	Block   Executor
	Isolate Executor
	Scan    Executor
	Notify  Executor
}

func (e Executors) forCategory(c Category) Executor {
	switch c {
	case CategoryBlock:
		return e.Block
	case CategoryIsolate:
		return e.Isolate
	case CategoryScan:
		return e.Scan
	case CategoryNotify:
		return e.Notify
	}
	return nil
}

// BlockExecutor records every IP indicator of the incident as blocked.
type BlockExecutor struct {
	Store store.BlockedIPStore
	Actor string
	Now   func() time.Time
}

// Execute implements Executor.
func (b *BlockExecutor) Execute(ctx context.Context, inc *models.SecurityIncident, step string) error {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	for _, ip := range incidentIPs(inc) {
		rec := &models.BlockedIP{
			ID:         uuid.NewString(),
			IPAddress:  ip,
			Reason:     fmt.Sprintf("%s (%s)", step, inc.Title),
			IncidentID: inc.IncidentID,
			CreatedBy:  actorOrSystem(b.Actor),
			CreatedAt:  now(),
		}
		if err := b.Store.Create(ctx, rec); err != nil {
			return fmt.Errorf("block %s: %w", ip, err)
		}
		logger.Infof("blocked ip %s for incident %s", ip, inc.IncidentID)
	}
	return nil
}

func incidentIPs(inc *models.SecurityIncident) []string {
	var ips []string
	for _, ind := range inc.Indicators {
		if ip, ok := strings.CutPrefix(ind, "IP:"); ok && ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

// NotifyExecutor forwards the step to a notifier.
type NotifyExecutor struct {
	Notifier notify.Notifier
}

// Execute implements Executor.
func (n *NotifyExecutor) Execute(ctx context.Context, inc *models.SecurityIncident, step string) error {
	return n.Notifier.Notify(ctx, notify.FromIncident(inc, step, time.Now()))
}

// LogExecutor records the step in the process log. Isolation and scanning
// are carried out by external systems.
type LogExecutor struct {
	Category Category
}

// Execute implements Executor.
func (l LogExecutor) Execute(ctx context.Context, inc *models.SecurityIncident, step string) error {
	logger.Infof("%s requested for incident %s: %s", l.Category, inc.IncidentID, step)
	return nil
}

// ActionExecutionError reports a failed response step.
type ActionExecutionError struct {
	Step     string
	Category Category
	Err      error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %q (%s) failed: %v", e.Step, e.Category, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// ResponseReport summarizes ExecuteAutomatedResponse.
type ResponseReport struct {
	Executed []string
	Skipped  []string
	Failed   []*ActionExecutionError
}

// ExecuteAutomatedResponse runs each step through its executor and appends
// "Automated: <step>" on success. Failures are logged and collected; they
// never stop the remaining steps.
func (m *Manager) ExecuteAutomatedResponse(ctx context.Context, inc *models.SecurityIncident, steps []string, execs Executors, actor string) ResponseReport {
	var report ResponseReport
	for _, step := range steps {
		cat := CategoryFor(step)
		if cat == CategoryNone {
			report.Skipped = append(report.Skipped, step)
			continue
		}
		if err := m.executeStep(ctx, inc, step, cat, execs, actor); err != nil {
			execErr := &ActionExecutionError{Step: step, Category: cat, Err: err}
			logger.Errorf("incident %s: %v", inc.IncidentID, execErr)
			report.Failed = append(report.Failed, execErr)
			continue
		}
		report.Executed = append(report.Executed, step)
	}
	return report
}

func (m *Manager) executeStep(ctx context.Context, inc *models.SecurityIncident, step string, cat Category, execs Executors, actor string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	exec := execs.forCategory(cat)
	if exec == nil {
		return fmt.Errorf("no executor configured")
	}
	if err := exec.Execute(ctx, inc, step); err != nil {
		return err
	}
	return m.RecordAction(ctx, inc.IncidentID, "Automated: "+step, fmt.Sprintf("%s executor completed", cat), actor)
}
