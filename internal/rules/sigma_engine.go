package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"sentinelir/pkg/models"
)

// Log sources accepted by the engine, matched against the rule's logsource
// product or category. Rules that name neither are accepted too.
var supportedSources = map[string]struct{}{
	"webapp":      {},
	"application": {},
	"storefront":  {},
	"webserver":   {},
}

// fieldAliases exposes event fields under the names common web server Sigma
// rules use.
var fieldAliases = map[string]string{
	"c-ip":          "ip_address",
	"cs-user-agent": "user_agent",
	"cs-username":   "user_email",
}

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type skipReason int

const (
	keep skipReason = iota
	skipDatasource
	skipComplex
)

type compiledSigmaRule struct {
	eval  *sigmaevaluator.RuleEvaluator
	title string
	level string
}

// SigmaEngine evaluates single-event Sigma rules against security events.
type SigmaEngine struct {
	rules []compiledSigmaRule
}

// NewSigmaEngine loads Sigma rules from a file or directory. Rules for other
// log sources, correlation rules and keyword searches are skipped and
// counted in the stats.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	files, err := collectRuleFiles(path)
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	engine := &SigmaEngine{rules: make([]compiledSigmaRule, 0, len(files))}
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		switch classifyRule(rule) {
		case skipDatasource:
			stats.SkippedDatasource++
			continue
		case skipComplex:
			stats.SkippedComplex++
			continue
		}
		engine.rules = append(engine.rules, compiledSigmaRule{
			eval:  sigmaevaluator.ForRule(rule),
			title: ruleTitle(rule),
			level: strings.ToLower(strings.TrimSpace(rule.Level)),
		})
		stats.Loaded++
	}
	return engine, stats, nil
}

// Apply returns the titles of matched rules in load order.
func (e *SigmaEngine) Apply(event *models.SecurityEvent) []string {
	if e == nil || event == nil || len(e.rules) == 0 {
		return nil
	}

	fields := eventFields(event)
	ctx := context.Background()
	var matched []string
	for _, rule := range e.rules {
		res, err := rule.eval.Matches(ctx, fields)
		if err == nil && res.Match {
			matched = append(matched, rule.title)
		}
	}
	return matched
}

// DropBelow removes rules whose level ranks below min and returns how many
// were removed. Rules without a level are kept.
func (e *SigmaEngine) DropBelow(min string) int {
	floor := LevelRank(min)
	if floor == 0 {
		return 0
	}
	kept := e.rules[:0]
	for _, r := range e.rules {
		if r.level == "" || LevelRank(r.level) >= floor {
			kept = append(kept, r)
		}
	}
	dropped := len(e.rules) - len(kept)
	e.rules = kept
	return dropped
}

// Len reports the number of loaded rules.
func (e *SigmaEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

func collectRuleFiles(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}
	if !info.IsDir() {
		if !isYAMLFile(resolved) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		return []string{resolved}, nil
	}

	var files []string
	err = filepath.WalkDir(resolved, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && isYAMLFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func ruleTitle(rule sigma.Rule) string {
	if t := strings.TrimSpace(rule.Title); t != "" {
		return t
	}
	return strings.TrimSpace(rule.ID)
}

func classifyRule(rule sigma.Rule) skipReason {
	if !acceptsSource(rule.Logsource) {
		return skipDatasource
	}
	if rule.Detection.Timeframe > 0 {
		return skipComplex
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil || !plainExpression(cond.Search) {
			return skipComplex
		}
	}
	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 || len(search.EventMatchers) == 0 {
			return skipComplex
		}
	}
	return keep
}

func acceptsSource(src sigma.Logsource) bool {
	product := strings.ToLower(strings.TrimSpace(src.Product))
	category := strings.ToLower(strings.TrimSpace(src.Category))
	if product == "" && category == "" {
		return true
	}
	if _, ok := supportedSources[product]; ok {
		return true
	}
	_, ok := supportedSources[category]
	return ok
}

// plainExpression rejects near/aggregation style conditions the evaluator
// cannot answer from one event.
func plainExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.Not:
		return plainExpression(e.Expr)
	case sigma.And:
		return allPlain(e)
	case sigma.Or:
		return allPlain(e)
	}
	return false
}

func allPlain(exprs []sigma.SearchExpr) bool {
	for _, child := range exprs {
		if !plainExpression(child) {
			return false
		}
	}
	return true
}

func eventFields(event *models.SecurityEvent) map[string]interface{} {
	fields := make(map[string]interface{}, len(event.Metadata)+len(fieldAliases)+7)
	for k, v := range event.Metadata {
		fields[k] = v
	}
	fields["type"] = event.Type
	fields["severity"] = string(event.Severity)
	fields["ip_address"] = event.IPAddress
	fields["user_agent"] = event.UserAgent
	fields["user_email"] = event.UserEmail
	fields["location"] = event.Location
	fields["details"] = event.Details
	for alias, field := range fieldAliases {
		if _, taken := fields[alias]; !taken {
			fields[alias] = fields[field]
		}
	}
	return fields
}
