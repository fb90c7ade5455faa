package decision

import "strings"

// AutonomousAction is an action type the engine may approve without a human.
type AutonomousAction int

const (
	IPBlock AutonomousAction = iota + 1
	UserSuspension
	UserBlock
	ThreatDetection
	MalwareQuarantine
	SuspiciousActivityResponse
	BruteForceProtection
	DDoSMitigation
	IntrusionPrevention
	SecurityRuleUpdate
	FirewallRuleAdd
	AccessControlUpdate
)

var autonomousNames = []struct {
	action AutonomousAction
	name   string
}{
	{IPBlock, "ip_block"},
	{UserSuspension, "user_suspension"},
	{UserBlock, "user_block"},
	{ThreatDetection, "threat_detection"},
	{MalwareQuarantine, "malware_quarantine"},
	{SuspiciousActivityResponse, "suspicious_activity_response"},
	{BruteForceProtection, "brute_force_protection"},
	{DDoSMitigation, "ddos_mitigation"},
	{IntrusionPrevention, "intrusion_prevention"},
	{SecurityRuleUpdate, "security_rule_update"},
	{FirewallRuleAdd, "firewall_rule_add"},
	{AccessControlUpdate, "access_control_update"},
}

func (a AutonomousAction) String() string {
	for _, n := range autonomousNames {
		if n.action == a {
			return n.name
		}
	}
	return "unknown"
}

// ApprovalAction is an infrastructure action that always needs a human.
type ApprovalAction int

const (
	SystemUpdate ApprovalAction = iota + 1
	DatabaseMigration
	ServiceRestart
	ConfigurationChange
	PermissionChange
	BackupRestore
	CertificateRenewal
	NetworkConfiguration
	ServerMaintenance
	ApplicationDeployment
)

var approvalNames = []struct {
	action ApprovalAction
	name   string
}{
	{SystemUpdate, "system_update"},
	{DatabaseMigration, "database_migration"},
	{ServiceRestart, "service_restart"},
	{ConfigurationChange, "configuration_change"},
	{PermissionChange, "permission_change"},
	{BackupRestore, "backup_restore"},
	{CertificateRenewal, "certificate_renewal"},
	{NetworkConfiguration, "network_configuration"},
	{ServerMaintenance, "server_maintenance"},
	{ApplicationDeployment, "application_deployment"},
}

func (a ApprovalAction) String() string {
	for _, n := range approvalNames {
		if n.action == a {
			return n.name
		}
	}
	return "unknown"
}

// Scope is the authorization tier of an action type.
type Scope int

const (
	ScopeUnknown Scope = iota
	ScopeApprovalRequired
	ScopeAutonomous
)

func (s Scope) String() string {
	switch s {
	case ScopeApprovalRequired:
		return "approval_required"
	case ScopeAutonomous:
		return "autonomous"
	default:
		return "unknown"
	}
}

// Classification is the resolved variant for a raw action type string.
// Exactly one of Approval or Autonomous is set unless Scope is ScopeUnknown.
type Classification struct {
	Scope      Scope
	Approval   ApprovalAction
	Autonomous AutonomousAction
}

// Classify resolves an action type. Matching is case-insensitive substring
// containment in either direction. The approval-required set is checked
// first so a type overlapping both sets is always human gated.
func Classify(actionType string) Classification {
	t := strings.ToLower(strings.TrimSpace(actionType))
	if t == "" {
		return Classification{Scope: ScopeUnknown}
	}
	for _, n := range approvalNames {
		if overlaps(t, n.name) {
			return Classification{Scope: ScopeApprovalRequired, Approval: n.action}
		}
	}
	for _, n := range autonomousNames {
		if overlaps(t, n.name) {
			return Classification{Scope: ScopeAutonomous, Autonomous: n.action}
		}
	}
	return Classification{Scope: ScopeUnknown}
}

// Name is the canonical type name the classification matched.
func (c Classification) Name() string {
	switch c.Scope {
	case ScopeApprovalRequired:
		return c.Approval.String()
	case ScopeAutonomous:
		return c.Autonomous.String()
	default:
		return "unknown"
	}
}

func overlaps(t, keyword string) bool {
	return strings.Contains(t, keyword) || strings.Contains(keyword, t)
}

// AutonomousTypes lists the autonomous-scope type names.
func AutonomousTypes() []string {
	out := make([]string, len(autonomousNames))
	for i, n := range autonomousNames {
		out[i] = n.name
	}
	return out
}

// ApprovalTypes lists the approval-required type names.
func ApprovalTypes() []string {
	out := make([]string, len(approvalNames))
	for i, n := range approvalNames {
		out[i] = n.name
	}
	return out
}
