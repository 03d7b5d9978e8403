// Package constants provides named constants used throughout the qiflow codebase.
// This centralizes identifiers shared by configuration, scoring and the outer surfaces.
package constants

// Configuration file locations.
const (
	// ConfigDirName is the per-user directory under $HOME holding config and logs.
	ConfigDirName = ".qiflow"

	// ConfigFileName is the YAML file loaded from ConfigDirName.
	ConfigFileName = "config.yaml"

	// DecisionLogFileName is the JSONL file written by the decision logger.
	DecisionLogFileName = "decisions.jsonl"

	// ResultsDBFileName is the default SQLite database for batch runs.
	ResultsDBFileName = "results.db"

	// AuditLogFileName is the JSONL file recording MCP tool invocations.
	AuditLogFileName = "audit.jsonl"
)

// Engine bounds.
const (
	// MaxIterations caps flow.iterations so a single analysis stays cheap.
	MaxIterations = 64

	// HardMaxSamples caps probabilistic sampling regardless of configuration.
	HardMaxSamples = 4096
)

// Ten-god category names, by cyclic offset from the day master's element.
const (
	TenGodSelf     = "self"     // same element
	TenGodOutput   = "output"   // day master generates it
	TenGodWealth   = "wealth"   // day master controls it
	TenGodOfficer  = "officer"  // it controls the day master
	TenGodResource = "resource" // it generates the day master
)

// tenGodsByOffset is indexed by (element - day master element) mod 5.
var tenGodsByOffset = [5]string{TenGodSelf, TenGodOutput, TenGodWealth, TenGodOfficer, TenGodResource}

// TenGodAt returns the ten-god name for a cyclic offset in [0, 5).
func TenGodAt(offset int) string {
	return tenGodsByOffset[((offset%5)+5)%5]
}

// TenGods lists every ten-god name in offset order.
func TenGods() []string {
	return tenGodsByOffset[:]
}

// IsTenGod reports whether name is a recognized ten-god category.
func IsTenGod(name string) bool {
	for _, g := range tenGodsByOffset {
		if g == name {
			return true
		}
	}
	return false
}

// Domain names for the three domain scores.
const (
	DomainCareer       = "career"
	DomainWealth       = "wealth"
	DomainRelationship = "relationship"
)

// Domains lists the domains in reporting order.
func Domains() []string {
	return []string{DomainCareer, DomainWealth, DomainRelationship}
}

// Wealth opportunity levels reported by the wealth index.
const (
	OpportunityHigh     = "High"
	OpportunityModerate = "Moderate"
	OpportunityLimited  = "Limited"
	OpportunityLow      = "Low"
)

// Opportunity thresholds on the 0-100 wealth index.
const (
	OpportunityHighThreshold     = 80.0
	OpportunityModerateThreshold = 60.0
	OpportunityLimitedThreshold  = 40.0
)

// Trigger prefixes. Every trigger string starts with one of these so consumers
// can match on the event kind and read the rest as detail.
const (
	TriggerVaultOpened       = "vault opened"
	TriggerVaultBroken       = "vault broken"
	TriggerPhaseChange       = "phase-change block"
	TriggerInverseControl    = "inverse control"
	TriggerStemCombination   = "stem combination"
	TriggerBranchCombination = "branch combination"
	TriggerTrine             = "trine"
	TriggerTransmutation     = "transmutation"
	TriggerClash             = "clash"
	TriggerPunishment        = "punishment"
	TriggerHarm              = "harm"
	TriggerFollower          = "follower pattern"
)

// MCP tool names.
const (
	ToolAnalyze = "qiflow_analyze"
	ToolWealth  = "qiflow_wealth"
	ToolGraph   = "qiflow_graph"
	ToolSample  = "qiflow_sample"
)
