package agent

import (
	"fmt"
	"sort"

	"github.com/steveyegge/jury/internal/types"
)

// Rule computes the score delta a receiving agent applies to itself
// after reading a peer's findings. senderFindings is the notifying
// agent's evidence; self is the receiver's own result, read-only from
// the rule's perspective. The note explains the decision and becomes
// the response message text, whether or not a delta was applied.
type Rule func(senderFindings []types.Finding, self *types.AgentResult) (delta float64, note string)

// Edge identifies one directed adjustment relationship.
type Edge struct {
	From types.AgentID
	To   types.AgentID
}

func (e Edge) String() string {
	return fmt.Sprintf("%s->%s", e.From, e.To)
}

// Policy is the table of adjustment rules keyed by (sender, receiver).
// The negotiation protocol stays data-driven: adding an agent means
// adding rows here and edges to the graph, not new message handling.
type Policy struct {
	rules map[Edge]Rule
}

// NewPolicy returns an empty policy table.
func NewPolicy() *Policy {
	return &Policy{rules: make(map[Edge]Rule)}
}

// Add registers the rule for one directed edge, replacing any existing
// rule on that edge.
func (p *Policy) Add(from, to types.AgentID, rule Rule) {
	p.rules[Edge{From: from, To: to}] = rule
}

// Rule returns the rule for the given edge.
func (p *Policy) Rule(from, to types.AgentID) (Rule, bool) {
	r, ok := p.rules[Edge{From: from, To: to}]
	return r, ok
}

// RulesFor returns the inbound rules for one receiving agent, keyed by
// sender. The map is a copy.
func (p *Policy) RulesFor(to types.AgentID) map[types.AgentID]Rule {
	rules := make(map[types.AgentID]Rule)
	for edge, r := range p.rules {
		if edge.To == to {
			rules[edge.From] = r
		}
	}
	return rules
}

// Edges returns every edge in the table, sorted for stable iteration.
func (p *Policy) Edges() []Edge {
	edges := make([]Edge, 0, len(p.rules))
	for e := range p.rules {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// PolicyConfig holds the penalty constants for the default rules.
// Penalties are positive magnitudes; rules negate them.
type PolicyConfig struct {
	// SecretPenalty is deducted from the quality score per secret hit.
	SecretPenalty float64 `json:"secret_penalty"`
	// SecretPenaltyCap bounds the total secret deduction on quality.
	SecretPenaltyCap float64 `json:"secret_penalty_cap"`
	// DocsSecurityGapPenalty is deducted from the documentation score
	// once when secrets were found and the docs offer no security
	// guidance.
	DocsSecurityGapPenalty float64 `json:"docs_security_gap_penalty"`
	// DocsMissingTestsPenalty is deducted from the documentation score
	// once when the repository has no tests to document.
	DocsMissingTestsPenalty float64 `json:"docs_missing_tests_penalty"`
}

// DefaultPolicyConfig returns the standard penalty constants.
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		SecretPenalty:           5,
		SecretPenaltyCap:        25,
		DocsSecurityGapPenalty:  5,
		DocsMissingTestsPenalty: 5,
	}
}

// Validate checks that the constants are usable.
func (c *PolicyConfig) Validate() error {
	if c.SecretPenalty < 0 || c.SecretPenaltyCap < 0 ||
		c.DocsSecurityGapPenalty < 0 || c.DocsMissingTestsPenalty < 0 {
		return types.NewConfigurationError("penalty constants must be non-negative")
	}
	if c.SecretPenaltyCap < c.SecretPenalty {
		return types.NewConfigurationError("secret penalty cap %.1f is below the per-finding penalty %.1f",
			c.SecretPenaltyCap, c.SecretPenalty)
	}
	return nil
}

// DefaultPolicy builds the standard three-agent adjustment table:
//
//	security -> quality:        -SecretPenalty per secret hit, capped
//	security -> documentation:  -DocsSecurityGapPenalty once, when secrets
//	                            were found and security guidance is absent
//	quality  -> documentation:  -DocsMissingTestsPenalty once, when the
//	                            repository has no tests
//
// Each deduction is capped independently; a rule never fires twice for
// the same sender within a run.
func DefaultPolicy(cfg *PolicyConfig) (*Policy, error) {
	if cfg == nil {
		cfg = DefaultPolicyConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := NewPolicy()
	p.Add(types.AgentSecurity, types.AgentQuality, secretExposureRule(cfg))
	p.Add(types.AgentSecurity, types.AgentDocumentation, securityGuidanceRule(cfg))
	p.Add(types.AgentQuality, types.AgentDocumentation, missingTestsRule(cfg))
	return p, nil
}

func secretExposureRule(cfg *PolicyConfig) Rule {
	perHit := cfg.SecretPenalty
	limit := cfg.SecretPenaltyCap
	return func(senderFindings []types.Finding, self *types.AgentResult) (float64, string) {
		hits := types.CountFindings(senderFindings, types.FindingSecretHits)
		if hits == 0 {
			return 0, "no secrets reported, quality score unchanged"
		}
		penalty := float64(hits) * perHit
		if penalty > limit {
			penalty = limit
		}
		note := fmt.Sprintf("adjusted quality score down by %.1f points due to %d security finding(s)", penalty, hits)
		return -penalty, note
	}
}

func securityGuidanceRule(cfg *PolicyConfig) Rule {
	penalty := cfg.DocsSecurityGapPenalty
	return func(senderFindings []types.Finding, self *types.AgentResult) (float64, string) {
		hits := types.CountFindings(senderFindings, types.FindingSecretHits)
		if hits == 0 {
			return 0, "no secrets reported, documentation score unchanged"
		}
		if self.FindingCount(types.FindingMissingSecurityDocs) == 0 {
			return 0, "secrets reported but security guidance is documented, no deduction"
		}
		note := fmt.Sprintf("adjusted documentation score down by %.1f points: %d secret(s) found and no security guidance documented", penalty, hits)
		return -penalty, note
	}
}

func missingTestsRule(cfg *PolicyConfig) Rule {
	penalty := cfg.DocsMissingTestsPenalty
	return func(senderFindings []types.Finding, self *types.AgentResult) (float64, string) {
		if types.CountFindings(senderFindings, types.FindingMissingTests) == 0 {
			return 0, "tests present, documentation score unchanged"
		}
		note := fmt.Sprintf("adjusted documentation score down by %.1f points: repository has no tests to document", penalty)
		return -penalty, note
	}
}
