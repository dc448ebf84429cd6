package models

// Severity classifies a rule. Critical failures block verification, warnings
// are recorded only.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// RuleResult is the outcome of evaluating one rule against a cycle context.
type RuleResult struct {
	RuleName string   `json:"rule_name"`
	Severity Severity `json:"severity"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message,omitempty"`
	Err      string   `json:"error,omitempty"`
}

// RuleReport aggregates a full rule-set evaluation. Every configured rule is
// evaluated and reported; nothing short-circuits.
type RuleReport struct {
	Evaluated      int          `json:"evaluated"`
	Passed         int          `json:"passed"`
	Failed         int          `json:"failed"`
	CriticalFailed int          `json:"critical_failed"`
	Results        []RuleResult `json:"results"`
}

// FirstCriticalFailure returns the first failing critical rule in declaration
// order, or nil if verification is not blocked by rules.
func (r *RuleReport) FirstCriticalFailure() *RuleResult {
	for i := range r.Results {
		res := &r.Results[i]
		if !res.Passed && res.Severity == SeverityCritical {
			return res
		}
	}
	return nil
}
