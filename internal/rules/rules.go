package rules

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"Verdict/internal/domain/models"
)

var validate = validator.New()

// Rule is one declarative verification rule. The rule passes when its
// condition evaluates to true.
type Rule struct {
	Name      string          `yaml:"name" json:"name" validate:"required"`
	Severity  models.Severity `yaml:"severity" json:"severity" validate:"required,oneof=critical warning"`
	Condition string          `yaml:"condition" json:"condition" validate:"required"`
	Message   string          `yaml:"message" json:"message"`

	expr     *Expr
	parseErr error
}

// Set is an ordered rule collection. Evaluation order is declaration order.
type Set struct {
	rules []Rule
}

// Summary describes a loaded rule set.
type Summary struct {
	Total      int    `json:"total"`
	Critical   int    `json:"critical"`
	Warning    int    `json:"warning"`
	Unparsable int    `json:"unparsable"`
	Rules      []Rule `json:"rules"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Load reads a YAML rule file. A structurally invalid file (bad YAML, missing
// name or severity) is fatal; a condition that fails to parse keeps its rule,
// which then fails every evaluation with the parse error.
func Load(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(b)
}

// Parse builds a Set from raw YAML.
func Parse(b []byte) (*Set, error) {
	var f ruleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file declares no rules")
	}

	seen := make(map[string]bool, len(f.Rules))
	for i := range f.Rules {
		r := &f.Rules[i]
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
		r.expr, r.parseErr = ParseCondition(r.Condition)
	}

	return &Set{rules: f.Rules}, nil
}

// Evaluate runs every rule against ctx in declaration order. Evaluation
// errors (unparsable condition, unknown variable, type mismatch) mark the
// rule failed and never abort the pass.
func (s *Set) Evaluate(ctx Context) models.RuleReport {
	report := models.RuleReport{
		Evaluated: len(s.rules),
		Results:   make([]models.RuleResult, 0, len(s.rules)),
	}

	for i := range s.rules {
		r := &s.rules[i]
		result := models.RuleResult{
			RuleName: r.Name,
			Severity: r.Severity,
		}

		switch {
		case r.parseErr != nil:
			result.Passed = false
			result.Message = r.Message
			result.Err = fmt.Sprintf("condition parse error: %v", r.parseErr)
		default:
			passed, err := r.expr.EvalBool(ctx)
			if err != nil {
				result.Passed = false
				result.Message = r.Message
				result.Err = err.Error()
			} else {
				result.Passed = passed
				if !passed {
					result.Message = r.Message
				}
			}
		}

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
			if r.Severity == models.SeverityCritical {
				report.CriticalFailed++
			}
		}
		report.Results = append(report.Results, result)
	}

	return report
}

// Rules returns the declared rules in order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Summarize returns counts by severity plus the declared rule list.
func (s *Set) Summarize() Summary {
	sum := Summary{Total: len(s.rules), Rules: s.Rules()}
	for i := range s.rules {
		switch s.rules[i].Severity {
		case models.SeverityCritical:
			sum.Critical++
		case models.SeverityWarning:
			sum.Warning++
		}
		if s.rules[i].parseErr != nil {
			sum.Unparsable++
		}
	}
	return sum
}
