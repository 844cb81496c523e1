// Package validation computes consistency errors for a set of active rules.
//
// Validation is advisory. An invalid configuration stays usable, so results
// are returned as data and never as errors.
package validation

import (
	"fmt"
	"slices"

	"github.com/louisbranch/ruleforge/internal/services/rules/domain/rule"
)

// IssueKind classifies a consistency problem.
type IssueKind string

const (
	// IssueConflict is an active rule declaring a conflict with another active rule.
	IssueConflict IssueKind = "conflict"
	// IssueMissingDependency is an active rule requiring an inactive rule.
	IssueMissingDependency IssueKind = "missing_dependency"
)

// Issue is one consistency problem.
type Issue struct {
	Kind IssueKind `json:"kind"`
	// RuleID is the rule that declared the conflict or requirement.
	RuleID string `json:"ruleId"`
	// OtherID is the conflicting or required rule.
	OtherID string `json:"otherId"`
	Message string `json:"message"`
}

// Result is the outcome of validating a configuration.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
	Issues []Issue  `json:"issues,omitempty"`
}

// RuleLookup resolves rule definitions.
type RuleLookup interface {
	Rule(id string) (rule.Rule, bool)
}

// Validate checks active rules in id order. Each conflict declaration whose
// partner is active yields one issue, so a pair declaring each other yields
// two. Each required rule that is not active yields one issue.
func Validate(lookup RuleLookup, active []string) Result {
	ids := slices.Clone(active)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	isActive := make(map[string]bool, len(ids))
	for _, id := range ids {
		isActive[id] = true
	}

	result := Result{Errors: []string{}}
	for _, id := range ids {
		def, ok := lookup.Rule(id)
		if !ok {
			continue
		}
		for _, other := range def.Conflicts {
			if isActive[other] {
				result.add(Issue{
					Kind:    IssueConflict,
					RuleID:  id,
					OtherID: other,
					Message: fmt.Sprintf("rule %q conflicts with active rule %q", id, other),
				})
			}
		}
		for _, required := range def.Requires {
			if !isActive[required] {
				result.add(Issue{
					Kind:    IssueMissingDependency,
					RuleID:  id,
					OtherID: required,
					Message: fmt.Sprintf("rule %q requires rule %q, which is not active", id, required),
				})
			}
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

func (r *Result) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	r.Errors = append(r.Errors, issue.Message)
}

// Clone returns a copy that shares no slices with r.
func (r Result) Clone() Result {
	return Result{
		Valid:  r.Valid,
		Errors: append([]string{}, r.Errors...),
		Issues: slices.Clone(r.Issues),
	}
}
