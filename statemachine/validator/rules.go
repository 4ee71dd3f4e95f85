//nolint:lll,mnd // Long validation messages; arithmetic for case conversion
package validator

import (
	"fmt"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// DefaultMaxDepth is the nesting depth above which the depth rule warns.
const DefaultMaxDepth = 8

// RuleResult contains both errors and warnings from a rule check.
type RuleResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Rule defines a validation rule that can check a hierarchy for specific issues.
type Rule[S comparable] interface {
	Name() string
	Severity() Severity
	Check(hierarchy statemachine.Hierarchy[S]) RuleResult
}

// DefaultRules returns the standard set of validation rules.
func DefaultRules[S comparable]() []Rule[S] {
	return []Rule[S]{
		&danglingSuperstateRule[S]{},
		&superstateCycleRule[S]{},
		&telemetryLabelRule[S]{},
		&depthRule[S]{maxDepth: DefaultMaxDepth},
		&isolatedStateRule[S]{},
		&namingConventionRule[S]{},
	}
}

// DepthRule returns a rule warning about states nested deeper than maxDepth.
func DepthRule[S comparable](maxDepth int) Rule[S] {
	return &depthRule[S]{maxDepth: maxDepth}
}

// RegisteredRules stores custom validation rules applied by ValidateConfig.
var RegisteredRules []Rule[string]

// RegisterRule adds a custom validation rule for string-keyed hierarchies.
func RegisterRule(rule Rule[string]) {
	RegisteredRules = append(RegisteredRules, rule)
}

func label(state any) string {
	return fmt.Sprint(state)
}

// danglingSuperstateRule checks that every superstate is itself a declared state.
type danglingSuperstateRule[S comparable] struct{}

func (r *danglingSuperstateRule[S]) Name() string {
	return "DanglingSuperstate"
}

func (r *danglingSuperstateRule[S]) Severity() Severity {
	return SeverityError
}

func (r *danglingSuperstateRule[S]) Check(hierarchy statemachine.Hierarchy[S]) RuleResult {
	var errors []ValidationError

	declared := make(map[S]bool, len(hierarchy.States))
	for _, state := range hierarchy.States {
		declared[state] = true
	}

	for _, state := range hierarchy.States {
		parent, ok := hierarchy.Parents[state]
		if !ok || declared[parent] {
			continue
		}

		errors = append(errors, ValidationError{
			Code:     "DANGLING_SUPERSTATE",
			Message:  fmt.Sprintf("State '%v' has superstate '%v', which is not a declared state", state, parent),
			Location: Location{State: label(state)},
			Fix:      AddState(label(parent)),
		})
	}

	return RuleResult{Errors: errors}
}

// superstateCycleRule checks that every superstate chain reaches a root.
type superstateCycleRule[S comparable] struct{}

func (r *superstateCycleRule[S]) Name() string {
	return "SuperstateCycle"
}

func (r *superstateCycleRule[S]) Severity() Severity {
	return SeverityError
}

func (r *superstateCycleRule[S]) Check(hierarchy statemachine.Hierarchy[S]) RuleResult {
	var errors []ValidationError

	for _, state := range hierarchy.States {
		if hierarchy.Depth(state) >= 0 {
			continue
		}

		err := ValidationError{
			Code:     "SUPERSTATE_CYCLE",
			Message:  fmt.Sprintf("Superstate chain of '%v' never reaches a root state", state),
			Location: Location{State: label(state)},
		}

		if onCycle(hierarchy, state) {
			err.Fix = RemoveSuperstate(label(state))
		}

		errors = append(errors, err)
	}

	return RuleResult{Errors: errors}
}

// onCycle reports whether following superstates from state leads back to state.
func onCycle[S comparable](hierarchy statemachine.Hierarchy[S], state S) bool {
	cursor := state

	for range hierarchy.States {
		parent, ok := hierarchy.Parents[cursor]
		if !ok {
			return false
		}

		if parent == state {
			return true
		}

		cursor = parent
	}

	return false
}

// depthRule warns about deeply nested states.
type depthRule[S comparable] struct {
	maxDepth int
}

func (r *depthRule[S]) Name() string {
	return "Depth"
}

func (r *depthRule[S]) Severity() Severity {
	return SeverityWarning
}

func (r *depthRule[S]) Check(hierarchy statemachine.Hierarchy[S]) RuleResult {
	var warnings []ValidationWarning

	for _, state := range hierarchy.States {
		if depth := hierarchy.Depth(state); depth > r.maxDepth {
			warnings = append(warnings, ValidationWarning{
				Code:     "DEEP_HIERARCHY",
				Message:  fmt.Sprintf("State '%v' is nested %d levels deep (max %d); every unhandled event climbs the whole chain", state, depth, r.maxDepth),
				Location: Location{State: label(state)},
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// isolatedStateRule warns about states outside the hierarchy of an otherwise
// hierarchical machine.
type isolatedStateRule[S comparable] struct{}

func (r *isolatedStateRule[S]) Name() string {
	return "IsolatedState"
}

func (r *isolatedStateRule[S]) Severity() Severity {
	return SeverityWarning
}

func (r *isolatedStateRule[S]) Check(hierarchy statemachine.Hierarchy[S]) RuleResult {
	var warnings []ValidationWarning

	if len(hierarchy.Parents) == 0 {
		return RuleResult{}
	}

	for _, root := range hierarchy.Roots() {
		if len(hierarchy.Children(root)) == 0 {
			warnings = append(warnings, ValidationWarning{
				Code:     "ISOLATED_STATE",
				Message:  fmt.Sprintf("State '%v' has neither a superstate nor substates; events it does not handle are rejected as unhandled", root),
				Location: Location{State: label(root)},
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// namingConventionRule warns about state names that are awkward in config files and
// diagrams.
type namingConventionRule[S comparable] struct{}

func (r *namingConventionRule[S]) Name() string {
	return "NamingConvention"
}

func (r *namingConventionRule[S]) Severity() Severity {
	return SeverityWarning
}

func (r *namingConventionRule[S]) Check(hierarchy statemachine.Hierarchy[S]) RuleResult {
	var warnings []ValidationWarning

	for _, state := range hierarchy.States {
		name := label(state)
		if name == "" || !hasSeparators(name) {
			continue
		}

		warnings = append(warnings, ValidationWarning{
			Code:     "NAMING_CONVENTION",
			Message:  fmt.Sprintf("State '%s' contains spaces or dashes (suggested: '%s')", name, toSnakeCase(name)),
			Location: Location{State: name},
		})
	}

	return RuleResult{Warnings: warnings}
}

// Helper functions

func hasSeparators(s string) bool {
	for _, r := range s {
		if r == '-' || r == ' ' {
			return true
		}
	}

	return false
}

func isSnakeCase(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return false
		}

		if r == '-' || r == ' ' {
			return false
		}
	}

	return true
}

func toSnakeCase(s string) string {
	var result []rune

	prevSep := false

	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			if i > 0 && !prevSep {
				result = append(result, '_')
			}

			result = append(result, r+32) // Convert to lowercase
			prevSep = false
		case r == '-' || r == ' ':
			result = append(result, '_')
			prevSep = true
		default:
			result = append(result, r)
			prevSep = false
		}
	}

	return string(result)
}
