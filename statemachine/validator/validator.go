// Package validator checks state hierarchies for structural defects before an engine is
// built, and suggests fixes for hierarchies loaded from configuration files.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

// ErrInvalidHierarchy is returned by ValidationResult.Err when validation found errors.
var ErrInvalidHierarchy = errors.New("invalid state hierarchy")

// ValidationResult contains the results of validating a hierarchy.
type ValidationResult struct {
	Valid       bool
	Errors      []ValidationError
	Warnings    []ValidationWarning
	Suggestions []Suggestion
}

// ValidationError represents a validation error with fix suggestions.
type ValidationError struct {
	Code     string   // Error code like "SUPERSTATE_CYCLE", "DANGLING_SUPERSTATE"
	Message  string   // Human-readable error message
	Location Location // Where the error occurred
	Fix      *Fix     // Optional auto-fix suggestion
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Code     string
	Message  string
	Location Location
}

// Suggestion provides improvement recommendations.
type Suggestion struct {
	Message string // Suggestion description
	Example string // Config example showing the improvement
}

// Location identifies where an issue occurred.
type Location struct {
	File  string // Config file path, if loaded from one
	State string // Printed state id if applicable
}

// Validate runs the default rules against a hierarchy.
func Validate[S comparable](hierarchy statemachine.Hierarchy[S]) ValidationResult {
	return ValidateWithRules(hierarchy, DefaultRules[S]())
}

// ValidateConfig validates the hierarchy section of a config with the default rules and
// any registered rules.
func ValidateConfig(config *statemachine.Config) ValidationResult {
	rules := append(DefaultRules[string](), RegisteredRules...)

	return ValidateWithRules(config.Hierarchy.ToHierarchy(), rules)
}

// ValidateFile loads a config from a file and validates it.
func ValidateFile(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, false)
}

// ValidateFileStrict loads a config from a file and validates it in strict mode.
func ValidateFileStrict(path string) (ValidationResult, error) {
	return ValidateFileWithOptions(path, true)
}

// ValidateFileWithOptions loads a config from a file and validates it with options.
func ValidateFileWithOptions(path string, strict bool) (ValidationResult, error) {
	config, err := statemachine.LoadConfig(path)
	if err != nil {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{
					Code:     "CONFIG_LOAD_FAILED",
					Message:  fmt.Sprintf("Failed to load config: %v", err),
					Location: Location{File: path},
				},
			},
		}, err
	}

	result := ValidateConfig(config)
	if strict {
		result = promoteWarnings(result)
	}

	for i := range result.Errors {
		if result.Errors[i].Location.File == "" {
			result.Errors[i].Location.File = path
		}
	}

	for i := range result.Warnings {
		if result.Warnings[i].Location.File == "" {
			result.Warnings[i].Location.File = path
		}
	}

	return result, nil
}

// ValidateWithRules validates using custom rules.
func ValidateWithRules[S comparable](hierarchy statemachine.Hierarchy[S], rules []Rule[S]) ValidationResult {
	var result ValidationResult

	for _, rule := range rules {
		ruleResult := rule.Check(hierarchy)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	result.Valid = len(result.Errors) == 0
	result.Suggestions = generateSuggestions(hierarchy)

	return result
}

// ValidateWithRulesStrict validates with strict mode (treats warnings as errors).
func ValidateWithRulesStrict[S comparable](hierarchy statemachine.Hierarchy[S], rules []Rule[S]) ValidationResult {
	return promoteWarnings(ValidateWithRules(hierarchy, rules))
}

func promoteWarnings(result ValidationResult) ValidationResult {
	for _, warning := range result.Warnings {
		result.Errors = append(result.Errors, ValidationError{
			Code:     warning.Code,
			Message:  warning.Message,
			Location: warning.Location,
		})
	}

	result.Warnings = nil
	result.Valid = len(result.Errors) == 0

	return result
}

// generateSuggestions provides general improvement suggestions.
func generateSuggestions[S comparable](hierarchy statemachine.Hierarchy[S]) []Suggestion {
	var suggestions []Suggestion

	if len(hierarchy.Parents) > 0 && len(hierarchy.Roots()) > 1 {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider a single root state so that events unhandled everywhere else have one place to go",
			Example: `hierarchy:
  states: [root, menu, settings]
  parents:
    menu: root
    settings: root`,
		})
	}

	snake, other := 0, 0

	for _, state := range hierarchy.States {
		if isSnakeCase(label(state)) {
			snake++
		} else {
			other++
		}
	}

	if snake > 0 && other > 0 {
		suggestions = append(suggestions, Suggestion{
			Message: "Consider one naming convention for all states",
			Example: `states: [validate_input, process_data]  # instead of mixing validateInput and process_data`,
		})
	}

	return suggestions
}

// HasErrors returns true if the result has any errors.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Fixes returns the fixes attached to the errors, in order.
func (r ValidationResult) Fixes() []*Fix {
	var fixes []*Fix

	for _, err := range r.Errors {
		if err.Fix != nil {
			fixes = append(fixes, err.Fix)
		}
	}

	return fixes
}

// Err returns nil for a valid result, otherwise ErrInvalidHierarchy listing the codes.
func (r ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}

	codes := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		codes = append(codes, err.Code)
	}

	return fmt.Errorf("%w: %s", ErrInvalidHierarchy, strings.Join(codes, ", "))
}

// String returns a human-readable summary of validation results.
func (r ValidationResult) String() string {
	if r.Valid && !r.HasWarnings() {
		return "✓ Hierarchy is valid"
	}

	var sb strings.Builder

	if r.Valid {
		sb.WriteString("✓ Hierarchy is valid\n")
	} else {
		sb.WriteString(fmt.Sprintf("✗ Hierarchy has %d error(s)\n", len(r.Errors)))
	}

	for _, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  [%s] %s", err.Code, err.Message))

		if err.Location.State != "" {
			sb.WriteString(fmt.Sprintf(" (state: %s)", err.Location.State))
		}

		sb.WriteString("\n")

		if err.Fix != nil {
			sb.WriteString(fmt.Sprintf("    Fix: %s\n", err.Fix.Description))
		}
	}

	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d warning(s):\n", len(r.Warnings)))

		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  [%s] %s\n", warn.Code, warn.Message))
		}
	}

	if len(r.Suggestions) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d suggestion(s) for improvement\n", len(r.Suggestions)))
	}

	return sb.String()
}
