package validator

import (
	"fmt"
	"strings"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

// telemetryLabelRule checks that state ids print to distinct, non-empty strings. Metric
// labels, span attributes and log records identify states by their printed form.
type telemetryLabelRule[S comparable] struct{}

func (r *telemetryLabelRule[S]) Name() string {
	return "TelemetryLabel"
}

func (r *telemetryLabelRule[S]) Severity() Severity {
	return SeverityError
}

func (r *telemetryLabelRule[S]) Check(hierarchy statemachine.Hierarchy[S]) RuleResult {
	return RuleResult{Errors: ValidateTelemetryLabels(hierarchy)}
}

// ValidateTelemetryLabels reports states whose printed form is empty or shared with
// another state.
func ValidateTelemetryLabels[S comparable](hierarchy statemachine.Hierarchy[S]) []ValidationError {
	var errors []ValidationError

	seen := make(map[string]S, len(hierarchy.States))

	for _, state := range hierarchy.States {
		name := label(state)

		if name == "" {
			errors = append(errors, ValidationError{
				Code:    "OTEL_EMPTY_LABEL",
				Message: fmt.Sprintf("State %#v prints as an empty string - metrics and spans cannot tell it apart", state),
			})

			continue
		}

		if other, dup := seen[name]; dup {
			errors = append(errors, ValidationError{
				Code:     "OTEL_LABEL_COLLISION",
				Message:  fmt.Sprintf("States %#v and %#v both print as '%s' - their metrics would be merged", other, state, name),
				Location: Location{State: name},
			})

			continue
		}

		seen[name] = state
	}

	return errors
}

// ValidateMachineName checks the name used as the "machine" metric label.
// Returns warnings, not errors, since a poor name does not prevent execution.
func ValidateMachineName(name string) []ValidationWarning {
	var warnings []ValidationWarning

	if name == "" {
		warnings = append(warnings, ValidationWarning{
			Code:    "OTEL_MACHINE_NAME",
			Message: "Machine name not set - metrics will use the label 'unnamed'",
		})
	}

	if strings.ContainsAny(name, " \t\n") {
		warnings = append(warnings, ValidationWarning{
			Code:    "OTEL_MACHINE_NAME_SPACES",
			Message: fmt.Sprintf("Machine name '%s' contains whitespace (suggested: '%s')", name, toSnakeCase(strings.TrimSpace(name))),
		})
	}

	return warnings
}
