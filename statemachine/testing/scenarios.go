package testing

import (
	"testing"

	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario is a complete test scenario: a machine, an initial state, a sequence of
// events and the matchers that must hold afterwards. ExpectError, when set, is the
// error the last event must fail with.
type Scenario[S comparable, C any, E any] struct {
	Name        string
	Machine     func() *statemachine.Builder[S, C, E]
	Initial     S
	Events      []E
	ExpectError error
	Matchers    []Matcher
}

// RunScenario executes a scenario as a subtest and validates the matchers.
func RunScenario[S comparable, C any, E any](t *testing.T, scenario Scenario[S, C, E]) {
	t.Helper()
	t.Run(scenario.Name, func(t *testing.T) {
		engine := NewTestEngine(t, scenario.Machine())
		engine.Start(scenario.Initial)

		for i, event := range scenario.Events {
			err := engine.ProcessEvent(t.Context(), event)

			if i == len(scenario.Events)-1 && scenario.ExpectError != nil {
				require.ErrorIs(t, err, scenario.ExpectError, "event %v", event)

				continue
			}

			require.NoError(t, err, "event %d (%v)", i, event)
		}

		run := engine.Run()

		for _, matcher := range scenario.Matchers {
			matched, err := matcher.Match(run)
			assert.True(t, matched, "%s: %v", matcher.Description(), err)
		}
	})
}

// ToggleScenario powers the Toggle fixture on and off again.
func ToggleScenario() Scenario[string, Blank, string] {
	return Scenario[string, Blank, string]{
		Name:    "Toggle",
		Machine: CommonTestMachines.Toggle,
		Initial: "Off",
		Events:  []string{"PowerOn", "PowerOff"},
		Matchers: []Matcher{
			TransitionWasTaken("Off", "On"),
			TransitionWasTaken("On", "Off"),
			CurrentStateIs("Off"),
			ExecutionCompleted(),
		},
	}
}

// DelegationScenario sends Home from Settings, which climbs to Root.
func DelegationScenario() Scenario[string, Blank, string] {
	return Scenario[string, Blank, string]{
		Name:    "Delegation",
		Machine: CommonTestMachines.MenuTree,
		Initial: "Settings",
		Events:  []string{"Home"},
		Matchers: []Matcher{
			TransitionWasTaken("Settings", "Root"),
			CurrentStateIs("Root"),
		},
	}
}

// UnhandledScenario sends an event nobody handles.
func UnhandledScenario() Scenario[string, Blank, string] {
	return Scenario[string, Blank, string]{
		Name:        "Unhandled",
		Machine:     CommonTestMachines.MenuTree,
		Initial:     "Settings",
		Events:      []string{"Unknown"},
		ExpectError: statemachine.ErrUnhandledEvent,
		Matchers: []Matcher{
			CurrentStateIs("Settings"),
			ExecutionFailed(),
		},
	}
}

// RedirectScenario follows an enter-triggered redirect.
func RedirectScenario() Scenario[string, Blank, string] {
	return Scenario[string, Blank, string]{
		Name:    "Redirect",
		Machine: CommonTestMachines.Redirect,
		Initial: "Start",
		Events:  []string{"Go"},
		Matchers: []Matcher{
			StateWasVisited("Hop"),
			TransitionWasTaken("Hop", "Landing"),
			CurrentStateIs("Landing"),
		},
	}
}
