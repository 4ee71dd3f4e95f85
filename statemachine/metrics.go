package statemachine

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes used as the "outcome" label.
const (
	outcomeHandled    = "handled"
	outcomeTransition = "transition"
	outcomeRejected   = "rejected"
	outcomeUnhandled  = "unhandled"
	outcomeError      = "error"
)

var (
	// eventsTotal counts processed events by the active state and outcome.
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfsm_events_total",
		Help: "Total number of events processed by machine, active state and outcome",
	}, []string{"machine", "state", "outcome"})

	// transitionsTotal counts committed state changes, including chained ones.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfsm_transitions_total",
		Help: "Total number of state transitions by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// delegationsTotal counts Super hops during dispatch.
	delegationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfsm_delegations_total",
		Help: "Total number of event delegations to a superstate by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// chainLength tracks how many states one transition entered, chained redirects included.
	chainLength = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hfsm_transition_chain_length",
		Help:    "Number of states entered by a single transition",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
	}, []string{"machine"})

	// dispatchDuration tracks end-to-end ProcessEvent time.
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hfsm_dispatch_duration_seconds",
		Help:    "Duration of event processing by machine and outcome",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"machine", "outcome"})
)

func sanitizeMachine(name string) string {
	if name == "" {
		return "unnamed"
	}

	return name
}

func stateLabel(state any) string {
	return fmt.Sprint(state)
}
