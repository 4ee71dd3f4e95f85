package statemachine

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"facette.io/natsort"
	"github.com/amp-labs/amp-hfsm/errors"
	"github.com/amp-labs/amp-hfsm/optional"
)

// Registry is the frozen mapping from state id to Behavior plus the superstate relation.
// It is immutable after NewRegistry returns and safe for concurrent reads.
type Registry[S comparable, C any, E any] struct {
	behaviors  map[S]Behavior[S, C, E]
	superstate SuperstateFunc[S]
	order      []S
}

// NewRegistry copies states and freezes them together with the superstate relation.
// A nil superstate function describes a flat machine. It does not validate the
// relation; see Validate.
func NewRegistry[S comparable, C any, E any](
	states map[S]Behavior[S, C, E],
	superstate SuperstateFunc[S],
) *Registry[S, C, E] {
	if superstate == nil {
		superstate = NoSuperstates[S]
	}

	behaviors := maps.Clone(states)
	if behaviors == nil {
		behaviors = make(map[S]Behavior[S, C, E])
	}

	order := slices.Collect(maps.Keys(behaviors))
	slices.SortStableFunc(order, CompareStates[S])

	return &Registry[S, C, E]{
		behaviors:  behaviors,
		superstate: superstate,
		order:      order,
	}
}

// Lookup returns the behavior bound to state.
func (r *Registry[S, C, E]) Lookup(state S) (Behavior[S, C, E], error) {
	behavior, ok := r.behaviors[state]
	if !ok {
		return nil, WrapStateError(state, ErrStateNotRegistered)
	}

	return behavior, nil
}

// Contains reports whether state is registered.
func (r *Registry[S, C, E]) Contains(state S) bool {
	_, ok := r.behaviors[state]

	return ok
}

// SuperstateOf returns the parent of state according to the superstate relation.
func (r *Registry[S, C, E]) SuperstateOf(state S) optional.Value[S] {
	return r.superstate(state)
}

// Len is the number of registered states; it bounds every superstate walk.
func (r *Registry[S, C, E]) Len() int {
	return len(r.behaviors)
}

// States enumerates the registered states in natural order of their printed form.
func (r *Registry[S, C, E]) States() iter.Seq[S] {
	return slices.Values(r.order)
}

// Ancestors walks the superstate chain of state, nearest parent first. Parents are yielded
// whether registered or not. If the chain is still going after Len() parents the final
// pair carries ErrCycleDetected.
func (r *Registry[S, C, E]) Ancestors(state S) iter.Seq2[S, error] {
	return func(yield func(S, error) bool) {
		cursor := state

		for steps := 1; ; steps++ {
			parent, ok := r.superstate(cursor).Get()
			if !ok {
				return
			}

			if steps > r.Len() {
				yield(parent, WrapStateError(state, ErrCycleDetected))

				return
			}

			if !yield(parent, nil) {
				return
			}

			cursor = parent
		}
	}
}

// Hierarchy snapshots the registered states and their parents for diagram export and
// validation.
func (r *Registry[S, C, E]) Hierarchy() Hierarchy[S] {
	parents := make(map[S]S)

	for _, state := range r.order {
		if parent, ok := r.superstate(state).Get(); ok {
			parents[state] = parent
		}
	}

	return Hierarchy[S]{
		States:  slices.Clone(r.order),
		Parents: parents,
	}
}

// Validate checks that every superstate is registered and every chain terminates.
// All defects are reported together.
func (r *Registry[S, C, E]) Validate() error {
	var errs errors.Collection

	for _, state := range r.order {
		for ancestor, err := range r.Ancestors(state) {
			if err != nil {
				errs.Add(err)

				break
			}

			if !r.Contains(ancestor) {
				errs.Add(WrapTransitionError(state, ancestor, ErrStateNotRegistered))

				break
			}
		}
	}

	return errs.GetError()
}

// Hierarchy is a read-only view of states and the superstate relation.
type Hierarchy[S comparable] struct {
	States  []S
	Parents map[S]S
}

// Parent returns the superstate of state.
func (h Hierarchy[S]) Parent(state S) optional.Value[S] {
	parent, ok := h.Parents[state]

	return optional.FromLookup(parent, ok)
}

// Children returns the direct substates of state in States order.
func (h Hierarchy[S]) Children(state S) []S {
	var children []S

	for _, s := range h.States {
		if parent, ok := h.Parents[s]; ok && parent == state {
			children = append(children, s)
		}
	}

	return children
}

// Roots returns the states without a superstate in States order.
func (h Hierarchy[S]) Roots() []S {
	var roots []S

	for _, s := range h.States {
		if _, ok := h.Parents[s]; !ok {
			roots = append(roots, s)
		}
	}

	return roots
}

// Depth is the number of ancestors of state, or -1 if the chain is longer than the
// number of states (a cycle).
func (h Hierarchy[S]) Depth(state S) int {
	depth := 0
	cursor := state

	for {
		parent, ok := h.Parents[cursor]
		if !ok {
			return depth
		}

		depth++
		if depth > len(h.States) {
			return -1
		}

		cursor = parent
	}
}

// CompareStates orders states by their printed form, naturally, so that "state2" sorts
// before "state10". Registries and diagrams list states in this order.
func CompareStates[S comparable](a, b S) int {
	return naturalCompare(fmt.Sprint(a), fmt.Sprint(b))
}

func naturalCompare(a, b string) int {
	ab, ba := natsort.Compare(a, b), natsort.Compare(b, a)

	switch {
	case ab && !ba:
		return -1
	case ba && !ab:
		return 1
	default:
		return 0
	}
}
