// Package visualizer renders state hierarchies and observed transitions as Mermaid or
// PlantUML diagrams.
package visualizer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/zeebo/xxh3"
)

// Visualizer errors.
var (
	ErrConfigNil = errors.New("config cannot be nil")
	ErrNoStates  = errors.New("diagram has no states")
)

// Diagram is the input of every generator: the hierarchy, the transitions observed so far
// and the active state.
type Diagram[S comparable] struct {
	Hierarchy   statemachine.Hierarchy[S]
	Transitions []statemachine.TransitionRecord[S]
	Current     optional.Value[S]
}

// FromEngine snapshots an engine. Transitions are empty unless the engine was built with
// a transition log.
func FromEngine[S comparable, C any, E any](engine *statemachine.Engine[S, C, E]) Diagram[S] {
	return Diagram[S]{
		Hierarchy:   engine.Registry().Hierarchy(),
		Transitions: engine.TransitionLog(),
		Current:     engine.Active(),
	}
}

// FromConfig describes the hierarchy section of a config.
func FromConfig(config *statemachine.Config) (Diagram[string], error) {
	if config == nil {
		return Diagram[string]{}, ErrConfigNil
	}

	return Diagram[string]{Hierarchy: config.Hierarchy.ToHierarchy()}, nil
}

// node is a state as it appears in a diagram: the printed name and an identifier that
// both diagram languages accept.
type node struct {
	name string
	id   string
}

func newNode(state any) node {
	name := fmt.Sprint(state)
	if isIdentifier(name) {
		return node{name: name, id: name}
	}

	return node{name: name, id: fmt.Sprintf("s_%016x", xxh3.HashString(name))}
}

func (n node) aliased() bool {
	return n.id != n.name
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}

type edge struct {
	from  node
	to    node
	label string
}

// layout is the language-neutral content of a diagram.
type layout struct {
	nodes       []node
	parents     []edge
	transitions []edge
	isolated    []node
	current     optional.Value[node]
	highlighted []node
}

func buildLayout[S comparable](d Diagram[S], opts Options) (layout, error) {
	if len(d.Hierarchy.States) == 0 {
		return layout{}, ErrNoStates
	}

	states := slices.Clone(d.Hierarchy.States)
	slices.SortStableFunc(states, statemachine.CompareStates[S])

	var l layout

	connected := make(map[string]bool)

	for _, state := range states {
		n := newNode(state)
		l.nodes = append(l.nodes, n)

		if !opts.ShowHierarchy {
			continue
		}

		if parent, ok := d.Hierarchy.Parents[state]; ok {
			p := newNode(parent)
			l.parents = append(l.parents, edge{from: n, to: p, label: "parent"})
			connected[n.id] = true
			connected[p.id] = true
		}
	}

	if opts.ShowTransitions {
		for _, record := range d.Transitions {
			from, to := newNode(record.From), newNode(record.To)

			label := ""
			if opts.ShowTriggers {
				label = record.Trigger
				if record.Count > 1 {
					label = fmt.Sprintf("%s x%d", record.Trigger, record.Count)
				}
			}

			l.transitions = append(l.transitions, edge{from: from, to: to, label: label})
			connected[from.id] = true
			connected[to.id] = true
		}
	}

	for _, n := range l.nodes {
		if !connected[n.id] {
			l.isolated = append(l.isolated, n)
		}
	}

	if current, ok := d.Current.Get(); ok {
		l.current = optional.Some(newNode(current))
	}

	for _, n := range l.nodes {
		if slices.Contains(opts.HighlightPath, n.name) {
			l.highlighted = append(l.highlighted, n)
		}
	}

	return l, nil
}

// GenerateMermaid renders a Mermaid state diagram with default options.
func GenerateMermaid[S comparable](d Diagram[S]) (string, error) {
	return GenerateMermaidWithOptions(d, DefaultOptions())
}

// GenerateMermaidWithOptions renders a Mermaid state diagram.
func GenerateMermaidWithOptions[S comparable](d Diagram[S], opts Options) (string, error) {
	l, err := buildLayout(d, opts)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString(fmt.Sprintf("    direction %s\n", opts.Direction))

	for _, n := range l.nodes {
		if n.aliased() {
			sb.WriteString(fmt.Sprintf("    state %q as %s\n", n.name, n.id))
		}
	}

	for _, e := range l.parents {
		sb.WriteString(fmt.Sprintf("    %s --> %s : %s\n", e.from.id, e.to.id, e.label))
	}

	for _, e := range l.transitions {
		if e.label == "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", e.from.id, e.to.id))
		} else {
			sb.WriteString(fmt.Sprintf("    %s --> %s : %s\n", e.from.id, e.to.id, e.label))
		}
	}

	for _, n := range l.isolated {
		if !n.aliased() {
			sb.WriteString(fmt.Sprintf("    %s\n", n.id))
		}
	}

	colors := opts.palette()

	for _, n := range l.highlighted {
		sb.WriteString(fmt.Sprintf("    class %s highlighted\n", n.id))
	}

	if current, ok := l.current.Get(); ok {
		sb.WriteString(fmt.Sprintf("    class %s current\n", current.id))
	}

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("    classDef current %s\n", colors.current))
	sb.WriteString(fmt.Sprintf("    classDef highlighted %s\n", colors.highlighted))
	sb.WriteString("```\n")

	return sb.String(), nil
}

// GeneratePlantUML renders a PlantUML state diagram with default options. Superstate
// edges point up and the active state carries the <<Current>> stereotype.
func GeneratePlantUML[S comparable](d Diagram[S]) (string, error) {
	return GeneratePlantUMLWithOptions(d, DefaultOptions())
}

// GeneratePlantUMLWithOptions renders a PlantUML state diagram.
func GeneratePlantUMLWithOptions[S comparable](d Diagram[S], opts Options) (string, error) {
	l, err := buildLayout(d, opts)
	if err != nil {
		return "", err
	}

	colors := opts.palette()

	var sb strings.Builder

	sb.WriteString("@startuml\n")

	if opts.Direction == "LR" {
		sb.WriteString("left to right direction\n")
	}

	sb.WriteString("skinparam state {\n")
	sb.WriteString(fmt.Sprintf("  BackgroundColor<<Current>> %s\n", plantColor(colors.current)))
	sb.WriteString(fmt.Sprintf("  BackgroundColor<<Highlighted>> %s\n", plantColor(colors.highlighted)))
	sb.WriteString("}\n")

	for _, n := range l.nodes {
		if n.aliased() {
			sb.WriteString(fmt.Sprintf("state %q as %s\n", n.name, n.id))
		}
	}

	for _, e := range l.parents {
		sb.WriteString(fmt.Sprintf("%s -up-> %s : %s\n", e.from.id, e.to.id, e.label))
	}

	for _, e := range l.transitions {
		if e.label == "" {
			sb.WriteString(fmt.Sprintf("%s --> %s\n", e.from.id, e.to.id))
		} else {
			sb.WriteString(fmt.Sprintf("%s --> %s : %s\n", e.from.id, e.to.id, e.label))
		}
	}

	for _, n := range l.isolated {
		if !n.aliased() {
			sb.WriteString(fmt.Sprintf("state %s\n", n.id))
		}
	}

	for _, n := range l.highlighted {
		sb.WriteString(fmt.Sprintf("state %s <<Highlighted>>\n", n.id))
	}

	if current, ok := l.current.Get(); ok {
		sb.WriteString(fmt.Sprintf("state %s <<Current>>\n", current.id))
	}

	sb.WriteString("@enduml\n")

	return sb.String(), nil
}

// plantColor extracts the fill color of a Mermaid style for PlantUML skinparams.
func plantColor(style string) string {
	for part := range strings.SplitSeq(style, ",") {
		if color, ok := strings.CutPrefix(part, "fill:"); ok {
			return color
		}
	}

	return "YellowGreen"
}

// GenerateMermaidFromFile loads a config from a file and renders its hierarchy.
func GenerateMermaidFromFile(path string) (string, error) {
	d, err := loadDiagram(path)
	if err != nil {
		return "", err
	}

	return GenerateMermaid(d)
}

// GeneratePlantUMLFromFile loads a config from a file and renders its hierarchy.
func GeneratePlantUMLFromFile(path string) (string, error) {
	d, err := loadDiagram(path)
	if err != nil {
		return "", err
	}

	return GeneratePlantUML(d)
}

func loadDiagram(path string) (Diagram[string], error) {
	config, err := statemachine.LoadConfig(path)
	if err != nil {
		return Diagram[string]{}, fmt.Errorf("failed to load config: %w", err)
	}

	return FromConfig(config)
}
