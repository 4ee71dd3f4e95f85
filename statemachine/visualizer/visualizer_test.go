package visualizer

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/statemachine"
	smtest "github.com/amp-labs/amp-hfsm/statemachine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func menuDiagram() Diagram[string] {
	return Diagram[string]{
		Hierarchy: statemachine.Hierarchy[string]{
			States:  []string{"Settings", "Root", "Menu", "Orphan"},
			Parents: map[string]string{"Menu": "Root", "Settings": "Menu"},
		},
		Transitions: []statemachine.TransitionRecord[string]{
			{From: "Settings", To: "Menu", Trigger: statemachine.TriggerTransition, Count: 2},
			{From: "Menu", To: "Settings", Trigger: statemachine.TriggerTransition, Count: 1},
		},
		Current: optional.Some("Menu"),
	}
}

func TestGenerateMermaid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		diagram        Diagram[string]
		wantErr        error
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:    "menu with log",
			diagram: menuDiagram(),
			wantContain: []string{
				"stateDiagram-v2",
				"direction TB",
				"Menu --> Root : parent",
				"Settings --> Menu : parent",
				"Settings --> Menu : transition x2",
				"Menu --> Settings : transition\n",
				"    Orphan\n",
				"class Menu current",
				"classDef current",
			},
		},
		{
			name: "no current state",
			diagram: Diagram[string]{
				Hierarchy: statemachine.Hierarchy[string]{States: []string{"Off", "On"}},
			},
			wantContain:    []string{"    Off\n", "    On\n"},
			wantNotContain: []string{"class Off current", "class On current"},
		},
		{
			name:    "empty hierarchy",
			diagram: Diagram[string]{},
			wantErr: ErrNoStates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := GenerateMermaid(tt.diagram)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(result, "```mermaid\n"))
			assert.True(t, strings.HasSuffix(result, "```\n"))

			for _, want := range tt.wantContain {
				assert.Contains(t, result, want)
			}

			for _, notWant := range tt.wantNotContain {
				assert.NotContains(t, result, notWant)
			}
		})
	}
}

func TestGenerateMermaidWithOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		opts           Options
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:           "hierarchy only",
			opts:           DefaultOptions().WithShowTransitions(false),
			wantContain:    []string{"Menu --> Root : parent"},
			wantNotContain: []string{"transition"},
		},
		{
			name:           "transitions only",
			opts:           DefaultOptions().WithShowHierarchy(false),
			wantContain:    []string{"Settings --> Menu : transition x2", "    Root\n"},
			wantNotContain: []string{": parent"},
		},
		{
			name:           "unlabeled transitions",
			opts:           DefaultOptions().WithShowTriggers(false),
			wantContain:    []string{"    Settings --> Menu\n"},
			wantNotContain: []string{"x2"},
		},
		{
			name:        "left to right",
			opts:        DefaultOptions().WithDirection("LR"),
			wantContain: []string{"direction LR"},
		},
		{
			name:        "highlighted path",
			opts:        DefaultOptions().WithHighlightPath([]string{"Root", "Settings"}),
			wantContain: []string{"class Root highlighted", "class Settings highlighted"},
		},
		{
			name:        "dark theme",
			opts:        DefaultOptions().WithTheme("dark"),
			wantContain: []string{"classDef current fill:#33691e"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := GenerateMermaidWithOptions(menuDiagram(), tt.opts)
			require.NoError(t, err)

			for _, want := range tt.wantContain {
				assert.Contains(t, result, want)
			}

			for _, notWant := range tt.wantNotContain {
				assert.NotContains(t, result, notWant)
			}
		})
	}
}

func TestGeneratePlantUML(t *testing.T) {
	t.Parallel()

	result, err := GeneratePlantUML(menuDiagram())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result, "@startuml\n"))
	assert.True(t, strings.HasSuffix(result, "@enduml\n"))
	assert.Contains(t, result, "BackgroundColor<<Current>> #c5e1a5")
	assert.Contains(t, result, "Menu -up-> Root : parent")
	assert.Contains(t, result, "Settings -up-> Menu : parent")
	assert.Contains(t, result, "Settings --> Menu : transition x2")
	assert.Contains(t, result, "state Orphan\n")
	assert.Contains(t, result, "state Menu <<Current>>")
	assert.NotContains(t, result, "left to right direction")

	lr, err := GeneratePlantUMLWithOptions(menuDiagram(), DefaultOptions().WithDirection("LR"))
	require.NoError(t, err)
	assert.Contains(t, lr, "left to right direction")

	_, err = GeneratePlantUML(Diagram[int]{})
	require.ErrorIs(t, err, ErrNoStates)
}

func TestDeterministicOrder(t *testing.T) {
	t.Parallel()

	d := Diagram[string]{
		Hierarchy: statemachine.Hierarchy[string]{
			States:  []string{"s10", "s2", "s1"},
			Parents: map[string]string{"s10": "s1", "s2": "s1"},
		},
	}

	result, err := GeneratePlantUML(d)
	require.NoError(t, err)

	s2 := strings.Index(result, "s2 -up-> s1")
	s10 := strings.Index(result, "s10 -up-> s1")

	require.NotEqual(t, -1, s2)
	require.NotEqual(t, -1, s10)
	assert.Less(t, s2, s10)

	again, err := GeneratePlantUML(d)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestAliasedStateNames(t *testing.T) {
	t.Parallel()

	d := Diagram[string]{
		Hierarchy: statemachine.Hierarchy[string]{
			States:  []string{"Main Menu", "Root"},
			Parents: map[string]string{"Main Menu": "Root"},
		},
		Current: optional.Some("Main Menu"),
	}

	alias := fmt.Sprintf("s_%016x", xxh3.HashString("Main Menu"))

	mermaid, err := GenerateMermaid(d)
	require.NoError(t, err)
	assert.Contains(t, mermaid, `state "Main Menu" as `+alias)
	assert.Contains(t, mermaid, alias+" --> Root : parent")
	assert.Contains(t, mermaid, "class "+alias+" current")

	plant, err := GeneratePlantUML(d)
	require.NoError(t, err)
	assert.Contains(t, plant, `state "Main Menu" as `+alias)
	assert.Contains(t, plant, "state "+alias+" <<Current>>")
}

func TestIntStates(t *testing.T) {
	t.Parallel()

	d := Diagram[int]{
		Hierarchy: statemachine.Hierarchy[int]{
			States:  []int{1, 2},
			Parents: map[int]int{2: 1},
		},
	}

	result, err := GenerateMermaid(d)
	require.NoError(t, err)
	assert.Contains(t, result, fmt.Sprintf("state \"2\" as s_%016x", xxh3.HashString("2")))
}

func TestFromEngine(t *testing.T) {
	t.Parallel()

	engine, err := smtest.CommonTestMachines.MenuTree().
		WithLogger(nil).
		WithTransitionLog().
		Build()
	require.NoError(t, err)

	require.NoError(t, engine.Init(t.Context(), "Settings"))
	require.NoError(t, engine.ProcessEvent(t.Context(), "Back"))
	require.NoError(t, engine.ProcessEvent(t.Context(), "Open"))
	require.NoError(t, engine.ProcessEvent(t.Context(), "Back"))

	d := FromEngine(engine)
	assert.Equal(t, optional.Some("Menu"), d.Current)

	result, err := GenerateMermaid(d)
	require.NoError(t, err)
	assert.Contains(t, result, "Settings --> Menu : transition x2")
	assert.Contains(t, result, "Menu --> Settings : transition\n")
	assert.Contains(t, result, "class Menu current")
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	_, err := FromConfig(nil)
	require.ErrorIs(t, err, ErrConfigNil)

	d, err := FromConfig(&statemachine.Config{
		Hierarchy: statemachine.HierarchyConfig{
			States:  []string{"A", "B"},
			Parents: map[string]string{"B": "A"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, d.Hierarchy.States)
	assert.True(t, d.Current.Empty())
}

func TestGenerateFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join("testdata", "menu.yaml")

	mermaid, err := GenerateMermaidFromFile(path)
	require.NoError(t, err)
	assert.Contains(t, mermaid, "Settings --> Menu : parent")

	plant, err := GeneratePlantUMLFromFile(path)
	require.NoError(t, err)
	assert.Less(t,
		strings.Index(plant, `state "Item 2"`),
		strings.Index(plant, `state "Item 10"`))

	_, err = GenerateMermaidFromFile(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)

	_, err = GeneratePlantUMLFromFile(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.True(t, opts.ShowHierarchy)
	assert.True(t, opts.ShowTransitions)
	assert.True(t, opts.ShowTriggers)
	assert.Equal(t, "TB", opts.Direction)
	assert.Equal(t, "default", opts.Theme)

	opts = opts.
		WithShowHierarchy(false).
		WithShowTransitions(false).
		WithShowTriggers(false).
		WithDirection("LR").
		WithTheme("forest").
		WithHighlightPath([]string{"a", "b"})

	assert.False(t, opts.ShowHierarchy)
	assert.False(t, opts.ShowTransitions)
	assert.False(t, opts.ShowTriggers)
	assert.Equal(t, "LR", opts.Direction)
	assert.Equal(t, "forest", opts.Theme)
	assert.Equal(t, []string{"a", "b"}, opts.HighlightPath)
}
