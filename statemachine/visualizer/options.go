package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowHierarchy draws an edge from every state to its superstate
	ShowHierarchy bool

	// ShowTransitions draws the transitions recorded in the transition log
	ShowTransitions bool

	// ShowTriggers labels logged transitions with their trigger and count
	ShowTriggers bool

	// Direction controls diagram flow: "TB" (top-bottom) or "LR" (left-right)
	Direction string

	// HighlightPath highlights states by their printed name
	HighlightPath []string

	// Theme controls the color scheme: "default", "dark", "forest"
	Theme string
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowHierarchy:   true,
		ShowTransitions: true,
		ShowTriggers:    true,
		Direction:       "TB",
		Theme:           "default",
	}
}

// WithShowHierarchy enables/disables superstate edges.
func (o Options) WithShowHierarchy(show bool) Options {
	o.ShowHierarchy = show

	return o
}

// WithShowTransitions enables/disables logged transitions.
func (o Options) WithShowTransitions(show bool) Options {
	o.ShowTransitions = show

	return o
}

// WithShowTriggers enables/disables transition labels.
func (o Options) WithShowTriggers(show bool) Options {
	o.ShowTriggers = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithTheme sets the color theme.
func (o Options) WithTheme(theme string) Options {
	o.Theme = theme

	return o
}

type palette struct {
	current     string
	highlighted string
	substate    string
}

func (o Options) palette() palette {
	switch o.Theme {
	case "dark":
		return palette{
			current:     "fill:#33691e,stroke:#aed581,color:#fff",
			highlighted: "fill:#4a148c,stroke:#ce93d8,color:#fff",
			substate:    "fill:#263238,stroke:#90a4ae,color:#fff",
		}
	case "forest":
		return palette{
			current:     "fill:#9ccc65,stroke:#33691e,stroke-width:3px",
			highlighted: "fill:#fff59d,stroke:#827717,stroke-width:3px",
			substate:    "fill:#e8f5e9,stroke:#2e7d32",
		}
	default:
		return palette{
			current:     "fill:#c5e1a5,stroke:#558b2f,stroke-width:3px",
			highlighted: "fill:#fff9c4,stroke:#f57f17,stroke-width:3px",
			substate:    "fill:#e1f5ff,stroke:#01579b",
		}
	}
}
