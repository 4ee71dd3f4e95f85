package validator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

var (
	// ErrStateNotFound is returned when a fix refers to a state that is not declared.
	ErrStateNotFound = errors.New("state not found")
	// ErrStateAlreadyExists is returned when adding or renaming to an existing state name.
	ErrStateAlreadyExists = errors.New("state already exists")
	// ErrNoSuperstate is returned when removing a superstate from a root state.
	ErrNoSuperstate = errors.New("state has no superstate")
)

// Fix represents an automatic fix for a validation error, applied to the hierarchy
// section of a config.
type Fix struct {
	Description string
	Apply       func(hierarchy *statemachine.HierarchyConfig) error
}

// AddState creates a fix that declares a missing state.
func AddState(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Declare state '%s'", name),
		Apply: func(hierarchy *statemachine.HierarchyConfig) error {
			if slices.Contains(hierarchy.States, name) {
				return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, name)
			}

			hierarchy.States = append(hierarchy.States, name)

			return nil
		},
	}
}

// RemoveSuperstate creates a fix that turns a state into a root state.
func RemoveSuperstate(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove the superstate of '%s'", name),
		Apply: func(hierarchy *statemachine.HierarchyConfig) error {
			if _, ok := hierarchy.Parents[name]; !ok {
				return fmt.Errorf("%w: '%s'", ErrNoSuperstate, name)
			}

			delete(hierarchy.Parents, name)

			return nil
		},
	}
}

// RemoveState creates a fix that removes a state. Its substates move up to its own
// superstate, or become roots.
func RemoveState(name string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove state '%s'", name),
		Apply: func(hierarchy *statemachine.HierarchyConfig) error {
			index := slices.Index(hierarchy.States, name)
			if index < 0 {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, name)
			}

			hierarchy.States = slices.Delete(hierarchy.States, index, index+1)

			grandparent, hasGrandparent := hierarchy.Parents[name]
			delete(hierarchy.Parents, name)

			for child, parent := range hierarchy.Parents {
				if parent != name {
					continue
				}

				if hasGrandparent && grandparent != child {
					hierarchy.Parents[child] = grandparent
				} else {
					delete(hierarchy.Parents, child)
				}
			}

			return nil
		},
	}
}

// RenameState creates a fix that renames a state everywhere it is referenced.
func RenameState(oldName, newName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Rename state from '%s' to '%s'", oldName, newName),
		Apply: func(hierarchy *statemachine.HierarchyConfig) error {
			if slices.Contains(hierarchy.States, newName) {
				return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, newName)
			}

			index := slices.Index(hierarchy.States, oldName)
			if index < 0 {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, oldName)
			}

			hierarchy.States[index] = newName

			if parent, ok := hierarchy.Parents[oldName]; ok {
				delete(hierarchy.Parents, oldName)
				hierarchy.Parents[newName] = parent
			}

			for child, parent := range hierarchy.Parents {
				if parent == oldName {
					hierarchy.Parents[child] = newName
				}
			}

			return nil
		},
	}
}

// ApplyFixes applies a list of fixes to the hierarchy section of a config.
func ApplyFixes(config *statemachine.Config, fixes []*Fix) error {
	if config.Hierarchy.Parents == nil {
		config.Hierarchy.Parents = make(map[string]string)
	}

	for _, fix := range fixes {
		if fix != nil && fix.Apply != nil {
			err := fix.Apply(&config.Hierarchy)
			if err != nil {
				return fmt.Errorf("failed to apply fix '%s': %w", fix.Description, err)
			}
		}
	}

	return nil
}
