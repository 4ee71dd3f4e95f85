package cli

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// Quit is the menu entry that ends an interactive session.
const Quit = "[Quit]"

const selectSize = 10

// Select lets the user pick one item. Typing filters items by prefix.
func (c *Console) Select(label string, items []string) (string, error) {
	sel := &promptui.Select{
		Label:    label,
		Items:    items,
		Size:     selectSize,
		Searcher: prefixSearcher(items),
		Stdin:    c.in,
		Stdout:   c.out,
	}

	_, value, err := sel.Run()
	if err != nil {
		return "", err
	}

	return value, nil
}

// SelectEvent offers events plus a Quit entry. quit is true when the user picked Quit or
// interrupted the prompt.
func (c *Console) SelectEvent(label string, events []string) (event string, quit bool, err error) {
	items := append(append(make([]string, 0, len(events)+1), events...), Quit)

	value, err := c.Select(label, items)

	switch {
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return "", true, nil
	case err != nil:
		return "", false, err
	case value == Quit:
		return "", true, nil
	default:
		return value, false, nil
	}
}

// prefixSearcher matches items case-insensitively by prefix. The Quit entry never matches.
func prefixSearcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if input == "" || index < 0 || index >= len(items) || items[index] == Quit {
			return false
		}

		return strings.HasPrefix(strings.ToLower(items[index]), strings.ToLower(input))
	}
}
