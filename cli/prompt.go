// Package cli holds the interactive terminal prompts used by the demo command.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/manifoldco/promptui"
)

// ErrEmptyInput is returned by the string prompt validator.
var ErrEmptyInput = errors.New("you must enter something")

// Console prompts on a pair of streams, normally the process terminal.
type Console struct {
	in  io.ReadCloser
	out io.WriteCloser
}

// NewConsole prompts on stdin/stdout.
func NewConsole() *Console {
	return NewConsoleWith(os.Stdin, os.Stdout)
}

// NewConsoleWith prompts on the given streams.
func NewConsoleWith(in io.ReadCloser, out io.WriteCloser) *Console {
	return &Console{in: in, out: out}
}

// Printf writes to the console output.
func (c *Console) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// Confirm asks a yes/no question. Answering no is not an error.
func (c *Console) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     c.in,
		Stdout:    c.out,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// PromptString asks for a non-empty line.
func (c *Console) PromptString(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: nonEmpty,
		Stdin:    c.in,
		Stdout:   c.out,
	}

	return prompt.Run()
}

func nonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyInput
	}

	return nil
}

// Status renders a one-line summary of a machine.
func Status(machine string, state optional.Value[string], timeout optional.Value[time.Duration]) string {
	var sb strings.Builder

	sb.WriteString("[")
	sb.WriteString(machine)
	sb.WriteString("] ")

	current, ok := state.Get()
	if !ok {
		sb.WriteString("not started")

		return sb.String()
	}

	sb.WriteString("state=")
	sb.WriteString(current)

	if d, ok := timeout.Get(); ok {
		sb.WriteString(" timeout=")
		sb.WriteString(d.String())
	}

	return sb.String()
}
