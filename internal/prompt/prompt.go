// Package prompt implements the interactive selection collaborator on
// terminal forms. An aborted form (ctrl-c / esc) maps onto the
// engine's abort signal, never onto an error.
package prompt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/roypat/volcano/internal/explore"
)

// Prompter asks the analyst through huh forms. It satisfies
// explore.Selector.
type Prompter struct{}

// PickValues presents a checkbox list over the candidate values.
// Confirming an empty selection reprompts; the only way to return an
// empty subset is to abort.
func (Prompter) PickValues(dimension string, candidates []string) ([]string, error) {
	title := fmt.Sprintf("Please pick from the below values for dimension %q", dimension)

	for {
		var picked []string
		form := huh.NewForm(huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(title).
				Options(huh.NewOptions(candidates...)...).
				Value(&picked),
		))
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil, nil
			}
			return nil, err
		}
		if len(picked) > 0 {
			return picked, nil
		}
	}
}

func (Prompter) PickCommand(message string, options []explore.CommandOption) (explore.Command, bool, error) {
	opts := make([]huh.Option[explore.Command], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o.Label, o.Command)
	}

	var cmd explore.Command
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[explore.Command]().
			Title(message).
			Options(opts...).
			Value(&cmd),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return cmd, true, nil
}

// PickBuildNumber asks for an integer build number. Leaving the input
// empty (or aborting) means none.
func (Prompter) PickBuildNumber(message string) (int64, bool, error) {
	var input string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(message).
			Validate(validateBuildNumber).
			Value(&input),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, false, nil
		}
		return 0, false, err
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse build number: %w", err)
	}
	return n, true, nil
}

func validateBuildNumber(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return errors.New("please enter a valid integer")
	}
	return nil
}
