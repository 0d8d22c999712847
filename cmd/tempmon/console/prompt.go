package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mklimuk/tempmon"
)

const (
	Yes = "y"
	No  = "n"
)

var yesNoConstraints = []string{"y", "n"}

func YesOrNo(question string) (string, error) {
	return Prompt(question, yesNoConstraints...)
}

// Prompt asks a question and returns the answer. With constraints the first
// one is the default, returned on empty or unmatched input.
func Prompt(question string, constraints ...string) (string, error) {
	if len(constraints) == 0 {
		return readLine(question)
	}
	var prompt strings.Builder
	prompt.WriteString(question)
	prompt.WriteString(" [")
	prompt.WriteString(strings.ToUpper(constraints[0]))
	for i := 1; i < len(constraints); i++ {
		prompt.WriteString("/")
		prompt.WriteString(constraints[i])
	}
	prompt.WriteString("]:")
	response, err := readLine(prompt.String())
	if err != nil {
		return "", err
	}
	return matchConstraint(response, constraints), nil
}

func matchConstraint(response string, constraints []string) string {
	normalized := strings.ToLower(strings.TrimSpace(response))
	for _, c := range constraints {
		if normalized == c {
			return normalized
		}
	}
	return constraints[0]
}

func readLine(prompt string) (string, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return "", err
	}
	defer func() { _ = rl.Close() }()
	return rl.Readline()
}

var errNoChoice = errors.New("no controller chosen")

// SelectController lists the controllers and lets the user pick one by
// number. A single controller is selected without asking.
func SelectController(ctx context.Context, controllers []tempmon.ControllerID) (tempmon.ControllerID, error) {
	if len(controllers) == 1 {
		return controllers[0], nil
	}
	for i, c := range controllers {
		Printf("  %s %s\n", Cyan(fmt.Sprintf("[%d]", i+1)), c)
	}
	answer, err := readLine(fmt.Sprintf("%s choose I2C controller [1]: ", PictoPlug))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoChoice, err)
	}
	return pickController(answer, controllers)
}

func pickController(answer string, controllers []tempmon.ControllerID) (tempmon.ControllerID, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return controllers[0], nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(controllers) {
		return "", fmt.Errorf("%w: %q is not between 1 and %d", errNoChoice, answer, len(controllers))
	}
	return controllers[n-1], nil
}
