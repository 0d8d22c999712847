package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func runner(use, short string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run()
			if err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			return nil
		},
	}
}

func TestCmd() *cobra.Command {
	return runner("test", "Run unit tests", func() error { return test.Test() })
}

func LintCmd() *cobra.Command {
	return runner("lint", "Run linters", func() error { return test.Lint() })
}

// IntegrationTestCmd runs the tests that need a sensor on a real bus.
func IntegrationTestCmd() *cobra.Command {
	return runner("integration-test", "Run integration tests", func() error { return test.Integ() })
}

// CheckCmd runs linters and unit tests, stopping at the first failure.
func CheckCmd() *cobra.Command {
	return runner("check", "Run linters and unit tests", func() error {
		for _, step := range []struct {
			name string
			run  func() error
		}{
			{"lint", func() error { return test.Lint() }},
			{"test", func() error { return test.Test() }},
		} {
			slog.Info("running step", "step", step.name)
			err := step.run()
			if err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		return nil
	})
}
