package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/tempmon/adapter"
	"github.com/mklimuk/tempmon/cmd/tempmon/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "USB-I2C bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the I2C engine status",
	Action: func(c *cli.Context) error {
		return withBridge(c.Context, func(ctx context.Context, a *adapter.MCP2221) (*adapter.MCP2221Status, error) {
			return a.Status(ctx)
		})
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and free the bus",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	},
	Action: func(c *cli.Context) error {
		ok, err := confirmRelease(c.Bool("yes"), console.YesOrNo)
		if err != nil {
			return console.Exit(1, "confirmation error: %s", console.Red(err))
		}
		if !ok {
			console.Warnf("bus release aborted")
			return nil
		}
		return withBridge(c.Context, func(ctx context.Context, a *adapter.MCP2221) (*adapter.MCP2221Status, error) {
			status, err := a.ReleaseBus(ctx)
			if err == nil {
				console.Infof("%s", console.Green("transfer cancelled"))
			}
			return status, err
		})
	},
}

// confirmRelease asks before cancelling. Cancelling cuts off the transfer of
// any process using the bridge.
func confirmRelease(skip bool, ask func(question string) (string, error)) (bool, error) {
	if skip {
		return true, nil
	}
	answer, err := ask("cancel the current I2C transfer of the bridge?")
	if err != nil {
		return false, err
	}
	return answer == console.Yes, nil
}

func withBridge(ctx context.Context, cmd func(context.Context, *adapter.MCP2221) (*adapter.MCP2221Status, error)) error {
	a, err := adapter.OpenFirstMCP2221()
	if err != nil {
		return console.Exit(1, "adapter initialization error: %s", console.Red(err))
	}
	defer func() {
		err := a.Close()
		if err != nil {
			slog.Warn("could not close adapter", "error", err)
		}
	}()
	status, err := cmd(ctx, a)
	if err != nil {
		return console.Exit(1, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(os.Stdout)
	err = enc.Encode(status)
	if err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return enc.Close()
}
