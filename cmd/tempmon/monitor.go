package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempmon/cmd/tempmon/console"
	"github.com/mklimuk/tempmon/monitor"
	"github.com/mklimuk/tempmon/sampler"
)

var monitorCmd = cli.Command{
	Name:  "monitor",
	Usage: "sample the temperature until interrupted",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:  "period",
			Usage: "sampling period",
			Value: sampler.DefaultPeriod,
		},
		&cli.IntFlag{
			Name:  "max-failures",
			Usage: "consecutive read failures before giving up, 0 retries forever",
			Value: sampler.DefaultMaxConsecutiveFailures,
		},
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "choose the controller when several are found",
		},
	}, configFlags...),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		provider, err := newProvider(cfg.Backend)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		var opts []monitor.Opt
		if c.Bool("interactive") {
			opts = append(opts, monitor.WithSelector(console.SelectController))
		}
		err = monitor.Run(ctx, provider, console.NewDisplay(), cfg, opts...)
		if err != nil {
			return console.Exit(1, "%s monitor stopped: %s", console.PictoStop, console.Red(err))
		}
		return nil
	},
}
