package main

import (
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempmon/acquire"
	"github.com/mklimuk/tempmon/cmd/tempmon/console"
	"github.com/mklimuk/tempmon/monitor"
)

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"temp"},
	Usage:   "configure the sensor and read the temperature once",
	Flags:   configFlags,
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		provider, err := newProvider(cfg.Backend)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		dev, err := acquire.Acquire(c.Context, provider, cfg.AcquireOpts()...)
		if err != nil {
			return console.Exit(1, "sensor acquisition error: %s", console.Red(err))
		}
		defer func() {
			err := dev.Release()
			if err != nil {
				slog.Error("could not release sensor", "sensor", dev.String(), "error", err)
			}
		}()
		err = dev.WriteConfig(c.Context)
		if err != nil {
			return console.Exit(1, "sensor configuration error: %s", console.Red(err))
		}
		temp, err := dev.ReadTemperature(c.Context)
		if err != nil {
			return console.Exit(1, "error getting temperature read: %s", console.Red(err))
		}
		console.Printf("%s %s\n", console.PictoThermometer, console.White(monitor.FormatTemperature(temp)))
		return nil
	},
}
