package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tempmon/cmd/tempmon/console"
)

var controllersCmd = cli.Command{
	Name:  "controllers",
	Usage: "list the I2C controllers of a backend",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Value:   backendPeriph,
		},
	},
	Action: func(c *cli.Context) error {
		provider, err := newProvider(c.String("backend"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		ids, err := provider.Controllers(c.Context)
		if err != nil {
			return console.Exit(1, "could not enumerate I2C controllers: %s", console.Red(err))
		}
		if len(ids) == 0 {
			console.Warnf("no I2C controllers were found on the system")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 8, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "#\tCONTROLLER\n")
		for i, id := range ids {
			_, _ = fmt.Fprintf(w, "%d\t%s\n", i+1, id)
		}
		_ = w.Flush()
		return nil
	},
}
