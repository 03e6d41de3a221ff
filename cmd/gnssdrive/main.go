// Command gnssdrive is an example positioning-pipeline driver: point it at
// a pkg/pipeline YAML config and it streams observation epochs, resolving
// each tracked satellite's state from broadcast and/or precise ephemeris.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/whigg/gnssproc/pkg/pipeline"
)

func main() {
	app := &cli.App{
		Version:   "v0.1.0",
		Compiled:  time.Now(),
		HelpName:  "gnssdrive",
		Usage:     "example GNSS positioning-pipeline driver",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "path to a pipeline YAML config",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "max-epochs",
				Usage: "stop after this many epochs (0 = no limit)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := pipeline.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	p, err := pipeline.Open(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	maxEpochs := c.Int("max-epochs")
	n := 0
	for {
		epoch, ok := p.Next()
		if !ok {
			break
		}
		printEpoch(c.App.Writer, epoch)

		n++
		if maxEpochs > 0 && n >= maxEpochs {
			break
		}
	}
	if err := p.Err(); err != nil {
		return err
	}

	stats := p.Stats()
	fmt.Fprintf(c.App.Writer, "\n%d epochs, %d satellites resolved (%d unhealthy, %d without ephemeris, %d stale)\n",
		stats.EpochsRead, stats.SatellitesResolved, stats.SatellitesSkippedUnhealthy,
		stats.SatellitesSkippedNoEphemeris, stats.SatellitesStaleEphemeris)
	return nil
}

func printEpoch(w io.Writer, epoch pipeline.EpochResult) {
	fmt.Fprintf(w, "%s flag=%d sats=%d\n", epoch.Time.Format(time.RFC3339), epoch.Flag, len(epoch.Sats))
	for _, sat := range epoch.Sats {
		state := "no state"
		if sat.HasState {
			state = fmt.Sprintf("pos=(%.3f,%.3f,%.3f) clk=%.3es", sat.Position[0], sat.Position[1], sat.Position[2], sat.ClockBias)
		}
		fmt.Fprintf(w, "  %s %s", sat.PRN, state)
		for _, rv := range sat.Recipes {
			fmt.Fprintf(w, " %s=%.3f", rv.Label, rv.Value)
		}
		fmt.Fprintln(w)
	}
}
