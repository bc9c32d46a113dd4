// Package demo provides the demo command.
package demo

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// Params are the parameters of the demo.
type Params struct {
	Producers int
	Interval  time.Duration
	Delay     time.Duration
	MaxWait   time.Duration
	Duration  time.Duration
}

var params = Params{}

// Command is the demo command.
var Command = &cli.Command{
	Name:  "demo",
	Usage: "Hammer a gate with concurrent producers and print each run.",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:        "producers",
			Value:       4,
			Usage:       "Number of concurrent producers.",
			Destination: &params.Producers,
		},
		&cli.DurationFlag{
			Name:        "interval",
			Value:       100 * time.Millisecond,
			Usage:       "Interval between two calls of a producer.",
			Destination: &params.Interval,
		},
		&cli.DurationFlag{
			Name:        "delay",
			Value:       time.Second,
			Usage:       "Quiet period before a run.",
			Destination: &params.Delay,
		},
		&cli.DurationFlag{
			Name:        "max-wait",
			Value:       2 * time.Second,
			Usage:       "Maximum time between the first call of a cycle and its run.",
			Destination: &params.MaxWait,
		},
		&cli.DurationFlag{
			Name:        "duration",
			Value:       10 * time.Second,
			Usage:       "Duration of the demo. Zero runs until interrupted.",
			Destination: &params.Duration,
		},
	},
	Action: func(cCtx *cli.Context) error {
		ctx, cancel := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if params.Duration > 0 {
			ctx, cancel = context.WithTimeout(ctx, params.Duration)
			defer cancel()
		}

		stats, err := Run(ctx, os.Stdout, params)
		if err != nil {
			return err
		}
		log.Info().
			Uint64("notifies", stats.Notifies).
			Uint64("runs", stats.Runs).
			Uint64("forced", stats.Forced).
			Uint64("standDowns", stats.StandDowns).
			Msg("demo ended")
		return nil
	},
}

// Run starts the producers until ctx is done, printing each run to w.
func Run(ctx context.Context, w io.Writer, p Params) (debounce.Stats, error) {
	start := time.Now()
	var seq atomic.Int64
	gate, err := debounce.New(
		debounce.ActionFunc(func(payload int64) {
			fmt.Fprintf(w, "%8dms run payload=%d\n", time.Since(start).Milliseconds(), payload)
		}),
		p.Delay,
		p.MaxWait,
		debounce.WithName("demo"),
	)
	if err != nil {
		return debounce.Stats{}, err
	}

	g, ctx := errgroup.WithContext(ctx)
	for range p.Producers {
		g.Go(func() error {
			ticker := time.NewTicker(p.Interval)
			defer ticker.Stop()
			for {
				if err := gate.Notify(seq.Add(1)); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	err = g.Wait()
	gate.Flush()
	gate.Stop()
	return gate.Stats(), err
}
