// Package pipe provides the pipe command.
package pipe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
	"github.com/Darkness4/debounce-go/hook"
	"github.com/Darkness4/debounce-go/utils"
	"github.com/Darkness4/debounce-go/utils/channel"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// Params are the parameters of the pipe.
type Params struct {
	Delay   time.Duration
	MaxWait time.Duration
	// Exec runs this command instead of printing the line.
	Exec []string
	// JSON prints each run as a JSON line.
	JSON bool
}

type runLine struct {
	Payload string    `json:"payload"`
	Forced  bool      `json:"forced"`
	Time    time.Time `json:"time"`
}

var params = Params{}

// Command is the pipe command.
var Command = &cli.Command{
	Name:      "pipe",
	Usage:     "Debounce the lines of stdin.",
	ArgsUsage: "[-- command args...]",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:        "delay",
			Value:       time.Second,
			Usage:       "Quiet period before a line is emitted.",
			Destination: &params.Delay,
		},
		&cli.DurationFlag{
			Name:        "max-wait",
			Value:       10 * time.Second,
			Usage:       "Maximum time between the first line of a burst and its emission.",
			Destination: &params.MaxWait,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print each emitted line as a JSON object.",
			Destination: &params.JSON,
		},
		&cli.BoolFlag{
			Name:  "exec",
			Usage: "Run the arguments as a command for each emitted line, with the line in $DEBOUNCE_PAYLOAD.",
		},
	},
	Action: func(cCtx *cli.Context) error {
		ctx, cancel := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if cCtx.Bool("exec") {
			if cCtx.NArg() == 0 {
				return fmt.Errorf("--exec needs a command")
			}
			params.Exec = cCtx.Args().Slice()
		}

		stats, err := Run(ctx, os.Stdin, os.Stdout, params)
		log.Debug().
			Uint64("notifies", stats.Notifies).
			Uint64("runs", stats.Runs).
			Msg("pipe ended")
		return err
	},
}

// Run debounces the lines of in until EOF or ctx is done. The pending line
// is emitted before returning.
func Run(ctx context.Context, in io.Reader, out io.Writer, p Params) (debounce.Stats, error) {
	opts := []debounce.Option{debounce.WithName("pipe")}
	var action debounce.Action[string]
	switch {
	case len(p.Exec) > 0:
		var err error
		action, err = hook.Command{Args: p.Exec, Stdout: out}.Action("pipe")
		if err != nil {
			return debounce.Stats{}, err
		}
	case p.JSON:
		action = func(context.Context, string) error { return nil }
	default:
		action = func(_ context.Context, line string) error {
			_, err := fmt.Fprintln(out, line)
			return err
		}
	}
	if p.JSON {
		// Forced is only known by the observer.
		opts = append(opts, debounce.WithObserver[string](&jsonObserver{out: out}))
	}

	gate, err := debounce.New(action, p.Delay, p.MaxWait, opts...)
	if err != nil {
		return debounce.Stats{}, err
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				scanErr <- ctx.Err()
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	err = channel.Pump(ctx, lines, gate)
	if err == nil {
		err = <-scanErr
	}
	gate.Flush()
	gate.Stop()
	return gate.Stats(), err
}

type jsonObserver struct {
	debounce.NopObserver[string]
	out io.Writer
}

func (o *jsonObserver) OnRun(_ string, run debounce.Run[string]) {
	if _, err := io.WriteString(o.out, utils.MustJSONEncode(runLine{
		Payload: run.Payload,
		Forced:  run.Forced,
		Time:    run.StartedAt,
	})); err != nil {
		log.Err(err).Msg("failed to write line")
	}
}
