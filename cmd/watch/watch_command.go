// Package watch provides the watch command.
package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
	"github.com/Darkness4/debounce-go/fswatch"
	"github.com/Darkness4/debounce-go/logger"
	"github.com/Darkness4/debounce-go/notify"
	"github.com/Darkness4/debounce-go/notify/notifier"
	"github.com/Darkness4/debounce-go/server"
	"github.com/Darkness4/debounce-go/state"
	"github.com/Darkness4/debounce-go/utils"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var (
	configPath    string
	listenAddress string
	stateFile     string
	schedulerKind string
	poolWorkers   int
)

// Command is the watch command.
var Command = &cli.Command{
	Name:  "watch",
	Usage: "Run commands on debounced filesystem events.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Required:    true,
			Usage:       `Config file path. (required)`,
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "http.listen-address",
			Value:       ":3000",
			Usage:       "Address of the status server. Empty to disable.",
			Destination: &listenAddress,
			EnvVars:     []string{"LISTEN_ADDRESS"},
		},
		&cli.StringFlag{
			Name:        "state-file",
			Usage:       "Persist the state of the gates in this file across restarts.",
			Destination: &stateFile,
		},
		&cli.StringFlag{
			Name:        "scheduler",
			Value:       "timer",
			Usage:       `Scheduler of the gates: "timer" or "pool".`,
			Destination: &schedulerKind,
		},
		&cli.IntFlag{
			Name:        "pool.workers",
			Value:       4,
			Usage:       "Number of workers of the pool scheduler.",
			Destination: &poolWorkers,
		},
	},
	Action: func(cCtx *cli.Context) error {
		ctx, cancel := context.WithCancel(cCtx.Context)
		defer cancel()

		// Trap cleanup
		cleanChan := make(chan os.Signal, 1)
		signal.Notify(cleanChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-cleanChan
			cancel()
		}()

		if schedulerKind != "timer" && schedulerKind != "pool" {
			return fmt.Errorf("unknown scheduler: %s", schedulerKind)
		}

		st := state.DefaultState
		if stateFile != "" {
			if err := st.Load(stateFile); err != nil {
				log.Err(err).Str("file", stateFile).Msg("failed to restore state")
			}
			defer func() {
				if err := st.Save(stateFile); err != nil {
					log.Err(err).Str("file", stateFile).Msg("failed to save state")
				}
			}()
		}
		broadcaster := server.NewBroadcaster()

		g, ctx := errgroup.WithContext(ctx)
		if listenAddress != "" {
			g.Go(func() error {
				return server.ListenAndServe(ctx, listenAddress, server.NewHandler(st, broadcaster))
			})
		}

		configChan := make(chan *Config)
		g.Go(func() error {
			return ObserveConfig(ctx, configPath, configChan)
		})
		g.Go(func() error {
			return ConfigReloader(ctx, configChan, func(ctx context.Context, config *Config) {
				handleConfig(ctx, config, st, broadcaster)
			})
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func newScheduler() (debounce.Scheduler, func()) {
	if schedulerKind == "pool" {
		s := debounce.NewPoolScheduler(poolWorkers)
		return s, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				log.Err(err).Msg("failed to close the pool scheduler")
			}
		}
	}
	s := debounce.NewTimerScheduler()
	return s, s.Close
}

func setupNotifier(config *Config) error {
	var base notify.BaseNotifier
	switch {
	case config.Notifier.Gotify.Enabled:
		base = notify.NewGoNotifier(
			&http.Client{Timeout: time.Minute, Transport: &logger.Transport{}},
			config.Notifier.Gotify.Endpoint,
			config.Notifier.Gotify.Token,
		)
		log.Info().Msg("using gotify")
	case config.Notifier.Shoutrrr.Enabled:
		if len(config.Notifier.Shoutrrr.URLs) == 0 {
			log.Warn().Msg("using shoutrrr but there is no URLs")
		}
		var err error
		base, err = notify.NewShoutrrrNotifier(config.Notifier.Shoutrrr.URLs...)
		if err != nil {
			return err
		}
		log.Info().Msg("using shoutrrr")
	default:
		base = notify.NewDummyNotifier()
		log.Info().Msg("no notifier configured")
	}
	n, err := notify.NewFormatedNotifier(base, config.Notifier.NotificationFormats)
	if err != nil {
		return err
	}
	notifier.Notifier = n
	return nil
}

func handleConfig(
	ctx context.Context,
	config *Config,
	st *state.State,
	broadcaster *server.Broadcaster,
) {
	if err := setupNotifier(config); err != nil {
		log.Err(err).Msg("failed to setup notifier, notifications are disabled")
		notifier.Notifier, _ = notify.NewFormatedNotifier(
			notify.NewDummyNotifier(),
			notify.DefaultNotificationFormats,
		)
	}
	if err := notifier.NotifyConfigReloaded(ctx); err != nil {
		log.Err(err).Msg("notify failed")
	}
	defer func() {
		if err := recover(); err != nil {
			log.Error().Any("panic", err).Msg("panicked")
			if err := notifier.NotifyPanicked(context.Background(), err); err != nil {
				log.Err(err).Msg("notify failed")
			}
			os.Exit(1)
		}
	}()

	// Forget the gates removed from the config.
	for name := range st.ReadState().Gates {
		if _, ok := config.Gates[name]; !ok {
			st.Remove(name)
		}
	}

	params := DefaultParams.Clone()
	config.DefaultParams.Override(params)

	scheduler, closeScheduler := newScheduler()
	defer closeScheduler()

	// Actions must survive the cancellation of ctx to be flushed.
	runCtx := context.WithoutCancel(ctx)

	gates := make(map[string]*debounce.Gate[string], len(config.Gates))
	errs := make([]error, len(config.Gates))
	var wg sync.WaitGroup
	i := 0
	for name, overrideParams := range config.Gates {
		gateParams := params.Clone()
		overrideParams.Override(gateParams)
		log := log.With().Str("gate", name).Logger()

		gate, watcher, err := newGate(runCtx, name, gateParams, scheduler, st, broadcaster)
		if err != nil {
			log.Err(err).Msg("invalid gate")
			st.SetGateStatus(name, state.GateStatusFailed, gateParams.Labels)
			st.SetGateError(name, err)
			continue
		}
		gates[name] = gate
		st.SetGateStatus(name, state.GateStatusIdle, gateParams.Labels)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := watcher.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Err(err).Msg("watcher failed")
				st.SetGateError(name, err)
			}
			errs[i] = err
		}(i)
		i++
	}

	wg.Wait()
	if err := utils.GetFirstValuableErrorOrFirst(errs); err != nil &&
		!errors.Is(err, context.Canceled) {
		log.Err(err).Msg("a watcher stopped before the config was replaced")
	}

	// Wait for the config to be replaced or the program to stop.
	<-ctx.Done()

	for name, gate := range gates {
		if gate.Flush() {
			log.Info().Str("gate", name).Msg("flushed pending payload")
		}
		gate.Stop()
		st.SetGateStatus(name, state.GateStatusStopped, nil)
	}
}

func newGate(
	ctx context.Context,
	name string,
	params *Params,
	scheduler debounce.Scheduler,
	st *state.State,
	broadcaster *server.Broadcaster,
) (*debounce.Gate[string], *fswatch.Watcher, error) {
	if len(params.Paths) == 0 {
		return nil, nil, errors.New("no paths to watch")
	}
	ops, err := fswatch.ParseOps(params.Ops)
	if err != nil {
		return nil, nil, err
	}
	action, err := params.Command.Action(name)
	if err != nil {
		return nil, nil, err
	}

	gate, err := debounce.New(
		action,
		params.Delay,
		params.MaxWait,
		debounce.WithName(name),
		debounce.WithScheduler(scheduler),
		debounce.WithContext(ctx),
		debounce.WithObserver[string](debounce.Observers[string]{
			st.Observer(params.Labels),
			notifier.Observer{Labels: params.Labels},
			broadcaster,
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	watcher := fswatch.New(
		gate,
		params.Paths,
		fswatch.WithName(name),
		fswatch.WithRecursive(params.Recursive),
		fswatch.WithOps(ops),
		fswatch.WithMimeTypes(params.MimeTypes...),
		fswatch.WithIgnore(params.Ignore...),
	)
	return gate, watcher, nil
}
