package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Darkness4/debounce-go/notify"
	"github.com/Darkness4/debounce-go/utils/channel"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// configDebounce absorbs the burst of events emitted by editors on save.
const configDebounce = 200 * time.Millisecond

// Config is the configuration of the watch command.
type Config struct {
	Notifier      NotifierConfig            `yaml:"notifier,omitempty"`
	DefaultParams OptionalParams            `yaml:"defaultParams,omitempty"`
	Gates         map[string]OptionalParams `yaml:"gates"`
}

// NotifierConfig is the configuration of the notifications.
type NotifierConfig struct {
	Gotify struct {
		Enabled  bool   `yaml:"enabled,omitempty"`
		Endpoint string `yaml:"endpoint,omitempty"`
		Token    string `yaml:"token,omitempty"`
	} `yaml:"gotify,omitempty"`
	Shoutrrr struct {
		Enabled bool     `yaml:"enabled,omitempty"`
		URLs    []string `yaml:"urls,omitempty"`
	} `yaml:"shoutrrr,omitempty"`
	notify.NotificationFormats `yaml:"notificationFormats,omitempty"`
}

func loadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := &Config{}
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ObserveConfig sends the config to configChan, then sends it again each
// time the file changes.
func ObserveConfig(ctx context.Context, filename string, configChan chan<- *Config) error {
	send := func() bool {
		config, err := loadConfig(filename)
		if err != nil {
			log.Err(err).Str("file", filename).Msg("failed to load config")
			return true
		}
		select {
		case configChan <- config:
			return true
		case <-ctx.Done():
			return false
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors replace the file on save: watch the directory.
	abs, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return err
	}
	abs = filepath.Join(dir, filepath.Base(abs))
	if err := w.Add(dir); err != nil {
		return err
	}

	if !send() {
		return ctx.Err()
	}

	events := make(chan struct{})
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs ||
					!event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				select {
				case events <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Err(err).Str("file", filename).Msg("config watcher error")
			}
		}
	}()

	for range channel.Debounce(ctx, events, configDebounce) {
		log.Info().Str("file", filename).Msg("new config detected")
		if !send() {
			break
		}
	}
	return ctx.Err()
}

// ConfigReloader runs handleConfig with the last received config. The
// previous handleConfig is canceled and awaited before the next one starts.
func ConfigReloader(
	ctx context.Context,
	configChan <-chan *Config,
	handleConfig func(ctx context.Context, config *Config),
) error {
	var configContext context.Context
	var configCancel context.CancelFunc
	// Channel used to assure only one handleConfig can be launched
	doneChan := make(chan struct{})

	for {
		select {
		case newConfig := <-configChan:
			if configContext != nil && configCancel != nil {
				configCancel()
				select {
				case <-doneChan:
					log.Info().Msg("loading new config")
				case <-time.After(30 * time.Second):
					log.Fatal().Msg("couldn't load a new config because of a deadlock")
				}
			}
			configContext, configCancel = context.WithCancel(ctx)
			go func(ctx context.Context) {
				log.Info().Msg("loaded new config")
				handleConfig(ctx, newConfig)
				doneChan <- struct{}{}
			}(configContext)
		case <-ctx.Done():
			if configContext != nil && configCancel != nil {
				configCancel()
				configContext = nil

				// This assure that the `handleConfig` ends gracefully
				select {
				case <-doneChan:
					log.Info().Msg("config reloader graceful exit")
				case <-time.After(30 * time.Second):
					log.Fatal().Msg("config reloader force fatal exit")
				}
			}

			// The context was canceled, exit the loop
			return ctx.Err()
		}
	}
}
