// Package notifier provides functions to notify the user about the runs of the gates.
package notifier

import (
	"context"

	"github.com/Darkness4/debounce-go/debounce"
	"github.com/Darkness4/debounce-go/notify"
	"github.com/rs/zerolog/log"
)

// Notifier is the notifier used to notify the user about the runs of the gates.
var Notifier = func() *notify.FormatedNotifier {
	n, err := notify.NewFormatedNotifier(
		notify.NewDummyNotifier(),
		notify.DefaultNotificationFormats,
	)
	if err != nil {
		panic(err)
	}
	return n
}()

// NotifyConfigReloaded notifies the user that the configuration has been reloaded.
func NotifyConfigReloaded(ctx context.Context) error {
	return Notifier.NotifyConfigReloaded(ctx)
}

// NotifyPanicked notifies the user that the program has panicked.
func NotifyPanicked(ctx context.Context, capture any) error {
	return Notifier.NotifyPanicked(ctx, capture)
}

// NotifyFired notifies the user that a gate ran its action.
func NotifyFired(
	ctx context.Context,
	gate string,
	labels map[string]string,
	payload string,
	forced bool,
) error {
	return Notifier.NotifyFired(ctx, gate, labels, payload, forced)
}

// NotifyFailed notifies the user that the action of a gate failed.
func NotifyFailed(
	ctx context.Context,
	gate string,
	labels map[string]string,
	err error,
) error {
	return Notifier.NotifyFailed(ctx, gate, labels, err)
}

// Observer forwards the runs of the gates to Notifier.
type Observer struct {
	debounce.NopObserver[string]
	Labels map[string]string
}

// OnRun implements debounce.Observer.
func (o Observer) OnRun(gate string, run debounce.Run[string]) {
	ctx := context.Background()
	var err error
	if run.Err != nil {
		err = NotifyFailed(ctx, gate, o.Labels, run.Err)
	} else {
		err = NotifyFired(ctx, gate, o.Labels, run.Payload, run.Forced)
	}
	if err != nil {
		log.Err(err).Str("gate", gate).Msg("notify failed")
	}
}
