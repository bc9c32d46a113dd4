package channel

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Notifier accepts values one at a time, like a debounce gate.
type Notifier[T any] interface {
	Notify(v T) error
}

// Pump forwards every value of events to n until events is closed or ctx is
// done. Errors returned by n are logged and the value is dropped.
func Pump[T any](ctx context.Context, events <-chan T, n Notifier[T]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-events:
			if !ok {
				return nil
			}
			if err := n.Notify(v); err != nil {
				log.Err(err).Any("value", v).Msg("notify failed, dropping value")
			}
		}
	}
}
