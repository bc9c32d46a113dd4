// Package channel adapts channels to debounced consumers.
package channel

import (
	"context"
	"time"
)

// Debounce forwards the last value received on events once no value has
// been received for duration. The returned channel is closed when events is
// closed or ctx is done. A value still pending at that point is dropped.
func Debounce[T any](ctx context.Context, events <-chan T, duration time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		timer := time.NewTimer(duration)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		var last T
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				last = event
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(duration)
			case <-timer.C:
				select {
				case out <- last:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
