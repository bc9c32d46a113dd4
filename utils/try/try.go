// Package try provides retry helpers.
package try

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Do calls fn up to tries times, waiting delay between each failed try.
func Do(
	ctx context.Context,
	tries int,
	delay time.Duration,
	fn func(ctx context.Context, try int) error,
) error {
	return DoExponentialBackoff(ctx, tries, delay, 1, delay, fn)
}

// DoExponentialBackoff calls fn up to tries times. The delay between two
// tries is multiplied by multiplier after each failure, up to maxBackoff.
func DoExponentialBackoff(
	ctx context.Context,
	tries int,
	delay time.Duration,
	multiplier int,
	maxBackoff time.Duration,
	fn func(ctx context.Context, try int) error,
) (err error) {
	if tries <= 0 {
		log.Panic().Int("tries", tries).Msg("tries is 0 or negative")
	}
	if multiplier < 1 {
		multiplier = 1
	}
	for try := 0; try < tries; try++ {
		err = fn(ctx, try)
		if err == nil {
			return nil
		}
		if try == tries-1 {
			break
		}
		log.Warn().
			Err(err).
			Int("try", try).
			Int("maxTries", tries).
			Dur("backoff", delay).
			Msg("try failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = delay * time.Duration(multiplier)
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
	log.Warn().Err(err).Int("maxTries", tries).Msg("failed all tries")
	return err
}
