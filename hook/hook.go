// Package hook runs a command as the action of a gate.
package hook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/Darkness4/debounce-go/debounce"
	"github.com/Darkness4/debounce-go/utils/try"
	"github.com/rs/zerolog/log"
)

const (
	// EnvPayload is the environment variable holding the payload of the run.
	EnvPayload = "DEBOUNCE_PAYLOAD"
	// EnvGate is the environment variable holding the name of the gate.
	EnvGate = "DEBOUNCE_GATE"
)

// maxOutput is the number of bytes of stderr kept in the error of a failed run.
const maxOutput = 4096

// Command describes the command run by a gate.
type Command struct {
	// Args is the command and its arguments. The payload is not substituted;
	// it is available through EnvPayload.
	Args []string `yaml:"args"`
	// Env is appended to the environment of the current process.
	Env []string `yaml:"env,omitempty"`
	// Dir is the working directory.
	Dir string `yaml:"dir,omitempty"`
	// Timeout bounds a single try. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Retries is the number of tries after the first failure.
	Retries int `yaml:"retries,omitempty"`
	// RetryDelay is the delay before the first retry.
	RetryDelay time.Duration `yaml:"retryDelay,omitempty"`
	// Backoff multiplies RetryDelay after each failure. Zero or one means a
	// constant delay.
	Backoff int `yaml:"backoff,omitempty"`
	// MaxRetryDelay caps the delay between tries.
	MaxRetryDelay time.Duration `yaml:"maxRetryDelay,omitempty"`

	// Stdout receives the output of the command. Defaults to os.Stdout.
	Stdout io.Writer `yaml:"-"`
}

// ErrNoCommand is returned by Action when Args is empty.
var ErrNoCommand = errors.New("hook: no command")

// Action returns the action running the command for the gate named gate.
func (c Command) Action(gate string) (debounce.Action[string], error) {
	if len(c.Args) == 0 {
		return nil, ErrNoCommand
	}
	tries := c.Retries + 1
	if tries < 1 {
		tries = 1
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay < delay {
		maxDelay = delay
	}
	return func(ctx context.Context, payload string) error {
		return try.DoExponentialBackoff(
			ctx,
			tries,
			delay,
			c.Backoff,
			maxDelay,
			func(ctx context.Context, try int) error {
				return c.run(ctx, gate, payload, try)
			},
		)
	}, nil
}

func (c Command) run(ctx context.Context, gate string, payload string, try int) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env, EnvPayload+"="+payload, EnvGate+"="+gate)
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	var stderr bytes.Buffer
	cmd.Stderr = io.MultiWriter(os.Stderr, &limitedBuffer{buf: &stderr, limit: maxOutput})

	log.Debug().
		Str("gate", gate).
		Strs("args", c.Args).
		Int("try", try).
		Msg("running hook")
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		return err
	}
	log.Debug().
		Str("gate", gate).
		Dur("elapsed", time.Since(start)).
		Msg("hook succeeded")
	return nil
}

type limitedBuffer struct {
	buf   *bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}
