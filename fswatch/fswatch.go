// Package fswatch feeds filesystem events into a debounce gate.
package fswatch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Darkness4/debounce-go/telemetry/metrics"
	"github.com/Darkness4/debounce-go/utils/channel"
	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// DefaultOps are the operations watched when none is given.
const DefaultOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// Option configures a Watcher.
type Option func(*options)

type options struct {
	name      string
	recursive bool
	ops       fsnotify.Op
	mimeTypes []string
	ignore    []string
}

// WithName sets the name used in logs and metrics. It should match the name
// of the gate.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithRecursive watches the subdirectories, including the ones created after
// Run started.
func WithRecursive(recursive bool) Option {
	return func(o *options) {
		o.recursive = recursive
	}
}

// WithOps sets the operations forwarded to the gate.
func WithOps(ops fsnotify.Op) Option {
	return func(o *options) {
		if ops != 0 {
			o.ops = ops
		}
	}
}

// WithMimeTypes only forwards files whose detected mime type, or one of its
// parents, starts with one of prefixes. Removed and renamed files cannot be
// detected and are always forwarded.
func WithMimeTypes(prefixes ...string) Option {
	return func(o *options) {
		o.mimeTypes = append(o.mimeTypes, prefixes...)
	}
}

// WithIgnore drops the paths whose base name matches one of the glob patterns.
func WithIgnore(patterns ...string) Option {
	return func(o *options) {
		o.ignore = append(o.ignore, patterns...)
	}
}

// Watcher forwards the filesystem events of a set of paths to a gate.
type Watcher struct {
	paths []string
	gate  channel.Notifier[string]
	attrs metric.MeasurementOption
	log   zerolog.Logger
	options
}

// New creates a Watcher notifying gate with the path of each accepted event.
func New(gate channel.Notifier[string], paths []string, opts ...Option) *Watcher {
	o := options{
		name: "default",
		ops:  DefaultOps,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Watcher{
		paths:   paths,
		gate:    gate,
		attrs:   metric.WithAttributes(metrics.GateAttribute(o.name)),
		log:     log.With().Str("gate", o.name).Logger(),
		options: o,
	}
}

// Run watches the paths until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, path := range w.paths {
		if err := w.add(fw, path); err != nil {
			return err
		}
	}
	w.log.Info().Strs("paths", w.paths).Bool("recursive", w.recursive).Msg("watching")

	events := make(chan string)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		return w.loop(ctx, fw, events)
	})
	g.Go(func() error {
		return channel.Pump(ctx, events, w.gate)
	})
	return g.Wait()
}

func (w *Watcher) add(fw *fsnotify.Watcher, path string) error {
	if !w.recursive {
		return fw.Add(path)
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && w.ignored(p) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, events chan<- string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			metrics.Watcher.Events.Add(ctx, 1, w.attrs)
			if w.recursive && event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() && !w.ignored(event.Name) {
					if err := w.add(fw, event.Name); err != nil {
						w.log.Err(err).Str("path", event.Name).Msg("failed to watch new directory")
					}
				}
			}
			if !w.accept(event) {
				metrics.Watcher.Filtered.Add(ctx, 1, w.attrs)
				continue
			}
			w.log.Trace().Stringer("event", event).Msg("accepted")
			select {
			case events <- event.Name:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			metrics.Watcher.Errors.Add(ctx, 1, w.attrs)
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn().Err(err).Msg("events were dropped")
				continue
			}
			w.log.Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) accept(event fsnotify.Event) bool {
	if event.Op&w.ops == 0 {
		return false
	}
	if w.ignored(event.Name) {
		return false
	}
	if len(w.mimeTypes) == 0 || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return true
	}
	mtype, err := mimetype.DetectFile(event.Name)
	if err != nil {
		w.log.Debug().Err(err).Str("path", event.Name).Msg("mime detection failed")
		return false
	}
	for m := mtype; m != nil; m = m.Parent() {
		for _, prefix := range w.mimeTypes {
			if strings.HasPrefix(m.String(), prefix) {
				return true
			}
		}
	}
	w.log.Trace().
		Str("path", event.Name).
		Str("mime", mtype.String()).
		Msg("filtered by mime type")
	return false
}

// ParseOps parses operation names such as "create" or "write".
func ParseOps(names []string) (fsnotify.Op, error) {
	var ops fsnotify.Op
	for _, name := range names {
		switch strings.ToLower(name) {
		case "create":
			ops |= fsnotify.Create
		case "write":
			ops |= fsnotify.Write
		case "remove":
			ops |= fsnotify.Remove
		case "rename":
			ops |= fsnotify.Rename
		case "chmod":
			ops |= fsnotify.Chmod
		default:
			return 0, &UnknownOpError{Name: name}
		}
	}
	return ops, nil
}

// UnknownOpError is returned by ParseOps for an unknown operation name.
type UnknownOpError struct {
	Name string
}

func (e *UnknownOpError) Error() string {
	return "unknown fsnotify operation: " + e.Name
}
