// Package sink defines where transcripts and translations go after the
// pipeline: the journal, the message bus, chat channels.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrWong99/realtalk/pkg/types"
)

// Sink receives pipeline output. Implementations must be safe for concurrent
// use; the app calls them from a single delivery goroutine, but Close may race
// with an in-flight call during shutdown.
type Sink interface {
	// Partial receives provisional text. Sinks that only keep committed text
	// return nil.
	Partial(ctx context.Context, sessionID string, ev types.TranscriptEvent) error

	// Final receives a committed transcript with its translation.
	Final(ctx context.Context, tr types.Translation) error

	// Name identifies the sink in logs.
	Name() string

	Close() error
}

// Fanout delivers to every sink in order. A failing sink is logged and does
// not stop delivery to the others.
type Fanout []Sink

var _ Sink = Fanout(nil)

// Partial implements [Sink]. The returned error joins every sink failure.
func (f Fanout) Partial(ctx context.Context, sessionID string, ev types.TranscriptEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.Partial(ctx, sessionID, ev); err != nil {
			slog.Warn("sink rejected partial", "sink", s.Name(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Final implements [Sink]. The returned error joins every sink failure.
func (f Fanout) Final(ctx context.Context, tr types.Translation) error {
	var errs []error
	for _, s := range f {
		if err := s.Final(ctx, tr); err != nil {
			slog.Warn("sink rejected final", "sink", s.Name(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name implements [Sink].
func (f Fanout) Name() string { return "fanout" }

// Close closes every sink and joins the errors.
func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
