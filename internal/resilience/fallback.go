package resilience

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [Chain] failed or was
// skipped because its breaker was open.
var ErrAllFailed = errors.New("all backends failed")

type link[T any] struct {
	name    string
	backend T
	breaker *Breaker
}

// Chain is an ordered list of interchangeable backends. Calls go to the first
// backend whose breaker admits them; on failure the next one is tried.
type Chain[T any] struct {
	cfg   BreakerConfig
	links []link[T]
}

// NewChain creates a [Chain] with primary as its first backend. cfg is used
// for every breaker; its Name is replaced by each backend's name.
func NewChain[T any](primaryName string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(primaryName, primary)
	return c
}

// Add appends a fallback backend.
func (c *Chain[T]) Add(name string, backend T) {
	bc := c.cfg
	bc.Name = name
	c.links = append(c.links, link[T]{name: name, backend: backend, breaker: NewBreaker(bc)})
}

// Len returns the number of backends.
func (c *Chain[T]) Len() int { return len(c.links) }

// Primary returns the first backend.
func (c *Chain[T]) Primary() T { return c.links[0].backend }

// Close closes every backend that implements [io.Closer] and joins the
// errors.
func (c *Chain[T]) Close() error {
	var errs []error
	for _, l := range c.links {
		if cl, ok := any(l.backend).(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Call runs fn against each backend in order until one returns a nil error.
// It is a function rather than a method because methods cannot declare type
// parameters.
func Call[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range c.links {
		l := &c.links[i]
		var out R
		err := l.breaker.Do(func() error {
			var err error
			out, err = fn(l.backend)
			return err
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("backend skipped, circuit open", "backend", l.name)
			continue
		}
		if i < len(c.links)-1 {
			slog.Warn("backend failed, trying next", "backend", l.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
