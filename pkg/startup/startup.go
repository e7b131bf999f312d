// Package startup waits for external dependencies to become reachable before
// the pipeline begins any work.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Probe checks a single dependency. It returns nil once the dependency is
// ready to accept work.
type Probe func(ctx context.Context) error

// DependencyUnavailableError is returned when a dependency never became ready
// within the retry budget. It carries the last observed probe failure.
type DependencyUnavailableError struct {
	Dependency string
	Attempts   int
	LastErr    error
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("dependency '%s' unavailable after %d attempt(s): %v", e.Dependency, e.Attempts, e.LastErr)
}

func (e *DependencyUnavailableError) Unwrap() error {
	return e.LastErr
}

// WaitUntilReady calls probe until it succeeds, sleeping interval between
// attempts. It returns a DependencyUnavailableError once maxAttempts is
// exhausted, or the context error if the run is cancelled while waiting.
func WaitUntilReady(ctx context.Context, logger ectologger.Logger, name string, probe Probe, maxAttempts int, interval time.Duration) error {
	log := logger.WithContext(ctx).WithField("dependency", name)
	log.Infof("Waiting for '%s' to be ready", name)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := probe(ctx); err != nil {
			lastErr = err
			log.WithError(err).WithField("attempt", attempt).Warnf("'%s' is not ready yet", name)

			if attempt == maxAttempts {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
			continue
		}

		log.WithField("attempt", attempt).Infof("'%s' is ready", name)
		return nil
	}

	return &DependencyUnavailableError{
		Dependency: name,
		Attempts:   maxAttempts,
		LastErr:    lastErr,
	}
}
