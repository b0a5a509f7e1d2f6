// Package cluster waits for multi-node clusters to come up and provisions
// their nodes.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/prometheus"
)

var (
	ErrTimeoutExceeded = errors.New("timed out waiting for readiness")
	// ErrFatal marks check errors that retrying cannot fix.
	ErrFatal = errors.New("fatal readiness check error")
)

// Poll runs check until it succeeds. Between attempts it sleeps interval.
// It gives up with ErrTimeoutExceeded once another attempt would end past the
// deadline, and immediately when check returns an error wrapping ErrFatal.
func Poll(ctx context.Context, interval, timeout time.Duration, check func(context.Context) error) error {
	defer prometheus.ReadinessWaitObserver()()

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := check(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrFatal) {
			return err
		}
		if !time.Now().Add(interval).Before(deadline) {
			return fmt.Errorf("%w after %d attempts: %w", ErrTimeoutExceeded, attempt, err)
		}
		logrus.Debugf("Not ready yet (attempt %d): %v", attempt, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
